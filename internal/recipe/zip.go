package recipe

import (
	"archive/zip"
	"io"
)

// zipEntryReader adapts archive/zip to the EntryReader abstraction.
type zipEntryReader struct {
	files   []*zip.File
	current io.ReadCloser
}

// NewZipEntryReader reads entries from a zip archive.
func NewZipEntryReader(r io.ReaderAt, size int64) (EntryReader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, InvalidFormat("not a zip archive: %v", err)
	}
	return &zipEntryReader{files: zr.File}, nil
}

func (z *zipEntryReader) Next() (Entry, error) {
	if z.current != nil {
		z.current.Close()
		z.current = nil
	}
	for len(z.files) > 0 {
		file := z.files[0]
		z.files = z.files[1:]
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return Entry{}, InvalidFormat("opening %s: %v", file.Name, err)
		}
		z.current = rc
		return Entry{Name: file.Name, Reader: rc}, nil
	}
	return Entry{}, io.EOF
}

// zipEntryWriter adapts archive/zip to the EntryWriter abstraction.
type zipEntryWriter struct {
	zw *zip.Writer
}

// NewZipEntryWriter streams entries into a zip archive written to w.
func NewZipEntryWriter(w io.Writer) EntryWriter {
	return &zipEntryWriter{zw: zip.NewWriter(w)}
}

func (z *zipEntryWriter) Insert(name string, r io.Reader) error {
	entry, err := z.zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, r)
	return err
}

func (z *zipEntryWriter) Close() error {
	return z.zw.Close()
}
