package recipe

import (
	"bytes"
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/mineichen/rigcore/internal/rig"
)

func TestRelativeFilePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain file", input: "calib.json", want: "calib.json"},
		{name: "nested", input: "calib/lens.json", want: "calib/lens.json"},
		{name: "cleans redundant segments", input: "calib/./lens.json", want: "calib/lens.json"},
		{name: "inner dotdot stays inside", input: "calib/../lens.json", want: "lens.json"},
		{name: "empty", input: "", wantErr: true},
		{name: "escape", input: "../secret", wantErr: true},
		{name: "deep escape", input: "a/../../secret", wantErr: true},
		{name: "absolute", input: "/etc/passwd", wantErr: true},
		{name: "dot only", input: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RelativeFilePath(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Fatalf("got %v, want ErrInvalidPath", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileService(t *testing.T) {
	builder := NewFileServiceBuilder(t.TempDir())
	deviceID := rig.NewDeviceID()
	files := builder.Build(deviceID)

	if list, err := files.List(); err != nil || len(list) != 0 {
		t.Fatalf("fresh device must list empty, got %v %v", list, err)
	}

	if err := files.Add("a/b.txt", strings.NewReader("one")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := files.Add("c.txt", strings.NewReader("two")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	data, err := files.Get("a/b.txt")
	if err != nil || string(data) != "one" {
		t.Fatalf("Get: %q %v", data, err)
	}

	list, err := files.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"a/b.txt", "c.txt"}; !reflect.DeepEqual(list, want) {
		t.Fatalf("List: got %v, want %v", list, want)
	}

	if err := files.Remove("c.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := files.Get("c.txt"); !os.IsNotExist(err) {
		t.Fatalf("removed file still readable: %v", err)
	}

	if err := files.Add("../escape.txt", strings.NewReader("no")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("got %v, want ErrInvalidPath", err)
	}

	if err := files.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(files.Root()); !os.IsNotExist(err) {
		t.Fatalf("device directory still present: %v", err)
	}
}

func TestZipEntryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewZipEntryWriter(&buf)
	if err := w.Insert("first.txt", strings.NewReader("alpha")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Insert("dir/second.txt", strings.NewReader("beta")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewZipEntryReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("NewZipEntryReader: %v", err)
	}
	got := map[string]string{}
	for {
		entry, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		data, err := io.ReadAll(entry.Reader)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		got[entry.Name] = string(data)
	}
	want := map[string]string{"first.txt": "alpha", "dir/second.txt": "beta"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNotAZipArchive(t *testing.T) {
	if _, err := NewZipEntryReader(bytes.NewReader([]byte("junk")), 4); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("got %v, want ErrInvalidFormat", err)
	}
}
