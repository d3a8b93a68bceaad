package recipe

import "io"

// Entry is one named blob streamed through an import or export.
// Entry names use '/' separators: "<recipeId>/recipe.json",
// "<recipeId>/<deviceId>/<relative path>" and "variables.json".
type Entry struct {
	Name   string
	Reader io.Reader
}

// EntryReader yields archive entries sequentially. Consumers must
// tolerate entries arriving in any order.
type EntryReader interface {
	// Next returns the next entry, or io.EOF when the stream ends.
	Next() (Entry, error)
}

// EntryWriter consumes archive entries sequentially.
type EntryWriter interface {
	// Insert writes one entry; the reader is drained before returning.
	Insert(name string, r io.Reader) error

	// Close finishes the stream. No Insert may follow.
	Close() error
}
