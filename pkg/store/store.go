// Package store defines the object-store primitives the validator relies on
// and provides Azure Blob Storage and filesystem implementations.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Entry is one object returned by List.
type Entry struct {
	// Path is the full object name inside the container.
	Path string
	// Metadata is the user metadata attached to the object; nil when none.
	Metadata map[string]string
}

// Content is a downloaded object.
type Content struct {
	Data []byte
	// ContentEncoding is the declared encoding property of the object, if any.
	ContentEncoding string
}

// CopyStatus is the state of a server-side copy into a destination object.
type CopyStatus string

const (
	CopyNone    CopyStatus = ""
	CopyPending CopyStatus = "pending"
	CopySuccess CopyStatus = "success"
	CopyAborted CopyStatus = "aborted"
	CopyFailed  CopyStatus = "failed"
)

// Store is the set of object-store operations used by discovery, validation
// and relocation.
type Store interface {
	// List returns every object whose name starts with prefix, with metadata.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Download(ctx context.Context, path string) (*Content, error)
	// SetMetadata replaces the metadata of an object.
	SetMetadata(ctx context.Context, path string, metadata map[string]string) error
	// StartCopy begins an asynchronous copy of src into dst.
	StartCopy(ctx context.Context, src, dst string) error
	// CopyStatus returns the copy state of dst.
	CopyStatus(ctx context.Context, dst string) (CopyStatus, error)
	Delete(ctx context.Context, path string) error
}

// Lookup returns the metadata value for key, ignoring key case.
func Lookup(metadata map[string]string, key string) (string, bool) {
	if metadata == nil {
		return "", false
	}
	if v, ok := metadata[key]; ok {
		return v, true
	}
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
