package listing

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
)

var (
	// ErrExtension marks an entry whose extension is not the data format.
	ErrExtension = errors.New("unexpected file extension")
	// ErrName marks an entry whose name does not follow the naming convention.
	ErrName = errors.New("malformed file name")
	// ErrType marks an entry whose type tag is not recognized.
	ErrType = errors.New("unrecognized file type")
)

// Name is the parsed form of {customer}_{YYYYMMDD}_{HHMM}_{type}.{ext}.
type Name struct {
	Customer  string
	Timestamp time.Time
	Type      batch.Type
}

// EntryError is a per-entry discovery failure. The entry is skipped.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Result is the outcome of a scan: grouped batches sorted by customer then
// timestamp, plus the entries that were skipped.
type Result struct {
	Batches  []*batch.Batch
	Failures []error
}
