// Package relocate moves the members of a validated batch to the folder that
// matches its verdict.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/rs/zerolog/log"
)

const (
	ValidFolder   = "valid"
	InvalidFolder = "invalid"

	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 10
)

var (
	// ErrCopyTimeout is returned when a copy is still pending after the last poll.
	ErrCopyTimeout = errors.New("timed out waiting for copy to complete")
	// ErrCopyFailed is returned when the store reports a failed or aborted copy.
	ErrCopyFailed = errors.New("copy did not complete")
)

// MoveError reports the member that could not be moved.
type MoveError struct {
	Path   string
	Target string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("failed to move %s to %s: %v", e.Path, e.Target, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// FolderFor returns the target folder for a terminal status, or false when
// the status does not relocate.
func FolderFor(s batch.Status) (string, bool) {
	switch s {
	case batch.StatusValid:
		return ValidFolder, true
	case batch.StatusInvalid:
		return InvalidFolder, true
	default:
		return "", false
	}
}

// Mover relocates batch members with copy, poll, then delete.
type Mover struct {
	Store        store.Store
	PollInterval time.Duration
	// MaxPolls is the number of waits after the first status read.
	MaxPolls int
}

func NewMover(s store.Store, pollInterval time.Duration, maxPolls int) *Mover {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	return &Mover{Store: s, PollInterval: pollInterval, MaxPolls: maxPolls}
}

// Target returns the destination of path inside folder.
func Target(folder, path string) string {
	return folder + "/" + path
}

// MoveBatch moves every member of b to {folder}/{original path}, in path
// order. The first failure stops the move; members already moved stay moved.
func (m *Mover) MoveBatch(ctx context.Context, b *batch.Batch, folder string) error {
	for _, p := range b.Paths() {
		if err := m.Move(ctx, p, folder); err != nil {
			return err
		}
	}
	log.Info().
		Str("customer", b.Customer()).
		Time("timestamp", b.Timestamp()).
		Str("folder", folder).
		Int("files", len(b.Members)).
		Msg("Moved batch")
	return nil
}

// Move relocates a single object.
func (m *Mover) Move(ctx context.Context, path, folder string) error {
	target := Target(folder, path)
	if err := m.Store.StartCopy(ctx, path, target); err != nil {
		return &MoveError{Path: path, Target: target, Err: err}
	}
	if err := m.waitForCopy(ctx, target); err != nil {
		return &MoveError{Path: path, Target: target, Err: err}
	}
	if err := m.Store.Delete(ctx, path); err != nil {
		return &MoveError{Path: path, Target: target, Err: err}
	}
	log.Debug().Str("path", path).Str("target", target).Msg("Moved file")
	return nil
}

func (m *Mover) waitForCopy(ctx context.Context, target string) error {
	polls := 0
	op := func() error {
		st, err := m.Store.CopyStatus(ctx, target)
		if err != nil {
			return backoff.Permanent(err)
		}
		polls++
		switch st {
		case store.CopyPending:
			log.Debug().Str("path", target).Int("poll", polls).Msg("Copy pending")
			return ErrCopyTimeout
		case store.CopyFailed, store.CopyAborted:
			return backoff.Permanent(fmt.Errorf("%w: status %s", ErrCopyFailed, st))
		default:
			return nil
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.PollInterval), uint64(m.MaxPolls)),
		ctx,
	)
	return backoff.Retry(op, policy)
}
