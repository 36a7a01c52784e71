// Package status reads and writes the persisted batch status. Status lives in
// the metadata of the batch's reference member.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/relocate"
	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Metadata keys written on the reference member.
const (
	StatusKey    = "status"
	ClaimIDKey   = "claim_id"
	ClaimedAtKey = "claimed_at"
)

// ErrRelocate wraps relocation failures returned by Finalize. The terminal
// status has been persisted when it is returned.
var ErrRelocate = errors.New("relocation failed")

// ErrNotTerminal is returned by Finalize for RUNNING or no status.
var ErrNotTerminal = errors.New("status does not end a validation run")

// Relocator moves a batch to a folder.
type Relocator interface {
	MoveBatch(ctx context.Context, b *batch.Batch, folder string) error
}

type Controller struct {
	Store  store.Store
	Schema *batch.Schema
	Mover  Relocator
	// StaleAfter re-surfaces RUNNING batches claimed longer ago than this.
	// Zero disables recovery.
	StaleAfter time.Duration

	now func() time.Time
}

func NewController(s store.Store, schema *batch.Schema, mover Relocator, staleAfter time.Duration) *Controller {
	return &Controller{
		Store:      s,
		Schema:     schema,
		Mover:      mover,
		StaleAfter: staleAfter,
		now:        time.Now,
	}
}

// NeedsValidation reports whether a batch with status s must be validated:
// true when no status was recorded or the last attempt ended in ERROR.
func NeedsValidation(s batch.Status) bool {
	switch s {
	case batch.StatusNone, batch.StatusError:
		return true
	case batch.StatusRunning, batch.StatusValid, batch.StatusInvalid:
		return false
	default:
		return false
	}
}

// Load fills the status fields of b from the reference member's metadata.
func (c *Controller) Load(b *batch.Batch, metadata map[string]string) error {
	raw, _ := store.Lookup(metadata, StatusKey)
	st, err := batch.ParseStatus(raw)
	if err != nil {
		return err
	}
	b.Status = st
	b.ClaimID, _ = store.Lookup(metadata, ClaimIDKey)
	b.ClaimedAt = time.Time{}
	if v, ok := store.Lookup(metadata, ClaimedAtKey); ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", ClaimedAtKey, v, err)
		}
		b.ClaimedAt = t.UTC()
	}
	return nil
}

// Eligible reports whether discovery should surface b. Besides
// NeedsValidation, a RUNNING batch whose claim is older than StaleAfter is
// eligible again.
func (c *Controller) Eligible(b *batch.Batch) bool {
	if NeedsValidation(b.Status) {
		return true
	}
	if c.StaleAfter <= 0 || b.Status != batch.StatusRunning || b.ClaimedAt.IsZero() {
		return false
	}
	return c.now().Sub(b.ClaimedAt) > c.StaleAfter
}

// SetStatus persists s on the reference member of b. It does nothing when b
// has no reference member.
func (c *Controller) SetStatus(ctx context.Context, b *batch.Batch, s batch.Status) error {
	ref, ok := b.Reference(c.Schema)
	if !ok {
		log.Debug().Str("batch", b.Key().String()).Msg("No reference member, status not persisted")
		b.Status = s
		return nil
	}

	metadata := map[string]string{}
	if s != batch.StatusNone {
		metadata[StatusKey] = s.String()
	}
	if b.ClaimID != "" {
		metadata[ClaimIDKey] = b.ClaimID
	}
	if !b.ClaimedAt.IsZero() {
		metadata[ClaimedAtKey] = b.ClaimedAt.UTC().Format(time.RFC3339)
	}
	if err := c.Store.SetMetadata(ctx, ref, metadata); err != nil {
		return fmt.Errorf("failed to set status %s on batch %s: %w", s, b.Key(), err)
	}
	b.Status = s

	log.Info().
		Str("customer", b.Customer()).
		Time("timestamp", b.Timestamp()).
		Str("status", s.String()).
		Str("claim_id", b.ClaimID).
		Msg("Set batch status")
	return nil
}

// Claim marks b RUNNING under a fresh claim identifier.
func (c *Controller) Claim(ctx context.Context, b *batch.Batch) error {
	b.ClaimID = uuid.NewString()
	b.ClaimedAt = c.now().UTC().Truncate(time.Second)
	return c.SetStatus(ctx, b, batch.StatusRunning)
}

// Finalize persists a terminal status and relocates the batch for VALID and
// INVALID. A relocation failure leaves the persisted status in place.
func (c *Controller) Finalize(ctx context.Context, b *batch.Batch, s batch.Status) error {
	if !s.IsTerminal() {
		return fmt.Errorf("%w: %q", ErrNotTerminal, s)
	}
	if err := c.SetStatus(ctx, b, s); err != nil {
		return err
	}
	folder, ok := relocate.FolderFor(s)
	if !ok || c.Mover == nil {
		return nil
	}
	if err := c.Mover.MoveBatch(ctx, b, folder); err != nil {
		return fmt.Errorf("%w: batch %s: %w", ErrRelocate, b.Key(), err)
	}
	return nil
}
