// Package listing turns a flat object listing into batches.
package listing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/status"
	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/rs/zerolog/log"
)

const timestampLayout = "200601021504"

// ParseName parses a member name relative to the root path.
func ParseName(name string, schema *batch.Schema) (Name, error) {
	dot := strings.LastIndex(name, ".")
	if dot < 0 {
		return Name{}, fmt.Errorf("%w: no extension", ErrExtension)
	}
	if ext := name[dot+1:]; !strings.EqualFold(ext, schema.Extension) {
		return Name{}, fmt.Errorf("%w: %q", ErrExtension, ext)
	}
	if strings.Contains(name, "/") {
		return Name{}, fmt.Errorf("%w: nested below the root path", ErrName)
	}

	parts := strings.Split(name[:dot], schema.NameDelimiter)
	if len(parts) != 4 {
		return Name{}, fmt.Errorf("%w: expected 4 components, got %d", ErrName, len(parts))
	}
	customer, date, hhmm, typ := parts[0], parts[1], parts[2], batch.Type(parts[3])
	if customer == "" {
		return Name{}, fmt.Errorf("%w: empty customer", ErrName)
	}
	if len(date) != 8 || !digits(date) {
		return Name{}, fmt.Errorf("%w: date %q is not YYYYMMDD", ErrName, date)
	}
	if len(hhmm) != 4 || !digits(hhmm) {
		return Name{}, fmt.Errorf("%w: time %q is not HHMM", ErrName, hhmm)
	}
	ts, err := time.ParseInLocation(timestampLayout, date+hhmm, time.UTC)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %v", ErrName, err)
	}
	if !schema.Recognized(typ) {
		return Name{}, fmt.Errorf("%w: %q", ErrType, typ)
	}
	return Name{Customer: customer, Timestamp: ts, Type: typ}, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Scanner groups the objects under Root into batches.
type Scanner struct {
	Store  store.Store
	Schema *batch.Schema
	Status *status.Controller
	// Root is the path the members live directly under; empty means the
	// container root.
	Root string
}

func NewScanner(s store.Store, schema *batch.Schema, ctrl *status.Controller, root string) *Scanner {
	return &Scanner{Store: s, Schema: schema, Status: ctrl, Root: strings.Trim(root, "/")}
}

func (s *Scanner) prefix() string {
	if s.Root == "" {
		return ""
	}
	return s.Root + "/"
}

// Scan lists the root path and groups every parseable entry, complete or not.
// Only a failed listing is returned as an error; per-entry failures are
// collected in the result.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	prefix := s.prefix()
	entries, err := s.Store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
	}

	res := &Result{}
	batches := map[batch.Key]*batch.Batch{}
	for _, e := range entries {
		if err := s.add(batches, e, prefix); err != nil {
			log.Warn().Err(err).Str("path", e.Path).Msg("Skipping entry")
			res.Failures = append(res.Failures, &EntryError{Path: e.Path, Err: err})
		}
	}

	res.Batches = make([]*batch.Batch, 0, len(batches))
	for _, b := range batches {
		res.Batches = append(res.Batches, b)
	}
	sort.Slice(res.Batches, func(i, j int) bool {
		a, b := res.Batches[i], res.Batches[j]
		if a.Customer() != b.Customer() {
			return a.Customer() < b.Customer()
		}
		return a.Timestamp().Before(b.Timestamp())
	})
	return res, nil
}

func (s *Scanner) add(batches map[batch.Key]*batch.Batch, e store.Entry, prefix string) error {
	name, err := ParseName(strings.TrimPrefix(e.Path, prefix), s.Schema)
	if err != nil {
		return err
	}

	// Read the status before touching the group so a bad reference entry
	// leaves no trace.
	var loaded *batch.Batch
	if name.Type == s.Schema.Reference() {
		loaded = batch.New(name.Customer, name.Timestamp)
		if err := s.Status.Load(loaded, e.Metadata); err != nil {
			return err
		}
	}

	key := batch.Key{Customer: name.Customer, Timestamp: name.Timestamp}
	b, ok := batches[key]
	if !ok {
		b = batch.New(name.Customer, name.Timestamp)
		batches[key] = b
	}
	if prev, dup := b.Members[name.Type]; dup && prev != e.Path {
		log.Warn().Str("path", e.Path).Str("previous", prev).Msg("Duplicate member, keeping the last one")
	}
	b.Members[name.Type] = e.Path
	if loaded != nil {
		b.Status = loaded.Status
		b.ClaimID = loaded.ClaimID
		b.ClaimedAt = loaded.ClaimedAt
	}
	return nil
}

// Ready reports whether b is complete and eligible for validation.
func (s *Scanner) Ready(b *batch.Batch) bool {
	return b.IsComplete(s.Schema) && s.Status.Eligible(b)
}

// Discover scans the root path and keeps only the ready batches.
func (s *Scanner) Discover(ctx context.Context) (*Result, error) {
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	ready := res.Batches[:0]
	for _, b := range res.Batches {
		if s.Ready(b) {
			ready = append(ready, b)
		}
	}
	res.Batches = ready
	log.Info().Int("ready", len(ready)).Int("skipped", len(res.Failures)).Msg("Discovered batches")
	return res, nil
}
