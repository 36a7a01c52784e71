// Package storetest provides in-memory stores and fault injection for tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-go-golems/batch-validator/pkg/store"
	"github.com/spf13/afero"
)

// ErrInjected is returned by Faulty for every injected failure.
var ErrInjected = errors.New("injected failure")

// New returns an empty in-memory store.
func New() *store.FSStore {
	return store.NewFSStoreOn(afero.NewMemMapFs(), "")
}

// Put writes an object and fails the test on error.
func Put(t testing.TB, s *store.FSStore, name, data string, metadata map[string]string) {
	t.Helper()
	if err := s.Put(name, []byte(data), metadata, ""); err != nil {
		t.Fatalf("put %s: %v", name, err)
	}
}

// Faulty wraps a store and fails selected operations.
type Faulty struct {
	store.Store

	mu sync.Mutex
	// FailList fails every List call.
	FailList bool
	// FailDownload fails Download for the named objects.
	FailDownload map[string]bool
	// FailSetMetadata fails SetMetadata for the named objects.
	FailSetMetadata map[string]bool
	// FailCopy fails StartCopy for the named sources.
	FailCopy map[string]bool
	// CopyState, when set, is reported by CopyStatus instead of the real state.
	CopyState store.CopyStatus
	// FailDelete fails Delete for the named objects.
	FailDelete map[string]bool
	// HonorContext fails every call made with a done context, the way a
	// remote store does.
	HonorContext bool

	polls int
}

func NewFaulty(s store.Store) *Faulty {
	return &Faulty{
		Store:           s,
		FailDownload:    map[string]bool{},
		FailSetMetadata: map[string]bool{},
		FailCopy:        map[string]bool{},
		FailDelete:      map[string]bool{},
	}
}

// Polls returns how many times CopyStatus was called.
func (f *Faulty) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *Faulty) List(ctx context.Context, prefix string) ([]store.Entry, error) {
	if err := f.ctxErr(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	fail := f.FailList
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.List(ctx, prefix)
}

func (f *Faulty) Download(ctx context.Context, path string) (*store.Content, error) {
	if err := f.ctxErr(ctx); err != nil {
		return nil, err
	}
	if f.fails(f.FailDownload, path) {
		return nil, ErrInjected
	}
	return f.Store.Download(ctx, path)
}

func (f *Faulty) SetMetadata(ctx context.Context, path string, metadata map[string]string) error {
	if err := f.ctxErr(ctx); err != nil {
		return err
	}
	if f.fails(f.FailSetMetadata, path) {
		return ErrInjected
	}
	return f.Store.SetMetadata(ctx, path, metadata)
}

func (f *Faulty) StartCopy(ctx context.Context, src, dst string) error {
	if err := f.ctxErr(ctx); err != nil {
		return err
	}
	if f.fails(f.FailCopy, src) {
		return ErrInjected
	}
	return f.Store.StartCopy(ctx, src, dst)
}

func (f *Faulty) CopyStatus(ctx context.Context, dst string) (store.CopyStatus, error) {
	if err := f.ctxErr(ctx); err != nil {
		return store.CopyNone, err
	}
	f.mu.Lock()
	f.polls++
	state := f.CopyState
	f.mu.Unlock()
	if state != store.CopyNone {
		return state, nil
	}
	return f.Store.CopyStatus(ctx, dst)
}

func (f *Faulty) Delete(ctx context.Context, path string) error {
	if err := f.ctxErr(ctx); err != nil {
		return err
	}
	if f.fails(f.FailDelete, path) {
		return ErrInjected
	}
	return f.Store.Delete(ctx, path)
}

func (f *Faulty) ctxErr(ctx context.Context) error {
	f.mu.Lock()
	honor := f.HonorContext
	f.mu.Unlock()
	if !honor {
		return nil
	}
	return ctx.Err()
}

func (f *Faulty) fails(m map[string]bool, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[path]
}
