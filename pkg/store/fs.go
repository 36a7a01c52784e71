package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// MetaDir is the directory under the base directory that holds sidecar
// metadata files. It is never listed.
const MetaDir = ".meta"

// sidecar holds the properties of one object that a plain file cannot carry.
type sidecar struct {
	Metadata        map[string]string `json:"metadata,omitempty"`
	ContentEncoding string            `json:"content_encoding,omitempty"`
	CopyStatus      CopyStatus        `json:"copy_status,omitempty"`
}

// FSStore is a Store on top of an afero filesystem. Object names are slash
// separated paths relative to the base directory. Copies complete
// synchronously and copy the source metadata with the data.
type FSStore struct {
	fs   afero.Fs
	base string

	mu sync.Mutex
}

// NewFSStore returns a store rooted at base on the OS filesystem.
func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		return nil, fmt.Errorf("filesystem base directory is empty")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", base, err)
	}
	return NewFSStoreOn(afero.NewBasePathFs(afero.NewOsFs(), base), ""), nil
}

// NewFSStoreOn returns a store on an existing afero filesystem.
func NewFSStoreOn(fsys afero.Fs, base string) *FSStore {
	return &FSStore{fs: fsys, base: strings.Trim(base, "/")}
}

func (s *FSStore) filePath(name string) string {
	return path.Join("/", s.base, name)
}

func (s *FSStore) metaPath(name string) string {
	return path.Join("/", s.base, MetaDir, name+".json")
}

// Put writes an object with optional metadata and content encoding.
func (s *FSStore) Put(name string, data []byte, metadata map[string]string, contentEncoding string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFile(s.filePath(name), data); err != nil {
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	return s.writeSidecar(name, sidecar{Metadata: metadata, ContentEncoding: contentEncoding})
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := path.Join("/", s.base)
	var entries []Entry
	err := afero.Walk(s.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if info.IsDir() {
			if rel == MetaDir {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		sc, err := s.readSidecar(rel)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Metadata: sc.Metadata})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (s *FSStore) Download(ctx context.Context, name string) (*Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.filePath(name))
	if err != nil {
		return nil, s.wrap("download", name, err)
	}
	sc, err := s.readSidecar(name)
	if err != nil {
		return nil, err
	}
	return &Content{Data: data, ContentEncoding: sc.ContentEncoding}, nil
}

func (s *FSStore) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exists(name); err != nil {
		return s.wrap("set metadata on", name, err)
	}
	sc, err := s.readSidecar(name)
	if err != nil {
		return err
	}
	sc.Metadata = copyMetadata(metadata)
	return s.writeSidecar(name, sc)
}

func (s *FSStore) StartCopy(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.filePath(src))
	if err != nil {
		return s.wrap("copy", src, err)
	}
	sc, err := s.readSidecar(src)
	if err != nil {
		return err
	}
	if err := s.writeFile(s.filePath(dst), data); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	sc.Metadata = copyMetadata(sc.Metadata)
	sc.CopyStatus = CopySuccess
	return s.writeSidecar(dst, sc)
}

func (s *FSStore) CopyStatus(ctx context.Context, dst string) (CopyStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exists(dst); err != nil {
		return CopyNone, s.wrap("read properties of", dst, err)
	}
	sc, err := s.readSidecar(dst)
	if err != nil {
		return CopyNone, err
	}
	return sc.CopyStatus, nil
}

func (s *FSStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.filePath(name)); err != nil {
		return s.wrap("delete", name, err)
	}
	if err := s.fs.Remove(s.metaPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata of %s: %w", name, err)
	}
	return nil
}

func (s *FSStore) exists(name string) error {
	info, err := s.fs.Stat(s.filePath(name))
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fs.ErrNotExist
	}
	return nil
}

func (s *FSStore) writeFile(p string, data []byte) error {
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, p, data, 0o644)
}

func (s *FSStore) readSidecar(name string) (sidecar, error) {
	var sc sidecar
	data, err := afero.ReadFile(s.fs, s.metaPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sc, nil
		}
		return sc, fmt.Errorf("failed to read metadata of %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse metadata of %s: %w", name, err)
	}
	return sc, nil
}

func (s *FSStore) writeSidecar(name string, sc sidecar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode metadata of %s: %w", name, err)
	}
	if err := s.writeFile(s.metaPath(name), data); err != nil {
		return fmt.Errorf("failed to write metadata of %s: %w", name, err)
	}
	return nil
}

func (s *FSStore) wrap(op, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to %s %s: %w", op, name, ErrNotFound)
	}
	return fmt.Errorf("failed to %s %s: %w", op, name, err)
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
