package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps a bounded exchange log on disk as a single JSON document.
// Every Record rewrites the file, so it suits a single-process deployment
// without a database.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  *MemoryStore
}

// OpenFileStore loads path if it exists. A missing file starts an empty log.
func OpenFileStore(path string, maxEntries int) (*FileStore, error) {
	f := &FileStore{path: path, mem: NewMemoryStore(maxEntries)}
	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		_ = f.mem.Record(context.Background(), e)
	}
	return f, nil
}

func (f *FileStore) Record(ctx context.Context, e Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.Record(ctx, e); err != nil {
		return err
	}
	return f.writeLocked()
}

func (f *FileStore) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	return f.mem.Recent(ctx, limit)
}

func (f *FileStore) read() ([]Exchange, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read exchange file: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var entries []Exchange
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode exchange file: %w", err)
	}
	return entries, nil
}

func (f *FileStore) writeLocked() error {
	// oldest first on disk
	recent, _ := f.mem.Recent(context.Background(), 0)
	entries := make([]Exchange, len(recent))
	for i, e := range recent {
		entries[len(recent)-1-i] = e
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
