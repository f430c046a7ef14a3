package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FileStore persists checkpoints as JSON files, one file per checkpoint,
// grouped in a directory per thread. It is suitable for single-process use
// where checkpoints should survive restarts without a database.
type FileStore struct {
	root   string
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a file-based checkpoint store rooted at dir,
// creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// threadDir maps a thread ID to its directory. Thread IDs are caller
// supplied, so they are escaped before touching the filesystem.
func (f *FileStore) threadDir(threadID string) string {
	return filepath.Join(f.root, url.PathEscape(threadID))
}

// fileName builds a checkpoint file name ordered by sequence.
func fileName(seq int64, id string) string {
	return fmt.Sprintf("%012d-%s.json", seq, url.PathEscape(id))
}

// seqOf extracts the sequence number from a checkpoint file name.
func seqOf(name string) (int64, bool) {
	prefix, _, found := strings.Cut(name, "-")
	if !found {
		return 0, false
	}
	seq, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Put implements Store.
func (f *FileStore) Put(ctx context.Context, cp *Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := f.threadDir(cp.ThreadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create thread dir: %w", err)
	}

	maxSeq, err := f.maxSeq(dir)
	if err != nil {
		return err
	}
	cp.Seq = maxSeq + 1

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written checkpoint.
	path := filepath.Join(dir, fileName(cp.Seq, cp.ID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// maxSeq returns the highest sequence number present in a thread directory.
func (f *FileStore) maxSeq(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read thread dir: %w", err)
	}

	var max int64
	for _, entry := range entries {
		if seq, ok := seqOf(entry.Name()); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

// Get implements Store.
func (f *FileStore) Get(ctx context.Context, threadID, id string) (*Checkpoint, error) {
	cps, err := f.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for _, cp := range cps {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, ErrNotFound
}

// List implements Store.
func (f *FileStore) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := f.threadDir(threadID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Checkpoint{}, nil
		}
		return nil, fmt.Errorf("read thread dir: %w", err)
	}

	cps := make([]*Checkpoint, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint: %w", err)
		}
		cp, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("parse checkpoint %s: %w", entry.Name(), err)
		}
		cps = append(cps, cp)
	}

	sort.Slice(cps, func(i, j int) bool { return cps[i].Seq < cps[j].Seq })
	return cps, nil
}

// Latest implements Store.
func (f *FileStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	cps, err := f.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, ErrNotFound
	}
	return cps[len(cps)-1], nil
}

// DeleteThread implements Store.
func (f *FileStore) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.RemoveAll(f.threadDir(threadID)); err != nil {
		return fmt.Errorf("delete thread dir: %w", err)
	}
	return nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}
