// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

const (
	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

// JSONLStore is the file backend for low-volume and development use. The
// whole record set lives in memory between loads; every write rewrites the
// file after copying the previous contents into a timestamped backup.
//
// A per-store mutex serializes Claim and Save, which is sufficient because
// the contract assumes no concurrent external writers. A flock around load
// and rewrite additionally keeps an accidental second process from
// corrupting the file, following its own single-writer discipline.
type JSONLStore struct {
	path      string
	backupDir string
	schema    schema.Schema
	fileLock  *flock.Flock

	mu      sync.Mutex
	records map[string]*types.Record
	order   []string
}

// OpenJSONL loads the interchange file at path into memory. backupDir
// defaults to backups/ beside the file.
func OpenJSONL(path, backupDir string, sch schema.Schema) (*JSONLStore, error) {
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(path), "backups")
	}
	s := &JSONLStore{
		path:      path,
		backupDir: backupDir,
		schema:    sch,
		fileLock:  flock.New(path + ".lock"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the cross-process lock file.
func (s *JSONLStore) Close() error {
	return s.fileLock.Unlock()
}

// load reads the file into memory. Caller must have exclusive access to
// the in-memory state (constructor, or s.mu held).
func (s *JSONLStore) load() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return fmt.Errorf("%w: locking %s: %v", ErrStoreUnavailable, s.path, err)
	}
	defer s.fileLock.Unlock()

	records := make(map[string]*types.Record)
	var order []string

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		// A missing file is an empty store; the first rewrite creates it.
		s.records = records
		s.order = order
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrStoreUnavailable, s.path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r, err := decodeLine(line)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", s.path, lineNo, err)
		}
		if _, dup := records[r.ID]; !dup {
			order = append(order, r.ID)
		}
		records[r.ID] = &r
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scanning %s: %v", ErrStoreUnavailable, s.path, err)
	}

	s.records = records
	s.order = order
	return nil
}

// LoadAll returns every record in file line order.
func (s *JSONLStore) LoadAll(ctx context.Context) ([]types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// Get returns one record by id.
func (s *JSONLStore) Get(ctx context.Context, id string) (types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return types.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Save persists new field, flag, and score state and always marks the
// record completed. The mutation is applied in memory first and then made
// durable by a full-file rewrite; on rewrite failure the in-memory state
// is reloaded from disk so cache and file never diverge.
func (s *JSONLStore) Save(ctx context.Context, id string, fields map[string]any, flags map[string]bool, score int, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	r.Completed = true
	r.Score = score
	if owner != "" {
		r.Owner = owner
	}
	for k, v := range fields {
		r.Fields[k] = v
	}
	for k, v := range flags {
		r.Flags[k] = v
	}
	r.UpdatedAt = time.Now()

	if err := s.rewrite(); err != nil {
		// Roll the in-memory state back to what the file still holds.
		return s.rollback(err)
	}
	return nil
}

// Claim atomically assigns the record to user unless another user holds
// it. The store mutex makes the check-and-set linearizable against every
// other Claim and Save on this store instance.
func (s *JSONLStore) Claim(ctx context.Context, id, user string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.Owner != "" && r.Owner != user {
		return false, nil
	}
	if r.Owner == user {
		return true, nil
	}

	r.Owner = user
	r.UpdatedAt = time.Now()
	if err := s.rewrite(); err != nil {
		return false, s.rollback(err)
	}
	return true, nil
}

// Export writes the (filtered) record set as a timestamped interchange file.
func (s *JSONLStore) Export(ctx context.Context, dir string, filter ExportFilter) (string, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return "", err
	}
	return writeExport(records, dir, filter, s.schema)
}

// Stats returns completion counts.
func (s *JSONLStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Total: len(s.records)}
	for _, r := range s.records {
		if r.Completed {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	return st, nil
}

// Insert adds a new record in memory and rewrites the file. Used by import
// tooling and tests.
func (s *JSONLStore) Insert(ctx context.Context, r types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("%w: record %s already present", ErrConflict, r.ID)
	}
	clone := r.Clone()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = time.Now()
	s.records[r.ID] = &clone
	s.order = append(s.order, r.ID)

	if err := s.rewrite(); err != nil {
		return s.rollback(err)
	}
	return nil
}

// rollback restores the in-memory state from the file after a failed
// rewrite. A failed reload is reported alongside the original error so a
// file/memory divergence is never silent. Caller holds s.mu.
func (s *JSONLStore) rollback(cause error) error {
	if err := s.load(); err != nil {
		return fmt.Errorf("%w (state reload after failed write: %v)", cause, err)
	}
	return cause
}

// rewrite makes the in-memory state durable: back up the current file,
// write the new contents to a temp file, then replace atomically.
// Caller holds s.mu.
func (s *JSONLStore) rewrite() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return fmt.Errorf("%w: locking %s: %v", ErrStoreUnavailable, s.path, err)
	}
	defer s.fileLock.Unlock()

	if err := s.backup(); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStoreUnavailable, tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, id := range s.order {
		line, err := encodeLine(*s.records[id], s.schema)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing %s: %v", ErrStoreUnavailable, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing %s: %v", ErrStoreUnavailable, tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing %s: %v", ErrStoreUnavailable, s.path, err)
	}
	return nil
}

// backup copies the current file into backupDir with a timestamped name
// before it is replaced.
func (s *JSONLStore) backup() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s for backup: %v", ErrStoreUnavailable, s.path, err)
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStoreUnavailable, s.backupDir, err)
	}
	name := fmt.Sprintf("backup_%s.jsonl", time.Now().Format("20060102_150405"))
	backupPath := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrStoreUnavailable, backupPath, err)
	}
	return nil
}

