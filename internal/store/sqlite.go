// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// SQLiteStore is the durable backend. Records live in a single table with
// the business fields and review flags held as JSON columns, so one task
// schema never forces a migration on the next.
//
// Claim and Save run inside immediate transactions: SQLite takes the write
// lock at BEGIN, which makes the read-check-update sequence in each of them
// linearizable against every other writer, in-process or external.
type SQLiteStore struct {
	db     *sql.DB
	schema schema.Schema
}

// OpenSQLite opens or creates the record database at dbPath.
func OpenSQLite(dbPath string, sch schema.Schema) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, schema: sch}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			score INTEGER NOT NULL DEFAULT 1,
			fields TEXT NOT NULL DEFAULT '{}',
			flags TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_records_completed ON records(completed)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// LoadAll returns every record in insertion (rowid) order.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, completed, score, fields, flags, created_at, updated_at
		 FROM records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading records: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// Get returns one record by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (types.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, completed, score, fields, flags, created_at, updated_at
		 FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Save persists new field, flag, and score state inside an exclusive
// per-row check-and-set and always marks the record completed. Incoming
// fields and flags merge over the stored state, so attributes outside the
// task schema survive a save untouched.
func (s *SQLiteStore) Save(ctx context.Context, id string, fields map[string]any, flags map[string]bool, score int, owner string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning save: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var (
		current      string
		storedFields string
		storedFlags  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT owner, fields, flags FROM records WHERE id = ?`, id,
	).Scan(&current, &storedFields, &storedFlags)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: checking record %s: %v", ErrStoreUnavailable, id, err)
	}

	var mergedFields map[string]any
	if err := json.Unmarshal([]byte(storedFields), &mergedFields); err != nil {
		return fmt.Errorf("decoding fields for %s: %w", id, err)
	}
	if mergedFields == nil {
		mergedFields = make(map[string]any)
	}
	for k, v := range fields {
		mergedFields[k] = v
	}
	var mergedFlags map[string]bool
	if err := json.Unmarshal([]byte(storedFlags), &mergedFlags); err != nil {
		return fmt.Errorf("decoding flags for %s: %w", id, err)
	}
	if mergedFlags == nil {
		mergedFlags = make(map[string]bool)
	}
	for k, v := range flags {
		mergedFlags[k] = v
	}

	fieldsJSON, err := json.Marshal(mergedFields)
	if err != nil {
		return fmt.Errorf("encoding fields for %s: %w", id, err)
	}
	flagsJSON, err := json.Marshal(mergedFlags)
	if err != nil {
		return fmt.Errorf("encoding flags for %s: %w", id, err)
	}

	newOwner := current
	if owner != "" {
		newOwner = owner
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE records
		 SET owner = ?, completed = 1, score = ?, fields = ?, flags = ?, updated_at = ?
		 WHERE id = ?`,
		newOwner, score, string(fieldsJSON), string(flagsJSON), timestamp(time.Now()), id)
	if err != nil {
		return wrapWriteErr(id, err)
	}
	if err := tx.Commit(); err != nil {
		return wrapWriteErr(id, err)
	}
	return nil
}

// Claim atomically assigns the record to user unless another user already
// holds it. The immediate transaction takes the database write lock before
// the owner check, so two racing claims serialize and exactly one wins.
func (s *SQLiteStore) Claim(ctx context.Context, id, user string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: beginning claim: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT owner FROM records WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("%w: checking record %s: %v", ErrStoreUnavailable, id, err)
	}

	if current != "" && current != user {
		return false, nil
	}
	if current == user {
		// Idempotent re-claim by the holder.
		return true, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE records SET owner = ?, updated_at = ? WHERE id = ?`,
		user, timestamp(time.Now()), id)
	if err != nil {
		return false, wrapWriteErr(id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, wrapWriteErr(id, err)
	}
	return true, nil
}

// Export writes the (filtered) record set as a timestamped interchange file.
func (s *SQLiteStore) Export(ctx context.Context, dir string, filter ExportFilter) (string, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return "", err
	}
	return writeExport(records, dir, filter, s.schema)
}

// Stats returns completion counts.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM records`,
	).Scan(&st.Total, &st.Completed)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting records: %v", ErrStoreUnavailable, err)
	}
	st.Pending = st.Total - st.Completed
	return st, nil
}

// Insert adds a new record. Used by import tooling and tests; the editing
// core only ever mutates existing records.
func (s *SQLiteStore) Insert(ctx context.Context, r types.Record) error {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	if r.Flags == nil {
		r.Flags = map[string]bool{}
	}
	fieldsJSON, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields for %s: %w", r.ID, err)
	}
	flagsJSON, err := json.Marshal(r.Flags)
	if err != nil {
		return fmt.Errorf("encoding flags for %s: %w", r.ID, err)
	}
	now := time.Now()
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, owner, completed, score, fields, flags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Owner, boolInt(r.Completed), r.Score,
		string(fieldsJSON), string(flagsJSON), timestamp(created), timestamp(now))
	if err != nil {
		return wrapWriteErr(r.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.Record, error) {
	var (
		r          types.Record
		completed  int
		fieldsJSON string
		flagsJSON  string
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&r.ID, &r.Owner, &completed, &r.Score,
		&fieldsJSON, &flagsJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Record{}, err
		}
		return types.Record{}, fmt.Errorf("scanning record: %w", err)
	}
	r.Completed = completed != 0
	if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
		return types.Record{}, fmt.Errorf("decoding fields for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
		return types.Record{}, fmt.Errorf("decoding flags for %s: %w", r.ID, err)
	}
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	if r.Flags == nil {
		r.Flags = map[string]bool{}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}

// wrapWriteErr maps driver errors onto the store taxonomy: constraint
// violations become ErrConflict, everything else ErrStoreUnavailable.
func wrapWriteErr(id string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: record %s: %v", ErrConflict, id, err)
	}
	return fmt.Errorf("%w: writing record %s: %v", ErrStoreUnavailable, id, err)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
