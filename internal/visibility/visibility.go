// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package visibility decides which records a user may navigate. A cached
// snapshot of the full record set feeds a per-user ordered id list; the
// list is the sole gate keeping one annotator off another's records.
package visibility

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/annotation-engine/internal/store"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// DefaultTTL bounds cache staleness between explicit invalidations.
const DefaultTTL = 5 * time.Minute

// Cache holds the in-process snapshot of all records. It reloads from the
// store when empty, expired, or explicitly invalidated. Invalidate is
// called at exactly two mutation points, claim and save; nothing else may
// invalidate it.
type Cache struct {
	store store.Store
	ttl   time.Duration

	mu       sync.Mutex
	records  []types.Record
	byID     map[string]types.Record
	loadedAt time.Time
}

// NewCache wraps a store with a snapshot cache. A non-positive ttl uses
// DefaultTTL.
func NewCache(s store.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: s, ttl: ttl}
}

// Records returns the cached snapshot in store order, reloading when the
// snapshot is missing or older than the TTL. Records are cloned; mutating
// a returned record cannot corrupt the cache.
func (c *Cache) Records(ctx context.Context) ([]types.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byID == nil || time.Since(c.loadedAt) > c.ttl {
		if err := c.reload(ctx); err != nil {
			return nil, err
		}
	}
	out := make([]types.Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out, nil
}

// Get returns one record from the snapshot, cloned.
func (c *Cache) Get(ctx context.Context, id string) (types.Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byID == nil || time.Since(c.loadedAt) > c.ttl {
		if err := c.reload(ctx); err != nil {
			return types.Record{}, false, err
		}
	}
	r, ok := c.byID[id]
	if !ok {
		return types.Record{}, false, nil
	}
	return r.Clone(), true, nil
}

// Invalidate drops the snapshot so the next read reloads from the store.
// Must be called after every locally initiated claim or save, before the
// next visibility computation.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.records = nil
	c.byID = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

// reload fetches the full record set. Caller holds c.mu.
func (c *Cache) reload(ctx context.Context) error {
	records, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]types.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	c.records = records
	c.byID = byID
	c.loadedAt = time.Now()
	return nil
}

// VisibleIDs filters records to those the user may navigate: unclaimed or
// held by the user. Store order is preserved.
func VisibleIDs(records []types.Record, user string) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.Owner == "" || r.Owner == user {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Resolve picks the record at position, or the explicitly requested id
// when it is present in ids (jump-to-id search wins over position). An
// explicit id that is not visible falls back to the position, so a stale
// jump lands on a record the user may still edit. Position is clamped
// into [0, len-1]. ok is false only for an empty index.
func Resolve(ids []string, position int, explicitID string) (int, string, bool) {
	if explicitID != "" {
		for i, id := range ids {
			if id == explicitID {
				return i, id, true
			}
		}
	}
	if len(ids) == 0 {
		return 0, "", false
	}
	if position < 0 {
		position = 0
	}
	if position >= len(ids) {
		position = len(ids) - 1
	}
	return position, ids[position], true
}

// Index is one user's ordered view over the cache.
type Index struct {
	cache *Cache
	user  string

	mu  sync.Mutex
	ids []string
}

// NewIndex builds a per-user index over the shared cache.
func NewIndex(cache *Cache, user string) *Index {
	return &Index{cache: cache, user: user}
}

// User returns the annotator this index belongs to.
func (ix *Index) User() string {
	return ix.user
}

// Refresh recomputes the ordered id list from the cache snapshot. It must
// run after every save or claim that could change any record's owner, and
// on user switch.
func (ix *Index) Refresh(ctx context.Context) ([]string, error) {
	records, err := ix.cache.Records(ctx)
	if err != nil {
		return nil, err
	}
	ids := VisibleIDs(records, ix.user)

	ix.mu.Lock()
	ix.ids = ids
	ix.mu.Unlock()
	return ids, nil
}

// IDs returns the last computed id list, refreshing if none exists yet.
func (ix *Index) IDs(ctx context.Context) ([]string, error) {
	ix.mu.Lock()
	ids := ix.ids
	ix.mu.Unlock()
	if ids != nil {
		return ids, nil
	}
	return ix.Refresh(ctx)
}

// Resolve applies the package Resolve over the current id list.
func (ix *Index) Resolve(ctx context.Context, position int, explicitID string) (int, string, bool, error) {
	ids, err := ix.IDs(ctx)
	if err != nil {
		return 0, "", false, err
	}
	pos, id, ok := Resolve(ids, position, explicitID)
	return pos, id, ok, nil
}
