// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package visibility

import (
	"context"
	"testing"
	"time"

	"github.com/pdiddy/annotation-engine/internal/store"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// --- fake store ---

type fakeStore struct {
	records   []types.Record
	loadCalls int
}

func (f *fakeStore) LoadAll(context.Context) ([]types.Record, error) {
	f.loadCalls++
	out := make([]types.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (types.Record, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return types.Record{}, store.ErrNotFound
}

func (f *fakeStore) Save(context.Context, string, map[string]any, map[string]bool, int, string) error {
	return nil
}

func (f *fakeStore) Claim(_ context.Context, id, user string) (bool, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			if f.records[i].Owner != "" && f.records[i].Owner != user {
				return false, nil
			}
			f.records[i].Owner = user
			return true, nil
		}
	}
	return false, store.ErrNotFound
}

func (f *fakeStore) Export(context.Context, string, store.ExportFilter) (string, error) {
	return "", nil
}

func (f *fakeStore) Stats(context.Context) (store.Stats, error) { return store.Stats{}, nil }
func (f *fakeStore) Close() error                               { return nil }

func poolRecords() []types.Record {
	return []types.Record{
		{ID: "r1"},
		{ID: "r2", Owner: "alice"},
		{ID: "r3", Owner: "bob"},
		{ID: "r4"},
	}
}

// --- VisibleIDs ---

func TestVisibleIDs(t *testing.T) {
	records := poolRecords()

	tests := []struct {
		user string
		want []string
	}{
		{"alice", []string{"r1", "r2", "r4"}},
		{"bob", []string{"r1", "r3", "r4"}},
		{"carol", []string{"r1", "r4"}},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got := VisibleIDs(records, tt.user)
			if len(got) != len(tt.want) {
				t.Fatalf("VisibleIDs(%s) = %v, want %v", tt.user, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("VisibleIDs(%s)[%d] = %q, want %q", tt.user, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestVisibleIDsNeverShowsForeignRecords(t *testing.T) {
	records := poolRecords()
	for _, user := range []string{"alice", "bob", "carol"} {
		for _, id := range VisibleIDs(records, user) {
			for _, r := range records {
				if r.ID == id && r.Owner != "" && r.Owner != user {
					t.Errorf("user %s sees record %s owned by %s", user, id, r.Owner)
				}
			}
		}
	}
}

// --- Resolve ---

func TestResolve(t *testing.T) {
	ids := []string{"a", "b", "c"}

	tests := []struct {
		name     string
		position int
		explicit string
		wantPos  int
		wantID   string
		wantOK   bool
	}{
		{"in range", 1, "", 1, "b", true},
		{"clamp low", -5, "", 0, "a", true},
		{"clamp high", 99, "", 2, "c", true},
		{"explicit wins over position", 0, "c", 2, "c", true},
		{"explicit unknown falls back to position", 1, "zzz", 1, "b", true},
		{"explicit unknown still clamps", 99, "zzz", 2, "c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, id, ok := Resolve(ids, tt.position, tt.explicit)
			if pos != tt.wantPos || id != tt.wantID || ok != tt.wantOK {
				t.Errorf("Resolve() = (%d, %q, %v), want (%d, %q, %v)",
					pos, id, ok, tt.wantPos, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestResolveEmptyIndex(t *testing.T) {
	if _, _, ok := Resolve(nil, 0, ""); ok {
		t.Error("Resolve on empty index reported ok")
	}
	if _, _, ok := Resolve(nil, 0, "zzz"); ok {
		t.Error("Resolve with explicit id on empty index reported ok")
	}
}

// --- Cache ---

func TestCacheReloadsOnlyWhenInvalidated(t *testing.T) {
	fs := &fakeStore{records: poolRecords()}
	cache := NewCache(fs, time.Hour)
	ctx := context.Background()

	if _, err := cache.Records(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Records(ctx); err != nil {
		t.Fatal(err)
	}
	if fs.loadCalls != 1 {
		t.Errorf("loadCalls = %d, want 1 (second read served from cache)", fs.loadCalls)
	}

	cache.Invalidate()
	if _, err := cache.Records(ctx); err != nil {
		t.Fatal(err)
	}
	if fs.loadCalls != 2 {
		t.Errorf("loadCalls = %d after invalidate, want 2", fs.loadCalls)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	fs := &fakeStore{records: poolRecords()}
	cache := NewCache(fs, time.Millisecond)
	ctx := context.Background()

	if _, err := cache.Records(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.Records(ctx); err != nil {
		t.Fatal(err)
	}
	if fs.loadCalls != 2 {
		t.Errorf("loadCalls = %d, want 2 after TTL expiry", fs.loadCalls)
	}
}

func TestCacheGet(t *testing.T) {
	fs := &fakeStore{records: poolRecords()}
	cache := NewCache(fs, time.Hour)

	r, ok, err := cache.Get(context.Background(), "r2")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || r.Owner != "alice" {
		t.Errorf("Get(r2) = %+v, %v", r, ok)
	}
	_, ok, err = cache.Get(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Get(missing) reported ok")
	}
}

// --- Index ---

func TestIndexRefreshSeesOwnershipChange(t *testing.T) {
	fs := &fakeStore{records: poolRecords()}
	cache := NewCache(fs, time.Hour)
	bob := NewIndex(cache, "bob")
	ctx := context.Background()

	ids, err := bob.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("bob sees %v", ids)
	}

	// alice claims r1 elsewhere; the cache is invalidated at the claim
	// mutation point and bob's next refresh drops the record.
	if ok, _ := fs.Claim(ctx, "r1", "alice"); !ok {
		t.Fatal("claim failed")
	}
	cache.Invalidate()

	ids, err = bob.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == "r1" {
			t.Error("bob still sees r1 after alice claimed it")
		}
	}
}

func TestIndexResolve(t *testing.T) {
	fs := &fakeStore{records: poolRecords()}
	cache := NewCache(fs, time.Hour)
	ix := NewIndex(cache, "carol")
	ctx := context.Background()

	pos, id, ok, err := ix.Resolve(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || pos != 1 || id != "r4" {
		t.Errorf("Resolve = (%d, %q, %v)", pos, id, ok)
	}

	_, id, ok, err = ix.Resolve(ctx, 0, "r4")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != "r4" {
		t.Errorf("explicit Resolve = (%q, %v)", id, ok)
	}
}

func TestCacheSnapshotIsolation(t *testing.T) {
	fs := &fakeStore{records: []types.Record{
		{ID: "r1", Fields: map[string]any{"material": "wood"}, Flags: map[string]bool{"material": false}},
	}}
	cache := NewCache(fs, time.Hour)
	ctx := context.Background()

	records, err := cache.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	records[0].Fields["material"] = "tampered"
	records[0].Flags["material"] = true

	again, err := cache.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := again[0].Fields["material"]; got != "wood" {
		t.Errorf("cached field = %v after caller mutation, want wood", got)
	}
	if again[0].Flags["material"] {
		t.Error("cached flag changed by caller mutation")
	}

	r, ok, err := cache.Get(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("Get: %v, ok=%v", err, ok)
	}
	r.Fields["material"] = "tampered"

	r, _, err = cache.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Fields["material"] != "wood" {
		t.Errorf("cached field = %v after Get mutation, want wood", r.Fields["material"])
	}
}
