// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ownership implements browse-to-own claiming: the first user to
// view a record becomes its owner. Later viewers never reach this code
// because the visibility index already excludes records held by others.
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/annotation-engine/internal/store"
	"github.com/pdiddy/annotation-engine/internal/visibility"
)

// ErrOwnershipDenied means the record is held by another user. This is the
// expected outcome of a claim race, not an exceptional condition: the
// caller drops the record from the user's view on the next refresh.
var ErrOwnershipDenied = errors.New("record owned by another user")

// Coordinator wraps the store's atomic claim and keeps the visibility
// cache honest about it.
type Coordinator struct {
	store store.Store
	cache *visibility.Cache
}

// NewCoordinator builds a coordinator over the store and the cache fed by
// it.
func NewCoordinator(s store.Store, cache *visibility.Cache) *Coordinator {
	return &Coordinator{store: s, cache: cache}
}

// Claim assigns the record to user on first view. Re-claiming an already
// held record is an idempotent no-op. When two users race on an unclaimed
// record the store resolves exactly one winner; the loser gets
// ErrOwnershipDenied. Any successful claim invalidates the cache so the
// acting user's next visibility computation sees their own ownership.
func (c *Coordinator) Claim(ctx context.Context, id, user string) error {
	ok, err := c.store.Claim(ctx, id, user)
	if err != nil {
		return fmt.Errorf("claiming %s for %s: %w", id, user, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrOwnershipDenied, id)
	}
	c.cache.Invalidate()
	return nil
}
