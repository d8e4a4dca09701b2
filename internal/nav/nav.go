// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package nav orchestrates moving between records. It consults the edit
// session for unsaved changes before any move and exposes the
// save/discard/cancel protocol the confirmation dialog drives.
package nav

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/annotation-engine/internal/ownership"
	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/internal/session"
	"github.com/pdiddy/annotation-engine/internal/store"
	"github.com/pdiddy/annotation-engine/internal/visibility"
)

// State is the machine's position in the navigation protocol.
type State string

const (
	// StateViewing means a record is displayed and editable.
	StateViewing State = "viewing"

	// StateConfirmPending means navigation was requested over unsaved
	// edits and the user must choose save, discard, or cancel.
	StateConfirmPending State = "confirm_pending"
)

// Direction of a navigation request. Positions clamp at the index bounds;
// there is no wraparound.
type Direction string

const (
	Prev Direction = "prev"
	Next Direction = "next"
)

// ErrNotVisible means the user's visibility index has nothing to show.
// A jump to an id that is unknown or held by another user falls back to
// the position instead, so this only surfaces on an empty index.
var ErrNotVisible = errors.New("record not visible")

// ErrNoSession means an operation requires a displayed record and none is
// loaded.
var ErrNoSession = errors.New("no record displayed")

// Machine drives one user's navigation over their visibility index.
type Machine struct {
	store  store.Store
	coord  *ownership.Coordinator
	cache  *visibility.Cache
	index  *visibility.Index
	schema schema.Schema

	state      State
	position   int
	sess       *session.Session
	pendingDir Direction
}

// New builds a machine for the user behind index.
func New(s store.Store, coord *ownership.Coordinator, cache *visibility.Cache, index *visibility.Index, sch schema.Schema) *Machine {
	return &Machine{
		store:  s,
		coord:  coord,
		cache:  cache,
		index:  index,
		schema: sch,
		state:  StateViewing,
	}
}

// State returns the current protocol state.
func (m *Machine) State() State { return m.state }

// Position returns the current index position.
func (m *Machine) Position() int { return m.position }

// Session returns the active edit session, nil before the first Show.
func (m *Machine) Session() *session.Session { return m.sess }

// PendingDirection returns the direction awaiting confirmation. Only
// meaningful in StateConfirmPending.
func (m *Machine) PendingDirection() Direction { return m.pendingDir }

// Show displays the record at position, or the explicitly requested id
// when given (jump-to-id wins over position). Viewing a record claims it:
// the first user to land here becomes its owner. A claim lost to a racing
// user surfaces ownership.ErrOwnershipDenied after refreshing the index,
// so the record has already dropped out of this user's view.
func (m *Machine) Show(ctx context.Context, position int, explicitID string) (*session.Session, error) {
	if _, err := m.index.Refresh(ctx); err != nil {
		return nil, err
	}
	pos, id, ok, err := m.index.Resolve(ctx, position, explicitID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: position %d, id %q", ErrNotVisible, position, explicitID)
	}

	record, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.coord.Claim(ctx, id, m.index.User()); err != nil {
		if errors.Is(err, ownership.ErrOwnershipDenied) {
			// Lost the race: recompute the view without the record.
			if _, rerr := m.index.Refresh(ctx); rerr != nil {
				return nil, rerr
			}
		}
		return nil, err
	}

	m.sess = session.New(record, m.schema)
	m.position = pos
	m.state = StateViewing
	m.pendingDir = ""
	return m.sess, nil
}

// Navigate requests a move. Clean sessions move immediately; dirty ones
// park the machine in StateConfirmPending until the user decides.
func (m *Machine) Navigate(ctx context.Context, dir Direction) (*session.Session, error) {
	if m.sess == nil {
		return nil, ErrNoSession
	}
	if m.state == StateConfirmPending {
		return nil, fmt.Errorf("navigation already pending confirmation")
	}
	if m.sess.Dirty() {
		m.state = StateConfirmPending
		m.pendingDir = dir
		return m.sess, nil
	}
	return m.move(ctx, dir)
}

// Save persists the working values without navigating. The saving user
// becomes the recorded owner and the record is marked completed. On
// failure the session is untouched so the user can retry or discard.
func (m *Machine) Save(ctx context.Context) error {
	if m.sess == nil {
		return ErrNoSession
	}
	fields, flags, score := m.sess.SaveValues()
	if err := m.store.Save(ctx, m.sess.RecordID, fields, flags, score, m.index.User()); err != nil {
		return err
	}
	m.cache.Invalidate()

	// Re-snapshot so the session's pristine state matches what was just
	// persisted.
	record, err := m.store.Get(ctx, m.sess.RecordID)
	if err != nil {
		return err
	}
	m.sess = session.New(record, m.schema)
	return nil
}

// SaveAndContinue resolves a pending confirmation by persisting the edits
// and then moving. A failed save keeps the machine in StateConfirmPending
// with the session intact; edits are never discarded by a failure.
func (m *Machine) SaveAndContinue(ctx context.Context) (*session.Session, error) {
	if m.state != StateConfirmPending {
		return nil, fmt.Errorf("no navigation pending confirmation")
	}
	fields, flags, score := m.sess.SaveValues()
	if err := m.store.Save(ctx, m.sess.RecordID, fields, flags, score, m.index.User()); err != nil {
		return nil, err
	}
	m.cache.Invalidate()
	return m.move(ctx, m.pendingDir)
}

// DiscardAndContinue resolves a pending confirmation by dropping the
// working values and moving. Nothing is persisted.
func (m *Machine) DiscardAndContinue(ctx context.Context) (*session.Session, error) {
	if m.state != StateConfirmPending {
		return nil, fmt.Errorf("no navigation pending confirmation")
	}
	return m.move(ctx, m.pendingDir)
}

// Cancel resolves a pending confirmation by staying put. The session and
// its edits are unchanged.
func (m *Machine) Cancel() {
	if m.state == StateConfirmPending {
		m.state = StateViewing
		m.pendingDir = ""
	}
}

// move advances the position one step in dir, clamped to the index
// bounds, and shows the record there.
func (m *Machine) move(ctx context.Context, dir Direction) (*session.Session, error) {
	ids, err := m.index.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no records visible", ErrNotVisible)
	}

	target := m.position
	switch dir {
	case Next:
		if target < len(ids)-1 {
			target++
		}
	case Prev:
		if target > 0 {
			target--
		}
	default:
		return nil, fmt.Errorf("unknown direction %q", dir)
	}

	sess, err := m.Show(ctx, target, "")
	if err != nil {
		return nil, err
	}
	return sess, nil
}
