// Package memstore is an in-memory storage.Store. It enforces the same
// uniqueness and compare-and-swap rules as the Postgres schema and backs
// STORE=memory as well as the service tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"lendbook/models"
	"lendbook/storage"
)

type tables struct {
	users         map[string]models.User
	creds         map[string]models.Credential // keyed by string(CredentialID)
	contacts      map[string]models.Contact
	items         map[string]models.Item
	records       map[string]models.LendingRecord
	requests      map[string]models.BorrowRequest
	notifications map[string]models.Notification
	groups        map[string]models.Group
	memberships   map[string]models.GroupMembership
	follows       map[string]models.Follow
	credSeq       uint
}

func newTables() *tables {
	return &tables{
		users:         make(map[string]models.User),
		creds:         make(map[string]models.Credential),
		contacts:      make(map[string]models.Contact),
		items:         make(map[string]models.Item),
		records:       make(map[string]models.LendingRecord),
		requests:      make(map[string]models.BorrowRequest),
		notifications: make(map[string]models.Notification),
		groups:        make(map[string]models.Group),
		memberships:   make(map[string]models.GroupMembership),
		follows:       make(map[string]models.Follow),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		users:         maps.Clone(t.users),
		creds:         maps.Clone(t.creds),
		contacts:      maps.Clone(t.contacts),
		items:         maps.Clone(t.items),
		records:       maps.Clone(t.records),
		requests:      maps.Clone(t.requests),
		notifications: maps.Clone(t.notifications),
		groups:        maps.Clone(t.groups),
		memberships:   maps.Clone(t.memberships),
		follows:       maps.Clone(t.follows),
		credSeq:       t.credSeq,
	}
}

type state struct {
	mu   sync.RWMutex
	txMu sync.Mutex // held by a transaction or by a write outside one
	t    *tables

	commitErr error
}

// Store is safe for concurrent use. Transactions are serialized and writes
// outside a transaction wait for the running one; a failing transaction
// restores the snapshot taken when it began.
type Store struct {
	s    *state
	inTx bool
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		s:   &state{t: newTables()},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a Store sharing m's data whose timestamps come from now.
func (m *Store) WithClock(now func() time.Time) *Store {
	return &Store{s: m.s, inTx: m.inTx, now: now}
}

// FailNextCommit makes the next top-level transaction keep its writes but
// report storage.ErrCommitUnknown, as when a commit acknowledgement is lost.
func (m *Store) FailNextCommit(err error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.commitErr = err
}

func (m *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.RLock()
	snapshot := m.s.t.clone()
	m.s.mu.RUnlock()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				m.restore(snapshot)
				panic(p)
			}
		}()
		return fn(&Store{s: m.s, inTx: true, now: m.now})
	}()
	if err != nil {
		m.restore(snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.restore(snapshot)
		return err
	}

	m.s.mu.Lock()
	commitErr := m.s.commitErr
	m.s.commitErr = nil
	m.s.mu.Unlock()
	if commitErr != nil {
		return fmt.Errorf("%w: %v", storage.ErrCommitUnknown, commitErr)
	}
	return nil
}

// lock takes the write lock. Outside a transaction it first waits for the
// running transaction, whose rollback restores a snapshot and would otherwise
// drop the write.
func (m *Store) lock() func() {
	if !m.inTx {
		m.s.txMu.Lock()
	}
	m.s.mu.Lock()
	return func() {
		m.s.mu.Unlock()
		if !m.inTx {
			m.s.txMu.Unlock()
		}
	}
}

func (m *Store) restore(snapshot *tables) {
	m.s.mu.Lock()
	m.s.t = snapshot
	m.s.mu.Unlock()
}

func (m *Store) Close() error { return nil }

// stamp fills zero creation times the way the database defaults do.
func (m *Store) stamp(created *time.Time) time.Time {
	now := m.now()
	if created.IsZero() {
		*created = now
	}
	return now
}

func strPtrEq(p *string, v string) bool { return p != nil && *p == v }
