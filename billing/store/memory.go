/*
Package store provides the in-memory reconciliation store.

PURPOSE:
  Holds the current set of financial documents, payments, notes, and
  attachments scoped to the currently viewed parent. This is the single
  shared mutable resource of the engine: it is only ever touched from
  the mutation-controller transaction boundary.

SNAPSHOT/RESTORE:
  Before an optimistic patch the controller captures a deep snapshot of
  the target collection; on remote failure the snapshot is restored
  exactly. All updates go through replace-whole-entity semantics -
  entities are cloned on the way in and on the way out, so nothing
  outside a transaction can mutate stored state in place.

ORDERING:
  Each collection keeps insertion order. Creates prepend (the user sees
  the new item at the front of its list); upserts of an existing id
  replace in place without reordering.
*/
package store

import (
	"sync"

	"github.com/warp/billing-engine/billing"
)

// Memory is the in-memory ReconciliationStore.
type Memory struct {
	mu    sync.RWMutex
	order map[billing.Collection][]string
	byID  map[billing.Collection]map[string]billing.Entity
}

func NewMemory() *Memory {
	return &Memory{
		order: make(map[billing.Collection][]string),
		byID:  make(map[billing.Collection]map[string]billing.Entity),
	}
}

// Get returns a clone of the entity, or false if absent.
func (m *Memory) Get(c billing.Collection, id string) (billing.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.byID[c][id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// List returns clones of the collection's entities in display order.
func (m *Memory) List(c billing.Collection) []billing.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.order[c]
	out := make([]billing.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.byID[c][id].Clone())
	}
	return out
}

// Upsert stores a clone of e. A new id is prepended to the collection;
// an existing id is replaced in place, preserving order.
func (m *Memory) Upsert(e billing.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(e)
}

func (m *Memory) upsertLocked(e billing.Entity) {
	c := e.EntityCollection()
	if m.byID[c] == nil {
		m.byID[c] = make(map[string]billing.Entity)
	}
	id := e.EntityID()
	if _, exists := m.byID[c][id]; !exists {
		m.order[c] = append([]string{id}, m.order[c]...)
	}
	m.byID[c][id] = e.Clone()
}

// Remove deletes the entity, reporting whether it was present.
func (m *Memory) Remove(c billing.Collection, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(c, id)
}

func (m *Memory) removeLocked(c billing.Collection, id string) bool {
	if _, ok := m.byID[c][id]; !ok {
		return false
	}
	delete(m.byID[c], id)
	ids := m.order[c]
	for i, existing := range ids {
		if existing == id {
			m.order[c] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return true
}

// Rekey replaces the entity stored under oldID with e (which carries
// the authoritative id), keeping its position in the collection. Used
// when a server-assigned id supersedes an optimistic placeholder.
func (m *Memory) Rekey(c billing.Collection, oldID string, e billing.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[c][oldID]; !ok {
		return billing.ErrEntityNotFound
	}
	newID := e.EntityID()
	delete(m.byID[c], oldID)
	m.byID[c][newID] = e.Clone()
	for i, existing := range m.order[c] {
		if existing == oldID {
			m.order[c][i] = newID
			break
		}
	}
	return nil
}

// =============================================================================
// SNAPSHOT / RESTORE
// =============================================================================

// Snapshot is an immutable deep copy of one collection's state.
type Snapshot struct {
	collection billing.Collection
	order      []string
	entities   map[string]billing.Entity
}

// Snapshot captures the collection for later rollback.
func (m *Memory) Snapshot(c billing.Collection) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order := make([]string, len(m.order[c]))
	copy(order, m.order[c])
	entities := make(map[string]billing.Entity, len(m.byID[c]))
	for id, e := range m.byID[c] {
		entities[id] = e.Clone()
	}
	return Snapshot{collection: c, order: order, entities: entities}
}

// Restore replaces the snapshot's collection with the captured state
// exactly: same ids, same order. Other collections are untouched.
func (m *Memory) Restore(s Snapshot) {
	m.RestoreExcept(s, nil)
}

// RestoreExcept restores the snapshot, except for ids where keep
// returns true: those retain their current live state, whether present,
// modified, or already removed. A rollback must not undo a sibling
// entity's own in-flight optimistic patch in the same collection.
func (m *Memory) RestoreExcept(s Snapshot, keep func(id string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.byID[s.collection]
	order := make([]string, 0, len(s.order))
	entities := make(map[string]billing.Entity, len(s.entities))

	// In-flight entities absent from the snapshot (optimistic creates by
	// sibling mutations) keep their current front position.
	if keep != nil {
		for _, id := range m.order[s.collection] {
			if _, inSnap := s.entities[id]; !inSnap && keep(id) {
				order = append(order, id)
				entities[id] = cur[id]
			}
		}
	}

	for _, id := range s.order {
		if keep != nil && keep(id) {
			e, present := cur[id]
			if !present {
				// Optimistically deleted in flight; stays gone.
				continue
			}
			order = append(order, id)
			entities[id] = e
			continue
		}
		order = append(order, id)
		entities[id] = s.entities[id].Clone()
	}
	m.order[s.collection] = order
	m.byID[s.collection] = entities
}

// ReplaceAll swaps the collection for a freshly fetched list, except
// for ids where keep returns true: those retain their local (possibly
// optimistic) version and position at the front. Used by list refresh
// so an invalidation never clobbers an in-flight optimistic patch.
func (m *Memory) ReplaceAll(c billing.Collection, entities []billing.Entity, keep func(id string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldByID := m.byID[c]
	kept := make([]string, 0)
	if keep != nil {
		for _, id := range m.order[c] {
			if keep(id) {
				kept = append(kept, id)
			}
		}
	}

	newOrder := make([]string, 0, len(entities)+len(kept))
	newByID := make(map[string]billing.Entity, len(entities)+len(kept))
	for _, id := range kept {
		newOrder = append(newOrder, id)
		newByID[id] = oldByID[id]
	}
	for _, e := range entities {
		id := e.EntityID()
		if _, exists := newByID[id]; exists {
			continue
		}
		newOrder = append(newOrder, id)
		newByID[id] = e.Clone()
	}
	m.order[c] = newOrder
	m.byID[c] = newByID
}

// =============================================================================
// PROJECTIONS
// =============================================================================

// PaymentsFor assembles the date-ordered payment ledger of one invoice
// from the payments collection. Recomputed on every call; no cached
// balance survives a payment delete.
func (m *Memory) PaymentsFor(invoiceID string) []billing.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.Payment
	for _, id := range m.order[billing.CollectionPayments] {
		p, ok := m.byID[billing.CollectionPayments][id].(*billing.Payment)
		if !ok || p.InvoiceID != invoiceID {
			continue
		}
		out = append(out, *p)
	}
	billing.SortPayments(out)
	return out
}

// InvoiceView returns the invoice with its payment projection attached.
func (m *Memory) InvoiceView(id string) (*billing.Invoice, bool) {
	e, ok := m.Get(billing.CollectionInvoices, id)
	if !ok {
		return nil, false
	}
	inv, ok := e.(*billing.Invoice)
	if !ok {
		return nil, false
	}
	inv.Payments = m.PaymentsFor(id)
	return inv, true
}
