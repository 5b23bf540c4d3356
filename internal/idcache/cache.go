// Package idcache records which entity ids a load has seen, so dependent
// loads can drop rows that reference ids absent from their dependency dump.
//
// Each entity type moves through three phases: empty, accumulating (recorded
// ids answer membership queries, but an absent id may still arrive) and
// inverted (the recorded ids become the authoritative set, so an absent id is
// known to be missing). Inversion is a one-shot swap; ids recorded after it
// go to a fresh pending set that stays invisible and never repeats a
// confirmed id.
package idcache

import (
	"fmt"
	"sync"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

type phase int

const (
	phaseEmpty phase = iota
	phaseAccumulating
	phaseInverted
)

type entry struct {
	mu        sync.RWMutex
	phase     phase
	pending   map[int64]struct{}
	confirmed map[int64]struct{}
}

// Cache is safe for concurrent use. Producers of one type may record while
// consumers of other types query; a query on a type that is not yet inverted
// is answered as "not authoritative" so callers never treat it as an absence.
type Cache struct {
	entries map[domain.EntityType]*entry
}

// New returns a cache tracking every known entity type.
func New() *Cache {
	c := &Cache{entries: make(map[domain.EntityType]*entry, len(domain.EntityTypes))}
	for _, t := range domain.EntityTypes {
		c.entries[t] = &entry{}
	}
	return c
}

func (c *Cache) entry(t domain.EntityType) *entry {
	e, ok := c.entries[t]
	if !ok {
		panic(fmt.Sprintf("idcache: unknown entity type %q", t))
	}
	return e
}

// RecordPresent adds ids to the pending set of t. After inversion, ids
// already confirmed are not added again.
func (c *Cache) RecordPresent(t domain.EntityType, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	e := c.entry(t)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		e.pending = make(map[int64]struct{}, len(ids))
	}
	for _, id := range ids {
		if _, ok := e.confirmed[id]; ok {
			continue
		}
		e.pending[id] = struct{}{}
	}
	if e.phase == phaseEmpty {
		e.phase = phaseAccumulating
	}
}

// Invert makes the pending set of t authoritative. A type that recorded
// nothing inverts to an empty authoritative set. Inverting twice returns
// domain.ErrAlreadyInverted.
func (c *Cache) Invert(t domain.EntityType) error {
	e := c.entry(t)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == phaseInverted {
		return fmt.Errorf("idcache: invert %s: %w", t, domain.ErrAlreadyInverted)
	}
	e.confirmed = e.pending
	if e.confirmed == nil {
		e.confirmed = map[int64]struct{}{}
	}
	e.pending = nil
	e.phase = phaseInverted
	return nil
}

// Authoritative reports whether t has been inverted.
func (c *Cache) Authoritative(t domain.EntityType) bool {
	e := c.entry(t)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase == phaseInverted
}

// IsPresent reports whether id has been recorded for t. Before inversion the
// answer comes from the pending set and authoritative is false: a negative
// answer only means the id has not arrived yet. After inversion the answer
// comes from the confirmed set and is authoritative.
func (c *Cache) IsPresent(t domain.EntityType, id int64) (present, authoritative bool) {
	e := c.entry(t)
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.phase != phaseInverted {
		_, ok := e.pending[id]
		return ok, false
	}
	_, ok := e.confirmed[id]
	return ok, true
}

// Len returns the size of the authoritative set of t, or zero before inversion.
func (c *Cache) Len(t domain.EntityType) int {
	e := c.entry(t)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.confirmed)
}

// Discard releases both sets of t and returns it to the empty phase.
func (c *Cache) Discard(t domain.EntityType) {
	e := c.entry(t)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = nil
	e.confirmed = nil
	e.phase = phaseEmpty
}
