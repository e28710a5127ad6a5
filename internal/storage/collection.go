package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"backoffice/internal/core"
)

// Collection is an ordered, mutex-guarded set of records keyed by id. When
// persist is set it receives the full record slice after every change and
// the change is rolled back if it fails.
type Collection[T any] struct {
	mu      sync.RWMutex
	items   []T
	index   map[core.ID]int
	idOf    func(T) core.ID
	clone   func(T) T
	persist func([]T) error
	version atomic.Uint64
}

// NewCollection takes ownership of items. Later duplicates of an id
// replace earlier ones.
func NewCollection[T any](items []T, idOf func(T) core.ID, clone func(T) T, persist func([]T) error) *Collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	c := &Collection[T]{
		idOf:    idOf,
		clone:   clone,
		persist: persist,
	}
	c.fill(items)
	return c
}

// Reload swaps in the records returned by load when it reports a change.
// load runs under the write lock, so it never interleaves with Upsert or
// Delete. On error the current records are kept.
func (c *Collection[T]) Reload(load func() (items []T, changed bool, err error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, changed, err := load()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	c.fill(items)
	c.version.Add(1)
	return nil
}

func (c *Collection[T]) fill(items []T) {
	c.items = nil
	c.index = make(map[core.ID]int, len(items))
	for _, it := range items {
		id := c.idOf(it)
		if pos, ok := c.index[id]; ok {
			c.items[pos] = it
			continue
		}
		c.index[id] = len(c.items)
		c.items = append(c.items, it)
	}
}

func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	for i, it := range c.items {
		out[i] = c.clone(it)
	}
	return out
}

func (c *Collection[T]) Get(id core.ID) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.index[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return c.clone(c.items[pos]), nil
}

// Upsert replaces the record with the same id or appends a new one.
func (c *Collection[T]) Upsert(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.idOf(v)
	v = c.clone(v)
	if pos, ok := c.index[id]; ok {
		prev := c.items[pos]
		c.items[pos] = v
		if err := c.save(); err != nil {
			c.items[pos] = prev
			return err
		}
	} else {
		c.index[id] = len(c.items)
		c.items = append(c.items, v)
		if err := c.save(); err != nil {
			c.items = c.items[:len(c.items)-1]
			delete(c.index, id)
			return err
		}
	}
	c.version.Add(1)
	return nil
}

func (c *Collection[T]) Delete(id core.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.index[id]
	if !ok {
		return ErrNotFound
	}
	prev := c.items
	next := make([]T, 0, len(prev)-1)
	next = append(next, prev[:pos]...)
	next = append(next, prev[pos+1:]...)
	c.items = next
	if err := c.save(); err != nil {
		c.items = prev
		return err
	}
	c.reindex()
	c.version.Add(1)
	return nil
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection[T]) Version() uint64 { return c.version.Load() }

func (c *Collection[T]) save() error {
	if c.persist == nil {
		return nil
	}
	if err := c.persist(c.items); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	return nil
}

func (c *Collection[T]) reindex() {
	c.index = make(map[core.ID]int, len(c.items))
	for i, it := range c.items {
		c.index[c.idOf(it)] = i
	}
}
