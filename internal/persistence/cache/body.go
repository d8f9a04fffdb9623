// Package cache holds the lazy-loading, write-back entity caches that
// bridge the in-memory simulation to durable storage. The galaxy is the
// authoritative live working set; these caches are the authoritative
// durable set.
package cache

import (
	"fmt"

	"stardrift.io/internal/persistence/store"
	"stardrift.io/internal/sim/galaxy"
)

type BodyCache struct {
	cache map[uint32]galaxy.Body
	store *store.Store
}

func NewBodyCache(st *store.Store) *BodyCache {
	return &BodyCache{
		cache: make(map[uint32]galaxy.Body),
		store: st,
	}
}

func bodyToRow(b galaxy.Body) store.BodyRow {
	return store.BodyRow{
		ID:            b.ID,
		Type:          uint8(b.Type),
		Coords:        b.Coords.Array(),
		RotatingSpeed: b.RotatingSpeed,
		GravityCenter: b.GravityCenter,
	}
}

func rowToBody(r store.BodyRow) galaxy.Body {
	return galaxy.Body{
		ID:            r.ID,
		Type:          galaxy.BodyType(r.Type),
		Coords:        galaxy.Vec3{X: r.Coords[0], Y: r.Coords[1], Z: r.Coords[2]},
		RotatingSpeed: r.RotatingSpeed,
		GravityCenter: r.GravityCenter,
	}
}

func (c *BodyCache) Len() int { return len(c.cache) }

// Get returns the cached body. It never loads; a miss is a caller error.
func (c *BodyCache) Get(id uint32) (galaxy.Body, error) {
	b, ok := c.cache[id]
	if !ok {
		return galaxy.Body{}, fmt.Errorf("body %d: %w", id, store.ErrNotFound)
	}
	return b, nil
}

// Add puts a body into the cache, replacing any previous entry.
func (c *BodyCache) Add(b galaxy.Body) {
	c.cache[b.ID] = b
}

// Load fetches the body from storage unless already cached.
func (c *BodyCache) Load(id uint32) (galaxy.Body, error) {
	if b, ok := c.cache[id]; ok {
		return b, nil
	}
	row, err := c.store.BodyByID(id)
	if err != nil {
		return galaxy.Body{}, err
	}
	b := rowToBody(row)
	c.cache[id] = b
	return b, nil
}

// LoadDescendants walks the gravity-center back-references breadth-first
// from root and returns every not-yet-cached body in the sub-tree.
func (c *BodyCache) LoadDescendants(root uint32) ([]galaxy.Body, error) {
	frontier := []uint32{root}
	seen := map[uint32]bool{root: true}

	var out []galaxy.Body
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]

		rows, err := c.store.BodiesByGravityCenter(id)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if seen[row.ID] {
				continue
			}
			seen[row.ID] = true
			frontier = append(frontier, row.ID)
			if _, cached := c.cache[row.ID]; !cached {
				out = append(out, rowToBody(row))
			}
		}
	}
	return out, nil
}

// NewBody allocates a body of the given type: storage assigns the id, the
// zero-valued body is cached under it.
func (c *BodyCache) NewBody(t galaxy.BodyType) (galaxy.Body, error) {
	id, err := c.store.InsertBody(store.BodyRow{Type: uint8(t)})
	if err != nil {
		return galaxy.Body{}, err
	}
	b := galaxy.Body{ID: id, Type: t}
	c.cache[id] = b
	return b, nil
}

// NewBodies allocates n bodies of the given type in one round trip and
// returns the id of the last one; the batch holds the n sequential ids
// ending there.
func (c *BodyCache) NewBodies(t galaxy.BodyType, n int) (uint32, error) {
	if n <= 0 {
		return 0, nil
	}
	rows := make([]store.BodyRow, n)
	for i := range rows {
		rows[i] = store.BodyRow{Type: uint8(t)}
	}
	last, err := c.store.InsertBodies(rows)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		id := last - uint32(i)
		c.cache[id] = galaxy.Body{ID: id, Type: t}
	}
	return last, nil
}

// Sync refreshes the cache from the galaxy's current working set.
func (c *BodyCache) Sync(bodies []galaxy.Body) {
	for _, b := range bodies {
		c.cache[b.ID] = b
	}
}

// SaveAll flushes every cached body to storage in one upsert batch.
func (c *BodyCache) SaveAll() error {
	if len(c.cache) == 0 {
		return nil
	}
	rows := make([]store.BodyRow, 0, len(c.cache))
	for _, b := range c.cache {
		rows = append(rows, bodyToRow(b))
	}
	return c.store.UpsertBodies(rows)
}
