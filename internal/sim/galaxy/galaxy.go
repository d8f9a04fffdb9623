package galaxy

import (
	"fmt"
	"math"
	"sort"
)

const (
	// The simulation runs faster than wall clock by this factor.
	simTimeScale = 10.0

	// Broad-phase grid cell edge length. Query boxes span a handful of
	// cells at the default area-of-interest radius.
	gridCellSize = 2500.0

	// Upper bound on gravity-center chain length before a chain is
	// declared corrupt.
	MaxGravityHops = 64
)

type cellKey struct {
	X, Y, Z int
}

// Galaxy is the live working set of celestial bodies: an id-keyed map plus
// a uniform-grid broad-phase index for area-of-interest queries.
type Galaxy struct {
	bodies map[uint32]*Body
	grid   map[cellKey][]uint32
	dirty  bool
}

func New() *Galaxy {
	return &Galaxy{
		bodies: make(map[uint32]*Body),
		grid:   make(map[cellKey][]uint32),
	}
}

func (g *Galaxy) Len() int { return len(g.bodies) }

// Insert adds or replaces a body.
func (g *Galaxy) Insert(b Body) {
	cp := b
	g.bodies[b.ID] = &cp
	g.dirty = true
}

// Get returns a copy of the body with the given id.
func (g *Galaxy) Get(id uint32) (Body, bool) {
	b, ok := g.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// GetMut returns the live body for in-place mutation, or nil. Callers that
// move a body invalidate the spatial index; it is rebuilt on the next query.
func (g *Galaxy) GetMut(id uint32) *Body {
	b, ok := g.bodies[id]
	if !ok {
		return nil
	}
	g.dirty = true
	return b
}

// All returns every body ordered by id.
func (g *Galaxy) All() []Body {
	out := make([]Body, 0, len(g.bodies))
	for _, b := range g.bodies {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cellOf(v Vec3) cellKey {
	return cellKey{
		X: int(math.Floor(v.X / gridCellSize)),
		Y: int(math.Floor(v.Y / gridCellSize)),
		Z: int(math.Floor(v.Z / gridCellSize)),
	}
}

func (g *Galaxy) rebuild() {
	g.grid = make(map[cellKey][]uint32, len(g.grid))
	for id, b := range g.bodies {
		k := cellOf(b.Coords)
		g.grid[k] = append(g.grid[k], id)
	}
	g.dirty = false
}

// QuerySphere returns every body within radius of center, id-sorted. The
// grid answers the bounding-box broad phase; the exact Euclidean distance
// check rejects the box corners.
func (g *Galaxy) QuerySphere(center Vec3, radius float64) []Body {
	if g.dirty {
		g.rebuild()
	}
	lo := cellOf(center.Sub(Vec3{radius, radius, radius}))
	hi := cellOf(center.Add(Vec3{radius, radius, radius}))
	radiusSq := radius * radius

	var out []Body
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				for _, id := range g.grid[cellKey{x, y, z}] {
					b := g.bodies[id]
					d := b.Coords.Sub(center)
					if d.X*d.X+d.Y*d.Y+d.Z*d.Z <= radiusSq {
						out = append(out, *b)
					}
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ValidateChains checks that every body's gravity-center chain terminates
// at a self-referencing root within maxHops hops. A violation is a
// data-integrity error in the stored galaxy, not a crash.
func (g *Galaxy) ValidateChains(maxHops int) error {
	for id, b := range g.bodies {
		cur := b
		for hop := 0; ; hop++ {
			if hop > maxHops {
				return fmt.Errorf("gravity chain from body %d exceeds %d hops", id, maxHops)
			}
			if cur.GravityCenter == cur.ID {
				break
			}
			next, ok := g.bodies[cur.GravityCenter]
			if !ok {
				return fmt.Errorf("body %d: gravity center %d not loaded", cur.ID, cur.GravityCenter)
			}
			cur = next
		}
	}
	return nil
}
