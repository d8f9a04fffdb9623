package galaxy

import (
	"math"
	"testing"
)

func dist(a, b Vec3) float64 { return a.Sub(b).Norm() }

func TestAdvanceSingleBodyIsNoOp(t *testing.T) {
	g := New()
	g.Insert(Body{ID: 1, Type: Star, Coords: Vec3{100, 200, 300}, GravityCenter: 1})

	g.Advance(0.1)

	got, _ := g.Get(1)
	if got.Coords != (Vec3{100, 200, 300}) {
		t.Fatalf("lone body moved to %+v", got.Coords)
	}
}

func TestAdvanceStarStaysPut(t *testing.T) {
	g := New()
	star := Vec3{100, 200, 300}
	g.Insert(Body{ID: 1, Type: Star, Coords: star, GravityCenter: 1})
	g.Insert(Body{ID: 2, Type: Planet, Coords: star.Add(Vec3{600, 0, 800}), RotatingSpeed: 0.001, GravityCenter: 1})

	g.Advance(0.1)

	got, _ := g.Get(1)
	if got.Coords != star {
		t.Fatalf("star moved to %+v", got.Coords)
	}
}

func TestAdvancePreservesOrbitRadius(t *testing.T) {
	g := New()
	star := Vec3{100, 200, 300}
	g.Insert(Body{ID: 1, Type: Star, Coords: star, GravityCenter: 1})
	g.Insert(Body{ID: 2, Type: Planet, Coords: star.Add(Vec3{600, 0, 800}), RotatingSpeed: 0.001, GravityCenter: 1})

	before, _ := g.Get(2)
	g.Advance(0.1)
	after, _ := g.Get(2)

	if after.Coords == before.Coords {
		t.Fatal("planet did not move")
	}
	r := dist(after.Coords, star)
	if math.Abs(r-1000) > 1e-6 {
		t.Fatalf("orbit radius drifted: got %v, want 1000", r)
	}
}

func TestAdvanceMoonFollowsPlanet(t *testing.T) {
	g := New()
	star := Vec3{100, 200, 300}
	planet := star.Add(Vec3{600, 0, 800})
	g.Insert(Body{ID: 1, Type: Star, Coords: star, GravityCenter: 1})
	g.Insert(Body{ID: 2, Type: Planet, Coords: planet, RotatingSpeed: 0.001, GravityCenter: 1})
	g.Insert(Body{ID: 3, Type: Moon, Coords: planet.Add(Vec3{30, 0, 40}), RotatingSpeed: 0.005, GravityCenter: 2})

	g.Advance(0.1)

	p, _ := g.Get(2)
	m, _ := g.Get(3)
	if r := dist(m.Coords, p.Coords); math.Abs(r-50) > 1e-6 {
		t.Fatalf("moon orbit radius drifted: got %v, want 50", r)
	}
}

func TestAdvanceHalfCircleWrap(t *testing.T) {
	g := New()
	star := Vec3{100, 200, 300}
	// Azimuth just short of pi; one tick of 0.001 angular rate at 10x sim
	// time pushes it over and the wrap folds it back near zero.
	rel := Spherical{R: 1000, Theta: 0.6435011087932844, Phi: math.Pi - 0.0005}.Cartesian()
	g.Insert(Body{ID: 1, Type: Star, Coords: star, GravityCenter: 1})
	g.Insert(Body{ID: 2, Type: Planet, Coords: star.Add(rel), RotatingSpeed: 0.001, GravityCenter: 1})

	g.Advance(0.1)

	p, _ := g.Get(2)
	phi := SphericalFromCartesian(p.Coords.Sub(star)).Phi
	if math.Abs(phi-0.0005) > 1e-6 {
		t.Fatalf("azimuth after wrap: got %v, want ~0.0005", phi)
	}
}

func TestAdvanceOrderIndependent(t *testing.T) {
	bodies := []Body{
		{ID: 1, Type: Star, Coords: Vec3{100, 200, 300}, GravityCenter: 1},
		{ID: 2, Type: Planet, Coords: Vec3{700, 200, 1100}, RotatingSpeed: 0.0007, GravityCenter: 1},
		{ID: 3, Type: Moon, Coords: Vec3{730, 200, 1140}, RotatingSpeed: 0.008, GravityCenter: 2},
		{ID: 4, Type: Asteroid, Coords: Vec3{-900, 400, 1800}, RotatingSpeed: 0.0003, GravityCenter: 1},
	}

	a, b := New(), New()
	for _, body := range bodies {
		a.Insert(body)
	}
	for i := len(bodies) - 1; i >= 0; i-- {
		b.Insert(bodies[i])
	}

	a.Advance(0.1)
	b.Advance(0.1)

	as, bs := a.All(), b.All()
	for i := range as {
		if as[i] != bs[i] {
			t.Fatalf("body %d diverged: %+v vs %+v", as[i].ID, as[i], bs[i])
		}
	}
}

func TestQuerySphere(t *testing.T) {
	g := New()
	center := Vec3{100, 200, 300}
	g.Insert(Body{ID: 1, Coords: center, GravityCenter: 1})
	g.Insert(Body{ID: 2, Coords: center.Add(Vec3{999, 0, 0}), GravityCenter: 1})
	g.Insert(Body{ID: 3, Coords: center.Add(Vec3{0, 1000, 0}), GravityCenter: 1})
	g.Insert(Body{ID: 4, Coords: center.Add(Vec3{0, 0, 1000.5}), GravityCenter: 1})
	g.Insert(Body{ID: 5, Coords: center.Add(Vec3{9000, 9000, 9000}), GravityCenter: 1})

	got := g.QuerySphere(center, 1000)
	want := []uint32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d bodies, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("result[%d] = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestQuerySphereAfterAdvance(t *testing.T) {
	g := New()
	star := Vec3{100, 200, 300}
	g.Insert(Body{ID: 1, Type: Star, Coords: star, GravityCenter: 1})
	g.Insert(Body{ID: 2, Type: Planet, Coords: star.Add(Vec3{600, 0, 800}), RotatingSpeed: 0.001, GravityCenter: 1})

	g.Advance(0.1)

	// The moved planet must be findable at its new position.
	p, _ := g.Get(2)
	got := g.QuerySphere(p.Coords, 1)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("planet not indexed at new position, got %v", got)
	}
}

func TestValidateChains(t *testing.T) {
	g := New()
	g.Insert(Body{ID: 1, GravityCenter: 1})
	g.Insert(Body{ID: 2, GravityCenter: 1})
	g.Insert(Body{ID: 3, GravityCenter: 2})
	if err := g.ValidateChains(MaxGravityHops); err != nil {
		t.Fatalf("valid chains rejected: %v", err)
	}

	g.Insert(Body{ID: 4, GravityCenter: 99})
	if err := g.ValidateChains(MaxGravityHops); err == nil {
		t.Fatal("missing gravity center accepted")
	}
}

func TestValidateChainsCycle(t *testing.T) {
	g := New()
	g.Insert(Body{ID: 1, GravityCenter: 2})
	g.Insert(Body{ID: 2, GravityCenter: 1})
	if err := g.ValidateChains(MaxGravityHops); err == nil {
		t.Fatal("gravity cycle accepted")
	}
}

func TestSphericalRoundTrip(t *testing.T) {
	cases := []Vec3{
		{600, 0, 800},
		{-123.4, 567.8, -91.2},
		{0.5, -0.5, 2},
	}
	for _, v := range cases {
		got := SphericalFromCartesian(v).Cartesian()
		if dist(got, v) > 1e-9 {
			t.Fatalf("round trip of %+v gave %+v", v, got)
		}
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("zero vector normalized to %+v", got)
	}
	if got := (Vec3{math.Inf(1), 0, 0}).Normalize(); got != (Vec3{}) {
		t.Fatalf("inf vector normalized to %+v", got)
	}
	got := Vec3{3, 0, 4}.Normalize()
	if dist(got, Vec3{0.6, 0, 0.8}) > 1e-12 {
		t.Fatalf("normalize(3,0,4) = %+v", got)
	}
}
