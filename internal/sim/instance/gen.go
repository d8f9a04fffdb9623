package instance

import (
	"math"

	"stardrift.io/internal/sim/galaxy"
)

// Procedural generation ranges for a fresh star system. Orbital radii and
// angular rates are tuned so moons visibly circle their planets while
// planets crawl around their star.
const (
	minPlanets = 5
	maxPlanets = 14

	maxMoonsPerPlanet = 2

	minAsteroids = 500
	maxAsteroids = 2499
)

func (in *Instance) randRange(lo, hi float64) float64 {
	return lo + in.rng.Float64()*(hi-lo)
}

// randSpherical draws a point at a radius within [rLo, rHi), near the
// galactic plane (polar angle pi +/- 0.1), at a uniform azimuth.
func (in *Instance) randSpherical(rLo, rHi float64) galaxy.Spherical {
	return galaxy.Spherical{
		R:     in.randRange(rLo, rHi),
		Theta: in.randRange(math.Pi-0.1, math.Pi+0.1),
		Phi:   in.randRange(-2*math.Pi, 2*math.Pi),
	}
}

// GenerateSystem creates one star system centered at offset: a single
// self-referencing star, a handful of planets with zero to two moons each,
// and an asteroid belt, all persisted and inserted into the galaxy. It
// returns the star's id, which identifies the system.
func (in *Instance) GenerateSystem(offset galaxy.Vec3) (uint32, error) {
	star, err := in.bodies.NewBody(galaxy.Star)
	if err != nil {
		return 0, err
	}
	star.GravityCenter = star.ID
	star.Coords = offset
	star.RotatingSpeed = 0

	nPlanets := minPlanets + in.rng.Intn(maxPlanets-minPlanets+1)
	for i := 0; i < nPlanets; i++ {
		planet, err := in.bodies.NewBody(galaxy.Planet)
		if err != nil {
			return 0, err
		}
		planet.RotatingSpeed = in.randRange(0.0001, 0.001)
		planet.Coords = star.Coords.Add(in.randSpherical(500, 4000).Cartesian())
		planet.GravityCenter = star.ID

		nMoons := in.rng.Intn(maxMoonsPerPlanet + 1)
		for j := 0; j < nMoons; j++ {
			moon, err := in.bodies.NewBody(galaxy.Moon)
			if err != nil {
				return 0, err
			}
			moon.RotatingSpeed = in.randRange(0.005, 0.01)
			moon.Coords = planet.Coords.Add(in.randSpherical(30, 200).Cartesian())
			moon.GravityCenter = planet.ID
			in.bodies.Add(moon)
			in.galaxy.Insert(moon)
		}

		in.bodies.Add(planet)
		in.galaxy.Insert(planet)
	}

	nAsteroids := minAsteroids + in.rng.Intn(maxAsteroids-minAsteroids+1)
	lastID, err := in.bodies.NewBodies(galaxy.Asteroid, nAsteroids)
	if err != nil {
		return 0, err
	}
	for i := 0; i < nAsteroids; i++ {
		asteroid, err := in.bodies.Get(lastID - uint32(i))
		if err != nil {
			return 0, err
		}
		asteroid.RotatingSpeed = in.randRange(0.0001, 0.001)
		asteroid.Coords = star.Coords.Add(in.randSpherical(1500, 4000).Cartesian())
		asteroid.GravityCenter = star.ID
		in.bodies.Add(asteroid)
		in.galaxy.Insert(asteroid)
	}

	in.bodies.Add(star)
	in.galaxy.Insert(star)
	return star.ID, nil
}
