package galaxy

import "fmt"

// BodyType tags the kind of a celestial body. Values match the integers
// persisted in the body table.
type BodyType uint8

const (
	Star     BodyType = 1
	Planet   BodyType = 2
	Moon     BodyType = 3
	Asteroid BodyType = 4
)

func (t BodyType) String() string {
	switch t {
	case Star:
		return "Star"
	case Planet:
		return "Planet"
	case Moon:
		return "Moon"
	case Asteroid:
		return "Asteroid"
	}
	return fmt.Sprintf("BodyType(%d)", uint8(t))
}

// BodyTypeFromTag resolves a wire tag back to its BodyType.
func BodyTypeFromTag(tag string) (BodyType, error) {
	switch tag {
	case "Star":
		return Star, nil
	case "Planet":
		return Planet, nil
	case "Moon":
		return Moon, nil
	case "Asteroid":
		return Asteroid, nil
	}
	return 0, fmt.Errorf("unknown body type tag %q", tag)
}

// Body is one celestial object. GravityCenter names the body it orbits;
// a root star's gravity center is its own id. An id of zero marks a body
// that has not been assigned a storage id yet.
type Body struct {
	ID            uint32
	Type          BodyType
	Coords        Vec3
	RotatingSpeed float64
	GravityCenter uint32
}
