// Package tuning carries the runtime knobs of the simulation loop. Values
// absent from the YAML file fall back to defaults.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// TickMs is the simulation tick period in milliseconds.
	TickMs int `yaml:"tick_ms"`

	// SaveEverySec is the persistence tick period in seconds.
	SaveEverySec int `yaml:"save_every_s"`

	// AOIRadius is the area-of-interest sphere radius around each player.
	AOIRadius float64 `yaml:"aoi_radius"`

	// ShipSpeed is a player's travel distance per second at full throttle.
	ShipSpeed float64 `yaml:"ship_speed"`
}

func Defaults() Tuning {
	return Tuning{
		TickMs:       100,
		SaveEverySec: 30,
		AOIRadius:    10000,
		ShipSpeed:    100,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickMs <= 0 {
		t.TickMs = Defaults().TickMs
	}
	if t.SaveEverySec <= 0 {
		t.SaveEverySec = Defaults().SaveEverySec
	}
	if t.AOIRadius <= 0 {
		t.AOIRadius = Defaults().AOIRadius
	}
	if t.ShipSpeed <= 0 {
		t.ShipSpeed = Defaults().ShipSpeed
	}
	return t, nil
}
