// Package protocol defines the JSON wire format spoken between the game
// server and its clients. Every message is a single JSON document carried
// in one websocket text frame.
//
// Client -> server messages are Actions; server -> client messages are an
// AuthResult during the authentication phase and Game states afterwards.
// Both unions are externally tagged: the document is an object with exactly
// one key naming the variant.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Login asks the server to authenticate the given nickname.
type Login struct {
	Nickname string `json:"nickname"`
}

// ShipState reports the client's current steering input.
type ShipState struct {
	ThrottleUp bool       `json:"throttle_up"`
	Direction  [3]float64 `json:"direction"`
}

// Ping carries a latency probe: the id of an observed body and the orbital
// angle the client saw it at. On the wire it is a two-element array.
type Ping struct {
	EntityID uint32
	Angle    float64
}

func (p Ping) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.EntityID, p.Angle})
}

func (p *Ping) UnmarshalJSON(b []byte) error {
	var tuple [2]json.Number
	if err := json.Unmarshal(b, &tuple); err != nil {
		return fmt.Errorf("ping tuple: %w", err)
	}
	id, err := tuple[0].Int64()
	if err != nil || id < 0 {
		return fmt.Errorf("ping entity id %q", tuple[0])
	}
	angle, err := tuple[1].Float64()
	if err != nil {
		return fmt.Errorf("ping angle %q", tuple[1])
	}
	p.EntityID = uint32(id)
	p.Angle = angle
	return nil
}

// Action is the client -> server union. Exactly one field is set.
type Action struct {
	Login     *Login
	ShipState *ShipState
	Ping      *Ping
}

func (a Action) MarshalJSON() ([]byte, error) {
	switch {
	case a.Login != nil:
		return json.Marshal(map[string]*Login{"Login": a.Login})
	case a.ShipState != nil:
		return json.Marshal(map[string]*ShipState{"ShipState": a.ShipState})
	case a.Ping != nil:
		return json.Marshal(map[string]*Ping{"Ping": a.Ping})
	}
	return nil, fmt.Errorf("empty action")
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("action must have exactly one variant, got %d", len(raw))
	}
	*a = Action{}
	for tag, body := range raw {
		switch tag {
		case "Login":
			a.Login = new(Login)
			return json.Unmarshal(body, a.Login)
		case "ShipState":
			a.ShipState = new(ShipState)
			return json.Unmarshal(body, a.ShipState)
		case "Ping":
			a.Ping = new(Ping)
			return json.Unmarshal(body, a.Ping)
		default:
			return fmt.Errorf("unknown action variant %q", tag)
		}
	}
	return nil
}

// DecodeAction parses one inbound text frame.
func DecodeAction(b []byte) (Action, error) {
	var a Action
	err := json.Unmarshal(b, &a)
	return a, err
}

// PlayerState is the player's own position snapshot.
type PlayerState struct {
	Coords [3]float64 `json:"coords"`
}

// BodyState is one celestial body as reported inside an Env update.
type BodyState struct {
	ID            uint32     `json:"id"`
	Coords        [3]float64 `json:"coords"`
	RotatingSpeed float64    `json:"rotating_speed"`
	GravityCenter uint32     `json:"gravity_center"`
	BodyType      string     `json:"body_type"`
}

// Game is the server -> client union for the gameplay phase.
type Game struct {
	Player *PlayerState
	Env    []BodyState
}

func (g Game) MarshalJSON() ([]byte, error) {
	switch {
	case g.Player != nil:
		return json.Marshal(map[string]*PlayerState{"Player": g.Player})
	case g.Env != nil:
		return json.Marshal(map[string][]BodyState{"Env": g.Env})
	}
	return nil, fmt.Errorf("empty game state")
}

func (g *Game) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("game state must have exactly one variant, got %d", len(raw))
	}
	*g = Game{}
	for tag, body := range raw {
		switch tag {
		case "Player":
			g.Player = new(PlayerState)
			return json.Unmarshal(body, g.Player)
		case "Env":
			return json.Unmarshal(body, &g.Env)
		default:
			return fmt.Errorf("unknown game variant %q", tag)
		}
	}
	return nil
}

// DecodeGame parses one outbound text frame; used by client-side tooling.
func DecodeGame(b []byte) (Game, error) {
	var g Game
	err := json.Unmarshal(b, &g)
	return g, err
}

// AuthResult closes the authentication phase. Message holds the assigned
// player id as a string on success, the failure reason otherwise.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
