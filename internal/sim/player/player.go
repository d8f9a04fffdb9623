// Package player holds the live, in-memory side of a connected player: its
// position and heading, the bounded channel pair bridging it to its
// session, and the per-tick action-consumption/state-emission step.
package player

import (
	"log"
	"math"
	"time"

	"stardrift.io/internal/protocol"
	"stardrift.io/internal/sim/galaxy"
)

const (
	// ChannelCapacity bounds both per-player queues. Generous enough to
	// avoid spurious backpressure, small enough to bound worst-case memory.
	ChannelCapacity = 10000

	// EnvChunkSize caps the number of bodies per Env message.
	EnvChunkSize = 50

	// historySize bounds the ring of recent environment angle snapshots
	// kept for Ping lag estimation.
	historySize = 32
)

type angleSample struct {
	Phi   float64
	Speed float64
}

type envSnapshot struct {
	When   time.Time
	Angles map[uint32]angleSample
}

// Player is one resident player. The instance owns the Player and calls
// Step under its lock; the session holds only the channel endpoints
// returned by ActionSender and StateReceiver.
type Player struct {
	ID            uint32
	Nickname      string
	Coords        galaxy.Vec3
	Direction     galaxy.Vec3
	CurrentSystem uint32

	actions chan protocol.Action
	states  chan protocol.Game

	firstStateSent bool

	history  []envSnapshot
	histNext int

	// LagEstimate is a rolling average of observed orbital drift between
	// client and server, in seconds.
	LagEstimate float64

	droppedStates uint64

	log *log.Logger
}

func New(nickname string, logger *log.Logger) *Player {
	return &Player{
		Nickname: nickname,
		actions:  make(chan protocol.Action, ChannelCapacity),
		states:   make(chan protocol.Game, ChannelCapacity),
		log:      logger,
	}
}

// ActionSender is the session's end of the inbound queue.
func (p *Player) ActionSender() chan<- protocol.Action { return p.actions }

// StateReceiver is the session's end of the outbound queue.
func (p *Player) StateReceiver() <-chan protocol.Game { return p.states }

// DroppedStates reports outbound states discarded because the session
// stopped draining its queue.
func (p *Player) DroppedStates() uint64 { return p.droppedStates }

// Step runs one simulation tick for this player: drain queued actions,
// apply movement, then emit state. delta is wall-clock seconds; env is the
// post-update area-of-interest query result. shipSpeed is distance per
// second under full throttle.
func (p *Player) Step(delta float64, env []galaxy.Body, shipSpeed float64) {
	heading := galaxy.Vec3{}

drain:
	for {
		select {
		case act := <-p.actions:
			switch {
			case act.ShipState != nil:
				if act.ShipState.ThrottleUp {
					d := act.ShipState.Direction
					heading = galaxy.Vec3{X: d[0], Y: d[1], Z: d[2]}.Normalize()
					if heading != (galaxy.Vec3{}) {
						p.Direction = heading
					}
				}
			case act.Ping != nil:
				p.handlePing(act.Ping.EntityID, act.Ping.Angle)
			case act.Login != nil:
				p.log.Printf("player %d: login action during gameplay, ignored", p.ID)
			}
		default:
			break drain
		}
	}

	moved := heading != (galaxy.Vec3{})
	if moved {
		p.Coords = p.Coords.Add(heading.Scale(shipSpeed * delta))
	}

	// The very first state push is guaranteed even with zero input; after
	// that, own-position updates go out only when the position changed.
	if moved || !p.firstStateSent {
		p.send(protocol.Game{Player: &protocol.PlayerState{Coords: p.Coords.Array()}})
		p.firstStateSent = true
	}

	p.emitEnv(env)
}

func (p *Player) emitEnv(env []galaxy.Body) {
	centers := make(map[uint32]galaxy.Vec3, len(env))
	for _, b := range env {
		centers[b.ID] = b.Coords
	}
	snap := envSnapshot{When: time.Now(), Angles: make(map[uint32]angleSample, len(env))}

	batch := make([]protocol.BodyState, 0, EnvChunkSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.send(protocol.Game{Env: batch})
		batch = make([]protocol.BodyState, 0, EnvChunkSize)
	}

	for _, b := range env {
		batch = append(batch, protocol.BodyState{
			ID:            b.ID,
			Coords:        b.Coords.Array(),
			RotatingSpeed: b.RotatingSpeed,
			GravityCenter: b.GravityCenter,
			BodyType:      b.Type.String(),
		})
		if len(batch) == EnvChunkSize {
			flush()
		}
		if center, ok := centers[b.GravityCenter]; ok && b.GravityCenter != b.ID {
			sph := galaxy.SphericalFromCartesian(b.Coords.Sub(center))
			snap.Angles[b.ID] = angleSample{Phi: sph.Phi, Speed: b.RotatingSpeed}
		}
	}
	flush()

	if len(snap.Angles) > 0 {
		if len(p.history) < historySize {
			p.history = append(p.history, snap)
		} else {
			p.history[p.histNext] = snap
		}
		p.histNext = (p.histNext + 1) % historySize
	}
}

// handlePing matches the observed orbital angle of a body against the
// recent snapshot history and folds the smallest drift, converted to
// seconds via the body's angular rate, into the rolling lag estimate.
func (p *Player) handlePing(entityID uint32, observed float64) {
	best := math.Inf(1)
	speed := 0.0
	for _, snap := range p.history {
		sample, ok := snap.Angles[entityID]
		if !ok || sample.Speed == 0 {
			continue
		}
		if d := angleDrift(observed, sample.Phi); d < best {
			best = d
			speed = sample.Speed
		}
	}
	if math.IsInf(best, 1) || speed == 0 {
		return
	}
	lag := best / math.Abs(speed)
	p.LagEstimate = p.LagEstimate*0.875 + lag*0.125
}

// angleDrift folds the difference of two azimuths into [0, pi/2] under the
// half-circle wrap convention used by orbital propagation.
func angleDrift(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), math.Pi)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

func (p *Player) send(st protocol.Game) {
	select {
	case p.states <- st:
	default:
		// A session that stopped draining must not stall the tick; the
		// disconnect path evicts the player shortly after.
		p.droppedStates++
		if p.droppedStates == 1 || p.droppedStates%1000 == 0 {
			p.log.Printf("player %d (%s): outbound state queue full, dropped %d", p.ID, p.Nickname, p.droppedStates)
		}
	}
}
