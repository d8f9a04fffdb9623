// Package instance aggregates the live galaxy and both entity caches into
// the single source of truth for one running server. All methods must be
// called under the orchestrator's lock; the only state that escapes the
// lock is the per-player channel endpoints handed out by Authenticate.
package instance

import (
	"fmt"
	"log"
	"math/rand"

	"stardrift.io/internal/persistence/cache"
	"stardrift.io/internal/persistence/store"
	"stardrift.io/internal/protocol"
	"stardrift.io/internal/sim/galaxy"
	"stardrift.io/internal/sim/player"
	"stardrift.io/internal/sim/tuning"
)

type Instance struct {
	galaxy  *galaxy.Galaxy
	bodies  *cache.BodyCache
	players *cache.PlayerCache
	store   *store.Store

	rng  *rand.Rand
	tune tuning.Tuning
	log  *log.Logger
}

// Open creates or opens the instance database and its caches. A store that
// cannot be opened aborts startup.
func Open(dbPath string, tune tuning.Tuning, seed int64, logger *log.Logger) (*Instance, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Instance{
		galaxy:  galaxy.New(),
		bodies:  cache.NewBodyCache(st),
		players: cache.NewPlayerCache(st, logger),
		store:   st,
		rng:     rand.New(rand.NewSource(seed)),
		tune:    tune,
		log:     logger,
	}, nil
}

func (in *Instance) Close() error { return in.store.Close() }

// Galaxy exposes the live working set for inspection.
func (in *Instance) Galaxy() *galaxy.Galaxy { return in.galaxy }

func (in *Instance) PlayerCount() int { return in.players.Len() }

// Update advances one simulation tick: orbits first, then the body cache
// re-sync, then every resident player's action/state step against the
// post-update world.
func (in *Instance) Update(delta float64) {
	in.galaxy.Advance(delta)
	in.bodies.Sync(in.galaxy.All())

	in.players.Each(func(p *player.Player) {
		env := in.galaxy.QuerySphere(p.Coords, in.tune.AOIRadius)
		p.Step(delta, env, in.tune.ShipSpeed)
	})
}

// SaveAll flushes both caches to storage.
func (in *Instance) SaveAll() error {
	if err := in.bodies.SaveAll(); err != nil {
		return fmt.Errorf("save bodies: %w", err)
	}
	if err := in.players.SaveAll(); err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	return nil
}

// Leave persists and evicts a disconnecting player.
func (in *Instance) Leave(id uint32) error {
	in.log.Printf("leave for player %d", id)
	return in.players.RemoveAndPersist(id)
}

// Authenticate resolves a nickname to a resident player and hands back the
// session's channel endpoints. A first login generates a fresh star system;
// a returning player gets its last system loaded back into the galaxy.
func (in *Instance) Authenticate(nickname string) (uint32, chan<- protocol.Action, <-chan protocol.Game, error) {
	known, err := in.players.CanLogin(nickname)
	if err != nil {
		return 0, nil, nil, err
	}

	var p *player.Player
	if known {
		p, err = in.login(nickname)
	} else {
		p, err = in.newPlayer(nickname)
	}
	if err != nil {
		return 0, nil, nil, err
	}
	return p.ID, p.ActionSender(), p.StateReceiver(), nil
}

func (in *Instance) newPlayer(nickname string) (*player.Player, error) {
	in.log.Printf("new player %q, generating star system", nickname)

	offset := in.randSpherical(1000, 100000).Cartesian()
	starID, err := in.GenerateSystem(offset)
	if err != nil {
		return nil, err
	}

	p, err := in.players.NewPlayer(nickname)
	if err != nil {
		return nil, err
	}
	p.Coords = offset
	p.CurrentSystem = starID
	return p, nil
}

func (in *Instance) login(nickname string) (*player.Player, error) {
	p, err := in.players.Load(nickname)
	if err != nil {
		return nil, err
	}

	star, err := in.bodies.Load(p.CurrentSystem)
	if err != nil {
		in.players.Remove(p.ID)
		return nil, fmt.Errorf("load system %d: %w", p.CurrentSystem, err)
	}
	descendants, err := in.bodies.LoadDescendants(star.ID)
	if err != nil {
		in.players.Remove(p.ID)
		return nil, fmt.Errorf("load system %d bodies: %w", star.ID, err)
	}

	in.galaxy.Insert(star)
	for _, b := range descendants {
		in.galaxy.Insert(b)
	}
	if err := in.galaxy.ValidateChains(galaxy.MaxGravityHops); err != nil {
		in.players.Remove(p.ID)
		return nil, fmt.Errorf("stored galaxy integrity: %w", err)
	}
	return p, nil
}
