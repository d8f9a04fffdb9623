package cache

import (
	"errors"
	"fmt"
	"log"
	"unicode"
	"unicode/utf8"

	"stardrift.io/internal/persistence/store"
	"stardrift.io/internal/sim/galaxy"
	"stardrift.io/internal/sim/player"
)

var (
	// ErrInvalidNickname rejects empty or non-printable nicknames.
	ErrInvalidNickname = errors.New("invalid nickname")

	// ErrAlreadyAuthenticated rejects a nickname that is resident in
	// memory right now. Identity is the nickname, not the connection.
	ErrAlreadyAuthenticated = errors.New("player already authenticated")
)

type PlayerCache struct {
	cache map[uint32]*player.Player
	store *store.Store
	log   *log.Logger
}

func NewPlayerCache(st *store.Store, logger *log.Logger) *PlayerCache {
	return &PlayerCache{
		cache: make(map[uint32]*player.Player),
		store: st,
		log:   logger,
	}
}

func (c *PlayerCache) Len() int { return len(c.cache) }

// Get returns the resident player. It never loads.
func (c *PlayerCache) Get(id uint32) (*player.Player, error) {
	p, ok := c.cache[id]
	if !ok {
		return nil, fmt.Errorf("player %d: %w", id, store.ErrNotFound)
	}
	return p, nil
}

// Each visits every resident player.
func (c *PlayerCache) Each(fn func(*player.Player)) {
	for _, p := range c.cache {
		fn(p)
	}
}

func validNickname(nickname string) bool {
	if nickname == "" || !utf8.ValidString(nickname) {
		return false
	}
	for _, r := range nickname {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// CanLogin gates authentication: an invalid nickname or one that is
// already resident fails; otherwise known reports whether the nickname has
// a stored record (false means first login).
func (c *PlayerCache) CanLogin(nickname string) (known bool, err error) {
	if !validNickname(nickname) {
		return false, ErrInvalidNickname
	}
	for _, p := range c.cache {
		if p.Nickname == nickname {
			return false, ErrAlreadyAuthenticated
		}
	}
	_, known, err = c.store.PlayerByNickname(nickname)
	return known, err
}

// Load brings a stored player into memory with a fresh channel pair.
func (c *PlayerCache) Load(nickname string) (*player.Player, error) {
	row, ok, err := c.store.PlayerByNickname(nickname)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("player %q: %w", nickname, store.ErrNotFound)
	}

	p := player.New(row.Nickname, c.log)
	p.ID = row.ID
	p.Coords = galaxy.Vec3{X: row.Coords[0], Y: row.Coords[1], Z: row.Coords[2]}
	p.Direction = galaxy.Vec3{X: row.Direction[0], Y: row.Direction[1], Z: row.Direction[2]}
	p.CurrentSystem = row.CurrentSystem

	c.cache[p.ID] = p
	return p, nil
}

// NewPlayer creates a first-login player: storage assigns the id. The
// uniqueness check belongs to the caller (CanLogin); finding an existing
// row here is a caller error.
func (c *PlayerCache) NewPlayer(nickname string) (*player.Player, error) {
	if _, exists, err := c.store.PlayerByNickname(nickname); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("player %q already stored", nickname)
	}

	id, err := c.store.InsertPlayer(nickname)
	if err != nil {
		return nil, err
	}
	p := player.New(nickname, c.log)
	p.ID = id
	c.cache[id] = p
	return p, nil
}

func playerToRow(p *player.Player) store.PlayerRow {
	return store.PlayerRow{
		ID:            p.ID,
		Nickname:      p.Nickname,
		Coords:        p.Coords.Array(),
		Direction:     p.Direction.Array(),
		CurrentSystem: p.CurrentSystem,
	}
}

// Save flushes one resident player.
func (c *PlayerCache) Save(id uint32) error {
	p, ok := c.cache[id]
	if !ok {
		return fmt.Errorf("player %d: %w", id, store.ErrNotFound)
	}
	return c.store.UpsertPlayer(playerToRow(p))
}

// SaveAll flushes every resident player.
func (c *PlayerCache) SaveAll() error {
	for id := range c.cache {
		if err := c.Save(id); err != nil {
			return err
		}
	}
	return nil
}

// Remove evicts without persisting; used to unwind a failed login.
func (c *PlayerCache) Remove(id uint32) {
	delete(c.cache, id)
}

// RemoveAndPersist saves then evicts a disconnecting player, bounding
// resident memory to connected players.
func (c *PlayerCache) RemoveAndPersist(id uint32) error {
	if err := c.Save(id); err != nil {
		return err
	}
	delete(c.cache, id)
	return nil
}
