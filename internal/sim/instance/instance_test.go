package instance

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"stardrift.io/internal/persistence/cache"
	"stardrift.io/internal/protocol"
	"stardrift.io/internal/sim/galaxy"
	"stardrift.io/internal/sim/player"
	"stardrift.io/internal/sim/tuning"
)

func openTestInstance(t *testing.T, path string) *Instance {
	t.Helper()
	in, err := Open(path, tuning.Defaults(), 42, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open instance: %v", err)
	}
	t.Cleanup(func() { _ = in.Close() })
	return in
}

// drainGames empties a session's state channel, returning the last own
// position seen and the union of env body ids.
func drainGames(t *testing.T, states <-chan protocol.Game) (last *protocol.PlayerState, envIDs map[uint32]bool, maxChunk int) {
	t.Helper()
	envIDs = map[uint32]bool{}
	for {
		select {
		case st := <-states:
			switch {
			case st.Player != nil:
				last = st.Player
			case st.Env != nil:
				if len(st.Env) > maxChunk {
					maxChunk = len(st.Env)
				}
				for _, b := range st.Env {
					envIDs[b.ID] = true
				}
			default:
				t.Fatal("empty game state")
			}
		default:
			return
		}
	}
}

func TestFirstLoginGeneratesSystem(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))

	id, actions, states, err := in.Authenticate("nostromo")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id == 0 {
		t.Fatal("assigned player id 0")
	}
	if actions == nil || states == nil {
		t.Fatal("missing channel endpoints")
	}

	// A fresh system has at least a star, the minimum planets, and the
	// minimum asteroid belt.
	if n := in.Galaxy().Len(); n < 1+minPlanets+minAsteroids {
		t.Fatalf("generated galaxy holds %d bodies", n)
	}
	if in.PlayerCount() != 1 {
		t.Fatalf("player count %d, want 1", in.PlayerCount())
	}
}

func TestDuplicateResidentLoginFails(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))

	if _, _, _, err := in.Authenticate("ash"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, _, _, err := in.Authenticate("ash"); !errors.Is(err, cache.ErrAlreadyAuthenticated) {
		t.Fatalf("second login: got %v, want ErrAlreadyAuthenticated", err)
	}
}

func TestInvalidNicknameFails(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))
	if _, _, _, err := in.Authenticate(""); !errors.Is(err, cache.ErrInvalidNickname) {
		t.Fatalf("got %v, want ErrInvalidNickname", err)
	}
}

func TestDistinctPlayersGetDistinctSystems(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))

	idA, _, _, err := in.Authenticate("parker")
	if err != nil {
		t.Fatalf("login a: %v", err)
	}
	sizeAfterA := in.Galaxy().Len()

	idB, _, _, err := in.Authenticate("brett")
	if err != nil {
		t.Fatalf("login b: %v", err)
	}
	if idA == idB {
		t.Fatalf("both players got id %d", idA)
	}
	if in.Galaxy().Len() <= sizeAfterA {
		t.Fatal("second login did not generate a second system")
	}
}

func TestRelogRestoresPlayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galaxy.db")
	in := openTestInstance(t, path)

	id, _, _, err := in.Authenticate("ripley")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	var saved *player.Player
	in.players.Each(func(p *player.Player) { saved = p })
	coords := saved.Coords
	system := saved.CurrentSystem

	if err := in.Leave(id); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if in.PlayerCount() != 0 {
		t.Fatal("player resident after leave")
	}

	id2, _, _, err := in.Authenticate("ripley")
	if err != nil {
		t.Fatalf("relog: %v", err)
	}
	if id2 != id {
		t.Fatalf("relog assigned id %d, want %d", id2, id)
	}
	in.players.Each(func(p *player.Player) { saved = p })
	if saved.Coords != coords || saved.CurrentSystem != system {
		t.Fatalf("relog state %+v / system %d, want %+v / %d", saved.Coords, saved.CurrentSystem, coords, system)
	}
}

func TestRelogAfterRestartReloadsSystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galaxy.db")

	in := openTestInstance(t, path)
	id, _, _, err := in.Authenticate("kane")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	bodyCount := in.Galaxy().Len()
	if err := in.Leave(id); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := in.SaveAll(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	in2 := openTestInstance(t, path)
	if in2.Galaxy().Len() != 0 {
		t.Fatal("fresh instance started with resident bodies")
	}
	id2, _, _, err := in2.Authenticate("kane")
	if err != nil {
		t.Fatalf("relog after restart: %v", err)
	}
	if id2 != id {
		t.Fatalf("relog assigned id %d, want %d", id2, id)
	}
	if in2.Galaxy().Len() != bodyCount {
		t.Fatalf("reloaded %d bodies, want %d", in2.Galaxy().Len(), bodyCount)
	}
}

func TestUpdateDeliversStateAndEnvironment(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))

	_, _, states, err := in.Authenticate("dallas")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	in.Update(0.1)

	last, envIDs, maxChunk := drainGames(t, states)
	if last == nil {
		t.Fatal("first tick delivered no own-position state")
	}
	if maxChunk > player.EnvChunkSize {
		t.Fatalf("env chunk of %d exceeds limit %d", maxChunk, player.EnvChunkSize)
	}
	// The whole home system sits inside the default area of interest.
	if want := in.Galaxy().Len(); len(envIDs) != want {
		t.Fatalf("environment covered %d bodies, want %d", len(envIDs), want)
	}
}

func TestUpdateAppliesThrottle(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))

	_, actions, states, err := in.Authenticate("lambert")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	in.Update(0.1)
	first, _, _ := drainGames(t, states)
	if first == nil {
		t.Fatal("no initial state")
	}

	actions <- protocol.Action{ShipState: &protocol.ShipState{
		ThrottleUp: true,
		Direction:  [3]float64{0, 1, 0},
	}}
	in.Update(0.5)

	moved, _, _ := drainGames(t, states)
	if moved == nil {
		t.Fatal("movement tick delivered no state")
	}
	want := [3]float64{first.Coords[0], first.Coords[1] + 50, first.Coords[2]}
	if moved.Coords != want {
		t.Fatalf("moved to %v, want %v", moved.Coords, want)
	}
}

func TestUpdateAdvancesOrbits(t *testing.T) {
	in := openTestInstance(t, filepath.Join(t.TempDir(), "galaxy.db"))

	if _, _, _, err := in.Authenticate("jones"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	var planetID uint32
	for _, b := range in.Galaxy().All() {
		if b.Type == galaxy.Planet {
			planetID = b.ID
			break
		}
	}
	before, _ := in.Galaxy().Get(planetID)
	in.Update(0.1)
	after, _ := in.Galaxy().Get(planetID)
	if before.Coords == after.Coords {
		t.Fatal("planet did not orbit")
	}
}
