package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"stardrift.io/internal/protocol"
	"stardrift.io/internal/sim/galaxy"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/ws", "ws url")
		name = flag.String("name", "bot", "player nickname")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	login := protocol.Action{Login: &protocol.Login{Nickname: *name}}
	if err := conn.WriteJSON(login); err != nil {
		logger.Fatalf("send login: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read auth result: %v", err)
	}
	var auth protocol.AuthResult
	if err := json.Unmarshal(msg, &auth); err != nil {
		logger.Fatalf("decode auth result: %v", err)
	}
	if !auth.Success {
		logger.Fatalf("login rejected: %s", auth.Message)
	}
	logger.Printf("logged in as %q, id %s", *name, auth.Message)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	// Latest known bodies, keyed by id, refreshed from Env chunks.
	bodies := make(map[uint32]protocol.BodyState)
	states := make(chan protocol.Game, 64)
	go func() {
		defer close(states)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			game, err := protocol.DecodeGame(msg)
			if err != nil {
				continue
			}
			states <- game
		}
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	steer := time.NewTicker(time.Second)
	defer steer.Stop()

	n := 0
	for {
		select {
		case <-stop:
			return

		case game, ok := <-states:
			if !ok {
				return
			}
			if game.Player != nil {
				logger.Printf("at %v", game.Player.Coords)
			}
			for _, b := range game.Env {
				bodies[b.ID] = b
			}

		case <-steer.C:
			act := protocol.Action{ShipState: &protocol.ShipState{
				ThrottleUp: true,
				Direction: [3]float64{
					rng.Float64()*2 - 1,
					rng.Float64()*2 - 1,
					rng.Float64()*2 - 1,
				},
			}}
			if err := conn.WriteJSON(act); err != nil {
				logger.Printf("send ship state: %v", err)
				return
			}

			n++
			if n%10 == 0 {
				if ping, ok := pickPing(bodies); ok {
					if err := conn.WriteJSON(protocol.Action{Ping: &ping}); err != nil {
						logger.Printf("send ping: %v", err)
						return
					}
				}
			}
		}
	}
}

// pickPing reports an orbiting body's observed azimuth around its gravity
// center, so the server can estimate this connection's lag.
func pickPing(bodies map[uint32]protocol.BodyState) (protocol.Ping, bool) {
	for _, b := range bodies {
		if b.RotatingSpeed == 0 || b.GravityCenter == b.ID {
			continue
		}
		center, ok := bodies[b.GravityCenter]
		if !ok {
			continue
		}
		rel := galaxy.Vec3{
			X: b.Coords[0] - center.Coords[0],
			Y: b.Coords[1] - center.Coords[1],
			Z: b.Coords[2] - center.Coords[2],
		}
		return protocol.Ping{
			EntityID: b.ID,
			Angle:    galaxy.SphericalFromCartesian(rel).Phi,
		}, true
	}
	return protocol.Ping{}, false
}
