// Package ws runs the per-connection session protocol: an authentication
// phase that must open with a Login action, then a gameplay phase
// multiplexing client actions and server state over the player's channel
// pair. Transport-level ping frames are answered transparently in both
// phases.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stardrift.io/internal/protocol"
)

var (
	// ErrNotTextMessage rejects a non-text data frame before login.
	ErrNotTextMessage = errors.New("not a text message")

	// ErrNotALoginAction rejects any first action other than Login.
	ErrNotALoginAction = errors.New("not a login action")
)

const writeTimeout = 5 * time.Second

// World is the slice of the instance a session is allowed to touch. The
// implementation serializes calls against the simulation tick.
type World interface {
	Authenticate(nickname string) (uint32, chan<- protocol.Action, <-chan protocol.Game, error)
	Leave(id uint32) error
}

// Session is one connection's protocol state machine. States:
// unauthenticated -> gameplay -> closed.
type Session struct {
	id    string
	conn  *websocket.Conn
	world World
	log   *log.Logger

	playerID  uint32
	leaveOnce sync.Once
}

func newSession(conn *websocket.Conn, world World, logger *log.Logger) *Session {
	return &Session{
		id:    uuid.NewString(),
		conn:  conn,
		world: world,
		log:   logger,
	}
}

func (s *Session) run() {
	defer s.conn.Close()

	actions, states, err := s.authenticate()
	if err != nil {
		s.log.Printf("session %s: auth failed: %v", s.id, err)
		return
	}
	s.log.Printf("session %s: player %d entering gameplay", s.id, s.playerID)
	s.gameplay(actions, states)
	s.log.Printf("session %s: player %d closed", s.id, s.playerID)
}

// authenticate reads frames until the connection either logs in or breaks
// protocol. Failures get a best-effort AuthResult with the reason before
// the connection closes.
func (s *Session) authenticate() (chan<- protocol.Action, <-chan protocol.Game, error) {
	mt, msg, err := s.conn.ReadMessage()
	if err != nil {
		return nil, nil, fmt.Errorf("read during auth: %w", err)
	}
	if mt != websocket.TextMessage {
		s.rejectAuth(ErrNotTextMessage.Error())
		return nil, nil, ErrNotTextMessage
	}

	act, err := protocol.DecodeAction(msg)
	if err != nil {
		s.rejectAuth("invalid JSON: " + err.Error())
		return nil, nil, fmt.Errorf("auth frame: %w", err)
	}
	if act.Login == nil {
		s.rejectAuth(ErrNotALoginAction.Error())
		return nil, nil, ErrNotALoginAction
	}

	s.log.Printf("session %s: login request for %q", s.id, act.Login.Nickname)
	id, actions, states, err := s.world.Authenticate(act.Login.Nickname)
	if err != nil {
		s.rejectAuth(err.Error())
		return nil, nil, err
	}
	s.playerID = id

	if err := s.writeJSON(protocol.AuthResult{
		Success: true,
		Message: strconv.FormatUint(uint64(id), 10),
	}); err != nil {
		s.log.Printf("session %s: auth result send: %v", s.id, err)
	}
	return actions, states, nil
}

// rejectAuth attempts to tell the client why authentication failed. Send
// failures are logged, never escalated; the connection closes either way.
func (s *Session) rejectAuth(reason string) {
	if err := s.writeJSON(protocol.AuthResult{Success: false, Message: reason}); err != nil {
		s.log.Printf("session %s: auth reject send: %v", s.id, err)
	}
}

// gameplay bridges the transport to the player's channel pair: one
// goroutine pumps outbound states onto the wire, the calling goroutine
// forwards inbound actions. Any transport failure, close frame, or
// protocol violation takes the disconnect path exactly once.
func (s *Session) gameplay(actions chan<- protocol.Action, states <-chan protocol.Game) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				if err := s.writeJSON(st); err != nil {
					s.log.Printf("session %s: state send to player %d: %v", s.id, s.playerID, err)
					s.leave()
					cancel()
					return
				}
			}
		}
	}()

	for {
		mt, msg, err := s.conn.ReadMessage()
		if err != nil {
			// Covers transport errors and close frames alike.
			s.leave()
			return
		}
		if mt != websocket.TextMessage {
			s.log.Printf("session %s: unexpected frame type %d, closing", s.id, mt)
			s.leave()
			return
		}
		act, err := protocol.DecodeAction(msg)
		if err != nil {
			s.log.Printf("session %s: bad action dropped: %v", s.id, err)
			continue
		}
		select {
		case actions <- act:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) leave() {
	s.leaveOnce.Do(func() {
		if s.playerID == 0 {
			return
		}
		if err := s.world.Leave(s.playerID); err != nil {
			s.log.Printf("session %s: leave player %d: %v", s.id, s.playerID, err)
		}
	})
}

func (s *Session) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}
