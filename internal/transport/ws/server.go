package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket sessions. TLS termination, if
// any, happens in front of it.
type Server struct {
	world World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(world World, logger *log.Logger) *Server {
	return &Server{
		world: world,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		s.log.Printf("accept from %s", r.RemoteAddr)
		newSession(conn, s.world, s.log).run()
	}
}
