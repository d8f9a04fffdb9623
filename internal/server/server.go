// Package server owns the run loop: it accepts connections, drives the
// fixed-period simulation tick and the slower persistence tick against the
// shared instance, and reacts to stop requests. The instance lock
// serializes exactly three things: the simulation tick, the persistence
// flush, and each session's authenticate/leave calls; all other session
// work runs outside it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"stardrift.io/internal/persistence/journal"
	"stardrift.io/internal/protocol"
	"stardrift.io/internal/sim/instance"
	"stardrift.io/internal/sim/tuning"
	"stardrift.io/internal/transport/ws"
)

type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string

	// DBPath locates the SQLite database; created when absent.
	DBPath string

	// Seed feeds procedural generation.
	Seed int64

	Tune tuning.Tuning

	// Journal receives per-tick records; nil disables journaling.
	Journal *journal.Writer

	Logger *log.Logger
}

type Server struct {
	cfg Config

	mu   sync.Mutex
	inst *instance.Instance

	tick uint64

	boundAddr string
	ready     chan struct{}
}

func New(cfg Config) (*Server, error) {
	inst, err := instance.Open(cfg.DBPath, cfg.Tune, cfg.Seed, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	return &Server{
		cfg:   cfg,
		inst:  inst,
		ready: make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address; valid after Ready.
func (s *Server) Addr() string { return s.boundAddr }

// lockedWorld hands sessions a view of the instance serialized against the
// tick loop. Sessions never reach into the galaxy or caches directly.
type lockedWorld struct {
	s *Server
}

func (w lockedWorld) Authenticate(nickname string) (uint32, chan<- protocol.Action, <-chan protocol.Game, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.inst.Authenticate(nickname)
}

func (w lockedWorld) Leave(id uint32) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.inst.Leave(id)
}

// Run drives the server until ctx is cancelled or stop receives. The stop
// signal is polled at tick boundaries: the in-flight tick finishes, state
// is persisted, then the loop halts. Live sessions wind down on their own
// as their transports close.
func (s *Server) Run(ctx context.Context, stop <-chan struct{}) error {
	logger := s.cfg.Logger
	defer s.inst.Close()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.boundAddr = ln.Addr().String()
	close(s.ready)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(lockedWorld{s}, logger).Handler())
	httpSrv := &http.Server{Handler: mux}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http serve: %v", err)
		}
	}()

	tickPeriod := time.Duration(s.cfg.Tune.TickMs) * time.Millisecond
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	saveTicker := time.NewTicker(time.Duration(s.cfg.Tune.SaveEverySec) * time.Second)
	defer saveTicker.Stop()

	logger.Printf("server loop starts, listening on %s", s.boundAddr)

	ref := time.Now()
	stopping := false
	for {
		select {
		case <-ctx.Done():
			s.persist(logger)
			_ = httpSrv.Shutdown(context.Background())
			return ctx.Err()

		case <-stop:
			logger.Printf("stop signal received")
			stopping = true

		case now := <-ticker.C:
			delta := now.Sub(ref)
			slow := delta > tickPeriod+tickPeriod/2
			if slow {
				logger.Printf("server loop is too slow: %.3fs", delta.Seconds())
			}
			ref = now

			start := time.Now()
			s.mu.Lock()
			s.inst.Update(delta.Seconds())
			players := s.inst.PlayerCount()
			bodies := s.inst.Galaxy().Len()
			s.mu.Unlock()

			s.tick++
			if err := s.cfg.Journal.Write(journal.Entry{
				Tick:       s.tick,
				DurationMs: float64(time.Since(start).Microseconds()) / 1000,
				Players:    players,
				Bodies:     bodies,
				Slow:       slow,
			}); err != nil {
				logger.Printf("journal write: %v", err)
			}

			if stopping {
				s.persist(logger)
				_ = httpSrv.Shutdown(context.Background())
				logger.Printf("server loop stops now")
				return nil
			}

		case <-saveTicker.C:
			s.persist(logger)
		}
	}
}

// persist flushes both caches. A failed save is logged and the server
// keeps running: losing the window since the last flush beats stalling
// the tick loop.
func (s *Server) persist(logger *log.Logger) {
	s.mu.Lock()
	err := s.inst.SaveAll()
	s.mu.Unlock()
	if err != nil {
		logger.Printf("save failed, continuing: %v", err)
	}
}
