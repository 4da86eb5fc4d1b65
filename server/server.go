// Package server runs the authoritative simulation: one loop goroutine owns
// every player and channel, polls the transport, services admin commands and
// ticks the channels at a fixed rate.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tetriq/game"
	"tetriq/logger"
	"tetriq/transport"
)

var (
	ErrPlayerNotFound  = errors.New("server: player not found")
	ErrChannelNotFound = errors.New("server: channel not found")
	ErrDefaultChannel  = errors.New("server: the default channel cannot be deleted")
)

// Host is the part of the transport the loop polls.
type Host interface {
	Service(timeout time.Duration) (transport.Event, bool)
}

// Options configures a Server. Zero values pick defaults where one exists.
type Options struct {
	GameWidth             int
	GameHeight            int
	Period                time.Duration
	MaxProtocolViolations int
	Seed                  uint64

	Clock    Clock
	Metrics  *Metrics
	Recorder Recorder
}

// noopRecorder drops round results when no recorder is configured.
type noopRecorder struct{}

func (noopRecorder) Record(RoundResult) {}

// Server owns the player table and the channels.
type Server struct {
	opts Options

	host     Host
	clock    Clock
	metrics  *Metrics
	recorder Recorder

	players      map[uint64]*Player
	byConn       map[transport.Conn]*Player
	nextPlayerID uint64

	// channels[0] is the default channel
	channels      []*Channel
	nextChannelID uint64

	inbox chan command
	seed  uint64
}

// New validates opts and builds a server with its default channel.
func New(host Host, opts Options) (*Server, error) {
	if host == nil {
		return nil, errors.New("server: nil host")
	}
	if _, err := game.New(opts.GameWidth, opts.GameHeight, 1); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("server: tick period %s", opts.Period)
	}
	if opts.MaxProtocolViolations <= 0 {
		opts.MaxProtocolViolations = 10
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	s := &Server{
		opts:     opts,
		host:     host,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		recorder: opts.Recorder,
		players:  make(map[uint64]*Player),
		byConn:   make(map[transport.Conn]*Player),
		inbox:    make(chan command, 16),
		seed:     opts.Seed,
	}
	s.channels = []*Channel{newChannel(s, 0)}
	s.metrics.Channels.Set(1)
	return s, nil
}

// Run drives the loop until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	logger.Log.Infof("server loop started: period=%s grid=%dx%d", s.opts.Period, s.opts.GameWidth, s.opts.GameHeight)
	p := newPacer(s.clock, s.opts.Period)
	for {
		behind, err := p.wait(ctx)
		if err != nil {
			logger.Log.Info("server loop stopped")
			return nil
		}
		if behind {
			logger.Log.Warn("main loop is falling behind")
			s.metrics.Behind.Inc()
		}
		start := time.Now()
		s.step(s.clock.Now())
		s.metrics.observeTick(time.Since(start))
	}
}

// step is one loop iteration: network, admin, then channels in order.
func (s *Server) step(now time.Time) {
	s.pollTransport()
	s.drainInbox()
	for _, c := range s.channels {
		c.Tick(now)
	}
}

// newGame draws a fresh game with its own piece sequence.
func (s *Server) newGame() (*game.State, error) {
	s.seed ^= s.seed << 13
	s.seed ^= s.seed >> 7
	s.seed ^= s.seed << 17
	return game.New(s.opts.GameWidth, s.opts.GameHeight, s.seed)
}

// Player looks up a connected player.
func (s *Server) Player(id uint64) (*Player, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	return p, nil
}

// DefaultChannel is the permanent channel new players land in.
func (s *Server) DefaultChannel() *Channel { return s.channels[0] }
