package server

import (
	"context"
	"errors"

	"go.uber.org/multierr"
)

// ErrNotRunning is returned by Exec when the loop does not pick the command up in time.
var ErrNotRunning = errors.New("server: loop is not servicing commands")

// command is work another goroutine asks the loop to do.
type command struct {
	fn    func(s *Server) (any, error)
	reply chan commandResult
}

type commandResult struct {
	value any
	err   error
}

// Exec runs fn on the loop goroutine during its next iteration and waits for
// the result. It gives up when ctx is done.
func (s *Server) Exec(ctx context.Context, fn func(s *Server) (any, error)) (any, error) {
	cmd := command{fn: fn, reply: make(chan commandResult, 1)}
	select {
	case s.inbox <- cmd:
	case <-ctx.Done():
		return nil, multierr.Append(ErrNotRunning, ctx.Err())
	}
	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, multierr.Append(ErrNotRunning, ctx.Err())
	}
}

// drainInbox runs every queued command without blocking.
func (s *Server) drainInbox() {
	for {
		select {
		case cmd := <-s.inbox:
			v, err := cmd.fn(s)
			cmd.reply <- commandResult{value: v, err: err}
		default:
			return
		}
	}
}
