package client

import (
	"errors"
	"math/rand/v2"

	"tetriq/game"
	"tetriq/logger"
)

// ErrDisplayClosed is returned by a Display that has been shut.
var ErrDisplayClosed = errors.New("client: display closed")

// Input is one thing the player asked for.
type Input struct {
	Action     game.Action
	UsePowerUp bool
	Target     uint64
}

// Display renders games and turns device input into Inputs. Returning
// ErrDisplayClosed from any method ends the client loop.
type Display interface {
	LoadGame(view game.View, playerCount int) error
	Draw(view game.View, others []game.View) error
	HandleEvents(view game.View) ([]Input, error)
}

// HeadlessDisplay draws nothing. It logs state changes and, with autoplay,
// plays random moves so a client can run unattended.
type HeadlessDisplay struct {
	autoplay bool
	rng      *rand.Rand
	// one move every actEvery frames
	actEvery int

	frames   int
	gameOver bool
	closed   bool
}

var autoplayActions = []game.Action{
	game.ActionMoveLeft,
	game.ActionMoveRight,
	game.ActionRotateLeft,
	game.ActionRotateRight,
	game.ActionMoveDown,
	game.ActionDrop,
}

// NewHeadlessDisplay builds a display whose autoplay moves are drawn from seed.
func NewHeadlessDisplay(autoplay bool, seed uint64) *HeadlessDisplay {
	return &HeadlessDisplay{
		autoplay: autoplay,
		rng:      rand.New(rand.NewPCG(seed, seed^0x5DEECE66D)),
		actEvery: 10,
	}
}

// Close makes the next call fail with ErrDisplayClosed.
func (d *HeadlessDisplay) Close() { d.closed = true }

// LoadGame logs the new session.
func (d *HeadlessDisplay) LoadGame(view game.View, playerCount int) error {
	if d.closed {
		return ErrDisplayClosed
	}
	logger.Log.Infof("game loaded: %dx%d, %d players", view.Width(), view.Height(), playerCount)
	d.gameOver = view.GameOver()
	return nil
}

// Draw counts frames and logs game over transitions.
func (d *HeadlessDisplay) Draw(view game.View, others []game.View) error {
	if d.closed {
		return ErrDisplayClosed
	}
	d.frames++
	if over := view.GameOver(); over != d.gameOver {
		d.gameOver = over
		if over {
			logger.Log.Infof("game over after %d frames", d.frames)
		} else {
			logger.Log.Info("new round")
		}
	}
	return nil
}

// HandleEvents returns one random move every few frames when autoplay is on.
func (d *HeadlessDisplay) HandleEvents(view game.View) ([]Input, error) {
	if d.closed {
		return nil, ErrDisplayClosed
	}
	if !d.autoplay || view.GameOver() || d.frames%d.actEvery != 0 {
		return nil, nil
	}
	a := autoplayActions[d.rng.IntN(len(autoplayActions))]
	return []Input{{Action: a}}, nil
}
