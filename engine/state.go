// Package engine runs a single tetrecs game: piece placement, line clearing,
// scoring and the countdown that costs a life when it runs out.
//
// An Engine is not safe for concurrent use. Session owns one and serialises
// user actions, countdown expiries and network callbacks onto one goroutine.
package engine

import (
	"fmt"
	"time"

	"github.com/brensch/tetrecs/game"
)

// Status is the engine lifecycle: Uninitialized -> Running -> GameOver.
type Status int

const (
	StatusUninitialized Status = iota
	StatusRunning
	StatusGameOver
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusRunning:
		return "running"
	case StatusGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is an immutable snapshot of a game. Grid is a private copy.
type State struct {
	Status     Status
	Score      int
	HighScore  int
	Lives      int
	Level      int
	Multiplier int
	Current    game.Piece
	Next       game.Piece
	Grid       *game.Grid
}

// Placement is the outcome of PlaceAt. Placed is false when the piece did not
// fit; nothing else changed in that case.
type Placement struct {
	Placed  bool
	X       int
	Y       int
	Piece   game.Piece
	Lines   int
	Blocks  int
	Points  int
	Cleared []game.Point
	State   State
}

// Listener receives engine events. Any field may be nil. Callbacks run on the
// goroutine that drives the engine and must not call back into it except for
// Snapshot.
type Listener struct {
	OnNextPiece    func(current, next game.Piece)
	OnLinesCleared func(cells []game.Point)
	OnTick         func(delay time.Duration)
	OnGameOver     func(final State)

	// Cues for presentation and audio.
	OnPlaced   func(p Placement)
	OnRejected func(x, y int)
	OnLifeLost func(s State)
}
