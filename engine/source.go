package engine

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/brensch/tetrecs/game"
)

// ErrSourceExhausted is returned by SequenceSource once every id has been drawn.
var ErrSourceExhausted = errors.New("engine: piece sequence exhausted")

// RandomSource draws every piece uniformly and independently from the catalog.
type RandomSource struct {
	rng *rand.Rand
}

// NewRandomSource uses rng for draws. If rng is nil a randomly seeded generator is used.
func NewRandomSource(rng *rand.Rand) *RandomSource {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &RandomSource{rng: rng}
}

func (s *RandomSource) Next() (game.Piece, error) {
	return game.CreatePiece(s.rng.Intn(game.PieceCount)), nil
}

// SequenceSource replays a fixed list of piece ids and then fails with
// ErrSourceExhausted. It is used for replays and scripted games.
type SequenceSource struct {
	ids []int
	pos int
}

func NewSequenceSource(ids ...int) *SequenceSource {
	return &SequenceSource{ids: append([]int(nil), ids...)}
}

func (s *SequenceSource) Next() (game.Piece, error) {
	if s.pos >= len(s.ids) {
		return game.Piece{}, ErrSourceExhausted
	}
	id := s.ids[s.pos]
	s.pos++
	if id < 0 || id >= game.PieceCount {
		return game.Piece{}, fmt.Errorf("sequence piece %d out of range", id)
	}
	return game.CreatePiece(id), nil
}

// Remaining is the number of ids not yet drawn.
func (s *SequenceSource) Remaining() int { return len(s.ids) - s.pos }
