package multiplayer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brensch/tetrecs/game"
)

// ErrStarved is returned when a piece is needed and the server has not
// delivered one within the starvation timeout. The game cannot continue
// without desyncing from the other players.
var ErrStarved = errors.New("multiplayer: piece queue starved")

// ReadyThreshold is how many ids must be buffered before a game can start.
const ReadyThreshold = 3

// Sender writes one protocol message.
type Sender interface {
	Send(msg string) error
}

// NetSource is a PieceSource fed by PIECE messages from the server. Deliver
// may be called from any goroutine; Next is called by the engine.
type NetSource struct {
	mu      sync.Mutex
	queue   []int
	ready   chan struct{}
	isReady bool
	signal  chan struct{}

	sender  Sender
	timeout time.Duration
}

// NewNetSource requests pieces through sender. Next waits up to
// starveTimeout for a delivery when the queue is empty.
func NewNetSource(sender Sender, starveTimeout time.Duration) *NetSource {
	return &NetSource{
		ready:   make(chan struct{}),
		signal:  make(chan struct{}, 1),
		sender:  sender,
		timeout: starveTimeout,
	}
}

// Deliver appends a piece id received from the server.
func (s *NetSource) Deliver(id int) error {
	if id < 0 || id >= game.PieceCount {
		return fmt.Errorf("%w: piece id %d", ErrMalformed, id)
	}
	s.mu.Lock()
	s.queue = append(s.queue, id)
	if !s.isReady && len(s.queue) >= ReadyThreshold {
		s.isReady = true
		close(s.ready)
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return nil
}

// Ready is closed once ReadyThreshold ids have been buffered.
func (s *NetSource) Ready() <-chan struct{} { return s.ready }

func (s *NetSource) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReady
}

// Len is the number of buffered ids.
func (s *NetSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Next requests a replacement id from the server and then takes the oldest
// buffered id. It fails with ErrStarved if the queue stays empty for the
// starvation timeout.
func (s *NetSource) Next() (game.Piece, error) {
	if err := s.sender.Send(PieceRequest); err != nil {
		return game.Piece{}, fmt.Errorf("request piece: %w", err)
	}

	if id, ok := s.pop(); ok {
		return game.CreatePiece(id), nil
	}
	if s.timeout <= 0 {
		return game.Piece{}, ErrStarved
	}

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	for {
		select {
		case <-s.signal:
			if id, ok := s.pop(); ok {
				return game.CreatePiece(id), nil
			}
		case <-deadline.C:
			if id, ok := s.pop(); ok {
				return game.CreatePiece(id), nil
			}
			return game.Piece{}, fmt.Errorf("%w after %s", ErrStarved, s.timeout)
		}
	}
}

func (s *NetSource) pop() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, false
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, true
}
