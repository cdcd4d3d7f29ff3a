package engine

import (
	"context"
	"errors"
	"log/slog"
)

// ErrSessionClosed is returned for work submitted after Run has returned.
var ErrSessionClosed = errors.New("engine: session closed")

const inboxSize = 64

// Session owns an Engine and a Countdown and is the single consumer of an
// inbox. User actions, countdown expiries and network callbacks all reach the
// engine through the inbox, so the engine is only touched by Run's goroutine.
type Session struct {
	eng       *Engine
	countdown *Countdown
	inbox     chan func()
	done      chan struct{}
	log       *slog.Logger
}

// NewSession builds an engine wired to a real countdown. Any WithScheduler
// option is overridden.
func NewSession(cfg Config, source PieceSource, opts ...Option) *Session {
	s := &Session{
		inbox: make(chan func(), inboxSize),
		done:  make(chan struct{}),
	}
	s.countdown = NewCountdown(s.expire)

	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithScheduler(s.countdown))
	s.eng = New(cfg, source, all...)
	s.log = s.eng.log
	return s
}

// expire runs on the timer goroutine and hands the tick to the inbox.
func (s *Session) expire(gen uint64) {
	s.Post(func(e *Engine) {
		if !s.countdown.Current(gen) {
			s.log.Debug("stale countdown dropped", "gen", gen)
			return
		}
		if _, err := e.Expire(); err != nil && !errors.Is(err, ErrNotRunning) {
			s.log.Warn("countdown expiry failed", "err", err)
		}
	})
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Engine returns the owned engine. It must only be used from inside Do/Post
// callbacks, listeners, or after Run has returned.
func (s *Session) Engine() *Engine { return s.eng }

// Post queues fn without waiting for it to run. It reports false if the
// session has already finished.
func (s *Session) Post(fn func(*Engine)) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- func() { fn(s.eng) }:
		return true
	case <-s.done:
		return false
	}
}

// Do runs fn on the session goroutine and waits for its result.
func (s *Session) Do(ctx context.Context, fn func(*Engine) error) error {
	errc := make(chan error, 1)
	select {
	case s.inbox <- func() { errc <- fn(s.eng) }:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-s.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the inbox until ctx is cancelled or the game is over. It
// returns the error that aborted the game, if any.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.countdown.Stop()

	for {
		select {
		case <-ctx.Done():
			s.eng.Stop()
			return ctx.Err()
		case fn := <-s.inbox:
			fn()
			if s.eng.Status() == StatusGameOver {
				return s.eng.Err()
			}
		}
	}
}

func (s *Session) Start(ctx context.Context) error {
	return s.Do(ctx, func(e *Engine) error { return e.Start() })
}

func (s *Session) Place(ctx context.Context, x, y int) (Placement, error) {
	var p Placement
	err := s.Do(ctx, func(e *Engine) error {
		var err error
		p, err = e.PlaceAt(x, y)
		return err
	})
	return p, err
}

// Rotate turns the current piece by quarter turns, clockwise for positive
// values.
func (s *Session) Rotate(ctx context.Context, turns int) (State, error) {
	var st State
	err := s.Do(ctx, func(e *Engine) error {
		var err error
		st, err = e.RotateCurrentBy(turns)
		return err
	})
	return st, err
}

func (s *Session) Swap(ctx context.Context) (State, error) {
	var st State
	err := s.Do(ctx, func(e *Engine) error {
		var err error
		st, err = e.SwapPieces()
		return err
	})
	return st, err
}

// Snapshot returns the engine state. After Run has returned it reads the
// engine directly.
func (s *Session) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := s.Do(ctx, func(e *Engine) error {
		st = e.Snapshot()
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return s.eng.Snapshot(), nil
	}
	return st, err
}

// Stop ends the game. Stopping a finished session is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	err := s.Do(ctx, func(e *Engine) error {
		e.Stop()
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}
