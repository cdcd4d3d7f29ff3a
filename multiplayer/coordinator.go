package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/tetrecs/engine"
)

var (
	// ErrNotReady is returned when the server does not deliver enough pieces
	// to start within the ready timeout.
	ErrNotReady = errors.New("multiplayer: piece queue not ready")
	// ErrServerClosed is returned when the server ends the connection while
	// the game is still running.
	ErrServerClosed = errors.New("multiplayer: server closed connection")
)

// Transport carries protocol messages to and from the server.
type Transport interface {
	Sender
	ReadLoop(ctx context.Context, fn func(string)) error
	Close() error
}

// Config holds coordinator configuration
type Config struct {
	Name           string
	Engine         engine.Config
	InitialCredits int           // PIECE requests sent before the game starts
	ReadyTimeout   time.Duration // how long to wait for the first pieces
	StarveTimeout  time.Duration // how long Next waits on an empty queue
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Engine:         engine.DefaultConfig(),
		InitialCredits: 10,
		ReadyTimeout:   10 * time.Second,
		StarveTimeout:  5 * time.Second,
	}
}

// Coordinator runs one multiplayer game. It feeds the engine from the
// server's piece stream, reports every score change, keeps the leaderboard
// current and announces the local player's elimination exactly once.
type Coordinator struct {
	cfg       Config
	transport Transport
	source    *NetSource
	board     *Leaderboard
	session   *engine.Session
	log       *slog.Logger

	started chan struct{}
	dieOnce sync.Once
}

// New builds a coordinator over an open transport. Extra engine options
// (listeners, logger) are passed through to the session.
func New(cfg Config, t Transport, log *slog.Logger, opts ...engine.Option) *Coordinator {
	if cfg.InitialCredits <= 0 {
		cfg.InitialCredits = DefaultConfig().InitialCredits
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		cfg:       cfg,
		transport: t,
		board:     NewLeaderboard(),
		log:       log.With("component", "multiplayer", "player", cfg.Name),
		started:   make(chan struct{}),
	}
	c.source = NewNetSource(t, cfg.StarveTimeout)

	all := make([]engine.Option, 0, len(opts)+3)
	all = append(all, engine.WithLogger(log), engine.WithScoreSink(c))
	all = append(all, opts...)
	all = append(all, engine.WithListener(engine.Listener{
		OnGameOver: func(engine.State) { c.die() },
	}))
	c.session = engine.NewSession(cfg.Engine, c.source, all...)
	return c
}

func (c *Coordinator) Session() *engine.Session { return c.session }
func (c *Coordinator) Leaderboard() *Leaderboard { return c.board }
func (c *Coordinator) Source() *NetSource { return c.source }

// Started is closed once the engine is running.
func (c *Coordinator) Started() <-chan struct{} { return c.started }

// ReportScore sends the absolute score to the server.
func (c *Coordinator) ReportScore(score int) {
	if err := c.transport.Send(FormatScore(score)); err != nil {
		c.log.Warn("failed to report score", "score", score, "err", err)
	}
}

// RequestScores asks the server for a fresh leaderboard snapshot.
func (c *Coordinator) RequestScores() error {
	return c.transport.Send(ScoresRequest)
}

// HandleMessage applies one inbound message. Malformed messages are logged
// and dropped without touching any state.
func (c *Coordinator) HandleMessage(raw string) {
	msg, err := Parse(raw)
	if err != nil {
		c.log.Warn("dropping message", "raw", raw, "err", err)
		return
	}
	switch msg.Kind {
	case KindPiece:
		if err := c.source.Deliver(msg.PieceID); err != nil {
			c.log.Warn("dropping piece", "id", msg.PieceID, "err", err)
		}
	case KindScores:
		c.board.Replace(msg.Scores)
	case KindDieNotice:
		if c.board.MarkDead(msg.Name) {
			c.log.Info("player eliminated", "name", msg.Name)
		}
	case KindIgnored:
		c.log.Debug("ignoring message", "verb", msg.Verb)
	default:
		c.log.Debug("unexpected client verb from server", "verb", msg.Verb)
	}
}

// Quit ends the game as if the player pressed escape. Run then sends DIE and
// returns nil.
func (c *Coordinator) Quit(ctx context.Context) error {
	return c.session.Stop(ctx)
}

// Run plays one game to completion. It returns nil when the game ends
// normally (game over or Quit), an error wrapping ErrStarved if the piece
// stream dried up, and ErrNotReady or a transport error if the game could not
// start or the connection was lost. DIE is always sent and the transport is
// always closed before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.transport.ReadLoop(readCtx, c.HandleMessage)
	}()

	err := c.play(ctx, readErr)
	c.die()
	cancelRead()
	if cerr := c.transport.Close(); cerr != nil {
		c.log.Debug("close transport", "err", cerr)
	}
	return err
}

func (c *Coordinator) play(ctx context.Context, readErr <-chan error) error {
	for i := 0; i < c.cfg.InitialCredits; i++ {
		if err := c.transport.Send(PieceRequest); err != nil {
			return fmt.Errorf("request initial pieces: %w", err)
		}
	}
	if err := c.RequestScores(); err != nil {
		return fmt.Errorf("request scores: %w", err)
	}

	if err := c.waitReady(ctx, readErr); err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.session.Run(ctx) }()

	if err := c.session.Start(ctx); err != nil {
		<-runErr
		return fmt.Errorf("start game: %w", err)
	}
	close(c.started)
	c.log.Info("game started", "buffered", c.source.Len())

	select {
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("game aborted: %w", err)
		}
		return nil
	case err := <-readErr:
		c.session.Stop(context.Background())
		<-runErr
		if err == nil {
			return ErrServerClosed
		}
		return fmt.Errorf("connection lost: %w", err)
	}
}

func (c *Coordinator) waitReady(ctx context.Context, readErr <-chan error) error {
	timeout := c.cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ReadyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.source.Ready():
		return nil
	case err := <-readErr:
		if err == nil {
			return ErrServerClosed
		}
		return fmt.Errorf("connection lost before start: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: %d of %d pieces after %s", ErrNotReady, c.source.Len(), ReadyThreshold, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) die() {
	c.dieOnce.Do(func() {
		if err := c.transport.Send(Die); err != nil {
			c.log.Warn("failed to send DIE", "err", err)
			return
		}
		c.log.Info("sent DIE")
	})
}
