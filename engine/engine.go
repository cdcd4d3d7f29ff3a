package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brensch/tetrecs/game"
)

var (
	// ErrNotRunning is returned for actions attempted before Start or after game over.
	ErrNotRunning = errors.New("engine: game is not running")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("engine: game already started")
)

// StartingLives is the number of lives a new game begins with.
const StartingLives = 3

// Config holds the board size and starting counters.
type Config struct {
	Cols      int
	Rows      int
	Lives     int
	HighScore int // best score seen before this game, for display
}

// DefaultConfig returns the standard 5×5 board with three lives.
func DefaultConfig() Config {
	return Config{
		Cols:  5,
		Rows:  5,
		Lives: StartingLives,
	}
}

// PieceSource supplies the sequence of upcoming pieces.
type PieceSource interface {
	Next() (game.Piece, error)
}

// ScoreSink is told the absolute score after every change.
type ScoreSink interface {
	ReportScore(score int)
}

// Scheduler arms the countdown. Arm replaces any pending countdown. Stop is
// final.
type Scheduler interface {
	Arm(d time.Duration)
	Stop()
}

type noopScheduler struct{}

func (noopScheduler) Arm(time.Duration) {}
func (noopScheduler) Stop()             {}

// Option configures an Engine.
type Option func(*Engine)

// WithListener adds a listener. Listeners are notified in the order added.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

func WithScoreSink(s ScoreSink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithHighScore sets the best score seen before this game.
func WithHighScore(score int) Option {
	return func(e *Engine) { e.cfg.HighScore = score }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine is the game state machine. See the package doc for threading rules.
type Engine struct {
	cfg       Config
	grid      *game.Grid
	source    PieceSource
	sink      ScoreSink
	sched     Scheduler
	log       *slog.Logger
	listeners []Listener

	status     Status
	score      int
	lives      int
	level      int
	multiplier int
	current    game.Piece
	next       game.Piece
	err        error
}

// New creates an engine in the Uninitialized state.
func New(cfg Config, source PieceSource, opts ...Option) *Engine {
	if cfg.Lives <= 0 {
		cfg.Lives = StartingLives
	}
	e := &Engine{
		cfg:        cfg,
		grid:       game.NewGrid(cfg.Cols, cfg.Rows),
		source:     source,
		sched:      noopScheduler{},
		log:        slog.Default(),
		multiplier: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")
	return e
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status { return e.status }

// Err returns the error that aborted the game, if any.
func (e *Engine) Err() error { return e.err }

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	high := e.cfg.HighScore
	if e.score > high {
		high = e.score
	}
	return State{
		Status:     e.status,
		Score:      e.score,
		HighScore:  high,
		Lives:      e.lives,
		Level:      e.level,
		Multiplier: e.multiplier,
		Current:    e.current,
		Next:       e.next,
		Grid:       e.grid.Clone(),
	}
}

// Start deals the first two pieces and arms the countdown.
func (e *Engine) Start() error {
	if e.status != StatusUninitialized {
		return ErrAlreadyStarted
	}
	e.lives = e.cfg.Lives
	e.multiplier = 1

	var err error
	if e.current, err = e.source.Next(); err != nil {
		return e.abort(fmt.Errorf("draw first piece: %w", err))
	}
	if e.next, err = e.source.Next(); err != nil {
		return e.abort(fmt.Errorf("draw second piece: %w", err))
	}

	e.status = StatusRunning
	e.log.Info("game started", "cols", e.cfg.Cols, "rows", e.cfg.Rows, "lives", e.lives, "current", e.current.Name, "next", e.next.Name)
	e.emitNextPiece()
	e.arm()
	return nil
}

// PlaceAt tries to place the current piece centred on (x,y). A piece that
// does not fit yields Placement{Placed: false} and a nil error.
func (e *Engine) PlaceAt(x, y int) (Placement, error) {
	if e.status != StatusRunning {
		return Placement{}, ErrNotRunning
	}

	piece := e.current
	if !e.grid.PlayPiece(piece, x, y) {
		e.log.Debug("placement rejected", "x", x, "y", y, "piece", piece.Name)
		for _, l := range e.listeners {
			if l.OnRejected != nil {
				l.OnRejected(x, y)
			}
		}
		return Placement{X: x, Y: y, Piece: piece, State: e.Snapshot()}, nil
	}

	p := Placement{Placed: true, X: x, Y: y, Piece: piece}
	e.afterPiece(&p)

	if err := e.advance(); err != nil {
		p.State = e.Snapshot()
		return p, err
	}
	e.arm()

	p.State = e.Snapshot()
	for _, l := range e.listeners {
		if l.OnPlaced != nil {
			l.OnPlaced(p)
		}
	}
	return p, nil
}

// afterPiece runs the line-clear pass and updates the counters.
func (e *Engine) afterPiece(p *Placement) {
	res := game.FindLines(e.grid)
	if res.Lines == 0 {
		e.multiplier = 1
		return
	}

	// The multiplier goes up before the points are computed.
	e.multiplier++
	game.ClearCells(e.grid, res.Cells)

	p.Lines = res.Lines
	p.Blocks = res.Blocks()
	p.Cleared = res.Cells
	p.Points = game.Points(res.Lines, res.Blocks(), e.multiplier)

	e.score += p.Points
	e.level = game.LevelFor(e.score)
	e.log.Debug("lines cleared", "lines", p.Lines, "blocks", p.Blocks, "multiplier", e.multiplier, "points", p.Points, "score", e.score, "level", e.level)

	if e.sink != nil {
		e.sink.ReportScore(e.score)
	}
	for _, l := range e.listeners {
		if l.OnLinesCleared != nil {
			l.OnLinesCleared(res.Cells)
		}
	}
}

// RotateCurrent turns the current piece clockwise. It does not use up the turn.
func (e *Engine) RotateCurrent() (State, error) {
	return e.RotateCurrentBy(1)
}

// RotateCurrentBy turns the current piece by quarter turns; negative values
// turn anticlockwise.
func (e *Engine) RotateCurrentBy(turns int) (State, error) {
	if e.status != StatusRunning {
		return State{}, ErrNotRunning
	}
	for n := ((turns % 4) + 4) % 4; n > 0; n-- {
		e.current = e.current.Rotate()
	}
	e.emitNextPiece()
	return e.Snapshot(), nil
}

// SwapPieces exchanges the current and next piece.
func (e *Engine) SwapPieces() (State, error) {
	if e.status != StatusRunning {
		return State{}, ErrNotRunning
	}
	e.current, e.next = e.next, e.current
	e.emitNextPiece()
	return e.Snapshot(), nil
}

// Expire handles the countdown running out without a placement. The piece
// sequence advances and a life is lost; with no lives left the game ends.
func (e *Engine) Expire() (State, error) {
	if e.status != StatusRunning {
		return State{}, ErrNotRunning
	}

	if err := e.advance(); err != nil {
		return e.Snapshot(), err
	}

	if e.lives > 0 {
		e.lives--
		e.multiplier = 1
		e.log.Info("life lost", "lives", e.lives)
		st := e.Snapshot()
		for _, l := range e.listeners {
			if l.OnLifeLost != nil {
				l.OnLifeLost(st)
			}
		}
	} else {
		e.lives--
		e.status = StatusGameOver
		e.sched.Stop()
		final := e.Snapshot()
		e.log.Info("game over", "score", e.score, "level", e.level)
		for _, l := range e.listeners {
			if l.OnGameOver != nil {
				l.OnGameOver(final)
			}
		}
		return final, nil
	}

	e.arm()
	return e.Snapshot(), nil
}

// Stop ends the game from outside and cancels the countdown. It does not
// fire OnGameOver. Calling Stop more than once is a no-op.
func (e *Engine) Stop() {
	if e.status == StatusGameOver {
		return
	}
	e.status = StatusGameOver
	e.sched.Stop()
	e.log.Info("game stopped", "score", e.score)
}

// advance moves next into current and draws a new next piece.
func (e *Engine) advance() error {
	piece, err := e.source.Next()
	if err != nil {
		return e.abort(fmt.Errorf("draw next piece: %w", err))
	}
	e.current = e.next
	e.next = piece
	e.emitNextPiece()
	return nil
}

// abort ends the game because the piece sequence can't continue.
func (e *Engine) abort(err error) error {
	e.err = err
	if e.status != StatusGameOver {
		e.status = StatusGameOver
		e.sched.Stop()
	}
	e.log.Error("game aborted", "err", err)
	return err
}

func (e *Engine) arm() {
	d := game.TimerDelay(e.level)
	e.sched.Arm(d)
	for _, l := range e.listeners {
		if l.OnTick != nil {
			l.OnTick(d)
		}
	}
}

func (e *Engine) emitNextPiece() {
	for _, l := range e.listeners {
		if l.OnNextPiece != nil {
			l.OnNextPiece(e.current, e.next)
		}
	}
}
