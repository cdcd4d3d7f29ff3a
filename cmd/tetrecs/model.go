package main

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tetrecs/engine"
	"github.com/brensch/tetrecs/game"
	"github.com/brensch/tetrecs/multiplayer"
)

const (
	frameInterval = 100 * time.Millisecond
	flashFor      = 400 * time.Millisecond
	updateBuffer  = 256
)

// Messages pushed from engine listeners. Listeners run on the session
// goroutine, so they only ever do a non-blocking send into updates.
type (
	stateMsg    struct{ state engine.State }
	armedMsg    struct{ delay time.Duration }
	clearedMsg  struct{ cells []game.Point }
	rejectedMsg struct{ x, y int }
	lifeLostMsg struct{ state engine.State }
	gameOverMsg struct{ state engine.State }
	endedMsg    struct{ err error }
	actionMsg   struct {
		state engine.State
		err   error
	}
	frameMsg time.Time
)

// uiListener forwards engine events to the TUI.
func uiListener(updates chan<- tea.Msg) engine.Listener {
	push := func(msg tea.Msg) {
		select {
		case updates <- msg:
		default:
		}
	}
	return engine.Listener{
		OnTick:         func(d time.Duration) { push(armedMsg{delay: d}) },
		OnLinesCleared: func(cells []game.Point) { push(clearedMsg{cells: cells}) },
		OnRejected:     func(x, y int) { push(rejectedMsg{x: x, y: y}) },
		OnPlaced:       func(p engine.Placement) { push(stateMsg{state: p.State}) },
		OnLifeLost:     func(st engine.State) { push(lifeLostMsg{state: st}) },
		OnGameOver:     func(st engine.State) { push(gameOverMsg{state: st}) },
	}
}

type model struct {
	ctx     context.Context
	session *engine.Session
	board   *multiplayer.Leaderboard // nil in single player
	quit    func(context.Context) error
	updates chan tea.Msg
	ended   <-chan error
	keys    keyMap

	name    string
	state   engine.State
	cursor  game.Point
	armedAt time.Time
	delay   time.Duration
	now     time.Time

	cleared   map[game.Point]time.Time
	rejectAt  time.Time
	status    string
	standings []multiplayer.Standing

	over bool
	err  error
}

func newModel(ctx context.Context, session *engine.Session, initial engine.State, updates chan tea.Msg, ended <-chan error) model {
	now := time.Now()
	return model{
		ctx:     ctx,
		session: session,
		quit:    session.Stop,
		updates: updates,
		ended:   ended,
		keys:    defaultKeyMap(),
		state:   initial,
		cursor:  game.Point{X: initial.Grid.Cols() / 2, Y: initial.Grid.Rows() / 2},
		armedAt: now,
		delay:   game.TimerDelay(initial.Level),
		now:     now,
		cleared: make(map[game.Point]time.Time),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForEnd(m.ended), frameCmd())
}

func waitForUpdate(updates chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func waitForEnd(ended <-chan error) tea.Cmd {
	return func() tea.Msg {
		return endedMsg{err: <-ended}
	}
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// act runs an engine action off the UI goroutine.
func (m model) act(fn func(ctx context.Context) (engine.State, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		st, err := fn(ctx)
		return actionMsg{state: st, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		m.now = time.Time(msg)
		for p, at := range m.cleared {
			if m.now.Sub(at) > flashFor {
				delete(m.cleared, p)
			}
		}
		if m.board != nil {
			m.standings = m.board.Standings()
		}
		return m, frameCmd()

	case stateMsg:
		m.state = msg.state
		return m, waitForUpdate(m.updates)

	case armedMsg:
		m.armedAt = time.Now()
		m.delay = msg.delay
		return m, waitForUpdate(m.updates)

	case clearedMsg:
		at := time.Now()
		for _, c := range msg.cells {
			m.cleared[c] = at
		}
		return m, waitForUpdate(m.updates)

	case rejectedMsg:
		m.rejectAt = time.Now()
		m.status = "can't place there"
		return m, waitForUpdate(m.updates)

	case lifeLostMsg:
		m.state = msg.state
		m.status = "too slow, life lost"
		return m, waitForUpdate(m.updates)

	case gameOverMsg:
		m.state = msg.state
		m.over = true
		m.status = "game over"
		return m, waitForUpdate(m.updates)

	case actionMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, engine.ErrNotRunning) && !errors.Is(msg.err, engine.ErrSessionClosed) {
				m.err = msg.err
			}
			return m, nil
		}
		if msg.state.Grid != nil {
			m.state = msg.state
		}
		return m, nil

	case endedMsg:
		m.over = true
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		if st, err := m.session.Snapshot(context.Background()); err == nil {
			m.state = st
		}
		if m.board != nil {
			m.standings = m.board.Standings()
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	if m.over {
		if m.keys.quit.matches(k) || m.keys.place.matches(k) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case m.keys.quit.matches(k):
		quit := m.quit
		m.status = "quitting"
		return m, tea.Sequence(func() tea.Msg {
			quit(context.Background())
			return nil
		}, tea.Quit)
	case m.keys.up.matches(k):
		m.moveCursor(0, -1)
	case m.keys.down.matches(k):
		m.moveCursor(0, 1)
	case m.keys.left.matches(k):
		m.moveCursor(-1, 0)
	case m.keys.right.matches(k):
		m.moveCursor(1, 0)
	case m.keys.place.matches(k):
		x, y := m.cursor.X, m.cursor.Y
		s := m.session
		m.status = ""
		return m, m.act(func(ctx context.Context) (engine.State, error) {
			p, err := s.Place(ctx, x, y)
			return p.State, err
		})
	case m.keys.rotateLeft.matches(k):
		s := m.session
		return m, m.act(func(ctx context.Context) (engine.State, error) { return s.Rotate(ctx, -1) })
	case m.keys.rotateRight.matches(k):
		s := m.session
		return m, m.act(func(ctx context.Context) (engine.State, error) { return s.Rotate(ctx, 1) })
	case m.keys.swap.matches(k):
		s := m.session
		return m, m.act(s.Swap)
	}
	return m, nil
}

func (m *model) moveCursor(dx, dy int) {
	cols, rows := m.state.Grid.Cols(), m.state.Grid.Rows()
	m.cursor.X = clamp(m.cursor.X+dx, 0, cols-1)
	m.cursor.Y = clamp(m.cursor.Y+dy, 0, rows-1)
}

// remaining is the fraction of the countdown left, in [0,1].
func (m model) remaining() float64 {
	if m.delay <= 0 || m.over {
		return 0
	}
	left := m.delay - m.now.Sub(m.armedAt)
	if left <= 0 {
		return 0
	}
	return float64(left) / float64(m.delay)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
