package multiplayer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brensch/tetrecs/engine"
)

// fakeTransport plays the server side in memory. Messages pushed to in are
// handed to the read loop; everything the client sends is recorded.
type fakeTransport struct {
	recordingSender
	in        chan string
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadLoop(ctx context.Context, fn func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.closed:
			return nil
		case msg := <-f.in:
			fn(msg)
		}
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) count(msg string) int {
	n := 0
	for _, m := range f.messages() {
		if m == msg {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "me"
	cfg.ReadyTimeout = time.Second
	cfg.StarveTimeout = time.Second
	return cfg
}

func startCoordinator(t *testing.T, cfg Config, tr *fakeTransport) (*Coordinator, <-chan error) {
	t.Helper()
	c := New(cfg, tr, nil)
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()
	select {
	case <-c.Started():
	case err := <-runErr:
		t.Fatalf("Run returned before start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("game never started")
	}
	return c, runErr
}

func TestCoordinator_StartHandshake(t *testing.T) {
	tr := newFakeTransport()
	for _, id := range []int{3, 7, 2} {
		tr.in <- FormatPiece(id)
	}
	c, runErr := startCoordinator(t, testConfig(), tr)

	sent := tr.messages()
	if len(sent) != 13 {
		t.Fatalf("sent %d messages want=13: %q", len(sent), sent)
	}
	for i := 0; i < 10; i++ {
		if sent[i] != "PIECE" {
			t.Fatalf("sent[%d]=%q want=PIECE", i, sent[i])
		}
	}
	if sent[10] != "SCORES" || sent[11] != "PIECE" || sent[12] != "PIECE" {
		t.Fatalf("sent tail=%q", sent[10:])
	}

	ctx := context.Background()
	st, err := c.Session().Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if st.Current.ID != 3 || st.Next.ID != 7 || st.Lives != 3 {
		t.Fatalf("current=%d next=%d lives=%d", st.Current.ID, st.Next.ID, st.Lives)
	}

	if err := c.Quit(ctx); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if err := <-runErr; err != nil {
		t.Fatalf("Run err=%v want=nil", err)
	}
	if tr.count("DIE") != 1 || !tr.isClosed() {
		t.Fatalf("DIE sent %d times closed=%v", tr.count("DIE"), tr.isClosed())
	}
}

func TestCoordinator_ReportsScoreAndTracksLeaderboard(t *testing.T) {
	tr := newFakeTransport()
	for i := 0; i < 8; i++ {
		tr.in <- FormatPiece(3) // Dot
	}
	c, runErr := startCoordinator(t, testConfig(), tr)
	ctx := context.Background()

	for x := 0; x < 5; x++ {
		p, err := c.Session().Place(ctx, x, 0)
		if err != nil || !p.Placed {
			t.Fatalf("Place(%d,0) placed=%v err=%v", x, p.Placed, err)
		}
	}
	if tr.count("SCORE 100") != 1 {
		t.Fatalf("score not reported: %q", tr.messages())
	}

	queued := c.Source().Len()
	tr.in <- "SCORES me:100\nbob:300\nalice:100"
	tr.in <- "DIE bob"
	tr.in <- "PIECE 99"
	tr.in <- "MSG hello"
	eventually(t, "leaderboard update", func() bool {
		s := c.Leaderboard().Standings()
		return len(s) == 3 && s[0].Dead
	})
	want := []string{"bob", "me", "alice"}
	for i, s := range c.Leaderboard().Standings() {
		if s.Name != want[i] {
			t.Fatalf("standings[%d]=%s want=%s", i, s.Name, want[i])
		}
	}

	// A bad snapshot is dropped whole; DIE alice marks when it was handled.
	tr.in <- "SCORES carol:900\nbroken"
	tr.in <- "DIE alice"
	eventually(t, "alice marked dead", func() bool { return c.Leaderboard().IsDead("alice") })
	got := c.Leaderboard().Standings()
	if len(got) != 3 {
		t.Fatalf("standings=%+v want 3 entries", got)
	}
	for i, s := range got {
		if s.Name != want[i] {
			t.Fatalf("after bad SCORES standings[%d]=%s want=%s", i, s.Name, want[i])
		}
	}
	if n := c.Source().Len(); n != queued {
		t.Fatalf("queued=%d want=%d after out-of-range PIECE", n, queued)
	}

	c.Quit(ctx)
	if err := <-runErr; err != nil {
		t.Fatalf("Run err=%v", err)
	}
}

func TestCoordinator_StarvationEndsGame(t *testing.T) {
	tr := newFakeTransport()
	for i := 0; i < 3; i++ {
		tr.in <- FormatPiece(3)
	}
	cfg := testConfig()
	cfg.StarveTimeout = 20 * time.Millisecond
	c, runErr := startCoordinator(t, cfg, tr)
	ctx := context.Background()

	// The third buffered piece covers the first placement.
	if _, err := c.Session().Place(ctx, 0, 0); err != nil {
		t.Fatalf("first Place: %v", err)
	}
	if _, err := c.Session().Place(ctx, 1, 0); !errors.Is(err, ErrStarved) {
		t.Fatalf("second Place err=%v want=ErrStarved", err)
	}

	select {
	case err := <-runErr:
		if !errors.Is(err, ErrStarved) {
			t.Fatalf("Run err=%v want=ErrStarved", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after starvation")
	}
	if tr.count("DIE") != 1 || !tr.isClosed() {
		t.Fatalf("DIE sent %d times closed=%v", tr.count("DIE"), tr.isClosed())
	}
}

func TestCoordinator_NotReady(t *testing.T) {
	tr := newFakeTransport()
	tr.in <- FormatPiece(1)
	cfg := testConfig()
	cfg.ReadyTimeout = 20 * time.Millisecond
	c := New(cfg, tr, nil)

	err := c.Run(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err=%v want=ErrNotReady", err)
	}
	if !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("err=%q missing queue depth", err)
	}
	select {
	case <-c.Started():
		t.Fatalf("started without enough pieces")
	default:
	}
	if !tr.isClosed() {
		t.Fatalf("transport left open")
	}
}

func TestCoordinator_ServerClose(t *testing.T) {
	tr := newFakeTransport()
	for i := 0; i < 3; i++ {
		tr.in <- FormatPiece(0)
	}
	_, runErr := startCoordinator(t, testConfig(), tr)
	tr.Close()
	select {
	case err := <-runErr:
		if !errors.Is(err, ErrServerClosed) {
			t.Fatalf("err=%v want=ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not notice the closed connection")
	}
}

func TestCoordinator_GameOverSendsDieOnce(t *testing.T) {
	tr := newFakeTransport()
	for i := 0; i < 10; i++ {
		tr.in <- FormatPiece(0)
	}
	c, runErr := startCoordinator(t, testConfig(), tr)

	// Four expiries take the game from 3 lives to game over. Expire draws a
	// piece each time, so keep the queue topped up.
	for i := 0; i < 4; i++ {
		tr.in <- FormatPiece(0)
		err := c.Session().Do(context.Background(), func(e *engine.Engine) error {
			_, err := e.Expire()
			return err
		})
		if err != nil {
			t.Fatalf("Expire %d: %v", i, err)
		}
	}
	if err := <-runErr; err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if tr.count("DIE") != 1 {
		t.Fatalf("DIE sent %d times want=1", tr.count("DIE"))
	}
}
