package multiplayer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brensch/tetrecs/engine"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingSender) Send(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestNetSource_ReadyAtThreshold(t *testing.T) {
	src := NewNetSource(&recordingSender{}, time.Second)
	for i, id := range []int{3, 7} {
		if err := src.Deliver(id); err != nil {
			t.Fatalf("Deliver(%d): %v", id, err)
		}
		if src.IsReady() {
			t.Fatalf("ready after %d pieces", i+1)
		}
	}
	src.Deliver(2)
	select {
	case <-src.Ready():
	default:
		t.Fatalf("Ready not closed after %d pieces", ReadyThreshold)
	}
	// More deliveries must not re-close the channel.
	src.Deliver(4)
	if src.Len() != 4 {
		t.Fatalf("len=%d want=4", src.Len())
	}
}

func TestNetSource_SeedsEngine(t *testing.T) {
	sender := &recordingSender{}
	src := NewNetSource(sender, time.Second)
	for _, id := range []int{3, 7, 2} {
		src.Deliver(id)
	}

	eng := engine.New(engine.DefaultConfig(), src)
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := eng.Snapshot()
	if st.Current.ID != 3 || st.Next.ID != 7 {
		t.Fatalf("current=%d next=%d want=3,7", st.Current.ID, st.Next.ID)
	}
	if src.Len() != 1 {
		t.Fatalf("queued=%d want=1", src.Len())
	}
	if got := sender.messages(); len(got) != 2 || got[0] != "PIECE" || got[1] != "PIECE" {
		t.Fatalf("sent=%q want two PIECE requests", got)
	}
}

func TestNetSource_RequestsBeforeDequeue(t *testing.T) {
	sender := &recordingSender{err: errors.New("socket gone")}
	src := NewNetSource(sender, time.Second)
	src.Deliver(1)
	if _, err := src.Next(); err == nil {
		t.Fatalf("Next succeeded with a broken sender")
	}
	if src.Len() != 1 {
		t.Fatalf("piece consumed without a credit: len=%d", src.Len())
	}
}

func TestNetSource_Starves(t *testing.T) {
	sender := &recordingSender{}
	src := NewNetSource(sender, 20*time.Millisecond)

	start := time.Now()
	_, err := src.Next()
	if !errors.Is(err, ErrStarved) {
		t.Fatalf("err=%v want=ErrStarved", err)
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Fatalf("gave up after %s", waited)
	}
	if n := len(sender.messages()); n != 1 {
		t.Fatalf("sent=%d want=1", n)
	}
}

func TestNetSource_WaitsForDelivery(t *testing.T) {
	src := NewNetSource(&recordingSender{}, 2*time.Second)
	go func() {
		time.Sleep(20 * time.Millisecond)
		src.Deliver(11)
	}()
	p, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p.ID != 11 || p.Name != "Corner" {
		t.Fatalf("piece=%v want=Corner", p)
	}
}

func TestNetSource_RejectsBadID(t *testing.T) {
	src := NewNetSource(&recordingSender{}, time.Second)
	for _, id := range []int{-1, 15} {
		if err := src.Deliver(id); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Deliver(%d) err=%v want=ErrMalformed", id, err)
		}
	}
	if src.Len() != 0 {
		t.Fatalf("bad id queued")
	}
}
