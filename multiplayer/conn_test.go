package multiplayer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer upper-cases every text message and closes normally on "BYE".
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			msg := string(data)
			if msg == "BYE" {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			ws.WriteMessage(websocket.TextMessage, []byte(strings.ToUpper(msg)))
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConn_SendAndReceive(t *testing.T) {
	url := echoServer(t)
	ctx := context.Background()
	conn, err := Dial(ctx, url, DefaultConnConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	got := make(chan string, 4)
	loopErr := make(chan error, 1)
	go func() { loopErr <- conn.ReadLoop(ctx, func(m string) { got <- m }) }()

	if err := conn.Send("piece 4"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case m := <-got:
		if m != "PIECE 4" {
			t.Fatalf("got=%q want=%q", m, "PIECE 4")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no echo")
	}

	conn.Send("BYE")
	select {
	case err := <-loopErr:
		if err != nil {
			t.Fatalf("ReadLoop err=%v want=nil on normal close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ReadLoop did not return on close")
	}
}

func TestConn_ContextCancelStopsReadLoop(t *testing.T) {
	url := echoServer(t)
	conn, err := Dial(context.Background(), url, DefaultConnConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	loopErr := make(chan error, 1)
	go func() { loopErr <- conn.ReadLoop(ctx, func(string) {}) }()
	cancel()

	select {
	case err := <-loopErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ReadLoop err=%v want=context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ReadLoop ignored cancel")
	}

	if err := conn.Send("PIECE"); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("Send after close err=%v want=ErrConnClosed", err)
	}
	conn.Close()
	conn.Close()
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/none", DefaultConnConfig()); err == nil {
		t.Fatalf("Dial to closed port succeeded")
	}
}
