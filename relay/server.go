// Package relay is a single-channel game server for tetrecs clients. Every
// player in the channel is dealt the same piece sequence, one piece per
// PIECE credit, and sees everyone's scores and eliminations.
package relay

import (
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/tetrecs/game"
	"github.com/brensch/tetrecs/multiplayer"
)

// Config holds relay configuration
type Config struct {
	Seed         int64 // piece sequence seed; every player gets the same order
	MaxPlayers   int
	SendBuffer   int // queued outbound messages before a slow player is dropped
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Seed:         time.Now().UnixNano(),
		MaxPlayers:   16,
		SendBuffer:   256,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  2 * time.Minute,
	}
}

type player struct {
	id     string
	name   string
	joined int
	send   chan string
	cursor int
	score  int
	dead   bool
	gone   bool
}

// PlayerInfo is a read-only view of a connected or departed player.
type PlayerInfo struct {
	ID     string
	Name   string
	Score  int
	Dead   bool
	Pieces int // pieces dealt so far
}

// Server is an http.Handler that upgrades each request to a player socket.
// Players join with ?name=<name>.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	sequence []int
	players  map[string]*player // by name; departed players stay for the scoreboard
	joined   int
	closed   bool
	dropped  []*player // cut off by sendLocked, DIE not yet broadcast
}

// NewServer creates a relay.
func NewServer(cfg Config, log *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = def.MaxPlayers
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log.With("component", "relay"),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		players: make(map[string]*player),
	}
}

// PieceAt returns the i-th piece of the shared sequence, extending it as
// needed.
func (s *Server) PieceAt(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pieceAtLocked(i)
}

func (s *Server) pieceAtLocked(i int) int {
	for len(s.sequence) <= i {
		s.sequence = append(s.sequence, s.rng.Intn(game.PieceCount))
	}
	return s.sequence[i]
}

// Players returns every player that has joined, in join order.
func (s *Server) Players() []PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.orderedLocked()
	out := make([]PlayerInfo, len(ps))
	for i, p := range ps {
		out[i] = PlayerInfo{ID: p.id, Name: p.name, Score: p.score, Dead: p.dead, Pieces: p.cursor}
	}
	return out
}

func (s *Server) orderedLocked() []*player {
	ps := make([]*player, 0, len(s.players))
	for _, p := range s.players {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].joined < ps[j].joined })
	return ps
}

// ServeHTTP upgrades the request and runs the player's read loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	p, err := s.join(name)
	switch {
	case errors.Is(err, errBadName):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, errNameTaken):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "name", name, "err", err)
		s.forget(p)
		return
	}
	log := s.log.With("player", name, "id", p.id)
	log.Info("player joined")

	done := make(chan struct{})
	go s.writeLoop(ws, p, done)

	s.readLoop(ws, p, log)
	s.leave(p)
	<-done
	ws.Close()
	log.Info("player left")
}

var (
	errBadName   = errors.New("name must not contain ':' or line breaks")
	errNameTaken = errors.New("name already in channel")
	errFull      = errors.New("channel full")
	errClosed    = errors.New("server closed")
)

func (s *Server) join(name string) (*player, error) {
	// Names travel inside SCORES records, so they must not break the
	// name:score line format.
	if strings.ContainsAny(name, ":\r\n") {
		return nil, errBadName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if old, ok := s.players[name]; ok && !old.gone {
		return nil, errNameTaken
	}
	live := 0
	for _, p := range s.players {
		if !p.gone {
			live++
		}
	}
	if live >= s.cfg.MaxPlayers {
		return nil, errFull
	}
	s.joined++
	p := &player{
		id:     uuid.NewString(),
		name:   name,
		joined: s.joined,
		send:   make(chan string, s.cfg.SendBuffer),
	}
	s.players[name] = p
	return p, nil
}

// forget removes a player that never got a socket.
func (s *Server) forget(p *player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.players[p.name] == p {
		delete(s.players, p.name)
	}
	if !p.gone {
		p.gone = true
		close(p.send)
	}
}

// leave marks a disconnected player. A player who drops without DIE is
// eliminated all the same.
func (s *Server) leave(p *player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.gone {
		return
	}
	if !p.dead {
		p.dead = true
		s.broadcastLocked(multiplayer.FormatDie(p.name), p)
	}
	p.gone = true
	close(p.send)
	s.flushDroppedLocked()
}

func (s *Server) readLoop(ws *websocket.Conn, p *player, log *slog.Logger) {
	if s.cfg.ReadTimeout > 0 {
		ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		ws.SetPingHandler(func(data string) error {
			ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		})
	}
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read error", "err", err)
			}
			return
		}
		if s.cfg.ReadTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.handle(p, string(data), log)
	}
}

func (s *Server) handle(p *player, raw string, log *slog.Logger) {
	msg, err := multiplayer.Parse(raw)
	if err != nil {
		log.Warn("dropping message", "raw", raw, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.flushDroppedLocked()
	switch msg.Kind {
	case multiplayer.KindPieceRequest:
		id := s.pieceAtLocked(p.cursor)
		p.cursor++
		s.sendLocked(p, multiplayer.FormatPiece(id))
	case multiplayer.KindScore:
		p.score = msg.Score
		s.broadcastLocked(multiplayer.FormatScores(s.scoresLocked()), nil)
	case multiplayer.KindScoresRequest:
		s.sendLocked(p, multiplayer.FormatScores(s.scoresLocked()))
	case multiplayer.KindDie:
		if p.dead {
			return
		}
		p.dead = true
		log.Info("player died", "score", p.score)
		s.broadcastLocked(multiplayer.FormatDie(p.name), nil)
	default:
		log.Debug("ignoring message", "verb", msg.Verb)
	}
}

// Scores returns the channel's scores, highest first.
func (s *Server) Scores() []multiplayer.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoresLocked()
}

func (s *Server) scoresLocked() []multiplayer.Entry {
	ps := s.orderedLocked()
	out := make([]multiplayer.Entry, len(ps))
	for i, p := range ps {
		out[i] = multiplayer.Entry{Name: p.name, Score: p.score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Server) broadcastLocked(msg string, except *player) {
	for _, p := range s.players {
		if p != except {
			s.sendLocked(p, msg)
		}
	}
}

// sendLocked queues msg for p. A player whose buffer is full is cut off
// rather than stalling the channel.
func (s *Server) sendLocked(p *player, msg string) {
	if p.gone {
		return
	}
	select {
	case p.send <- msg:
	default:
		s.log.Warn("send buffer full, dropping player", "player", p.name)
		p.gone = true
		close(p.send)
		if !p.dead {
			p.dead = true
			s.dropped = append(s.dropped, p)
		}
	}
}

// flushDroppedLocked broadcasts DIE for players cut off by sendLocked. Each
// broadcast may cut off more players; they are handled in the same pass.
func (s *Server) flushDroppedLocked() {
	for len(s.dropped) > 0 {
		p := s.dropped[0]
		s.dropped = s.dropped[1:]
		s.broadcastLocked(multiplayer.FormatDie(p.name), p)
	}
}

func (s *Server) writeLoop(ws *websocket.Conn, p *player, done chan<- struct{}) {
	defer close(done)
	for msg := range p.send {
		ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			// Unblock the reader so the handler can finish.
			ws.Close()
			for range p.send {
			}
			return
		}
	}
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// Close disconnects every player and refuses new ones.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, p := range s.players {
		if !p.gone {
			p.gone = true
			close(p.send)
		}
	}
}
