package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/tetrecs/engine"
	"github.com/brensch/tetrecs/logging"
	"github.com/brensch/tetrecs/multiplayer"
	"github.com/brensch/tetrecs/store"
)

func main() {
	name := flag.String("name", getEnvOrDefault("TETRECS_NAME", getEnvOrDefault("USER", "player")), "Player name")
	server := flag.String("server", getEnvOrDefault("TETRECS_SERVER", ""), "Multiplayer websocket URL (e.g. ws://localhost:8080/play); empty plays single player")
	scoresPath := flag.String("scores", getEnvOrDefault("TETRECS_SCORES", "scores.txt"), "Local high score file")
	multiScoresPath := flag.String("multi-scores", getEnvOrDefault("TETRECS_MULTI_SCORES", "multiplayer-scores.txt"), "Final standings of the last multiplayer game")
	archiveDir := flag.String("archive-dir", getEnvOrDefault("TETRECS_ARCHIVE_DIR", ""), "If set, write a parquet archive of every game here")
	logFile := flag.String("log-file", getEnvOrDefault("TETRECS_LOG_FILE", "tetrecs.log"), "Log file (the terminal is taken by the UI)")
	logLevel := flag.String("log-level", getEnvOrDefault("TETRECS_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFormat := flag.String("log-format", getEnvOrDefault("TETRECS_LOG_FORMAT", "console"), "console or json")
	cols := flag.Int("cols", getEnvIntOrDefault("TETRECS_COLS", 5), "Board columns")
	rows := flag.Int("rows", getEnvIntOrDefault("TETRECS_ROWS", 5), "Board rows")
	seed := flag.Int64("seed", int64(getEnvIntOrDefault("TETRECS_SEED", 0)), "Single player piece seed (0 = random)")
	readyTimeout := flag.Duration("ready-timeout", getEnvDurationOrDefault("TETRECS_READY_TIMEOUT", 10*time.Second), "How long to wait for the first pieces from the server")
	starveTimeout := flag.Duration("starve-timeout", getEnvDurationOrDefault("TETRECS_STARVE_TIMEOUT", 5*time.Second), "How long to wait for a piece before giving up")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logOut, err := logging.OpenFile(*logFile)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logOut.Close()
	logger, err := logging.New(logOut, *logFormat, level)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	slog.SetDefault(logger)

	scores, err := store.OpenScoreFile(*scoresPath)
	if err != nil {
		log.Fatalf("Failed to open score file: %v", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	cfg := engine.DefaultConfig()
	cfg.Cols, cfg.Rows = *cols, *rows
	cfg.HighScore = scores.Top()

	mode := "single"
	if *server != "" {
		mode = "multi"
	}
	rec := store.NewRecorder(*name, mode)
	updates := make(chan tea.Msg, updateBuffer)
	ended := make(chan error, 1)
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithListener(uiListener(updates)),
		engine.WithListener(rec.Listener()),
	}

	var m model
	var coord *multiplayer.Coordinator
	if *server == "" {
		rng := rand.New(rand.NewSource(*seed))
		if *seed == 0 {
			rng = nil
		}
		session := engine.NewSession(cfg, engine.NewRandomSource(rng), opts...)
		go func() { ended <- session.Run(ctx) }()
		if err := session.Start(ctx); err != nil {
			log.Fatalf("Failed to start game: %v", err)
		}
		initial, err := session.Snapshot(ctx)
		if err != nil {
			log.Fatalf("Failed to read game state: %v", err)
		}
		m = newModel(ctx, session, initial, updates, ended)
	} else {
		wsURL, err := withName(*server, *name)
		if err != nil {
			log.Fatalf("Invalid server URL: %v", err)
		}
		log.Printf("Connecting to %s as %s", wsURL, *name)
		conn, err := multiplayer.Dial(ctx, wsURL, multiplayer.DefaultConnConfig())
		if err != nil {
			log.Fatalf("Failed to connect: %v", err)
		}

		mcfg := multiplayer.DefaultConfig()
		mcfg.Name = *name
		mcfg.Engine = cfg
		mcfg.ReadyTimeout = *readyTimeout
		mcfg.StarveTimeout = *starveTimeout
		coord = multiplayer.New(mcfg, conn, logger, opts[1:]...)

		go func() { ended <- coord.Run(ctx) }()
		select {
		case <-coord.Started():
		case err := <-ended:
			log.Fatalf("Multiplayer game failed to start: %v", err)
		}
		initial, err := coord.Session().Snapshot(ctx)
		if err != nil {
			log.Fatalf("Failed to read game state: %v", err)
		}
		m = newModel(ctx, coord.Session(), initial, updates, ended)
		m.quit = coord.Quit
		m.board = coord.Leaderboard()
	}
	m.name = *name
	rec.Record(store.EventStart, m.state)

	p := tea.NewProgram(m, tea.WithAltScreen())
	fm, err := p.Run()
	if err != nil {
		log.Fatalf("UI failed: %v", err)
	}

	// The UI may exit before the game loop has wound down.
	cancel()
	final := finalState(fm, m.state)
	if st, err := m.session.Snapshot(context.Background()); err == nil {
		final = st
	}
	slog.Info("game finished", "player", *name, "mode", mode, "score", final.Score, "level", final.Level)

	if coord == nil {
		if err := scores.Add(*name, final.Score); err != nil {
			log.Printf("Failed to save score: %v", err)
		}
	} else {
		saveStandings(*multiScoresPath, coord.Leaderboard())
	}

	if *archiveDir != "" {
		path, err := rec.Flush(*archiveDir)
		if err != nil {
			log.Printf("Failed to write archive: %v", err)
		} else if path != "" {
			log.Printf("Archived game %s to %s", rec.GameID(), path)
		}
	}

	fmt.Printf("Final score: %d (level %d)\n", final.Score, final.Level)
	if best := scores.Entries(); len(best) > 0 {
		fmt.Println("High scores:")
		for i, s := range best {
			if i == 10 {
				break
			}
			fmt.Printf("  %2d. %-16s %d\n", i+1, s.Name, s.Score)
		}
	}
}

// finalState is the last state the UI saw, or fallback if the program
// returned something other than our model.
func finalState(fm tea.Model, fallback engine.State) engine.State {
	if m, ok := fm.(model); ok {
		return m.state
	}
	return fallback
}

// withName adds ?name= to the server URL unless it is already there.
func withName(raw, name string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("name") == "" {
		q.Set("name", name)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func saveStandings(path string, board *multiplayer.Leaderboard) {
	standings := board.Standings()
	if len(standings) == 0 {
		return
	}
	f, err := store.OpenScoreFile(path)
	if err != nil {
		log.Printf("Failed to open multiplayer score file: %v", err)
		return
	}
	entries := make([]store.Score, len(standings))
	for i, s := range standings {
		entries[i] = store.Score{Name: s.Name, Score: s.Score}
	}
	if err := f.Replace(entries); err != nil {
		log.Printf("Failed to save multiplayer standings: %v", err)
	}
}
