package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Score is one name:score record.
type Score struct {
	Name  string
	Score int
}

// ScoreFile is the local high-score list.
//
// On open we read the whole file into memory. Every change rewrites the file
// through a temp file and rename so a crash never leaves a half written list.
//
// The reader is tolerant: blank or corrupt lines are skipped.
//
// Format: <name>:<score>\n, highest score first.
type ScoreFile struct {
	mu      sync.RWMutex
	path    string
	entries []Score
}

func OpenScoreFile(path string) (*ScoreFile, error) {
	if path == "" {
		return nil, fmt.Errorf("score file path is required")
	}

	var entries []Score
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if s, ok := parseScoreLine(scanner.Text()); ok {
				entries = append(entries, s)
			}
		}
		_ = f.Close()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open score file: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create score dir: %w", err)
		}
	}

	sortScores(entries)
	return &ScoreFile{path: path, entries: entries}, nil
}

func parseScoreLine(line string) (Score, bool) {
	line = strings.TrimSpace(line)
	i := strings.LastIndexByte(line, ':')
	if i <= 0 {
		return Score{}, false
	}
	n, err := strconv.Atoi(line[i+1:])
	if err != nil {
		return Score{}, false
	}
	return Score{Name: line[:i], Score: n}, true
}

func sortScores(s []Score) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}

func (f *ScoreFile) Path() string { return f.path }

// Top returns the best score on file, or 0 for an empty list.
func (f *ScoreFile) Top() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.entries) == 0 {
		return 0
	}
	return f.entries[0].Score
}

// Entries returns a copy of the list, highest first.
func (f *ScoreFile) Entries() []Score {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Score(nil), f.entries...)
}

// Add records a finished game and rewrites the file. Names may not contain
// newlines.
func (f *ScoreFile) Add(name string, score int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Unknown"
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("invalid name %q", name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	next := append(append([]Score(nil), f.entries...), Score{Name: name, Score: score})
	sortScores(next)
	if err := writeScoresAtomic(f.path, next); err != nil {
		return err
	}
	f.entries = next
	return nil
}

// Replace overwrites the list with entries. Used to keep the final standings
// of a multiplayer game.
func (f *ScoreFile) Replace(entries []Score) error {
	next := append([]Score(nil), entries...)
	sortScores(next)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeScoresAtomic(f.path, next); err != nil {
		return err
	}
	f.entries = next
	return nil
}

func writeScoresAtomic(path string, entries []Score) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp score file: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		w.WriteString(e.Name)
		w.WriteByte(':')
		w.WriteString(strconv.Itoa(e.Score))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write scores: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync scores: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close scores: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename scores: %w", err)
	}
	return nil
}
