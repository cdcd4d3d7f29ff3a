package multiplayer

import (
	"sort"
	"sync"
)

// Standing is one leaderboard row. Dead players stay listed.
type Standing struct {
	Name  string
	Score int
	Dead  bool
}

// Leaderboard holds the latest score snapshot for a channel plus the set of
// eliminated players. It is safe for concurrent use.
type Leaderboard struct {
	mu      sync.RWMutex
	entries []Entry
	dead    map[string]struct{}
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{dead: make(map[string]struct{})}
}

// Replace swaps in a new snapshot, sorted by score descending. Equal scores
// keep their order from the snapshot.
func (l *Leaderboard) Replace(entries []Entry) {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = sorted
}

// MarkDead flags name as eliminated. It reports whether the name was newly
// marked.
func (l *Leaderboard) MarkDead(name string) bool {
	if name == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.dead[name]; ok {
		return false
	}
	l.dead[name] = struct{}{}
	return true
}

func (l *Leaderboard) IsDead(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.dead[name]
	return ok
}

// Standings returns the current snapshot with elimination flags.
func (l *Leaderboard) Standings() []Standing {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Standing, len(l.entries))
	for i, e := range l.entries {
		_, dead := l.dead[e.Name]
		out[i] = Standing{Name: e.Name, Score: e.Score, Dead: dead}
	}
	return out
}

// Top returns at most n standings.
func (l *Leaderboard) Top(n int) []Standing {
	s := l.Standings()
	if n >= 0 && len(s) > n {
		s = s[:n]
	}
	return s
}
