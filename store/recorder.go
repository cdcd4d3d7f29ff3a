package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/tetrecs/engine"
	"github.com/brensch/tetrecs/game"
)

// Recorder collects EventRows for one game from engine callbacks.
type Recorder struct {
	mu     sync.Mutex
	gameID string
	player string
	mode   string
	rows   []EventRow
	now    func() time.Time
}

func NewRecorder(player, mode string) *Recorder {
	return &Recorder{
		gameID: uuid.NewString(),
		player: player,
		mode:   mode,
		now:    time.Now,
	}
}

func (r *Recorder) GameID() string { return r.gameID }

// Listener returns the engine hooks that feed this recorder.
func (r *Recorder) Listener() engine.Listener {
	return engine.Listener{
		OnPlaced: r.placed,
		OnLifeLost: func(st engine.State) {
			r.Record(EventTimeout, st)
		},
		OnGameOver: func(st engine.State) {
			r.Record(EventGameOver, st)
		},
	}
}

// Record appends a row for an event that carries no placement.
func (r *Recorder) Record(kind string, st engine.State) {
	row := r.row(kind, st)
	row.X, row.Y, row.PieceID = -1, -1, -1
	r.append(row)
}

func (r *Recorder) placed(p engine.Placement) {
	row := r.row(EventPlace, p.State)
	row.X = int32(p.X)
	row.Y = int32(p.Y)
	row.PieceID = int32(p.Piece.ID)
	row.Lines = int32(p.Lines)
	row.Points = int32(p.Points)
	r.append(row)
}

func (r *Recorder) row(kind string, st engine.State) EventRow {
	row := EventRow{
		GameID:     r.gameID,
		Kind:       kind,
		AtMs:       r.now().UnixMilli(),
		Player:     r.player,
		Mode:       r.mode,
		Score:      int32(st.Score),
		Lives:      int32(st.Lives),
		Level:      int32(st.Level),
		Multiplier: int32(st.Multiplier),
		CurrentID:  int32(st.Current.ID),
		NextID:     int32(st.Next.ID),
	}
	if st.Grid != nil {
		row.Width = int32(st.Grid.Cols())
		row.Height = int32(st.Grid.Rows())
		cells := st.Grid.Cells()
		row.Cells = make([]int32, len(cells))
		for i, v := range cells {
			row.Cells[i] = int32(v)
		}
	}
	return row
}

func (r *Recorder) append(row EventRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row.Seq = int32(len(r.rows))
	r.rows = append(r.rows, row)
}

// Rows returns a copy of the recorded rows.
func (r *Recorder) Rows() []EventRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventRow(nil), r.rows...)
}

// Flush writes the recorded rows to outDir. It returns "" when nothing was
// recorded.
func (r *Recorder) Flush(outDir string) (string, error) {
	rows := r.Rows()
	if len(rows) == 0 {
		return "", nil
	}
	return WriteArchiveAtomic(outDir, rows)
}

// GridFromRow rebuilds the board stored in a row.
func GridFromRow(row EventRow) *game.Grid {
	g := game.NewGrid(int(row.Width), int(row.Height))
	for i, v := range row.Cells {
		if row.Width == 0 {
			break
		}
		g.Set(i%int(row.Width), i/int(row.Width), int(v))
	}
	return g
}
