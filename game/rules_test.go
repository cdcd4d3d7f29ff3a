package game

import (
	"testing"
	"time"
)

func fillRow(g *Grid, y, v int) {
	for x := 0; x < g.Cols(); x++ {
		g.Set(x, y, v)
	}
}

func fillCol(g *Grid, x, v int) {
	for y := 0; y < g.Rows(); y++ {
		g.Set(x, y, v)
	}
}

func TestFindLines_EmptyBoard(t *testing.T) {
	res := FindLines(NewGrid(5, 5))
	if res.Lines != 0 || res.Blocks() != 0 {
		t.Fatalf("lines=%d blocks=%d want=0,0", res.Lines, res.Blocks())
	}
}

func TestFindLines_SingleRow(t *testing.T) {
	g := NewGrid(5, 5)
	fillRow(g, 2, 1)
	g.Set(0, 0, 4) // unrelated block stays

	res := FindLines(g)
	t.Logf("board:\n%s", dumpGrid(g))
	if res.Lines != 1 {
		t.Fatalf("lines=%d want=1", res.Lines)
	}
	if res.Blocks() != 5 {
		t.Fatalf("blocks=%d want=5", res.Blocks())
	}
	for _, p := range res.Cells {
		if p.Y != 2 {
			t.Fatalf("cell %v is not on row 2", p)
		}
	}

	ClearCells(g, res.Cells)
	for x := 0; x < 5; x++ {
		if v := g.Get(x, 2); v != 0 {
			t.Fatalf("row 2 cell %d=%d want=0", x, v)
		}
	}
	if v := g.Get(0, 0); v != 4 {
		t.Fatalf("unrelated cell cleared: got=%d want=4", v)
	}
}

func TestFindLines_RowAndColumnDedupes(t *testing.T) {
	g := NewGrid(5, 5)
	fillRow(g, 1, 2)
	fillCol(g, 3, 2)

	res := FindLines(g)
	if res.Lines != 2 {
		t.Fatalf("lines=%d want=2", res.Lines)
	}
	// 5 + 5 - 1 shared cell
	if res.Blocks() != 9 {
		t.Fatalf("blocks=%d want=9", res.Blocks())
	}
	seen := make(map[Point]bool)
	for _, p := range res.Cells {
		if seen[p] {
			t.Fatalf("duplicate cell %v", p)
		}
		seen[p] = true
	}
}

func TestFindLines_NonSquareGrid(t *testing.T) {
	g := NewGrid(6, 3)
	fillCol(g, 0, 1)
	res := FindLines(g)
	if res.Lines != 1 || res.Blocks() != 3 {
		t.Fatalf("lines=%d blocks=%d want=1,3", res.Lines, res.Blocks())
	}
}

func TestPointsAndLevel(t *testing.T) {
	if got := Points(1, 5, 2); got != 100 {
		t.Fatalf("Points(1,5,2)=%d want=100", got)
	}
	if got := Points(2, 9, 3); got != 540 {
		t.Fatalf("Points(2,9,3)=%d want=540", got)
	}
	cases := map[int]int{0: 0, 999: 0, 1000: 1, 2500: 2, -5: 0}
	for score, want := range cases {
		if got := LevelFor(score); got != want {
			t.Fatalf("LevelFor(%d)=%d want=%d", score, got, want)
		}
	}
}

func TestTimerDelay(t *testing.T) {
	cases := map[int]time.Duration{
		0:    12000 * time.Millisecond,
		1:    11500 * time.Millisecond,
		10:   7000 * time.Millisecond,
		19:   2500 * time.Millisecond,
		30:   2500 * time.Millisecond,
		1000: 2500 * time.Millisecond,
	}
	for level, want := range cases {
		if got := TimerDelay(level); got != want {
			t.Fatalf("TimerDelay(%d)=%v want=%v", level, got, want)
		}
	}

	prev := TimerDelay(0)
	for level := 1; level < 100; level++ {
		d := TimerDelay(level)
		if d > prev {
			t.Fatalf("TimerDelay(%d)=%v increased from %v", level, d, prev)
		}
		if d < MinDelay {
			t.Fatalf("TimerDelay(%d)=%v below floor", level, d)
		}
		prev = d
	}
}
