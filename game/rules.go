// rules.go implements the scoring rules applied after every placement.

package game

import (
	"sort"
	"time"
)

const (
	// BaseDelay is the countdown length at level 0.
	BaseDelay = 12000 * time.Millisecond
	// MinDelay is the shortest countdown regardless of level.
	MinDelay = 2500 * time.Millisecond
	// DelayStep is how much each level shortens the countdown.
	DelayStep = 500 * time.Millisecond

	// PointsPerBlock is the base score for one cleared block on one line.
	PointsPerBlock = 10
	// PointsPerLevel is how many points it takes to reach the next level.
	PointsPerLevel = 1000
)

// Clear is the result of scanning a board for full lines.
//
// Lines counts every full row and every full column, so a cell at the
// intersection of a full row and a full column contributes to two lines but is
// listed once in Cells.
type Clear struct {
	Lines int
	Cells []Point
}

// Blocks is the number of distinct cells to be cleared.
func (c Clear) Blocks() int { return len(c.Cells) }

// FindLines scans columns then rows for lines with no empty cell. It does not
// modify the grid. Cells are sorted by x then y.
func FindLines(g *Grid) Clear {
	var res Clear
	marked := make(map[Point]struct{})

	for x := 0; x < g.cols; x++ {
		full := g.rows > 0
		for y := 0; y < g.rows; y++ {
			if g.Get(x, y) == 0 {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		res.Lines++
		for y := 0; y < g.rows; y++ {
			marked[Point{X: x, Y: y}] = struct{}{}
		}
	}

	for y := 0; y < g.rows; y++ {
		full := g.cols > 0
		for x := 0; x < g.cols; x++ {
			if g.Get(x, y) == 0 {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		res.Lines++
		for x := 0; x < g.cols; x++ {
			marked[Point{X: x, Y: y}] = struct{}{}
		}
	}

	if len(marked) == 0 {
		return res
	}
	res.Cells = make([]Point, 0, len(marked))
	for p := range marked {
		res.Cells = append(res.Cells, p)
	}
	sort.Slice(res.Cells, func(i, j int) bool {
		if res.Cells[i].X != res.Cells[j].X {
			return res.Cells[i].X < res.Cells[j].X
		}
		return res.Cells[i].Y < res.Cells[j].Y
	})
	return res
}

// ClearCells empties every listed cell.
func ClearCells(g *Grid, cells []Point) {
	for _, p := range cells {
		g.Set(p.X, p.Y, 0)
	}
}

// Points is the score awarded for clearing lines and blocks at multiplier.
func Points(lines, blocks, multiplier int) int {
	return lines * blocks * PointsPerBlock * multiplier
}

// LevelFor returns the level reached at score.
func LevelFor(score int) int {
	if score <= 0 {
		return 0
	}
	return score / PointsPerLevel
}

// TimerDelay is the countdown length at level. It never increases with level
// and never drops below MinDelay.
func TimerDelay(level int) time.Duration {
	if level < 0 {
		level = 0
	}
	if level >= int((BaseDelay-MinDelay)/DelayStep) {
		return MinDelay
	}
	return BaseDelay - time.Duration(level)*DelayStep
}
