// Package game defines the core board types for tetrecs.
//
// Everything in here is pure state: a Grid of block values, the fixed Piece
// catalog and the rules that score a board after a placement. The stateful
// game loop lives in the engine package.
package game

// OutOfBounds is returned by Grid.Get for coordinates outside the board.
const OutOfBounds = -1

// Point is a board coordinate. (0,0) is the top-left cell, x grows to the
// right and y grows downward.
type Point struct {
	X int
	Y int
}

// Grid is a cols×rows matrix of block values. 0 is empty, 1..PieceCount is the
// value of the piece that filled the cell.
type Grid struct {
	cols  int
	rows  int
	cells []int
}

func NewGrid(cols, rows int) *Grid {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	return &Grid{
		cols:  cols,
		rows:  rows,
		cells: make([]int, cols*rows),
	}
}

func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }

func (g *Grid) inBounds(x, y int) bool {
	return x >= 0 && x < g.cols && y >= 0 && y < g.rows
}

// Get returns the value at (x,y), or OutOfBounds if the coordinate is not on
// the board.
func (g *Grid) Get(x, y int) int {
	if !g.inBounds(x, y) {
		return OutOfBounds
	}
	return g.cells[y*g.cols+x]
}

// Set writes v at (x,y). Callers are expected to pass valid coordinates;
// writes outside the board are ignored.
func (g *Grid) Set(x, y, v int) {
	if !g.inBounds(x, y) {
		return
	}
	g.cells[y*g.cols+x] = v
}

// CanPlayPiece reports whether p fits with its centre on (x,y).
//
// Patterns are 3×3 with the centre at (1,1), so the pattern origin maps to
// (x-1, y-1). A filled pattern cell that lands off the board counts as a
// collision.
func (g *Grid) CanPlayPiece(p Piece, x, y int) bool {
	ox, oy := x-1, y-1
	for px := 0; px < PieceSize; px++ {
		for py := 0; py < PieceSize; py++ {
			if p.Blocks[px][py] == 0 {
				continue
			}
			if g.Get(ox+px, oy+py) != 0 {
				return false
			}
		}
	}
	return true
}

// PlayPiece places p centred on (x,y). It returns false and leaves the grid
// untouched if the piece does not fit.
func (g *Grid) PlayPiece(p Piece, x, y int) bool {
	if !g.CanPlayPiece(p, x, y) {
		return false
	}
	ox, oy := x-1, y-1
	for px := 0; px < PieceSize; px++ {
		for py := 0; py < PieceSize; py++ {
			if v := p.Blocks[px][py]; v != 0 {
				g.Set(ox+px, oy+py, v)
			}
		}
	}
	return true
}

// Clear empties every cell.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = 0
	}
}

// Filled returns the number of non-empty cells.
func (g *Grid) Filled() int {
	n := 0
	for _, v := range g.cells {
		if v != 0 {
			n++
		}
	}
	return n
}

// Cells returns a row-major copy of the board (index y*cols+x).
func (g *Grid) Cells() []int {
	out := make([]int, len(g.cells))
	copy(out, g.cells)
	return out
}

// Clone performs a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	return &Grid{
		cols:  g.cols,
		rows:  g.rows,
		cells: g.Cells(),
	}
}
