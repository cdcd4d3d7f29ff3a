// piece.go holds the fixed catalog of placeable shapes.

package game

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// PieceCount is the number of shapes in the catalog. Valid ids are [0,PieceCount).
	PieceCount = 15
	// PieceSize is the width and height of every piece pattern.
	PieceSize = 3
)

// Piece is an immutable shape from the catalog. Blocks is indexed [x][y] and
// every filled cell holds Value().
type Piece struct {
	ID     int
	Name   string
	Blocks [PieceSize][PieceSize]int
}

// shapes are drawn row by row, '#' is a filled cell.
var shapes = [PieceCount]struct {
	name string
	rows [PieceSize]string
}{
	{"Line", [3]string{"...", "###", "..."}},
	{"C", [3]string{"...", "###", "#.#"}},
	{"Plus", [3]string{".#.", "###", ".#."}},
	{"Dot", [3]string{"...", ".#.", "..."}},
	{"Square", [3]string{"##.", "##.", "..."}},
	{"L", [3]string{"...", "###", "..#"}},
	{"J", [3]string{"..#", "###", "..."}},
	{"S", [3]string{"...", ".##", "##."}},
	{"Z", [3]string{"##.", ".##", "..."}},
	{"T", [3]string{"#..", "##.", "#.."}},
	{"X", [3]string{"#.#", ".#.", "#.#"}},
	{"Corner", [3]string{"...", "##.", "#.."}},
	{"Inverse Corner", [3]string{"#..", "##.", "..."}},
	{"Diagonal", [3]string{"#..", ".#.", "..#"}},
	{"Double", [3]string{".#.", ".#.", "..."}},
}

// CreatePiece returns the catalog piece for id in its spawn orientation.
// It panics for ids outside [0,PieceCount); callers only draw from that range.
func CreatePiece(id int) Piece {
	if id < 0 || id >= PieceCount {
		panic(fmt.Sprintf("game: piece id %d out of range [0,%d)", id, PieceCount))
	}
	s := shapes[id]
	p := Piece{ID: id, Name: s.name}
	for y, row := range s.rows {
		for x := 0; x < PieceSize; x++ {
			if row[x] == '#' {
				p.Blocks[x][y] = id + 1
			}
		}
	}
	return p
}

// ParsePieceID parses a piece id as sent over the wire.
func ParsePieceID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse piece id %q: %w", s, err)
	}
	if id < 0 || id >= PieceCount {
		return 0, fmt.Errorf("piece id %d out of range [0,%d)", id, PieceCount)
	}
	return id, nil
}

// Value is the block value written to the grid for this piece.
func (p Piece) Value() int { return p.ID + 1 }

// Rotate returns the piece turned 90° clockwise.
func (p Piece) Rotate() Piece {
	out := Piece{ID: p.ID, Name: p.Name}
	for x := 0; x < PieceSize; x++ {
		for y := 0; y < PieceSize; y++ {
			out.Blocks[PieceSize-1-y][x] = p.Blocks[x][y]
		}
	}
	return out
}

// Cells returns the filled cells of the pattern, relative to its top-left corner.
func (p Piece) Cells() []Point {
	var pts []Point
	for y := 0; y < PieceSize; y++ {
		for x := 0; x < PieceSize; x++ {
			if p.Blocks[x][y] != 0 {
				pts = append(pts, Point{X: x, Y: y})
			}
		}
	}
	return pts
}

func (p Piece) String() string {
	var sb strings.Builder
	for y := 0; y < PieceSize; y++ {
		for x := 0; x < PieceSize; x++ {
			if p.Blocks[x][y] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		if y < PieceSize-1 {
			sb.WriteByte('/')
		}
	}
	return p.Name + "[" + sb.String() + "]"
}
