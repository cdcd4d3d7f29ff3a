package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/brensch/tetrecs/game"
	"github.com/brensch/tetrecs/store"
)

func main() {
	archive := flag.String("archive", "", "Parquet archive to print (default: newest file in -dir)")
	dir := flag.String("dir", "archive", "Archive directory")
	list := flag.Bool("list", false, "List archived games instead of printing one")
	flag.Parse()

	if *list {
		listGames(*dir)
		return
	}

	path := *archive
	if path == "" {
		paths, err := store.ListArchives(*dir)
		if err != nil {
			log.Fatalf("Failed to list archives: %v", err)
		}
		if len(paths) == 0 {
			log.Fatalf("No archives in %s", *dir)
		}
		path = paths[len(paths)-1]
	}

	rows, err := store.ReadArchive(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}
	if len(rows) == 0 {
		log.Fatalf("Archive %s is empty", path)
	}

	first := rows[0]
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Game %s  player=%s  mode=%s  board=%dx%d\n", first.GameID, first.Player, first.Mode, first.Width, first.Height)
	fmt.Println("═══════════════════════════════════════════════════════════════")

	for _, row := range rows {
		fmt.Println()
		fmt.Println(describe(row))
		fmt.Print(dumpBoard(store.GridFromRow(row)))
	}

	last := rows[len(rows)-1]
	fmt.Println()
	fmt.Printf("Final: score=%d level=%d lives=%d events=%d\n", last.Score, last.Level, last.Lives, len(rows))
}

func describe(row store.EventRow) string {
	head := fmt.Sprintf("#%-3d %-9s score=%-5d level=%d lives=%d x%d", row.Seq, row.Kind, row.Score, row.Level, row.Lives, row.Multiplier)
	if row.Kind == store.EventPlace {
		name := "?"
		if row.PieceID >= 0 && row.PieceID < game.PieceCount {
			name = game.CreatePiece(int(row.PieceID)).Name
		}
		head += fmt.Sprintf("  placed %s at (%d,%d)", name, row.X, row.Y)
		if row.Lines > 0 {
			head += fmt.Sprintf("  cleared %d lines for %d", row.Lines, row.Points)
		}
	}
	return head
}

// dumpBoard prints the grid with one hex digit per cell value.
func dumpBoard(g *game.Grid) string {
	var sb strings.Builder
	for y := 0; y < g.Rows(); y++ {
		sb.WriteString("  ")
		for x := 0; x < g.Cols(); x++ {
			v := g.Get(x, y)
			if v == 0 {
				sb.WriteByte('.')
			} else {
				sb.WriteString(fmt.Sprintf("%x", v))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func listGames(dir string) {
	paths, err := store.ListArchives(dir)
	if err != nil {
		log.Fatalf("Failed to list archives: %v", err)
	}
	for _, p := range paths {
		rows, err := store.ReadArchive(p)
		if err != nil || len(rows) == 0 {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", p, err)
			continue
		}
		last := rows[len(rows)-1]
		fmt.Printf("%s  %s  %-12s %-6s score=%d events=%d\n", p, last.GameID, last.Player, last.Mode, last.Score, len(rows))
	}
}
