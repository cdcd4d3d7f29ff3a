package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const archiveSchema = "tetrecs_event_v1"

// Event kinds stored in EventRow.Kind.
const (
	EventStart    = "start"
	EventPlace    = "place"
	EventTimeout  = "timeout"
	EventGameOver = "game_over"
)

// EventRow is one engine event for long-term storage: a placement, a timeout
// or a game boundary, with the board as it stood afterwards.
//
// Cells is the grid in row-major order (index y*Width+x); 0 is empty and
// 1..15 is the value of the piece that filled the cell.
// X, Y and PieceID describe the placed piece and are -1 for other kinds.
type EventRow struct {
	GameID string `parquet:"game_id,dict"`
	Seq    int32  `parquet:"seq"`
	Kind   string `parquet:"kind,dict"`
	AtMs   int64  `parquet:"at_ms"`
	Player string `parquet:"player,dict,optional"`
	Mode   string `parquet:"mode,dict"`

	Width  int32   `parquet:"width"`
	Height int32   `parquet:"height"`
	Cells  []int32 `parquet:"cells"`

	X       int32 `parquet:"x"`
	Y       int32 `parquet:"y"`
	PieceID int32 `parquet:"piece_id"`
	Lines   int32 `parquet:"lines"`
	Points  int32 `parquet:"points"`

	Score      int32 `parquet:"score"`
	Lives      int32 `parquet:"lives"`
	Level      int32 `parquet:"level"`
	Multiplier int32 `parquet:"multiplier"`
	CurrentID  int32 `parquet:"current_id"`
	NextID     int32 `parquet:"next_id"`
}

// WriteArchiveAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir, so readers never observe a partial file.
// The returned path is the final parquet file path.
func WriteArchiveAtomic(outDir string, rows []EventRow) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("no rows to write")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("game_%d_%s.parquet", time.Now().UnixNano(), rows[0].GameID)
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadArchive loads every row of one archive file.
func ReadArchive(path string) ([]EventRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != archiveSchema {
		return nil, fmt.Errorf("unexpected schema %q in %s", schema, path)
	}

	reader := parquet.NewGenericReader[EventRow](pf)
	defer reader.Close()

	out := make([]EventRow, 0, reader.NumRows())
	buf := make([]EventRow, 256)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// ListArchives returns the archive files in dir, oldest first. Files still
// being written under dir/tmp are never listed.
func ListArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".parquet") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
