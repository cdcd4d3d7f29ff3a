// Package logging holds the slog setup shared by the tetrecs binaries.
package logging

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ConsoleHandler is a slog.Handler that prints one line per record:
//
//	15:04:05.000 INFO  game started cols=5 rows=5
//
// Groups are flattened into dotted keys. It is geared toward log files and
// terminals, not throughput.
type ConsoleHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	prefix string // pre-rendered WithAttrs output
	groups []string
}

func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	var level slog.Leveler = slog.LevelInfo
	addSource := false
	if opts != nil {
		if opts.Level != nil {
			level = opts.Level
		}
		addSource = opts.AddSource
	}

	return &ConsoleHandler{
		w:         w,
		mu:        &sync.Mutex{},
		level:     level,
		addSource: addSource,
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}
	sb.WriteString(when.Format("15:04:05.000"))
	sb.WriteByte(' ')
	lvl := r.Level.String()
	sb.WriteString(lvl)
	for i := len(lvl); i < 5; i++ {
		sb.WriteByte(' ')
	}
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	if h.addSource {
		if src := sourceFromPC(r.PC); src != "" {
			sb.WriteString(" source=")
			sb.WriteString(src)
		}
	}

	sb.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.groups, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	sb.WriteString(h.prefix)
	for _, a := range attrs {
		writeAttr(&sb, h.groups, a)
	}
	clone := *h
	clone.prefix = sb.String()
	return &clone
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func writeAttr(sb *strings.Builder, groups []string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}

	if v.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range v.Group() {
			writeAttr(sb, sub, ga)
		}
		return
	}

	sb.WriteByte(' ')
	for _, g := range groups {
		sb.WriteString(g)
		sb.WriteByte('.')
	}
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(formatValue(v))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		s = v.Duration().String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339Nano)
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
