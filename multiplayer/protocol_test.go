package multiplayer

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{"piece request", "PIECE", Message{Kind: KindPieceRequest, Verb: "PIECE"}},
		{"piece", "PIECE 7", Message{Kind: KindPiece, Verb: "PIECE", PieceID: 7}},
		{"piece trailing newline", "PIECE 14\n", Message{Kind: KindPiece, Verb: "PIECE", PieceID: 14}},
		{"score", "SCORE 250", Message{Kind: KindScore, Verb: "SCORE", Score: 250}},
		{"scores request", "SCORES", Message{Kind: KindScoresRequest, Verb: "SCORES"}},
		{"scores", "SCORES alice:120\nbob:300", Message{Kind: KindScores, Verb: "SCORES", Scores: []Entry{{"alice", 120}, {"bob", 300}}}},
		{"scores newline separator", "SCORES\nalice:1\n\nbob:2\n", Message{Kind: KindScores, Verb: "SCORES", Scores: []Entry{{"alice", 1}, {"bob", 2}}}},
		{"name with colon", "SCORES a:b:5", Message{Kind: KindScores, Verb: "SCORES", Scores: []Entry{{"a:b", 5}}}},
		{"die", "DIE", Message{Kind: KindDie, Verb: "DIE"}},
		{"die notice", "DIE carol", Message{Kind: KindDieNotice, Verb: "DIE", Name: "carol"}},
		{"chat", "MSG hello there", Message{Kind: KindIgnored, Verb: "MSG"}},
		{"empty", "", Message{Kind: KindIgnored, Verb: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) err=%v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse(%q)\n got=%+v\nwant=%+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, raw := range []string{
		"PIECE 15",
		"PIECE -1",
		"PIECE seven",
		"SCORE abc",
		"SCORE -5",
		"SCORES alice",
		"SCORES alice:1\nbob:x",
		"SCORES :5",
	} {
		got, err := Parse(raw)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) err=%v want=ErrMalformed", raw, err)
		}
		if !reflect.DeepEqual(got, Message{}) {
			t.Fatalf("Parse(%q) returned partial message %+v", raw, got)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := FormatPiece(3); got != "PIECE 3" {
		t.Fatalf("FormatPiece=%q", got)
	}
	if got := FormatScore(1090); got != "SCORE 1090" {
		t.Fatalf("FormatScore=%q", got)
	}
	if got := FormatDie("bob"); got != "DIE bob" {
		t.Fatalf("FormatDie=%q", got)
	}
	if got := FormatScores(nil); got != "SCORES" {
		t.Fatalf("FormatScores(nil)=%q", got)
	}

	entries := []Entry{{"bob", 300}, {"alice", 120}}
	raw := FormatScores(entries)
	if raw != "SCORES bob:300\nalice:120" {
		t.Fatalf("FormatScores=%q", raw)
	}
	msg, err := Parse(raw)
	if err != nil || !reflect.DeepEqual(msg.Scores, entries) {
		t.Fatalf("round trip scores=%v err=%v", msg.Scores, err)
	}
}
