// Package multiplayer turns a single engine into a networked game: pieces come
// from the server in a shared order, scores and eliminations go back out, and
// a leaderboard tracks everyone in the channel.
//
// The wire protocol is plain text, one protocol message per websocket text
// message:
//
//	client -> server   PIECE | SCORE <n> | SCORES | DIE
//	server -> client   PIECE <id> | SCORES <name:score>\n... | DIE <name>
package multiplayer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brensch/tetrecs/game"
)

// ErrMalformed marks a message that does not match its verb's format.
var ErrMalformed = errors.New("multiplayer: malformed message")

// Kind classifies a parsed message.
type Kind int

const (
	KindIgnored       Kind = iota // chat, lobby and unknown verbs
	KindPieceRequest              // PIECE
	KindPiece                     // PIECE <id>
	KindScore                     // SCORE <n>
	KindScoresRequest             // SCORES
	KindScores                    // SCORES name:score\n...
	KindDie                       // DIE
	KindDieNotice                 // DIE <name>
)

const (
	verbPiece  = "PIECE"
	verbScore  = "SCORE"
	verbScores = "SCORES"
	verbDie    = "DIE"
)

// Outbound messages with no arguments.
const (
	PieceRequest  = verbPiece
	ScoresRequest = verbScores
	Die           = verbDie
)

// Entry is one name:score record.
type Entry struct {
	Name  string
	Score int
}

// Message is a parsed protocol message. Only the fields for Kind are set.
type Message struct {
	Kind    Kind
	Verb    string
	PieceID int
	Score   int
	Name    string
	Scores  []Entry
}

// Parse decodes one protocol message. Malformed input returns an error
// wrapping ErrMalformed and a zero Message.
func Parse(raw string) (Message, error) {
	raw = strings.TrimRight(raw, "\r\n")
	verb, rest := raw, ""
	if i := strings.IndexAny(raw, " \n"); i >= 0 {
		verb, rest = raw[:i], raw[i+1:]
	}
	msg := Message{Verb: verb}

	switch verb {
	case verbPiece:
		if strings.TrimSpace(rest) == "" {
			msg.Kind = KindPieceRequest
			return msg, nil
		}
		id, err := game.ParsePieceID(rest)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.Kind = KindPiece
		msg.PieceID = id

	case verbScore:
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 0 {
			return Message{}, fmt.Errorf("%w: score %q", ErrMalformed, rest)
		}
		msg.Kind = KindScore
		msg.Score = n

	case verbScores:
		if strings.TrimSpace(rest) == "" {
			msg.Kind = KindScoresRequest
			return msg, nil
		}
		entries, err := ParseScores(rest)
		if err != nil {
			return Message{}, err
		}
		msg.Kind = KindScores
		msg.Scores = entries

	case verbDie:
		name := strings.TrimSpace(rest)
		if name == "" {
			msg.Kind = KindDie
			return msg, nil
		}
		msg.Kind = KindDieNotice
		msg.Name = name

	default:
		msg.Kind = KindIgnored
	}
	return msg, nil
}

// ParseScores decodes newline separated name:score records. Blank lines are
// skipped; any bad record fails the whole list.
func ParseScores(s string) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		i := strings.LastIndexByte(line, ':')
		if i <= 0 {
			return nil, fmt.Errorf("%w: score record %q", ErrMalformed, line)
		}
		n, err := strconv.Atoi(line[i+1:])
		if err != nil {
			return nil, fmt.Errorf("%w: score record %q", ErrMalformed, line)
		}
		entries = append(entries, Entry{Name: line[:i], Score: n})
	}
	return entries, nil
}

func FormatPiece(id int) string { return verbPiece + " " + strconv.Itoa(id) }

func FormatScore(score int) string { return verbScore + " " + strconv.Itoa(score) }

func FormatDie(name string) string { return verbDie + " " + name }

// FormatScores encodes a leaderboard snapshot.
func FormatScores(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString(verbScores)
	for i, e := range entries {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Name)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(e.Score))
	}
	return sb.String()
}
