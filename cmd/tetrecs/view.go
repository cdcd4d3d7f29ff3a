package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/tetrecs/game"
)

// One colour per piece value 1..15.
var pieceColors = []lipgloss.Color{
	"",
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#aaffc3",
}

var (
	emptyCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	aimOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	aimBlocked  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4040"))
	flashCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#ffffff"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7fd4ff"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#ffb347"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4040"))
	deadStyle   = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("241"))
	meStyle     = lipgloss.NewStyle().Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func blockStyle(v int) lipgloss.Style {
	if v <= 0 || v >= len(pieceColors) {
		return emptyCell
	}
	return lipgloss.NewStyle().Foreground(pieceColors[v])
}

func (m model) View() string {
	if m.state.Grid == nil {
		return "waiting for game...\n"
	}

	left := panelStyle.Render(m.renderBoard())
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStats(),
		"",
		m.renderPieces(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	if m.board != nil {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", m.renderLeaderboard())
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("TetrECS"))
	sb.WriteString("\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(renderTimer(m.remaining(), 30))
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	} else if m.status != "" {
		sb.WriteString(statusStyle.Render(m.status))
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderHelp())
	return sb.String()
}

// renderBoard draws the grid with the current piece ghosted over the cursor.
func (m model) renderBoard() string {
	g := m.state.Grid
	aim := map[game.Point]bool{}
	fits := true
	if !m.over {
		fits = g.CanPlayPiece(m.state.Current, m.cursor.X, m.cursor.Y)
		for _, c := range m.state.Current.Cells() {
			aim[game.Point{X: m.cursor.X - 1 + c.X, Y: m.cursor.Y - 1 + c.Y}] = true
		}
	}

	var sb strings.Builder
	for y := 0; y < g.Rows(); y++ {
		for x := 0; x < g.Cols(); x++ {
			p := game.Point{X: x, Y: y}
			v := g.Get(x, y)
			switch {
			case aim[p] && fits:
				sb.WriteString(aimOK.Render("▒▒"))
			case aim[p]:
				sb.WriteString(aimBlocked.Render("▒▒"))
			case !m.cleared[p].IsZero():
				sb.WriteString(flashCell.Render("  "))
			case v > 0:
				sb.WriteString(blockStyle(v).Render("██"))
			case p == m.cursor:
				sb.WriteString(emptyCell.Render("<>"))
			default:
				sb.WriteString(emptyCell.Render("··"))
			}
		}
		if y < g.Rows()-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (m model) renderStats() string {
	lives := strings.Repeat("♥ ", max(m.state.Lives, 0))
	if lives == "" {
		lives = "-"
	}
	rows := []string{
		stat("Player", m.name),
		stat("Score", fmt.Sprint(m.state.Score)),
		stat("High", fmt.Sprint(m.state.HighScore)),
		stat("Level", fmt.Sprint(m.state.Level)),
		stat("Lives", lives),
		stat("Multi", fmt.Sprintf("x%d", m.state.Multiplier)),
	}
	return strings.Join(rows, "\n")
}

func stat(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-7s", label)) + value
}

func (m model) renderPieces() string {
	cur := panelStyle.Render(labelStyle.Render("Current") + "\n" + renderPiece(m.state.Current))
	next := panelStyle.Render(labelStyle.Render("Next") + "\n" + renderPiece(m.state.Next))
	return lipgloss.JoinHorizontal(lipgloss.Top, cur, " ", next)
}

func renderPiece(p game.Piece) string {
	style := blockStyle(p.Value())
	var sb strings.Builder
	for y := 0; y < game.PieceSize; y++ {
		for x := 0; x < game.PieceSize; x++ {
			if p.Blocks[x][y] != 0 {
				sb.WriteString(style.Render("██"))
			} else {
				sb.WriteString("  ")
			}
		}
		if y < game.PieceSize-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (m model) renderLeaderboard() string {
	var sb strings.Builder
	sb.WriteString(labelStyle.Render("Leaderboard"))
	if len(m.standings) == 0 {
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("(no scores yet)"))
	}
	for i, s := range m.standings {
		line := fmt.Sprintf("%2d. %-12s %6d", i+1, s.Name, s.Score)
		switch {
		case s.Dead:
			line = deadStyle.Render(line)
		case s.Name == m.name:
			line = meStyle.Render(line)
		}
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	return panelStyle.Render(sb.String())
}

// renderTimer draws the countdown bar, shifting from green to red as it runs
// out.
func renderTimer(frac float64, width int) string {
	n := int(frac*float64(width) + 0.5)
	color := lipgloss.Color("#3cb44b")
	switch {
	case frac < 0.25:
		color = lipgloss.Color("#e6194b")
	case frac < 0.5:
		color = lipgloss.Color("#ffe119")
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", n))
	return bar + emptyCell.Render(strings.Repeat("░", width-n))
}

func (m model) renderHelp() string {
	k := m.keys
	if m.over {
		return labelStyle.Render("game over: " + k.place.help() + " or " + k.quit.help() + " to exit")
	}
	return labelStyle.Render(fmt.Sprintf("move %s  place %s  rotate %s | %s  swap %s  quit %s",
		"arrows/wasd", k.place.help(), k.rotateLeft.help(), k.rotateRight.help(), "space/r", k.quit.help()))
}
