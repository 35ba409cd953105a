package overlay

import (
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/osutrack/internal/model"
)

const (
	defaultContentWidth = 48
	minBarWidth         = 10
)

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return defaultContentWidth
	}
	w := int(float64(m.width) * 0.70)
	if w < minBarWidth {
		w = minBarWidth
	}
	return w
}

func (m *Model) renderContent() string {
	width := m.contentWidth()
	lines := []string{titleStyle.Render("osu! completion")}
	if !m.ready() {
		lines = append(lines, m.spinner.View()+mutedStyle.Render(" loading completion"))
	} else {
		p := m.state.Progress
		lines = append(lines, renderCount(p), renderBar(p.Percentage, width))
	}
	lines = append(lines, "", renderConnection(m.state))
	if bm := beatmapLine(m.state.State.Beatmap); bm != "" {
		lines = append(lines, truncate(bm, width))
	}
	if runs := m.renderRuns(width); runs != "" {
		lines = append(lines, "", runs)
	}
	return strings.Join(lines, "\n")
}

func renderCount(p model.Progress) string {
	line := countStyle.Render(fmt.Sprintf("%d / %d", p.Completed, p.Total)) +
		"  " + percentStyle.Render(fmt.Sprintf("%.1f%%", p.Percentage))
	if p.Delta > 0 {
		line += "  " + badgeStyle.Render(fmt.Sprintf("+%d", p.Delta))
	}
	return line
}

// renderBar draws a fixed-width bar for a 0-100 percentage.
func renderBar(pct float64, width int) string {
	if width < minBarWidth {
		width = minBarWidth
	}
	pct = math.Max(0, math.Min(100, pct))
	filled := int(math.Round(pct / 100 * float64(width)))
	return barFilledStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func renderConnection(state model.OverlayState) string {
	if !state.Connected {
		return offlineStyle.Render("● tosu disconnected")
	}
	return onlineStyle.Render("● tosu connected") + mutedStyle.Render("  "+string(state.State.GameState))
}

func beatmapLine(bm *model.BeatmapInfo) string {
	if bm == nil {
		return ""
	}
	line := fmt.Sprintf("BID %d  %s - %s", bm.ID, bm.Artist, bm.Title)
	if bm.Version != "" {
		line += " [" + bm.Version + "]"
	}
	return line
}

func (m *Model) renderRuns(width int) string {
	runs := m.state.Recent
	if len(runs) == 0 {
		return ""
	}
	if len(runs) > m.maxRuns {
		runs = runs[:m.maxRuns]
	}
	lines := make([]string, 0, len(runs)+1)
	lines = append(lines, mutedStyle.Render("recent runs"))
	for _, run := range runs {
		line := fmt.Sprintf("%s  %-14s BID %d", run.FinishedAt.Format("15:04:05"), run.Outcome, run.BeatmapID)
		style := mutedStyle
		if run.Outcome == model.OutcomeCounted {
			style = onlineStyle
		}
		lines = append(lines, style.Render(truncate(line, width)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	segments := []string{"q quit"}
	if m.ready() {
		b := m.state.Progress
		segments = append(segments, fmt.Sprintf("baseline %d", b.Completed-b.Delta))
		if !b.UpdatedAt.IsZero() {
			segments = append(segments, "refreshed "+b.UpdatedAt.Format("15:04:05"))
		}
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
