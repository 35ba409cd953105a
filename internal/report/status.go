package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/osutrack/internal/model"
)

const (
	minBarWidth         = 10
	maxBarWidth         = 60
	terminalWidthBackup = 80
	colorFilled         = "\x1b[35m"
	colorReset          = "\x1b[0m"
)

// WriteStatus prints a baseline as a single progress line sized to the terminal.
func WriteStatus(w io.Writer, b model.Baseline) error {
	line := StatusLine(b, terminalWidth(w), shouldUseColor(w))
	if _, err := fmt.Fprintln(w, line); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// StatusLine formats "completed/total [bar] pct%" within width cells.
func StatusLine(b model.Baseline, width int, color bool) string {
	label := fmt.Sprintf("%d/%d", b.Completed, b.Total)
	pct := fmt.Sprintf("%.1f%%", b.Percentage)
	barWidth := width - len(label) - len(pct) - 4
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	if barWidth > maxBarWidth {
		barWidth = maxBarWidth
	}
	ratio := math.Max(0, math.Min(100, b.Percentage)) / 100
	filled := int(math.Round(ratio * float64(barWidth)))
	bar := strings.Repeat("#", filled)
	if color && filled > 0 {
		bar = colorFilled + bar + colorReset
	}
	return label + " [" + bar + strings.Repeat("-", barWidth-filled) + "] " + pct
}

// WriteScore prints the answer of a single score lookup.
func WriteScore(w io.Writer, beatmapID int, exists bool) error {
	answer := "no score"
	if exists {
		answer = "has score"
	}
	if _, err := fmt.Fprintf(w, "beatmap %d: %s\n", beatmapID, answer); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// WriteRuns prints classified runs as an aligned table, newest first.
func WriteRuns(w io.Writer, runs []model.RunRecord, totals map[model.RunOutcome]int) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded yet")
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.FinishedAt.Local().Format(time.TimeOnly),
			strconv.Itoa(run.BeatmapID),
			string(run.Outcome),
		})
	}
	lines := formatTable([]string{"Time", "Beatmap", "Outcome"}, rows, map[int]bool{1: true})
	outcomes := []model.RunOutcome{
		model.OutcomeCounted,
		model.OutcomeAlreadyScored,
		model.OutcomeAssisted,
		model.OutcomeLookupFailed,
	}
	summary := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if n := totals[o]; n > 0 {
			summary = append(summary, fmt.Sprintf("%s %d", o, n))
		}
	}
	if len(summary) > 0 {
		lines = append(lines, "", strings.Join(summary, ", "))
	}
	if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func terminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok {
		return terminalWidthBackup
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
