package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/osutrack/internal/model"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Time", "Beatmap", "Outcome"}
	rows := [][]string{
		{"20:15:00", "75", "counted"},
		{"20:19:30", "129891", "assisted"},
	}
	lines := formatTable(headers, rows, map[int]bool{1: true})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Time      Beatmap  Outcome" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "20:15:00       75  counted" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "20:19:30   129891  assisted" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"A", "B"}, [][]string{{"東方", "x"}, {"ab", "y"}}, nil)
	if lines[1] != "東方  x" || lines[2] != "ab    y" {
		t.Fatalf("expected display-width padding, got %q", lines)
	}
}

func TestStatusLine(t *testing.T) {
	line := StatusLine(model.Baseline{Completed: 250, Total: 1000, Percentage: 25}, 40, false)
	if !strings.HasPrefix(line, "250/1000 [") || !strings.HasSuffix(line, "] 25.0%") {
		t.Fatalf("unexpected status line: %q", line)
	}
	if len(line) != 40 {
		t.Fatalf("expected line to fill 40 cells, got %d", len(line))
	}
	if strings.Count(line, "#") != 6 {
		t.Fatalf("expected a quarter of the bar filled: %q", line)
	}
}

func TestStatusLineBounds(t *testing.T) {
	narrow := StatusLine(model.Baseline{Completed: 1, Total: 2, Percentage: 50}, 5, false)
	if strings.Count(narrow, "#")+strings.Count(narrow, "-") != minBarWidth {
		t.Fatalf("expected minimum bar width: %q", narrow)
	}
	wide := StatusLine(model.Baseline{Completed: 2, Total: 2, Percentage: 100}, 500, true)
	if strings.Count(wide, "#") != maxBarWidth || !strings.Contains(wide, colorFilled) {
		t.Fatalf("expected full colored bar capped at max width: %q", wide)
	}
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	runs := []model.RunRecord{
		{BeatmapID: 75, Outcome: model.OutcomeCounted, FinishedAt: time.Now()},
		{BeatmapID: 76, Outcome: model.OutcomeAssisted, FinishedAt: time.Now()},
	}
	totals := map[model.RunOutcome]int{model.OutcomeCounted: 3, model.OutcomeAssisted: 1}
	if err := WriteRuns(&buf, runs, totals); err != nil {
		t.Fatalf("write runs: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Outcome") || !strings.Contains(out, "counted 3, assisted 1") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestWriteRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRuns(&buf, nil, nil); err != nil {
		t.Fatalf("write runs: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "no runs recorded yet" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestWriteScore(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScore(&buf, 75, true); err != nil {
		t.Fatalf("write score: %v", err)
	}
	if buf.String() != "beatmap 75: has score\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
