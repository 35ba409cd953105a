package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/osutrack/internal/model"
)

func openMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Fatalf("close journal: %v", err)
		}
	})
	return j
}

func TestInsertAndListRuns(t *testing.T) {
	j := openMemory(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []model.RunOutcome{model.OutcomeCounted, model.OutcomeAssisted, model.OutcomeAlreadyScored} {
		_, err := j.InsertRun(ctx, model.RunRecord{
			SessionID:  "s1",
			BeatmapID:  100 + i,
			Outcome:    outcome,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}

	runs, err := j.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].BeatmapID != 102 || runs[0].Outcome != model.OutcomeAlreadyScored {
		t.Fatalf("expected newest run first, got %+v", runs[0])
	}
	if runs[0].ID == "" || !runs[0].FinishedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected record fields: %+v", runs[0])
	}
}

func TestInsertRunFillsDefaults(t *testing.T) {
	j := openMemory(t)
	rec, err := j.InsertRun(context.Background(), model.RunRecord{BeatmapID: 7, Outcome: model.OutcomeCounted})
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if rec.ID == "" || rec.FinishedAt.IsZero() {
		t.Fatalf("expected id and time to be filled, got %+v", rec)
	}
}

func TestListRunsZeroLimit(t *testing.T) {
	j := openMemory(t)
	runs, err := j.ListRuns(context.Background(), 0)
	if err != nil || runs != nil {
		t.Fatalf("expected nil runs, got %v, %v", runs, err)
	}
}

func TestCountOutcomes(t *testing.T) {
	j := openMemory(t)
	ctx := context.Background()
	records := []model.RunRecord{
		{SessionID: "a", BeatmapID: 1, Outcome: model.OutcomeCounted},
		{SessionID: "a", BeatmapID: 2, Outcome: model.OutcomeCounted},
		{SessionID: "a", BeatmapID: 3, Outcome: model.OutcomeAssisted},
		{SessionID: "b", BeatmapID: 4, Outcome: model.OutcomeCounted},
	}
	for _, rec := range records {
		if _, err := j.InsertRun(ctx, rec); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}

	all, err := j.CountOutcomes(ctx, "")
	if err != nil {
		t.Fatalf("count outcomes: %v", err)
	}
	if all[model.OutcomeCounted] != 3 || all[model.OutcomeAssisted] != 1 {
		t.Fatalf("unexpected totals: %v", all)
	}
	session, err := j.CountOutcomes(ctx, "b")
	if err != nil {
		t.Fatalf("count outcomes: %v", err)
	}
	if session[model.OutcomeCounted] != 1 || len(session) != 1 {
		t.Fatalf("unexpected session totals: %v", session)
	}
}

func TestOpenFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("open file journal: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
