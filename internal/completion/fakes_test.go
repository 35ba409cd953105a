package completion

import (
	"context"
	"errors"

	"github.com/verte-zerg/osutrack/internal/model"
)

var errLookup = errors.New("lookup failed")

type fakeChecker struct {
	answers map[int]bool
	err     error
	calls   []int
}

func (f *fakeChecker) ScoreExists(_ context.Context, beatmapID int) (bool, error) {
	f.calls = append(f.calls, beatmapID)
	if f.err != nil {
		return false, f.err
	}
	return f.answers[beatmapID], nil
}

type fakeFetcher struct {
	baseline model.Baseline
	err      error
	calls    int
}

func (f *fakeFetcher) FetchBaseline(context.Context) (model.Baseline, error) {
	f.calls++
	if f.err != nil {
		return model.Baseline{}, f.err
	}
	return f.baseline, nil
}
