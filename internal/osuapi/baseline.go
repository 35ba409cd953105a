package osuapi

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/verte-zerg/osutrack/internal/model"
)

type userResponse struct {
	ID                     int    `json:"id"`
	Username               string `json:"username"`
	BeatmapPlaycountsCount int    `json:"beatmap_playcounts_count"`
}

// mirrorCount accepts counts encoded either as numbers or as numeric strings.
// Fractional values are truncated.
type mirrorCount int

func (m *mirrorCount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("invalid count %q", data)
	}
	*m = mirrorCount(int(n))
	return nil
}

type mirrorStats struct {
	Ranked   mirrorCount `json:"osu_bm_ranked_count"`
	Approved mirrorCount `json:"osu_bm_approved_count"`
	Loved    mirrorCount `json:"osu_bm_loved_count"`
}

// FetchBaseline returns distinct maps played against the ranked, approved, and loved total.
func (c *Client) FetchBaseline(ctx context.Context) (model.Baseline, error) {
	var user userResponse
	if err := getJSON(ctx, c.api, "player", fmt.Sprintf("%s/users/%s/osu", c.apiURL, c.playerID), &user); err != nil {
		return model.Baseline{}, err
	}
	var stats mirrorStats
	if err := getJSON(ctx, c.plain, "mirror stats", c.mirrorURL+"/api4/stats", &stats); err != nil {
		return model.Baseline{}, err
	}
	total := int(stats.Ranked + stats.Approved + stats.Loved)
	if total <= 0 {
		return model.Baseline{}, fmt.Errorf("mirror stats: no ranked beatmaps reported")
	}
	completed := user.BeatmapPlaycountsCount
	pct := math.Min(100, float64(completed)/float64(total)*100)
	return model.Baseline{
		Completed:  completed,
		Total:      total,
		Percentage: math.Round(pct*10) / 10,
	}, nil
}
