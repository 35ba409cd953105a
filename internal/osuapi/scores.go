package osuapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type userScoresResponse struct {
	Scores []struct {
		ID int64 `json:"id"`
	} `json:"scores"`
}

// ScoreExists reports whether the player has at least one score on the beatmap.
func (c *Client) ScoreExists(ctx context.Context, beatmapID int) (bool, error) {
	if beatmapID <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidMapID, beatmapID)
	}
	url := fmt.Sprintf("%s/beatmaps/%d/scores/users/%s/all", c.apiURL, beatmapID, c.playerID)
	var payload userScoresResponse
	if err := getJSON(ctx, c.api, "beatmap scores", url, &payload); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return len(payload.Scores) > 0, nil
}
