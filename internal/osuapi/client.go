// Package osuapi talks to the osu! API v2 and the beatmap mirror statistics endpoint.
package osuapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Default endpoints.
const (
	DefaultAPIURL    = "https://osu.ppy.sh/api/v2"
	DefaultTokenURL  = "https://osu.ppy.sh/oauth/token"
	DefaultMirrorURL = "https://mirror.nekoha.moe"
)

const requestTimeout = 60 * time.Second

// ErrInvalidMapID is returned for beatmap ids that are not positive.
var ErrInvalidMapID = errors.New("invalid beatmap id")

// StatusError is a non-success HTTP response.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	PlayerID     string
	APIURL       string
	TokenURL     string
	MirrorURL    string
	// HTTPClient is the transport used for token and API requests.
	HTTPClient *http.Client
}

// Client is an authenticated osu! API client for one player.
type Client struct {
	api       *http.Client
	plain     *http.Client
	apiURL    string
	mirrorURL string
	playerID  string
}

// New builds a Client. Tokens are fetched lazily and refreshed before expiry.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.PlayerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: requestTimeout}
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"public"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	api := cc.Client(ctx)
	api.Timeout = base.Timeout

	return &Client{
		api:       api,
		plain:     base,
		apiURL:    trimBase(opts.APIURL, DefaultAPIURL),
		mirrorURL: trimBase(opts.MirrorURL, DefaultMirrorURL),
		playerID:  opts.PlayerID,
	}, nil
}

func trimBase(value, fallback string) string {
	if value == "" {
		value = fallback
	}
	return strings.TrimRight(value, "/")
}

func getJSON(ctx context.Context, client *http.Client, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
