// Package catalog is a small client for the IGDB games API.
//
// IGDB authenticates with a Twitch application token. The client gets one
// through the OAuth2 client-credentials grant when a client secret is
// configured, or uses a pre-issued app access token as-is.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// IGDB allows four requests per second per client.
	requestsPerSecond = 4
)

var (
	ErrNotConfigured = errors.New("catalog: IGDB credentials not configured")
	// ErrNoResults is returned when IGDB answers with an empty list.
	ErrNoResults = errors.New("catalog: no games returned")
)

type Config struct {
	ClientID     string
	ClientSecret string
	// AppAccessToken is used when ClientSecret is empty.
	AppAccessToken string
	BaseURL        string
	TokenURL       string
	Timeout        time.Duration
}

// Image is a cover picture.
type Image struct {
	ID      int64  `json:"id"`
	ImageID string `json:"image_id"`
	URL     string `json:"url"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// Named is an expanded genre or platform reference.
type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Game struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Rating           float64 `json:"rating,omitempty"`
	Summary          string  `json:"summary,omitempty"`
	FirstReleaseDate int64   `json:"first_release_date,omitempty"`
	Cover            *Image  `json:"cover,omitempty"`
	Genres           []Named `json:"genres,omitempty"`
	Platforms        []Named `json:"platforms,omitempty"`
}

// ReleaseDate converts the unix timestamp IGDB sends. Zero when unknown.
func (g Game) ReleaseDate() time.Time {
	if g.FirstReleaseDate == 0 {
		return time.Time{}
	}
	return time.Unix(g.FirstReleaseDate, 0).UTC()
}

// Client queries the /games endpoint.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client
	limiter  *rate.Limiter
	popular  singleflight.Group
}

// New builds a client. The returned client fetches and refreshes tokens
// lazily, so New itself does no network I/O.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || (cfg.ClientSecret == "" && cfg.AppAccessToken == "") {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	// The token source keeps ctx for every later refresh, so it must not
	// inherit a startup deadline.
	ctx = context.WithoutCancel(ctx)

	var ts oauth2.TokenSource
	if cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			// Twitch expects the credentials in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		}
		ts = cc.TokenSource(ctx)
	} else {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AppAccessToken, TokenType: "Bearer"})
	}

	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}, nil
}

// Popular returns a dozen highly rated, widely followed games. Concurrent
// callers share one upstream request. The shared request is detached from
// any single caller and bounded by the client timeout; each caller still
// stops waiting when its own ctx is done.
func (c *Client) Popular(ctx context.Context) ([]Game, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.popular.DoChan("popular", func() (any, error) {
		return c.query(shared, "fields name, rating, cover.*; where rating < 100 & rating > 85 & follows > 50; limit 12;")
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("catalog: waiting for popular games: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Game), nil
	}
}

// Search runs a full-text search on game names.
func (c *Client) Search(ctx context.Context, term string) ([]Game, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrNoResults
	}
	return c.query(ctx, fmt.Sprintf("search %s; fields name, rating, cover.*; limit 500;", quote(term)))
}

// Game fetches one game with its genres and platforms expanded.
func (c *Client) Game(ctx context.Context, id int64) (*Game, error) {
	games, err := c.query(ctx, "fields name, rating, summary, genres.*, first_release_date, platforms.*, cover.*; where id = "+
		strconv.FormatInt(id, 10)+";")
	if err != nil {
		return nil, err
	}
	return &games[0], nil
}

func (c *Client) query(ctx context.Context, body string) ([]Game, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog: waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/games", bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("catalog: building request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: calling IGDB: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog: IGDB returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var games []Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("catalog: decoding IGDB response: %w", err)
	}
	if len(games) == 0 {
		return nil, ErrNoResults
	}
	return games, nil
}

// quote renders s as an apicalypse string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
