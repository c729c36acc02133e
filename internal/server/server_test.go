package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/game-reviews/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                 0,
		TokenSecret:          "server-test-secret",
		AdminBootstrapSecret: "bootstrap",
		BcryptCost:           4,
		TokenTTL:             0,
		DBDriver:             "sqlite",
		DBPath:               ":memory:",
		AMQPExchange:         "account.events",
		AuthRateLimit:        100,
		AuthRateBurst:        100,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestNew_RequiresTokenSecret(t *testing.T) {
	cfg := testConfig()
	cfg.TokenSecret = ""

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `http_requests_total{method="GET",path="/healthz",status="204"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestGamesWithoutCatalogIs503(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/games")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// Register a@x.com, log in, delete the account, and find nothing left.
func TestAccountLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())
	c := client(t)

	post := func(path string, form url.Values) *http.Response {
		t.Helper()
		resp, err := c.PostForm(ts.URL+path, form)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}
	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := c.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp, string(b)
	}

	resp := post("/register", url.Values{
		"email": {"a@x.com"}, "username": {"alice"},
		"password": {"hunter2hunter2"}, "confirmPassword": {"hunter2hunter2"},
	})
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp = post("/login", url.Values{"email": {"a@x.com"}, "password": {"hunter2hunter2"}})
	require.Equal(t, "/games", resp.Header.Get("Location"))

	_, me := get("/me")
	require.Contains(t, me, `"authenticated":true`)
	id := between(me, `"id":"`, `"`)
	require.NotEmpty(t, id)

	resp = post("/profiles/"+id, url.Values{"_method": {"DELETE"}})
	assert.Equal(t, "/logout", resp.Header.Get("Location"))

	resp, _ = get("/logout")
	assert.Equal(t, "/", resp.Header.Get("Location"))

	_, flashes := get("/flashes")
	assert.Contains(t, flashes, "User successfully deleted!")
	assert.Contains(t, flashes, "Successfully logged out!")

	resp = post("/login", url.Values{"email": {"a@x.com"}, "password": {"hunter2hunter2"}})
	assert.Equal(t, "/register", resp.Header.Get("Location"), "the account is gone")
}

func TestLoginIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimit = 0.001
	cfg.AuthRateBurst = 1
	ts := newTestServer(t, cfg)

	form := url.Values{"email": {"a@x.com"}, "password": {"whatever"}}
	c := client(t)

	resp, err := c.PostForm(ts.URL+"/login", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = c.PostForm(ts.URL+"/login", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}
