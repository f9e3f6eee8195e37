package webi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pleiades-api/internal/logger"
	"pleiades-api/internal/webi/cache"
)

type fakeSite struct {
	mu     sync.Mutex
	hits   map[string]int
	robots string
	lastUA string
	lastFr string
	srv    *httptest.Server
}

func newFakeSite(t *testing.T, robots string) *fakeSite {
	f := &fakeSite{hits: make(map[string]int), robots: robots}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if f.robots == "" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(f.robots))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.Method+" "+r.URL.Path]++
		f.lastUA = r.Header.Get("User-Agent")
		f.lastFr = r.Header.Get("From")
		f.mu.Unlock()
		switch r.URL.Path {
		case "/places/1001902":
			http.Redirect(w, r, "/places/991367", http.StatusMovedPermanently)
		case "/places/991367", "/private/x":
			w.WriteHeader(http.StatusOK)
		case "/nostore":
			w.Header().Set("Cache-Control", "no-store")
			_, _ = w.Write([]byte("fresh"))
		case "/maxage":
			w.Header().Set("Cache-Control", "public, max-age=600")
			_, _ = w.Write([]byte("aged"))
		case "/places/991367/json":
			_, _ = w.Write([]byte(`{"title":"Roma"}`))
		default:
			http.NotFound(w, r)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSite) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func headers(ua string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", ua)
	h.Set("From", "ops@example.org")
	return h
}

func TestClient_HeadFollowsRedirect(t *testing.T) {
	site := newFakeSite(t, "")
	c := New(Options{Headers: headers("TestAgent/1.0"), Logger: logger.Discard()})

	r, err := c.Head(context.Background(), site.srv.URL+"/places/1001902")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, site.srv.URL+"/places/991367", r.URL)
	assert.Equal(t, 1, site.count("HEAD /places/1001902"))
	assert.Equal(t, 1, site.count("HEAD /places/991367"))
	assert.Equal(t, "TestAgent/1.0", site.lastUA)
	assert.Equal(t, "ops@example.org", site.lastFr)
}

func TestClient_StatusError(t *testing.T) {
	site := newFakeSite(t, "")
	c := New(Options{Headers: headers("TestAgent/1.0"), Logger: logger.Discard()})

	_, err := c.Head(context.Background(), site.srv.URL+"/places/0")
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, http.MethodHead, se.Method)

	_, err = c.Get(context.Background(), site.srv.URL+"/missing")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func TestClient_GetUsesCache(t *testing.T) {
	site := newFakeSite(t, "")
	c := New(Options{
		Headers:     headers("TestAgent/1.0"),
		Store:       cache.NewMemory(16),
		ExpireAfter: time.Hour,
		Logger:      logger.Discard(),
	})
	ctx := context.Background()
	uri := site.srv.URL + "/places/991367/json"

	r1, err := c.Get(ctx, uri)
	require.NoError(t, err)
	assert.False(t, r1.Cached)
	r2, err := c.Get(ctx, uri)
	require.NoError(t, err)
	assert.True(t, r2.Cached)
	assert.Equal(t, r1.Body, r2.Body)
	assert.Equal(t, 1, site.count("GET /places/991367/json"))

	r3, err := c.Refresh(ctx, uri)
	require.NoError(t, err)
	assert.False(t, r3.Cached)
	assert.Equal(t, 2, site.count("GET /places/991367/json"))
}

func TestClient_HeadIsNeverCached(t *testing.T) {
	site := newFakeSite(t, "")
	c := New(Options{Headers: headers("TestAgent/1.0"), Store: cache.NewMemory(16), ExpireAfter: time.Hour, Logger: logger.Discard()})
	for i := 0; i < 3; i++ {
		_, err := c.Head(context.Background(), site.srv.URL+"/places/991367")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, site.count("HEAD /places/991367"))
}

func TestClient_CacheControl(t *testing.T) {
	site := newFakeSite(t, "")
	store := cache.NewMemory(16)
	c := New(Options{Headers: headers("TestAgent/1.0"), Store: store, ExpireAfter: time.Minute, CacheControl: true, Logger: logger.Discard()})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Get(ctx, site.srv.URL+"/nostore")
		require.NoError(t, err)
		_, err = c.Get(ctx, site.srv.URL+"/maxage")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, site.count("GET /nostore"))
	assert.Equal(t, 1, site.count("GET /maxage"))
	assert.Equal(t, 10*time.Minute, c.ttlFor(http.Header{"Cache-Control": {"max-age=600"}}))
	assert.Equal(t, time.Minute, c.ttlFor(http.Header{}))

	plain := New(Options{Headers: headers("TestAgent/1.0"), ExpireAfter: time.Minute, Logger: logger.Discard()})
	assert.Equal(t, time.Minute, plain.ttlFor(http.Header{"Cache-Control": {"no-store"}}))
}

func TestClient_RobotsDisallow(t *testing.T) {
	site := newFakeSite(t, "User-agent: *\nDisallow: /private/\n")
	c := New(Options{Headers: headers("TestAgent/1.0"), RespectRobotsTxt: true, Logger: logger.Discard()})
	ctx := context.Background()

	_, err := c.Get(ctx, site.srv.URL+"/private/x")
	assert.True(t, errors.Is(err, ErrDisallowed), "got %v", err)
	assert.Equal(t, 0, site.count("GET /private/x"))

	_, err = c.Head(ctx, site.srv.URL+"/places/991367")
	require.NoError(t, err)

	ignoring := New(Options{Headers: headers("TestAgent/1.0"), Logger: logger.Discard()})
	_, err = ignoring.Get(ctx, site.srv.URL+"/private/x")
	require.NoError(t, err)
	assert.Equal(t, 1, site.count("GET /private/x"))
}

func TestClient_MissingRobotsAllowsAll(t *testing.T) {
	site := newFakeSite(t, "")
	c := New(Options{Headers: headers("TestAgent/1.0"), RespectRobotsTxt: true, Logger: logger.Discard()})
	_, err := c.Get(context.Background(), site.srv.URL+"/private/x")
	require.NoError(t, err)
}

func TestClient_CrawlDelay(t *testing.T) {
	site := newFakeSite(t, "User-agent: *\nCrawl-delay: 0.05\n")
	c := New(Options{Headers: headers("TestAgent/1.0"), RespectRobotsTxt: true, Logger: logger.Discard()})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Head(ctx, site.srv.URL+"/places/991367")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_BadURI(t *testing.T) {
	c := New(Options{Logger: logger.Discard()})
	_, err := c.Get(context.Background(), "not a uri")
	assert.Error(t, err)
}
