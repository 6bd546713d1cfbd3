package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haytac/emoji-cdn/internal/cdn"
	"github.com/haytac/emoji-cdn/internal/config"
	"github.com/haytac/emoji-cdn/internal/emoji"
)

const (
	fixturePath = "../emoji/testdata/emoji.json"
	appleBase   = "https://cdn.jsdelivr.net/gh/iamcal/emoji-data/img-apple-160/"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func fixtureTable(t *testing.T) func() (*emoji.Table, error) {
	t.Helper()
	table, err := (&emoji.Loader{}).Load(context.Background(), fixturePath)
	require.NoError(t, err)
	return func() (*emoji.Table, error) { return table, nil }
}

func newTestServer(t *testing.T, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{Table: fixtureTable(t)}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func emojiPath(text string) string {
	return "/" + url.PathEscape(text)
}

func TestRoot_ServesUsage(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "http://emoji.example/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "http://emoji.example/\U0001F44D")
	for _, st := range cdn.Styles {
		assert.Contains(t, body, "`"+string(st)+"`")
	}
}

func TestRoot_HonoursForwardedProto(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "http://emoji.example/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "https://emoji.example/")
}

func TestFavicon_Empty(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "/favicon.ico")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	broken := New(Options{Table: func() (*emoji.Table, error) { return nil, errors.New("boom") }})
	rec = get(t, broken, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz_TrailingSlash(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "/healthz/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLookup_RedirectsToDefaultStyle(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, emojiPath("\U0001F44D"))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, appleBase+"1f44d.png", rec.Header().Get("Location"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, immutableCacheControl, rec.Header().Get("Cache-Control"))
}

func TestLookup_Styles(t *testing.T) {
	s := newTestServer(t, nil)
	for _, st := range cdn.Styles {
		rec := get(t, s, emojiPath("\U0001F600")+"?style="+string(st))
		require.Equal(t, http.StatusFound, rec.Code, st)
		want := fmt.Sprintf("https://cdn.jsdelivr.net/gh/iamcal/emoji-data/%s/1f600.png", st.Folder())
		assert.Equal(t, want, rec.Header().Get("Location"))
	}
}

func TestLookup_InvalidStyle(t *testing.T) {
	s := newTestServer(t, nil)
	for _, target := range []string{
		emojiPath("\U0001F600") + "?style=bogus",
		emojiPath("\U0001F600") + "?style=",
		"/random?style=bogus",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "Invalid style. Valid styles are: apple, google, facebook, twitter", strings.TrimSpace(rec.Body.String()))
	}
}

func TestLookup_EveryRecordByUnified(t *testing.T) {
	get0 := fixtureTable(t)
	table, _ := get0()
	s := New(Options{Table: get0})

	for _, r := range table.Records() {
		rec := get(t, s, "/"+strings.ToLower(r.Unified)+"?style=twitter")
		require.Equal(t, http.StatusFound, rec.Code, r.Unified)
		assert.Equal(t, "https://cdn.jsdelivr.net/gh/iamcal/emoji-data/img-twitter-72/"+r.Image, rec.Header().Get("Location"))
	}
}

func TestLookup_VariationSelector(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, emojiPath("\u2764"))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, appleBase+"2764-fe0f.png", rec.Header().Get("Location"))

	rec = get(t, s, emojiPath("\U0001F44D\uFE0F"))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, appleBase+"1f44d.png", rec.Header().Get("Location"))
}

func TestLookup_SkinTone(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, emojiPath("\U0001F44D\U0001F3FD"))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, appleBase+"1f44d-1f3fd.png", rec.Header().Get("Location"))
}

func TestLookup_Slug(t *testing.T) {
	s := newTestServer(t, nil)
	for _, slug := range []string{"grinning-face", "GRINNING-FACE"} {
		rec := get(t, s, "/"+slug)
		require.Equal(t, http.StatusFound, rec.Code, slug)
		assert.Equal(t, appleBase+"1f600.png", rec.Header().Get("Location"))
	}
}

func TestLookup_TrailingSlashes(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "//grinning-face//")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, appleBase+"1f600.png", rec.Header().Get("Location"))
}

func TestLookup_Shortcode(t *testing.T) {
	s := newTestServer(t, nil)
	rec := get(t, s, "/:thumbsup:")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, appleBase+"1f44d.png", rec.Header().Get("Location"))
}

func TestLookup_NotFound(t *testing.T) {
	s := newTestServer(t, nil)
	for _, target := range []string{"/thumbsup", "/nothinghere"} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, "Emoji not found", strings.TrimSpace(rec.Body.String()))
	}
}

func TestLookup_DatasetUnavailable(t *testing.T) {
	s := New(Options{Table: func() (*emoji.Table, error) { return nil, errors.New("boom") }})
	rec := get(t, s, emojiPath("\U0001F600"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRandom_ReachesEveryRecordInStyleFolder(t *testing.T) {
	get0 := fixtureTable(t)
	table, _ := get0()
	s := New(Options{Table: get0})

	const prefix = "https://cdn.jsdelivr.net/gh/iamcal/emoji-data/img-google-136/"
	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		rec := get(t, s, "/random?style=google")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, noStoreCacheControl, rec.Header().Get("Cache-Control"))
		loc := rec.Header().Get("Location")
		require.True(t, strings.HasPrefix(loc, prefix), loc)
		seen[strings.TrimPrefix(loc, prefix)] = true
	}
	for _, r := range table.Records() {
		assert.True(t, seen[r.Image], "record %s never drawn", r.Unified)
	}
}

func TestHead_FollowsGet(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodHead, emojiPath("\U0001F600"), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestProxy_StreamsImage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/img-facebook-96/1f973.png", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte("\x89PNG fake"))
	}))
	defer upstream.Close()

	s := newTestServer(t, func(o *Options) {
		o.Delivery = config.DeliveryProxy
		o.URLs = cdn.NewURLBuilder(upstream.URL)
		o.Fetcher = cdn.NewFetcher(upstream.Client())
	})
	rec := get(t, s, emojiPath("\U0001F973")+"?style=facebook")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG fake", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"abc"`, rec.Header().Get("ETag"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, immutableCacheControl, rec.Header().Get("Cache-Control"))
}

func TestProxy_UpstreamServerError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	s := newTestServer(t, func(o *Options) {
		o.Delivery = config.DeliveryProxy
		o.URLs = cdn.NewURLBuilder(upstream.URL)
		o.Fetcher = cdn.NewFetcher(upstream.Client())
	})
	rec := get(t, s, emojiPath("\U0001F600"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestProxy_UpstreamNotFoundPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	s := newTestServer(t, func(o *Options) {
		o.Delivery = config.DeliveryProxy
		o.URLs = cdn.NewURLBuilder(upstream.URL)
		o.Fetcher = cdn.NewFetcher(upstream.Client())
	})
	rec := get(t, s, emojiPath("\U0001F600"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

type unavailableFetcher struct{}

func (unavailableFetcher) Fetch(context.Context, string) (*http.Response, error) {
	return nil, fmt.Errorf("%w: open", cdn.ErrUpstreamUnavailable)
}

func TestProxy_BreakerOpen(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.Delivery = config.DeliveryProxy
		o.Fetcher = unavailableFetcher{}
	})
	rec := get(t, s, emojiPath("\U0001F600"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	assert.Equal(t, http.StatusFound, get(t, s, emojiPath("\U0001F600")).Code)
	assert.Equal(t, http.StatusFound, get(t, s, emojiPath("\U0001F600")).Code)
	rec := get(t, s, emojiPath("\U0001F600"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimit_IgnoresForwardingHeadersFromUntrustedPeers(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	rejected := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, emojiPath("\U0001F600"), nil)
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	assert.Equal(t, 48, rejected)
	assert.Equal(t, 1, s.limiter.size())
}

func TestRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	s := newTestServer(t, func(o *Options) {
		o.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
		// httptest.NewRequest uses 192.0.2.1 as the peer address.
		o.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}
	})

	from := func(clientIP string) int {
		req := httptest.NewRequest(http.MethodGet, emojiPath("\U0001F600"), nil)
		req.Header.Set("X-Real-IP", clientIP)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusFound, from("203.0.113.1"))
	assert.Equal(t, http.StatusFound, from("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, from("203.0.113.1"))
	assert.Equal(t, http.StatusFound, from("203.0.113.2"))
	assert.Equal(t, 2, s.limiter.size())
}

func TestClientLimiters_EvictsLeastRecentlyUsedAtCap(t *testing.T) {
	c := newClientLimiters(1, 1)
	c.maxClients = 3
	now := time.Now()

	c.get("a", now)
	c.get("b", now)
	c.get("c", now)
	c.get("a", now)
	c.get("d", now)

	assert.Equal(t, 3, c.size())
	assert.Contains(t, c.clients, "a")
	assert.NotContains(t, c.clients, "b")
	assert.Contains(t, c.clients, "c")
	assert.Contains(t, c.clients, "d")
}

func TestClientLimiters_EvictsIdleClients(t *testing.T) {
	c := newClientLimiters(1, 1)
	now := time.Now()

	c.get("a", now)
	c.get("b", now.Add(limiterIdleTTL/2))
	c.get("c", now.Add(limiterIdleTTL+time.Minute))

	assert.NotContains(t, c.clients, "a")
	assert.Contains(t, c.clients, "b")
	assert.Contains(t, c.clients, "c")
}

func TestPeerTrusted(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("::1/128")}
	assert.True(t, peerTrusted("10.1.2.3:5555", trusted))
	assert.True(t, peerTrusted("[::1]:8080", trusted))
	assert.True(t, peerTrusted("[::ffff:10.0.0.1]:80", trusted))
	assert.False(t, peerTrusted("192.0.2.1:1234", trusted))
	assert.False(t, peerTrusted("garbage", trusted))
}
