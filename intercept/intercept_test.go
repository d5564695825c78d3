package intercept

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTap struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	rewrite  func(body []byte) []byte
}

func (t *recordingTap) OnRequestStart(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, url)
}

func (t *recordingTap) OnResponseBody(url string, body []byte) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bodies = append(t.bodies, string(body))
	if t.rewrite != nil {
		return t.rewrite(body)
	}
	return body
}

func TestProxyTransformsSelectedResponses(t *testing.T) {
	assert := assert.New(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"path": %q}`, r.URL.Path)
	}))
	defer upstream.Close()

	tap := &recordingTap{
		rewrite: func(body []byte) []byte {
			return []byte(strings.Replace(string(body), "path", "rewritten", 1))
		},
	}
	p, err := NewProxy(ProxyConfig{
		Logger:   slog.Default(),
		Upstream: upstream.URL,
		Tap:      tap,
		ShouldTransform: func(url string) bool {
			return strings.Contains(url, "/HomeTimeline")
		},
	})
	require.NoError(t, err)

	front := httptest.NewServer(p.Handler())
	defer front.Close()

	// transformed path
	resp, err := http.Get(front.URL + "/i/api/graphql/abc/HomeTimeline")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(`{"rewritten": "/i/api/graphql/abc/HomeTimeline"}`, string(body))

	// untouched path
	resp, err = http.Get(front.URL + "/1.1/other.json")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(`{"path": "/1.1/other.json"}`, string(body))

	tap.mu.Lock()
	defer tap.mu.Unlock()
	assert.Len(tap.requests, 2)
	assert.Len(tap.bodies, 1)
}

func TestProxyRejectsBadUpstream(t *testing.T) {
	_, err := NewProxy(ProxyConfig{Logger: slog.Default(), Upstream: "not a url %%", Tap: &recordingTap{}})
	assert.Error(t, err)

	_, err = NewProxy(ProxyConfig{Logger: slog.Default(), Upstream: "/just/a/path", Tap: &recordingTap{}})
	assert.Error(t, err)
}

func TestFailureLogBounded(t *testing.T) {
	assert := assert.New(t)

	var l FailureLog
	for i := 0; i < 25; i++ {
		l.Record(fmt.Sprintf("https://x.com/req/%d", i), errors.New("bad json"))
	}
	recent := l.Recent()
	assert.Len(recent, 10)
	assert.Equal("https://x.com/req/15", recent[0].URL)
	assert.Equal("https://x.com/req/24", recent[9].URL)
}
