package xclient

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedsieve/feedsieve/endpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *endpoint.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	reg := endpoint.NewRegistry()
	c := New(Config{
		Logger:      slog.Default(),
		Host:        srv.URL,
		BearerToken: "bearer-token",
		CSRFToken:   "csrf-token",
		Registry:    reg,
	})
	return c, reg
}

func TestLookupUserIDViaREST(t *testing.T) {
	assert := assert.New(t)

	var sawAuth, sawCSRF string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/1.1/users/show.json", r.URL.Path)
		require.Equal(t, "some_handle", r.URL.Query().Get("screen_name"))
		sawAuth = r.Header.Get("Authorization")
		sawCSRF = r.Header.Get("X-Csrf-Token")
		w.Write([]byte(`{"id_str": "12345", "screen_name": "some_handle"}`))
	}))

	id, err := c.LookupUserID(context.Background(), "some_handle")
	assert.NoError(err)
	assert.Equal("12345", id)
	assert.Equal("Bearer bearer-token", sawAuth)
	assert.Equal("csrf-token", sawCSRF)
}

func TestLookupUserIDGraphQLFallback(t *testing.T) {
	assert := assert.New(t)

	c, reg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/users/show.json":
			w.WriteHeader(http.StatusForbidden)
		case "/i/api/graphql/opid123/UserByScreenName":
			w.Write([]byte(`{"data": {"user": {"result": {"rest_id": "67890"}}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	// no captured operation yet: defer-worthy error
	_, err := c.LookupUserID(context.Background(), "bob")
	assert.ErrorIs(err, ErrNoOperationID)

	reg.Capture("https://x.com/i/api/graphql/opid123/UserByScreenName?variables=%7B%7D")
	id, err := c.LookupUserID(context.Background(), "bob")
	assert.NoError(err)
	assert.Equal("67890", id)
}

func TestGraphQL404InvalidatesRegistry(t *testing.T) {
	assert := assert.New(t)

	c, reg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1.1/users/show.json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	reg.Capture("/i/api/graphql/staleid/UserByScreenName")

	_, err := c.LookupUserID(context.Background(), "bob")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(http.StatusNotFound, statusErr.Code)

	// stale entry dropped, next attempt defers until re-captured
	_, ok := reg.Lookup(endpoint.OpUserByHandle)
	assert.False(ok)
}

func TestGraphQL400KeepsRegistry(t *testing.T) {
	assert := assert.New(t)

	c, reg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1.1/users/show.json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	reg.Capture("/i/api/graphql/goodid/UserByScreenName")

	_, err := c.LookupUserID(context.Background(), "bob")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(http.StatusBadRequest, statusErr.Code)

	info, ok := reg.Lookup(endpoint.OpUserByHandle)
	assert.True(ok)
	assert.Equal("goodid", info.ID)
}

func TestBlockAndMute(t *testing.T) {
	assert := assert.New(t)

	var paths []string
	var bodies []string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, r.PostForm.Get("user_id"))
		w.Write([]byte(`{}`))
	}))

	assert.NoError(c.Block(context.Background(), "111"))
	assert.NoError(c.Mute(context.Background(), "222"))
	assert.Equal([]string{"/1.1/blocks/create.json", "/1.1/mutes/users/create.json"}, paths)
	assert.Equal([]string{"111", "222"}, bodies)
}

func TestBlockFailureStatus(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := c.Block(context.Background(), "111")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestSharedFollowersCount(t *testing.T) {
	assert := assert.New(t)

	c, reg := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/i/api/graphql/fykid/FollowersYouKnow", r.URL.Path)
		w.Write([]byte(`{"data": {"user": {"result": {"timeline": {"timeline": {"instructions": [
			{"type": "TimelineAddEntries", "entries": [
				{"content": {"entryType": "TimelineTimelineItem", "itemContent": {"itemType": "TimelineUser", "user_results": {"result": {"rest_id": "1", "legacy": {"screen_name": "a"}}}}}},
				{"content": {"entryType": "TimelineTimelineItem", "itemContent": {"itemType": "TimelineUser", "user_results": {"result": {"rest_id": "2", "legacy": {"screen_name": "b"}}}}}},
				{"content": {"entryType": "TimelineTimelineCursor"}}
			]}
		]}}}}}}`))
	}))

	_, err := c.SharedFollowersCount(context.Background(), "999")
	assert.ErrorIs(err, ErrNoOperationID)

	reg.Capture("/i/api/graphql/fykid/FollowersYouKnow?variables=%7B%7D")
	n, err := c.SharedFollowersCount(context.Background(), "999")
	assert.NoError(err)
	assert.Equal(2, n)
}
