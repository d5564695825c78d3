// Package xclient originates requests against the upstream platform API:
// handle-to-id lookups, block/mute mutations, and best-effort
// shared-connections listings. GraphQL requests are built from operation ids
// captured off live traffic; the client never knows them in advance.
package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/feedsieve/feedsieve/endpoint"
	"github.com/feedsieve/feedsieve/timeline"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoOperationID means a GraphQL request was needed but no operation id
// has been captured yet. Callers treat this as "try again later", not as a
// terminal failure.
var ErrNoOperationID = errors.New("no captured operation id")

// StatusError is a non-2xx response from the upstream API.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Code, e.Endpoint)
}

type Config struct {
	Logger *slog.Logger
	// API host, eg "https://api.x.com"
	Host        string
	BearerToken string
	CSRFToken   string
	Registry    *endpoint.Registry
}

type Client struct {
	logger   *slog.Logger
	host     string
	bearer   string
	csrf     string
	registry *endpoint.Registry

	// lookups are idempotent reads and retry on transport errors; moderation
	// mutations never retry
	lookupHTTP *http.Client
	actionHTTP *http.Client
}

func New(cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.CheckRetry = transportOnlyRetryPolicy
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: cfg.Logger})
	lookup := retryClient.StandardClient()
	lookup.Timeout = 20 * time.Second

	return &Client{
		logger:     cfg.Logger,
		host:       strings.TrimSuffix(cfg.Host, "/"),
		bearer:     cfg.BearerToken,
		csrf:       cfg.CSRFToken,
		registry:   cfg.Registry,
		lookupHTTP: lookup,
		actionHTTP: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   20 * time.Second,
		},
	}
}

// transportOnlyRetryPolicy retries connection failures but never status
// codes: a rejected moderation lookup must surface immediately so the caller
// can invalidate stale operation ids.
func transportOnlyRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("X-Csrf-Token", c.csrf)
	req.Header.Set("X-Twitter-Auth-Type", "OAuth2Session")
	req.Header.Set("X-Twitter-Active-User", "yes")
	req.AddCookie(&http.Cookie{Name: "ct0", Value: c.csrf})
}

// LookupUserID resolves a handle to the account's stable identifier. It
// tries the REST lookup first and falls back to the captured GraphQL
// operation; when neither path is available it returns ErrNoOperationID so
// the caller can defer and retry once an id has been captured.
func (c *Client) LookupUserID(ctx context.Context, handle string) (string, error) {
	id, restErr := c.lookupUserREST(ctx, handle)
	if restErr == nil {
		return id, nil
	}

	id, gqlErr := c.lookupUserGraphQL(ctx, handle)
	if gqlErr == nil {
		return id, nil
	}
	if errors.Is(gqlErr, ErrNoOperationID) {
		c.logger.Debug("user lookup unavailable", "handle", handle, "err", restErr)
		return "", ErrNoOperationID
	}
	return "", fmt.Errorf("looking up @%s: %w", handle, gqlErr)
}

func (c *Client) lookupUserREST(ctx context.Context, handle string) (string, error) {
	u := c.host + "/1.1/users/show.json?screen_name=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.lookupHTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Endpoint: "users/show", Code: resp.StatusCode}
	}

	var body struct {
		IDStr string `json:"id_str"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding user lookup: %w", err)
	}
	if body.IDStr == "" {
		return "", fmt.Errorf("user lookup returned no id for @%s", handle)
	}
	return body.IDStr, nil
}

func (c *Client) lookupUserGraphQL(ctx context.Context, handle string) (string, error) {
	body, err := c.graphqlGet(ctx, endpoint.OpUserByHandle, map[string]any{
		"screen_name": handle,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		Data struct {
			User struct {
				Result struct {
					RestID string `json:"rest_id"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding graphql user lookup: %w", err)
	}
	if parsed.Data.User.Result.RestID == "" {
		return "", fmt.Errorf("graphql lookup returned no id for @%s", handle)
	}
	return parsed.Data.User.Result.RestID, nil
}

// SharedFollowersCount fetches the first page of the followers-you-know
// listing for an account and counts its entries. Best effort; requires a
// captured operation id.
func (c *Client) SharedFollowersCount(ctx context.Context, userID string) (int, error) {
	body, err := c.graphqlGet(ctx, endpoint.OpFollowersYouKnow, map[string]any{
		"userId": userID,
		"count":  20,
	})
	if err != nil {
		return 0, err
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decoding followers-you-know: %w", err)
	}
	n := 0
	for _, e := range timeline.ExtractEntries(parsed) {
		if e.Kind == timeline.UserEntry {
			n++
		}
	}
	return n, nil
}

// Block submits a block mutation for the given account id.
func (c *Client) Block(ctx context.Context, userID string) error {
	return c.postAction(ctx, "/1.1/blocks/create.json", userID)
}

// Mute submits a mute mutation for the given account id.
func (c *Client) Mute(ctx context.Context, userID string) error {
	return c.postAction(ctx, "/1.1/mutes/users/create.json", userID)
}

func (c *Client) postAction(ctx context.Context, path, userID string) error {
	form := url.Values{"user_id": {userID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.actionHTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: path, Code: resp.StatusCode}
	}
	return nil
}

// graphqlGet builds and issues a GraphQL GET from a captured operation id. A
// 404 means the cached id went stale: the registry entry is invalidated so
// the next live capture repopulates it, and the current call still fails. A
// 400 is ambiguous and leaves the registry alone.
func (c *Client) graphqlGet(ctx context.Context, op endpoint.Operation, variables map[string]any) ([]byte, error) {
	info, ok := c.registry.Lookup(op)
	if !ok {
		return nil, ErrNoOperationID
	}

	vars, err := json.Marshal(variables)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/i/api/graphql/%s/%s?variables=%s", c.host, info.ID, info.Name, url.QueryEscape(string(vars)))
	if info.ExtraQuery != "" {
		u += "&" + info.ExtraQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.lookupHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.registry.Invalidate(op)
		c.logger.Info("invalidated stale operation id", "operation", op, "id", info.ID)
		return nil, &StatusError{Endpoint: string(op), Code: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: string(op), Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
