// Package engine wires the moderation pipeline together: each intercepted
// response body is parsed, normalized into user records, scored against the
// current rule snapshot, mutated in place for suppression, and fed into the
// action dispatcher and bulk collector.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/feedsieve/feedsieve/cachestore"
	"github.com/feedsieve/feedsieve/collect"
	"github.com/feedsieve/feedsieve/countstore"
	"github.com/feedsieve/feedsieve/dispatch"
	"github.com/feedsieve/feedsieve/endpoint"
	"github.com/feedsieve/feedsieve/eventlog"
	"github.com/feedsieve/feedsieve/intercept"
	"github.com/feedsieve/feedsieve/rules"
	"github.com/feedsieve/feedsieve/timeline"

	"golang.org/x/sync/singleflight"
)

const sharedConnectionsCache = "shared-connections"

// SharedCounter is the slice of the upstream client used to populate
// shared-connections counts asynchronously.
type SharedCounter interface {
	SharedFollowersCount(ctx context.Context, userID string) (int, error)
}

type Config struct {
	Logger     *slog.Logger
	Rules      rules.Config
	Registry   *endpoint.Registry
	Counters   countstore.CountStore
	Cache      cachestore.CacheStore
	Dispatcher *dispatch.Dispatcher
	Collector  *collect.Collector
	Events     eventlog.Log
	Failures   *intercept.FailureLog

	// Shared is optional; when nil, shared-connections counts stay unknown
	// and that risk sub-score contributes nothing beyond the cache.
	Shared SharedCounter

	// AutoAction is what a moderation-keyword match triggers. Defaults to
	// block.
	AutoAction eventlog.Action
}

// Engine is the per-session pipeline context. It implements intercept.Tap;
// every collaborator is injected so tests can assemble small fixtures.
type Engine struct {
	logger     *slog.Logger
	registry   *endpoint.Registry
	counters   countstore.CountStore
	cache      cachestore.CacheStore
	dispatcher *dispatch.Dispatcher
	collector  *collect.Collector
	events     eventlog.Log
	failures   *intercept.FailureLog
	shared     SharedCounter
	autoAction eventlog.Action

	rules    atomic.Pointer[rules.Config]
	fetching singleflight.Group
}

var _ intercept.Tap = (*Engine)(nil)

func New(cfg Config) *Engine {
	action := cfg.AutoAction
	if action == "" {
		action = eventlog.ActionBlock
	}
	e := &Engine{
		logger:     cfg.Logger.With("component", "engine"),
		registry:   cfg.Registry,
		counters:   cfg.Counters,
		cache:      cfg.Cache,
		dispatcher: cfg.Dispatcher,
		collector:  cfg.Collector,
		events:     cfg.Events,
		failures:   cfg.Failures,
		shared:     cfg.Shared,
		autoAction: action,
	}
	snapshot := cfg.Rules
	e.rules.Store(&snapshot)
	return e
}

// Rules returns the current rule snapshot. Decisions read it once and never
// see a half-applied update.
func (e *Engine) Rules() *rules.Config {
	return e.rules.Load()
}

// SetRules swaps in a new rule snapshot; in-flight decisions keep the one
// they started with.
func (e *Engine) SetRules(cfg rules.Config) {
	e.rules.Store(&cfg)
}

// OnRequestStart observes an outbound URL: operation ids are captured
// opportunistically, and repost/quote listing navigations point the bulk
// collector at their status.
func (e *Engine) OnRequestStart(url string) {
	e.registry.Capture(url)
	if page, statusID, ok := endpoint.ClassifyListing(url); ok {
		e.collector.SetContext(page, statusID)
	}
}

// OnResponseBody runs the full pipeline over one content-bearing response
// body and returns the bytes to deliver downstream. Any failure returns the
// original body untouched: breaking the page is never an acceptable outcome
// of a filtering bug.
func (e *Engine) OnResponseBody(url string, body []byte) (out []byte) {
	out = body
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during response processing", "url", url, "panic", r)
			e.failures.Record(url, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx := context.Background()

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		parseFailures.Inc()
		e.failures.Record(url, err)
		return body
	}

	entries := timeline.ExtractEntries(parsed)
	if len(entries) == 0 {
		return body
	}
	responsesProcessed.Inc()

	cfg := e.Rules()
	page, _, onListing := endpoint.ClassifyListing(url)

	mutated := 0
	for _, entry := range entries {
		rec := timeline.NormalizeUser(entry)
		if rec == nil {
			continue
		}
		entriesSeen.Inc()

		if onListing && entry.Kind == timeline.UserEntry {
			e.collector.Collect(page, *rec)
		}

		if cfg.FilterEnabled && entry.Kind == timeline.TweetEntry {
			if e.suppressEntry(ctx, entry, rec, cfg) {
				mutated++
			}
		}

		if cfg.AutoModerationEnabled && !rec.Mutual() {
			display := rec.Name + " " + rec.Description
			if reason := rules.AutoModerationReason(rec.Handle, display, cfg.ModerationKeywords); reason != "" {
				e.dispatcher.Submit(ctx, *rec, e.autoAction, reason)
			}
		}
	}

	if mutated == 0 {
		return body
	}

	reserialized, err := json.Marshal(parsed)
	if err != nil {
		e.failures.Record(url, err)
		return body
	}
	return reserialized
}

// suppressEntry evaluates the rule reasons and the risk score for one tweet
// entry and rewrites the node when either path says suppress.
func (e *Engine) suppressEntry(ctx context.Context, entry timeline.Entry, rec *timeline.UserRecord, cfg *rules.Config) bool {
	e.populateSharedConnections(ctx, rec)

	reasons := rules.SuppressionReasons(rec, cfg)
	assessment := rules.RiskScore(rec, cfg)

	suppress := len(reasons) > 0
	if !suppress && !rec.Mutual() && !rec.WeFollow && !cfg.Whitelisted(rec.Handle) {
		corroborated := rec.Followers < cfg.FollowerFloor || rules.MatchedBannedKeywords(rec, cfg) > 0
		if rules.RiskSuppresses(assessment, corroborated) {
			reasons = append(reasons, assessment.String())
			suppress = true
		}
	}
	if !suppress {
		return false
	}

	timeline.Suppress(entry.Node)
	entriesSuppressed.Inc()
	if err := e.counters.Increment(ctx, "suppressed", "tweet"); err != nil {
		e.logger.Warn("counter increment failed", "err", err)
	}
	e.events.Record(eventlog.Event{
		Handle:  rec.Handle,
		Action:  eventlog.ActionSuppress,
		Outcome: eventlog.OutcomeSuccess,
		Reason:  strings.Join(reasons, "; "),
	})
	e.logger.Info("suppressed content",
		"handle", rec.Handle,
		"reasons", reasons,
		"risk", assessment.String(),
	)
	return true
}

// populateSharedConnections fills rec.SharedConnections from the freshness-
// windowed cache, and on a miss kicks off one background fetch per account so
// a later sighting can score with it. The current decision proceeds with the
// count unknown.
func (e *Engine) populateSharedConnections(ctx context.Context, rec *timeline.UserRecord) {
	if !rec.HasID() || e.cache == nil {
		return
	}
	val, ok, err := e.cache.Get(ctx, sharedConnectionsCache, rec.ID)
	if err == nil && ok {
		if n, err := strconv.Atoi(val); err == nil {
			rec.SharedConnections = &n
		}
		return
	}
	if e.shared == nil {
		return
	}
	// one fetch per account no matter how many sightings race; the current
	// decision proceeds with the count unknown either way
	go func(id string) {
		_, err, _ := e.fetching.Do(id, func() (any, error) {
			n, err := e.shared.SharedFollowersCount(context.Background(), id)
			if err != nil {
				return nil, err
			}
			return nil, e.cache.Set(context.Background(), sharedConnectionsCache, id, strconv.Itoa(n))
		})
		if err != nil {
			e.logger.Debug("shared connections fetch failed", "id", id, "err", err)
		}
	}(rec.ID)
}

// SuppressedCount reports the number of suppressions recorded for a period,
// for status displays.
func (e *Engine) SuppressedCount(ctx context.Context, period string) (int, error) {
	return e.counters.GetCount(ctx, "suppressed", "tweet", period)
}
