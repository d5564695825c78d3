package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedsieve/feedsieve/cachestore"
	"github.com/feedsieve/feedsieve/collect"
	"github.com/feedsieve/feedsieve/countstore"
	"github.com/feedsieve/feedsieve/dispatch"
	"github.com/feedsieve/feedsieve/endpoint"
	"github.com/feedsieve/feedsieve/eventlog"
	"github.com/feedsieve/feedsieve/intercept"
	"github.com/feedsieve/feedsieve/rules"
)

// Fixture bundles an engine over in-memory stores with its observable
// collaborators, for tests in this and other packages.
type Fixture struct {
	Engine     *Engine
	Registry   *endpoint.Registry
	Cache      *cachestore.MemCacheStore
	Counters   *countstore.MemCountStore
	Events     *eventlog.MemLog
	Failures   *intercept.FailureLog
	Dispatcher *dispatch.Dispatcher
	Collector  *collect.Collector
}

type noopClient struct{}

func (noopClient) LookupUserID(ctx context.Context, handle string) (string, error) {
	return "id-" + handle, nil
}
func (noopClient) Block(ctx context.Context, userID string) error { return nil }
func (noopClient) Mute(ctx context.Context, userID string) error  { return nil }

// NewTestFixture assembles a fully in-memory engine. Pass a nil client to
// fall back to a no-op upstream.
func NewTestFixture(rcfg rules.Config, client dispatch.ActionClient) *Fixture {
	logger := slog.Default()
	if client == nil {
		client = noopClient{}
	}
	events := &eventlog.MemLog{}
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Logger:     logger,
		Client:     client,
		Events:     events,
		DeferDelay: time.Millisecond,
	})
	collector := collect.NewCollector(collect.Config{
		Logger:       logger,
		Dispatcher:   dispatcher,
		Events:       events,
		ItemInterval: time.Millisecond,
	})
	f := &Fixture{
		Registry:   endpoint.NewRegistry(),
		Cache:      cachestore.NewMemCacheStore(128, time.Hour),
		Counters:   countstore.NewMemCountStore(),
		Events:     events,
		Failures:   &intercept.FailureLog{},
		Dispatcher: dispatcher,
		Collector:  collector,
	}
	f.Engine = New(Config{
		Logger:     logger,
		Rules:      rcfg,
		Registry:   f.Registry,
		Counters:   f.Counters,
		Cache:      f.Cache,
		Dispatcher: dispatcher,
		Collector:  collector,
		Events:     events,
		Failures:   f.Failures,
	})
	return f
}
