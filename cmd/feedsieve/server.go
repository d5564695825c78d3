package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedsieve/feedsieve/cachestore"
	"github.com/feedsieve/feedsieve/collect"
	"github.com/feedsieve/feedsieve/countstore"
	"github.com/feedsieve/feedsieve/dispatch"
	"github.com/feedsieve/feedsieve/endpoint"
	"github.com/feedsieve/feedsieve/engine"
	"github.com/feedsieve/feedsieve/eventlog"
	"github.com/feedsieve/feedsieve/intercept"
	"github.com/feedsieve/feedsieve/rules"
	"github.com/feedsieve/feedsieve/xclient"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sharedConnectionsTTL = 24 * time.Hour

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	proxy      *intercept.Proxy
	dispatcher *dispatch.Dispatcher
}

type Config struct {
	Logger             *slog.Logger
	UpstreamHost       string
	BearerToken        string
	CSRFToken          string
	RedisURL           string
	FilterEnabled      bool
	AutoModEnabled     bool
	BannedKeywords     string
	ModerationKeywords string
	WhitelistedHandles string
	FollowerFloor      int64
	RatioThreshold     int64
	AutoAction         string
	DeferDelay         time.Duration
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var autoAction eventlog.Action
	switch config.AutoAction {
	case "", "block":
		autoAction = eventlog.ActionBlock
	case "mute":
		autoAction = eventlog.ActionMute
	default:
		return nil, fmt.Errorf("unknown auto-action %q", config.AutoAction)
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, sharedConnectionsTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, sharedConnectionsTTL)
	}

	registry := endpoint.NewRegistry()
	client := xclient.New(xclient.Config{
		Logger:      logger,
		Host:        config.UpstreamHost,
		BearerToken: config.BearerToken,
		CSRFToken:   config.CSRFToken,
		Registry:    registry,
	})
	events := &eventlog.SlogLog{Logger: logger}

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Logger:     logger,
		Client:     client,
		Events:     events,
		DeferDelay: config.DeferDelay,
	})
	collector := collect.NewCollector(collect.Config{
		Logger:     logger,
		Dispatcher: dispatcher,
		Events:     events,
	})

	eng := engine.New(engine.Config{
		Logger: logger,
		Rules: rules.Config{
			FilterEnabled:         config.FilterEnabled,
			AutoModerationEnabled: config.AutoModEnabled,
			BannedKeywords:        rules.ParseList(config.BannedKeywords),
			WhitelistedHandles:    rules.ParseHandleSet(config.WhitelistedHandles),
			FollowerFloor:         config.FollowerFloor,
			RatioThreshold:        config.RatioThreshold,
			ModerationKeywords:    rules.ParseList(config.ModerationKeywords),
		},
		Registry:   registry,
		Counters:   counters,
		Cache:      cache,
		Dispatcher: dispatcher,
		Collector:  collector,
		Events:     events,
		Failures:   &intercept.FailureLog{},
		Shared:     client,
		AutoAction: autoAction,
	})

	proxy, err := intercept.NewProxy(intercept.ProxyConfig{
		Logger:          logger,
		Upstream:        config.UpstreamHost,
		Tap:             eng,
		ShouldTransform: endpoint.IsContentBearing,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing proxy: %v", err)
	}

	return &Server{
		logger:     logger,
		engine:     eng,
		proxy:      proxy,
		dispatcher: dispatcher,
	}, nil
}

// Run serves intercepted traffic until the context ends or a shutdown signal
// arrives, then drains the action queue.
func (s *Server) Run(ctx context.Context, bind string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.proxy.Start(bind)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-sig:
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.proxy.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("proxy shutdown failed", "err", err)
	}
	s.dispatcher.Shutdown()
	return nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
