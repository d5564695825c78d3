package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "feedsieve",
		Usage:   "intercepting timeline filter and moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "upstream-host",
			Usage:   "scheme and host of the upstream API to forward to",
			Value:   "https://x.com",
			EnvVars: []string{"FEEDSIEVE_UPSTREAM_HOST"},
		},
		&cli.StringFlag{
			Name:    "bearer-token",
			Usage:   "session bearer token for originated API calls",
			EnvVars: []string{"FEEDSIEVE_BEARER_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "csrf-token",
			Usage:   "session csrf token (ct0) for originated API calls",
			EnvVars: []string{"FEEDSIEVE_CSRF_TOKEN"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for intercepted traffic",
			Value:   ":3380",
			EnvVars: []string{"FEEDSIEVE_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3381",
			EnvVars: []string{"FEEDSIEVE_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection for counters and the shared-connections cache, like redis://localhost:6379/0; in-memory when empty",
			EnvVars: []string{"FEEDSIEVE_REDIS_URL"},
		},
		&cli.BoolFlag{
			Name:    "filter",
			Usage:   "rewrite suppressed content in intercepted responses",
			Value:   true,
			EnvVars: []string{"FEEDSIEVE_FILTER"},
		},
		&cli.BoolFlag{
			Name:    "auto-moderation",
			Usage:   "block/mute accounts matching moderation keywords",
			EnvVars: []string{"FEEDSIEVE_AUTO_MODERATION"},
		},
		&cli.StringFlag{
			Name:    "banned-keywords",
			Usage:   "comma-separated suppression keywords",
			EnvVars: []string{"FEEDSIEVE_BANNED_KEYWORDS"},
		},
		&cli.StringFlag{
			Name:    "moderation-keywords",
			Usage:   "comma-separated auto-moderation keywords (independent of suppression)",
			EnvVars: []string{"FEEDSIEVE_MODERATION_KEYWORDS"},
		},
		&cli.StringFlag{
			Name:    "whitelisted-handles",
			Usage:   "comma-separated handles exempt from suppression",
			EnvVars: []string{"FEEDSIEVE_WHITELISTED_HANDLES"},
		},
		&cli.Int64Flag{
			Name:    "follower-floor",
			Usage:   "accounts below this follower count get a low-audience reason",
			Value:   100,
			EnvVars: []string{"FEEDSIEVE_FOLLOWER_FLOOR"},
		},
		&cli.Int64Flag{
			Name:    "ratio-threshold",
			Usage:   "following >= N*followers gets a ratio reason",
			Value:   10,
			EnvVars: []string{"FEEDSIEVE_RATIO_THRESHOLD"},
		},
		&cli.StringFlag{
			Name:    "auto-action",
			Usage:   "action for moderation-keyword matches: block or mute",
			Value:   "block",
			EnvVars: []string{"FEEDSIEVE_AUTO_ACTION"},
		},
		&cli.DurationFlag{
			Name:    "defer-delay",
			Usage:   "retry delay when an action is waiting on an operation id capture",
			Value:   20 * time.Second,
			EnvVars: []string{"FEEDSIEVE_DEFER_DELAY"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(Config{
			Logger:             logger,
			UpstreamHost:       cctx.String("upstream-host"),
			BearerToken:        cctx.String("bearer-token"),
			CSRFToken:          cctx.String("csrf-token"),
			RedisURL:           cctx.String("redis-url"),
			FilterEnabled:      cctx.Bool("filter"),
			AutoModEnabled:     cctx.Bool("auto-moderation"),
			BannedKeywords:     cctx.String("banned-keywords"),
			ModerationKeywords: cctx.String("moderation-keywords"),
			WhitelistedHandles: cctx.String("whitelisted-handles"),
			FollowerFloor:      cctx.Int64("follower-floor"),
			RatioThreshold:     cctx.Int64("ratio-threshold"),
			AutoAction:         cctx.String("auto-action"),
			DeferDelay:         cctx.Duration("defer-delay"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx, cctx.String("bind")); err != nil {
			return fmt.Errorf("failed to run filter service: %w", err)
		}
		return nil
	},
}
