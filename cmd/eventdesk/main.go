package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"eventdesk/internal/backend"
	"eventdesk/internal/cache"
	"eventdesk/internal/config"
	"eventdesk/internal/events"
	"eventdesk/internal/ics"
	appLog "eventdesk/internal/log"
	"eventdesk/internal/model"
	"eventdesk/internal/schedule"
	"eventdesk/internal/store"
	"eventdesk/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if err := run(flags); err != nil {
		appLog.Error("eventdesk failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (flagConfig, error) {
	var cfg flagConfig

	flagSet := pflag.NewFlagSet("eventdesk", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.configPath, "config", "/etc/eventdesk/config.yaml", "path to config file")
	flagSet.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flagSet.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config if set)")
	flagSet.BoolVar(&cfg.once, "once", false, "refresh once, print the snapshot size and exit")

	if err := flagSet.Parse(args); err != nil {
		return cfg, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return cfg, nil
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"backend", conf.Backend.BaseURL,
		"redis", conf.Redis.URL != "",
		"feeds", len(conf.Feeds),
		"export", conf.Export.Enabled,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(conf.Backend.BaseURL, conf.Backend.Timeout,
		backend.WithToken(conf.Backend.Token),
		backend.WithLocation(loc),
	)

	var opts []events.Option
	var snapshots *cache.SnapshotCache
	if conf.Redis.URL != "" {
		rdb, err := cache.NewRedisClient(ctx, conf.Redis.URL)
		if err != nil {
			appLog.Error("redis unavailable; snapshot cache disabled", err)
		} else {
			defer rdb.Close()
			snapshots = cache.NewSnapshotCache(rdb, conf.Redis.Prefix, conf.Redis.TTL)
			opts = append(opts, events.WithCache(snapshots))
		}
	}
	if feeds := feedsFromConfig(conf.Feeds); len(feeds) > 0 {
		opts = append(opts, events.WithFeeds(&ics.Loader{
			Fetcher:  ics.NewFetcher(conf.FeedCacheDir, conf.Backend.Timeout),
			Feeds:    feeds,
			Horizon:  time.Duration(conf.FeedHorizonDays) * 24 * time.Hour,
			Location: loc,
		}))
	}

	svc := events.NewService(client, store.New(), opts...)

	res := svc.Refresh(ctx)
	if flags.once {
		fmt.Printf("%d events (from_cache=%t)\n", res.Count, res.FromCache)
		if res.Err != nil && !res.FromCache {
			return res.Err
		}
		return nil
	}

	runner, err := schedule.Start(ctx, conf.RefreshCron, loc, func(jobCtx context.Context) {
		svc.Refresh(jobCtx)
	})
	if err != nil {
		return err
	}

	srv := web.NewServer(conf, svc, loc)
	srv.SetDirectory(client)
	if snapshots != nil {
		srv.SetHealthCheck(snapshots)
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}

	<-runner.Done()
	appLog.Info("eventdesk exiting")
	return nil
}

// feedsFromConfig skips feeds without a URL or a known room.
func feedsFromConfig(cfgs []config.FeedConfig) []ics.Feed {
	feeds := make([]ics.Feed, 0, len(cfgs))
	for _, fc := range cfgs {
		room := model.ParseRoom(fc.Room)
		if fc.URL == "" || room == model.NoRoom {
			appLog.Warn("room feed ignored", "id", fc.ID, "room", fc.Room)
			continue
		}
		id := fc.ID
		if id == "" {
			id = string(room)
		}
		feeds = append(feeds, ics.Feed{ID: id, URL: fc.URL, Room: room})
	}
	return feeds
}
