package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/adapters/bookmaker"
	_ "github.com/alejandrodnm/valuebot/internal/adapters/bookmaker/sxbet"
	"github.com/alejandrodnm/valuebot/internal/adapters/notify"
	"github.com/alejandrodnm/valuebot/internal/adapters/redisbus"
	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/adapters/wsapi"
	"github.com/alejandrodnm/valuebot/internal/application/autotrade"
	"github.com/alejandrodnm/valuebot/internal/application/broadcast"
	"github.com/alejandrodnm/valuebot/internal/application/fairodds"
	"github.com/alejandrodnm/valuebot/internal/application/livesync"
	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/application/settlement"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one recompute + sync + autotrade cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print every active preset's opportunities after each cycle")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("valuebot starting",
		"config", *configPath,
		"benchmark", cfg.Engine.Benchmark,
		"sync_interval", cfg.SyncInterval(),
		"autotrade_interval", cfg.AutoTradeInterval(),
		"once", *once,
	)

	store, err := storage.NewStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := seed(ctx, store, cfg); err != nil {
		slog.Error("failed to seed catalog", "err", err)
		os.Exit(1)
	}

	console := notify.NewConsole(*table)
	var notifiers notify.Multi
	if cfg.Notify.Console {
		notifiers = append(notifiers, console)
	}
	var tg *notify.Telegram
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != "" {
		tg, err = notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			// Telegram es opcional: seguimos solo con consola
			slog.Warn("telegram disabled", "err", err)
		} else {
			notifiers = append(notifiers, tg)
			go tg.Start(ctx)
		}
	}
	var notifier ports.Notifier = notifiers

	mapper := bookmaker.NewMapper(store)
	registry := bookmaker.NewRegistry(bookmaker.Deps{
		Mapper: mapper,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}, notifier)

	estimator := fairodds.New(store, cfg.Engine.Benchmark)
	sc := scanner.New(store, store, store)
	syncer := livesync.New(registry, store, store, mapper).WithConcurrency(cfg.Engine.SyncConcurrency)
	executor := autotrade.New(sc, store, store, store, registry, notifier)
	settler := settlement.New(store, store, store, registry, notifier)

	c := &cycle{
		cfg:       cfg,
		store:     store,
		estimator: estimator,
		scanner:   sc,
		syncer:    syncer,
		executor:  executor,
		settler:   settler,
		console:   console,
		table:     *table,
	}

	if *once {
		c.recompute(ctx)
		c.sync(ctx)
		c.autotrade(ctx)
		c.print(ctx)
		cancel()
		waitTelegram(tg)
		slog.Info("valuebot stopped cleanly")
		return
	}

	loop := broadcast.New(sc, store, syncer).WithTick(cfg.BroadcastTick())
	if cfg.Redis.Addr != "" {
		rdb, err := redisbus.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("redis disabled", "err", err, "addr", cfg.Redis.Addr)
		} else {
			defer rdb.Close()
			loop = loop.WithPublisher(redisbus.NewPublisher(rdb, cfg.Redis.ChannelPrefix))
		}
	}

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			slog.Debug("valuebot: loop exited", "loop", name)
		}()
	}

	run("fairodds", func() {
		if err := estimator.Run(ctx, cfg.RecomputeInterval()); err != nil {
			slog.Error("fairodds exited with error", "err", err)
		}
	})
	run("sync", func() { c.every(ctx, cfg.SyncInterval(), c.sync) })
	run("autotrade", func() { c.every(ctx, cfg.AutoTradeInterval(), c.autotrade) })

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		api := wsapi.NewServer(ctx, loop, store, sc, cfg.HTTP.AllowedOrigins)
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		run("http", func() {
			slog.Info("http: listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server failed", "err", err)
				cancel()
			}
		})
	}

	<-ctx.Done()
	slog.Info("valuebot: shutting down")

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
		stop()
	}
	loop.Stop()
	wg.Wait()
	waitTelegram(tg)

	slog.Info("valuebot stopped cleanly")
}

// waitTelegram deja que Telegram vacíe su cola antes de salir.
func waitTelegram(tg *notify.Telegram) {
	if tg == nil {
		return
	}
	select {
	case <-tg.Done():
	case <-time.After(5 * time.Second):
		slog.Warn("telegram: flush timed out")
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
