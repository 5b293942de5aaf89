// Package main is the entry point for the ikdisplay notification
// aggregator and live-display pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/admin"
	"github.com/mediamatic/ikdisplay/internal/aggregator"
	"github.com/mediamatic/ikdisplay/internal/config"
	"github.com/mediamatic/ikdisplay/internal/dispatcher"
	"github.com/mediamatic/ikdisplay/internal/feed"
	"github.com/mediamatic/ikdisplay/internal/httpkit"
	"github.com/mediamatic/ikdisplay/internal/liveweb"
	"github.com/mediamatic/ikdisplay/internal/microblog"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/pinger"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/subscription"
	"github.com/mediamatic/ikdisplay/internal/texts"

	_ "github.com/mattn/go-sqlite3"
)

// emitterProxy and dispatcherProxy break the construction cycle between
// internal/dispatcher.Dispatcher (which needs a feed.Manager as its
// Emitter) and internal/feed.Manager (which needs a *dispatcher.Dispatcher
// as its Dispatcher): both sides are wired through a pointer-to-pointer
// indirection set once both real objects exist.
type emitterProxy struct {
	target *feed.Manager
}

func (e *emitterProxy) Emit(ctx context.Context, feedID int64, notifications []notification.Notification) error {
	return e.target.Emit(ctx, feedID, notifications)
}

type dispatcherProxy struct {
	target *dispatcher.Dispatcher
}

func (d *dispatcherProxy) AddObserver(sourceID int64, service address.Address, node string) error {
	if d.target == nil {
		return nil
	}
	return d.target.AddObserver(sourceID, service, node)
}

func (d *dispatcherProxy) RemoveObserver(sourceID int64, service address.Address, node string) error {
	if d.target == nil {
		return nil
	}
	return d.target.RemoveObserver(sourceID, service, node)
}

type filterRefresherProxy struct {
	target *microblog.Dispatcher
}

func (f *filterRefresherProxy) RefreshFilters() {
	if f.target != nil {
		f.target.RefreshFilters()
	}
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 && flag.Arg(0) == "version" {
		fmt.Println("ikdisplay")
		return
	}

	runServe(logger, *configPath)
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting ikdisplay")

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded", "path", cfgPath, "listen_port", cfg.Listen.Port, "admin_port", cfg.Admin.Port)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	dbPath := filepath.Join(cfg.DataDir, "ikdisplay.db")
	db, err := store.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database opened", "path", dbPath)

	catalog, err := texts.Default()
	if err != nil {
		logger.Error("failed to load text catalog", "error", err)
		os.Exit(1)
	}

	registry := subscription.NewRegistry(db)

	// Pub/sub transport and subscription state machine (C5).
	var transport dispatcher.Transport
	var session address.Address
	if cfg.XMPP.Configured() {
		session, err = address.Parse(cfg.XMPP.JID)
		if err != nil {
			logger.Error("invalid xmpp.jid", "jid", cfg.XMPP.JID, "error", err)
			os.Exit(1)
		}
		transport, err = dispatcher.Connect(cfg.XMPP.JID, cfg.XMPP.Password, cfg.XMPP.Server, cfg.XMPP.Port)
		if err != nil {
			logger.Error("xmpp connect failed", "error", err)
			os.Exit(1)
		}
		logger.Info("xmpp connected", "jid", cfg.XMPP.JID, "server", cfg.XMPP.Server)
	} else {
		logger.Warn("xmpp not configured - pub/sub-backed feeds will not resubscribe")
	}

	// internal/dispatcher.Dispatcher and internal/feed.Manager each need
	// the other at construction time; emitProxy/dispProxy break the cycle
	// (see their doc comments above).
	emitProxy := &emitterProxy{}
	dispProxy := &dispatcherProxy{}
	filterProxy := &filterRefresherProxy{}

	var disp *dispatcher.Dispatcher
	if transport != nil {
		disp = dispatcher.New(registry, db, db, catalog, transport, session, emitProxy, logger).
			WithConfig(dispatcher.DefaultConfig())
		dispProxy.target = disp
		go dispatcher.ReadLoop(transport, disp.OnItemsEvent)
		disp.OnConnected()
	}

	var filterRefresher feed.FilterRefresher
	if cfg.Twitter.Configured() {
		filterRefresher = filterProxy
	}

	feedMgr := feed.NewManager(db, dispProxy, filterRefresher, logger)
	emitProxy.target = feedMgr

	var mbDispatcher *microblog.Dispatcher

	feedMgr.RegisterAggregator("log", aggregator.NewLoggingAggregator(logger))
	livePages := aggregator.NewLivePageAggregator(logger)
	feedMgr.RegisterAggregator("live", livePages)
	if disp != nil {
		feedMgr.RegisterAggregator("pubsub", aggregator.NewPubSubAggregator(disp, session))
	}

	// Microblog monitor (C8/C9/C10).
	if cfg.Twitter.Configured() {
		streamer := microblog.NewTwitterStreamer(microblog.Credentials{
			ConsumerKey:    cfg.Twitter.ConsumerKey,
			ConsumerSecret: cfg.Twitter.ConsumerSecret,
			AccessToken:    cfg.Twitter.AccessToken,
			AccessSecret:   cfg.Twitter.AccessSecret,
		})
		monitor := microblog.NewMonitor(streamer, microblog.DefaultConfig(), logger)
		embedder := microblog.NewEmbedder(httpkit.NewClient(httpkit.WithTimeout(10*time.Second)), cfg.Embedly.APIKey)
		mbDispatcher = microblog.NewDispatcher(db, monitor, embedder, feedMgr, logger)
		filterProxy.target = mbDispatcher
		logger.Info("microblog monitor configured")
	} else {
		logger.Warn("twitter not configured - microblog sources will not stream")
	}

	// Liveness (C11).
	var pingr *pinger.Pinger
	if transport != nil && cfg.PubSub.Service != "" {
		peer, err := address.Parse(cfg.PubSub.Service)
		if err != nil {
			logger.Error("invalid pubsub.service", "service", cfg.PubSub.Service, "error", err)
		} else {
			pingr = pinger.New(transport, peer, func() {
				logger.Warn("pinger: restarting pub/sub session")
				disp.OnDisconnected()
			}, pinger.DefaultConfig(), logger)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if pingr != nil {
		go pingr.Run(ctx)
	}

	// Admin CRUD surface (C13).
	adminServer := admin.NewServer(db, feedMgr, logger)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Admin.Address, cfg.Admin.Port)
		if err := adminServer.Start(addr); err != nil && ctx.Err() == nil {
			logger.Error("admin server failed", "error", err)
		}
	}()

	// Live-page websocket surface (C13).
	liveServer := liveweb.NewServer(db, livePages, logger)
	mux := http.NewServeMux()
	liveServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port),
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
		_ = httpServer.Shutdown(context.Background())
		_ = adminServer.Shutdown(context.Background())
	}()

	logger.Info("listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		if ctx.Err() == nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}
