package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dash_go/internal/app"
	"dash_go/internal/domain"
	"dash_go/internal/engine"
	"dash_go/internal/event"
	"dash_go/internal/infra/feed"
	"dash_go/internal/server"
	"dash_go/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background Icon Sync
	go bootstrap.SyncAssets(ctx)

	// 5. Core: cache, bus, event pools, view server, dispatcher
	event.Warmup()
	cache := service.NewStreamCache()
	bus := event.NewBus()

	// The server needs the dispatcher inbox and the dispatcher needs the
	// server as its frame sink, so the dispatcher comes first and hands
	// its inbox over.
	dispatcher := engine.NewDispatcher(1024, cfg, cache, bus, bootstrap.Storage, nil)
	viewServer := server.NewViewServer(cfg, bootstrap.Storage, dispatcher.Inbox())
	dispatcher.SetSink(viewServer)

	go dispatcher.Run(ctx)
	slog.InfoContext(ctx, "✅ Dispatcher (core loop) started")

	// 6. Channel Workers (one websocket per stream channel)
	reconnect := time.Duration(cfg.Transport.ReconnectDelaySec) * time.Second
	for _, ch := range domain.StreamChannels {
		worker := feed.NewWorker(ch, cfg.ChannelURL(string(ch)), dispatcher.Inbox(), reconnect)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to start channel worker",
				slog.String("channel", string(ch)),
				slog.Any("error", err))
			continue
		}
		defer worker.Disconnect()
		slog.InfoContext(ctx, "✅ Channel worker started", slog.String("channel", string(ch)))
	}

	// 7. Optional HTTP system poller
	if cfg.SystemPoller.URL != "" {
		poller := feed.NewSystemPoller(cfg.SystemPoller.URL, cfg.SystemPoller.PollIntervalSec, dispatcher.Inbox())
		if err := poller.Start(ctx); err != nil {
			slog.Error("Failed to start system poller", slog.Any("error", err))
		} else {
			defer poller.Stop()
			slog.InfoContext(ctx, "✅ System poller started", slog.String("url", cfg.SystemPoller.URL))
		}
	}

	// 8. View server
	go func() {
		if err := viewServer.Start(); err != nil {
			slog.Error("❌ View server failed", slog.Any("error", err))
			stop()
		}
	}()
	defer viewServer.Stop()

	slog.InfoContext(ctx, "✨ Dashboard engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
