package app

import (
	"context"
	"log/slog"
	"sync"

	"dash_go/internal/domain"
	"dash_go/internal/infra"
	"dash_go/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Icons   *infra.IconFetcher
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping dashboard engine...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Initialize Icon Fetcher
	fetcher, err := infra.NewIconFetcher(cfg.Icons.BaseURL)
	if err != nil {
		return err
	}
	b.Icons = fetcher
	slog.Info("✅ Icon fetcher ready")

	return nil
}

// SyncAssets prefetches widget icons in the background so the palette
// renders without per-icon latency on first open.
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	if b.Icons == nil || !b.Icons.Enabled() {
		return
	}
	slog.Info("🔄 Starting icon synchronization...")

	kinds := []domain.WidgetKind{
		domain.WidgetMetric, domain.WidgetSystem, domain.WidgetBalance,
		domain.WidgetOrders, domain.WidgetLog, domain.WidgetStatus,
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 3) // Limit concurrent downloads

	for _, kind := range kinds {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			if _, err := b.Icons.FetchIcon(k); err != nil {
				slog.Warn("Failed to fetch icon", slog.String("kind", k), slog.Any("error", err))
			}
		}(string(kind))
	}

	wg.Wait()
	slog.Info("✨ Icon synchronization completed")
}
