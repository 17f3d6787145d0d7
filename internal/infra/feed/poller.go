package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/infra"
)

// SystemPoller feeds the system channel from a plain HTTP status endpoint
// for deployments that expose a poll URL instead of a websocket stream. The
// fetched body flows through the same ingest pipeline as streamed messages.
type SystemPoller struct {
	inbox        chan<- event.Event
	pollInterval time.Duration
	statusURL    string
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewSystemPoller creates a poller for the given status URL.
func NewSystemPoller(statusURL string, pollIntervalSec int, inbox chan<- event.Event) *SystemPoller {
	interval := time.Duration(pollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SystemPoller{
		inbox:        inbox,
		pollInterval: interval,
		statusURL:    statusURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start begins polling for system stats
func (p *SystemPoller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := p.fetch(ctx); err != nil {
		slog.Warn("Initial system stats fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("System polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("System polling stopped")
				return
			case <-ticker.C:
				if err := p.fetch(ctx); err != nil {
					slog.Warn("System stats fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

func (p *SystemPoller) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.statusURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("poll", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	ev := event.AcquireChannelMessageEvent()
	ev.Channel = domain.ChannelSystem
	ev.Data = body
	ev.ReceivedAt = time.Now().UnixMilli()

	select {
	case p.inbox <- ev:
	default: // DROP
		event.ReleaseChannelMessageEvent(ev)
		infra.GlobalMetrics.RecordDroppedEvent()
	}

	return nil
}

// Stop stops the polling
func (p *SystemPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
}
