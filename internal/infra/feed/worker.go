package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/infra"
)

// Worker manages one channel's ingest connection:
//
//	Connecting → Connected → (messages) → Disconnected → Connecting
//
// Reconnection uses a fixed delay, not exponential backoff. The channels
// retry indefinitely and a dashboard wants predictable recovery, so the
// flat interval is deliberate.
//
// The worker never touches cache or bus state itself; raw messages and
// status transitions are handed to the dispatcher inbox and processed there.
type Worker struct {
	channel domain.Channel
	url     string
	dial    DialFunc
	inbox   chan<- event.Event
	delay   time.Duration

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a channel ingest worker using the websocket transport.
func NewWorker(channel domain.Channel, url string, inbox chan<- event.Event, delay time.Duration) *Worker {
	return NewWorkerWithDial(channel, url, inbox, delay, NewWSTransport)
}

// NewWorkerWithDial creates a worker with a custom transport factory.
func NewWorkerWithDial(channel domain.Channel, url string, inbox chan<- event.Event, delay time.Duration, dial DialFunc) *Worker {
	w := &Worker{
		channel: channel,
		url:     url,
		dial:    dial,
		inbox:   inbox,
		delay:   delay,
	}
	w.state.Store(int32(domain.StateDisconnected))
	return w
}

// Connect starts the connection loop.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// State returns the current connection state.
func (w *Worker) State() domain.ChannelState {
	return domain.ChannelState(w.state.Load())
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.setState(ctx, domain.StateConnecting)

		closed := make(chan struct{})
		transport := w.dial(w.url, Callbacks{
			OnOpen: func() {
				w.setState(ctx, domain.StateConnected)
				infra.GlobalMetrics.IncrementChannels()
			},
			OnMessage: func(data []byte) {
				w.forward(data)
			},
			OnError: func(err error) {
				slog.Warn("Channel transport error",
					slog.String("channel", string(w.channel)),
					slog.Any("error", err),
				)
			},
			OnClose: func(code int) {
				infra.GlobalMetrics.DecrementChannels()
				close(closed)
			},
		})

		if err := transport.Open(ctx); err != nil {
			slog.Warn("Channel connection failed",
				slog.String("channel", string(w.channel)),
				slog.Any("error", err),
			)
			w.setState(ctx, domain.StateDisconnected)
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			transport.Close()
			return
		case <-closed:
		}

		w.setState(ctx, domain.StateDisconnected)
		slog.Info("Channel disconnected, reconnecting",
			slog.String("channel", string(w.channel)),
			slog.Duration("delay", w.delay),
		)
		if !w.sleep(ctx) {
			return
		}
	}
}

// forward hands a raw message to the dispatcher. The inbox send never
// blocks; if the dispatcher is saturated the message is dropped and counted.
func (w *Worker) forward(data []byte) {
	if len(data) == 0 {
		return
	}

	ev := event.AcquireChannelMessageEvent()
	ev.Channel = w.channel
	// The websocket reader reuses its buffer, so the payload is copied.
	ev.Data = append([]byte(nil), data...)
	ev.ReceivedAt = time.Now().UnixMilli()

	select {
	case w.inbox <- ev:
	default: // DROP
		event.ReleaseChannelMessageEvent(ev)
		infra.GlobalMetrics.RecordDroppedEvent()
	}
}

func (w *Worker) setState(ctx context.Context, state domain.ChannelState) {
	if domain.ChannelState(w.state.Swap(int32(state))) == state {
		return
	}

	ev := &event.StatusEvent{Update: domain.StatusUpdate{
		Channel: w.channel,
		State:   state,
		At:      time.Now().Unix(),
	}}

	select {
	case w.inbox <- ev:
	case <-ctx.Done():
	}
}

// sleep waits the fixed reconnect delay; false means the context ended.
func (w *Worker) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.delay):
		return true
	}
}

// Disconnect stops the worker and waits for the loop to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
