package feed

import (
	"context"
	"testing"
	"time"

	"dash_go/internal/domain"
	"dash_go/internal/event"
)

// fakeTransport delivers scripted messages once per Open and then reports a
// close, letting the worker's reconnect loop run without a network.
type fakeTransport struct {
	messages [][]byte
	failDial bool
	cb       Callbacks
	opened   chan struct{}
}

func (f *fakeTransport) Open(ctx context.Context) error {
	if f.failDial {
		return domain.NewNetworkError("dial", domain.ErrConnectionFailed)
	}
	if f.cb.OnOpen != nil {
		f.cb.OnOpen()
	}
	go func() {
		for _, msg := range f.messages {
			if f.cb.OnMessage != nil {
				f.cb.OnMessage(msg)
			}
		}
		if f.opened != nil {
			close(f.opened)
		}
	}()
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func drain(t *testing.T, inbox chan event.Event, want int) []event.Event {
	t.Helper()
	events := make([]event.Event, 0, want)
	deadline := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-inbox:
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d of %d", len(events), want)
		}
	}
	return events
}

func TestWorker_DeliversMessagesAndStatus(t *testing.T) {
	inbox := make(chan event.Event, 16)

	dial := func(url string, cb Callbacks) Transport {
		return &fakeTransport{
			messages: [][]byte{[]byte(`"line one"`), []byte(`"line two"`)},
			cb:       cb,
		}
	}

	w := NewWorkerWithDial(domain.ChannelLog, "ws://test/log", inbox, time.Hour, dial)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer w.Disconnect()

	// Expect: CONNECTING status, CONNECTED status, two messages.
	events := drain(t, inbox, 4)

	status1, ok := events[0].(*event.StatusEvent)
	if !ok || status1.Update.State != domain.StateConnecting {
		t.Errorf("first event should be CONNECTING status, got %+v", events[0])
	}
	status2, ok := events[1].(*event.StatusEvent)
	if !ok || status2.Update.State != domain.StateConnected {
		t.Errorf("second event should be CONNECTED status, got %+v", events[1])
	}

	msg1, ok := events[2].(*event.ChannelMessageEvent)
	if !ok || string(msg1.Data) != `"line one"` {
		t.Errorf("unexpected first message: %+v", events[2])
	}
	msg2, ok := events[3].(*event.ChannelMessageEvent)
	if !ok || msg2.Channel != domain.ChannelLog {
		t.Errorf("unexpected second message: %+v", events[3])
	}
}

func TestWorker_ReconnectsAfterClose(t *testing.T) {
	inbox := make(chan event.Event, 32)

	dials := 0
	dial := func(url string, cb Callbacks) Transport {
		dials++
		ft := &fakeTransport{
			messages: [][]byte{[]byte(`"msg"`)},
			cb:       cb,
			opened:   make(chan struct{}),
		}
		// Report a close right after delivery so the worker reconnects.
		go func() {
			<-ft.opened
			if cb.OnClose != nil {
				cb.OnClose(1006)
			}
		}()
		return ft
	}

	w := NewWorkerWithDial(domain.ChannelLog, "ws://test/log", inbox, 10*time.Millisecond, dial)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Connect(ctx)
	defer w.Disconnect()

	// Wait until at least two dials happened: connect, close, delay, reconnect.
	deadline := time.Now().Add(2 * time.Second)
	for dials < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dials < 2 {
		t.Fatalf("expected at least 2 dials, got %d", dials)
	}
}

func TestWorker_DialFailureKeepsRetrying(t *testing.T) {
	inbox := make(chan event.Event, 64)

	dials := 0
	dial := func(url string, cb Callbacks) Transport {
		dials++
		return &fakeTransport{failDial: true, cb: cb}
	}

	w := NewWorkerWithDial(domain.ChannelTelemetry, "ws://test/telemetry", inbox, 5*time.Millisecond, dial)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w.Connect(ctx)
	defer w.Disconnect()

	deadline := time.Now().Add(2 * time.Second)
	for dials < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dials < 3 {
		t.Fatalf("expected repeated dial attempts, got %d", dials)
	}
	if w.State() == domain.StateConnected {
		t.Error("worker must not report CONNECTED while dialing fails")
	}
}

func TestWorker_DropsWhenInboxFull(t *testing.T) {
	inbox := make(chan event.Event, 1)

	w := NewWorkerWithDial(domain.ChannelLog, "ws://test/log", inbox, time.Hour,
		func(url string, cb Callbacks) Transport { return &fakeTransport{cb: cb} })

	// Fill the inbox, then forward directly; the send must not block.
	inbox <- &event.StatusEvent{}
	done := make(chan struct{})
	go func() {
		w.forward([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward blocked on a full inbox")
	}
}
