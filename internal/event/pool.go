package event

import (
	"sync"
)

// Pools for high-frequency event allocation. Channel messages and pointer
// samples arrive many times per second; pooling them keeps GC pressure out
// of the dispatcher hotpath.
//
// Usage:
//
//	ev := AcquireChannelMessageEvent()
//	ev.Channel = domain.ChannelTelemetry
//	// ... send through the inbox, dispatcher processes it ...
//	ReleaseChannelMessageEvent(ev)  // Return to pool after processing
var channelMessagePool = sync.Pool{
	New: func() interface{} {
		return &ChannelMessageEvent{}
	},
}

// AcquireChannelMessageEvent gets a ChannelMessageEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireChannelMessageEvent() *ChannelMessageEvent {
	return channelMessagePool.Get().(*ChannelMessageEvent)
}

// ReleaseChannelMessageEvent returns a ChannelMessageEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseChannelMessageEvent(ev *ChannelMessageEvent) {
	if ev == nil {
		return
	}
	ev.Channel = ""
	ev.Data = nil
	ev.ReceivedAt = 0

	channelMessagePool.Put(ev)
}

// PointerEvent pool
var pointerPool = sync.Pool{
	New: func() interface{} {
		return &PointerEvent{}
	},
}

// AcquirePointerEvent gets a PointerEvent from the pool.
func AcquirePointerEvent() *PointerEvent {
	return pointerPool.Get().(*PointerEvent)
}

// ReleasePointerEvent returns a PointerEvent to the pool.
func ReleasePointerEvent(ev *PointerEvent) {
	if ev == nil {
		return
	}
	ev.Phase = 0
	ev.X = 0
	ev.Y = 0
	ev.OriginX = 0
	ev.OriginY = 0
	ev.Touches = ev.Touches[:0]
	ev.WidgetID = ""
	ev.CloseControl = false

	pointerPool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
// It acquires and releases a batch of events.
func Warmup() {
	const batchSize = 1000

	msgEvs := make([]*ChannelMessageEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		msgEvs = append(msgEvs, AcquireChannelMessageEvent())
	}
	for _, ev := range msgEvs {
		ReleaseChannelMessageEvent(ev)
	}

	ptrEvs := make([]*PointerEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		ptrEvs = append(ptrEvs, AcquirePointerEvent())
	}
	for _, ev := range ptrEvs {
		ReleasePointerEvent(ev)
	}
}
