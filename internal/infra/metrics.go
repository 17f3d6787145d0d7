package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	messagesProcessed atomic.Uint64
	decodeErrors      atomic.Uint64
	eventsDropped     atomic.Uint64
	framesBroadcast   atomic.Uint64

	// Latency tracking (ingest: message arrival to fan-out complete)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeChannels atomic.Int32
	viewClients    atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordMessage records one processed channel message with its ingest latency.
func (m *Metrics) RecordMessage(latencyNs int64) {
	m.messagesProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordDecodeError records a dropped malformed message.
func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Add(1)
}

// RecordDroppedEvent records an event dropped because the inbox was full.
func (m *Metrics) RecordDroppedEvent() {
	m.eventsDropped.Add(1)
}

// RecordFrameBroadcast records one render frame pushed to view clients.
func (m *Metrics) RecordFrameBroadcast() {
	m.framesBroadcast.Add(1)
}

// IncrementChannels increments connected channels by 1.
func (m *Metrics) IncrementChannels() {
	m.activeChannels.Add(1)
}

// DecrementChannels decrements connected channels by 1.
func (m *Metrics) DecrementChannels() {
	m.activeChannels.Add(-1)
}

// IncrementViewClients increments connected view clients by 1.
func (m *Metrics) IncrementViewClients() {
	m.viewClients.Add(1)
}

// DecrementViewClients decrements connected view clients by 1.
func (m *Metrics) DecrementViewClients() {
	m.viewClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	MessagesProcessed uint64    `json:"messages_processed"`
	DecodeErrors      uint64    `json:"decode_errors"`
	EventsDropped     uint64    `json:"events_dropped"`
	FramesBroadcast   uint64    `json:"frames_broadcast"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveChannels    int32     `json:"active_channels"`
	ViewClients       int32     `json:"view_clients"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		MessagesProcessed: m.messagesProcessed.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		EventsDropped:     m.eventsDropped.Load(),
		FramesBroadcast:   m.framesBroadcast.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveChannels:    m.activeChannels.Load(),
		ViewClients:       m.viewClients.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.messagesProcessed.Store(0)
	m.decodeErrors.Store(0)
	m.eventsDropped.Store(0)
	m.framesBroadcast.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeChannels.Store(0)
	m.viewClients.Store(0)
}
