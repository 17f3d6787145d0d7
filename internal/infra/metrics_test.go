package infra

import (
	"testing"
)

func TestMetrics_RecordMessage(t *testing.T) {
	m := &Metrics{}

	m.RecordMessage(1000)
	m.RecordMessage(2000)
	m.RecordMessage(3000)

	snap := m.Snapshot()

	if snap.MessagesProcessed != 3 {
		t.Errorf("Expected 3 messages, got %d", snap.MessagesProcessed)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_Channels(t *testing.T) {
	m := &Metrics{}

	m.IncrementChannels()
	m.IncrementChannels()
	m.IncrementChannels()

	snap := m.Snapshot()
	if snap.ActiveChannels != 3 {
		t.Errorf("Expected 3 channels, got %d", snap.ActiveChannels)
	}

	m.DecrementChannels()
	snap = m.Snapshot()
	if snap.ActiveChannels != 2 {
		t.Errorf("Expected 2 channels, got %d", snap.ActiveChannels)
	}
}

func TestMetrics_DecodeErrors(t *testing.T) {
	m := &Metrics{}

	m.RecordDecodeError()
	m.RecordDecodeError()

	snap := m.Snapshot()
	if snap.DecodeErrors != 2 {
		t.Errorf("Expected 2 decode errors, got %d", snap.DecodeErrors)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordMessage(1000)
	m.RecordDecodeError()
	m.IncrementChannels()
	m.IncrementViewClients()

	m.Reset()
	snap := m.Snapshot()

	if snap.MessagesProcessed != 0 {
		t.Error("Expected 0 messages after reset")
	}
	if snap.DecodeErrors != 0 {
		t.Error("Expected 0 decode errors after reset")
	}
	if snap.ActiveChannels != 0 {
		t.Error("Expected 0 channels after reset")
	}
	if snap.ViewClients != 0 {
		t.Error("Expected 0 view clients after reset")
	}
}
