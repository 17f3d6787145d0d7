package feed

import (
	"bytes"

	"dash_go/internal/domain"
	"dash_go/internal/event"
	"dash_go/internal/service"
)

// Processor is the per-channel ingest pipeline tail: validate → decode →
// cache merge → bus publish. It runs on the dispatcher goroutine, so a
// message's merge and fan-out fully complete before the next message of the
// same channel begins.
//
// A decode failure is returned to the caller for logging and is otherwise a
// no-op: prior cache state is untouched and the channel keeps running.
type Processor struct {
	cache *service.StreamCache
	bus   *event.Bus
}

// NewProcessor creates an ingest processor over the shared cache and bus.
func NewProcessor(cache *service.StreamCache, bus *event.Bus) *Processor {
	return &Processor{cache: cache, bus: bus}
}

// Process handles one raw channel message.
func (p *Processor) Process(ch domain.Channel, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.ErrEmptyMessage
	}

	switch ch {
	case domain.ChannelTelemetry:
		entries, err := DecodeTelemetry(data)
		if err != nil {
			return err
		}
		return p.mergeAndPublish(ch, entries)

	case domain.ChannelBalance:
		snap, err := DecodeBalance(data)
		if err != nil {
			return err
		}
		return p.mergeAndPublish(ch, snap)

	case domain.ChannelSystem:
		entries, err := DecodeSystem(data)
		if err != nil {
			return err
		}
		return p.mergeAndPublish(ch, entries)

	case domain.ChannelLog:
		line, err := DecodeLog(data)
		if err != nil {
			return err
		}
		// Log lines are never cached; they go straight to subscribers.
		p.bus.Publish(ch, line)
		return nil

	default:
		return domain.ErrUnknownChannel
	}
}

// mergeAndPublish merges a decoded payload and fans the update out. Every
// valid message is published even when no cached value changed, so widgets
// always re-render against the state their triggering message produced.
func (p *Processor) mergeAndPublish(ch domain.Channel, payload any) error {
	changed, err := p.cache.Merge(ch, payload)
	if err != nil {
		return err
	}
	p.bus.Publish(ch, &event.CacheUpdate{Channel: ch, Keys: changed})
	return nil
}
