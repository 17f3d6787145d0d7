package service

import (
	"slices"
	"sort"
	"sync"

	"dash_go/internal/domain"
)

// StreamCache is the per-channel keyed store of last-known values.
//
// Merge policies per channel:
//   - telemetry: upsert per composite key; keys absent from a message keep
//     their prior value ("last known good")
//   - balance:   upsert per asset; the open-order list is replaced wholesale
//     on every message
//   - system:    upsert per flat field
//   - log:       never cached, payloads pass straight through to the bus
//
// The dispatcher goroutine is the only writer; the RWMutex serializes the
// external reads from the view server so the single-writer ordering
// guarantees survive in a multi-goroutine process.
type StreamCache struct {
	mu        sync.RWMutex
	telemetry map[string]*domain.MetricEntry
	system    map[string]*domain.MetricEntry
	balances  map[string]*domain.Balance
	orders    []domain.Order
	states    map[domain.Channel]domain.ChannelState

	ordersUpdated  int64
	balanceUpdated int64
}

// OrdersKey is the synthetic changed-key reported when the open-order list
// is rebuilt.
const OrdersKey = "open_orders"

// NewStreamCache creates an empty StreamCache instance
func NewStreamCache() *StreamCache {
	return &StreamCache{
		telemetry: make(map[string]*domain.MetricEntry),
		system:    make(map[string]*domain.MetricEntry),
		balances:  make(map[string]*domain.Balance),
		states:    make(map[domain.Channel]domain.ChannelState),
	}
}

// Merge applies the channel-specific merge policy and returns the keys whose
// cached value changed. Log payloads are never cached and report no keys.
func (c *StreamCache) Merge(ch domain.Channel, payload any) ([]string, error) {
	switch ch {
	case domain.ChannelTelemetry:
		entries, ok := payload.([]domain.MetricEntry)
		if !ok {
			return nil, domain.ErrUnknownChannel
		}
		return c.upsertEntries(c.telemetry, entries), nil

	case domain.ChannelSystem:
		entries, ok := payload.([]domain.MetricEntry)
		if !ok {
			return nil, domain.ErrUnknownChannel
		}
		return c.upsertEntries(c.system, entries), nil

	case domain.ChannelBalance:
		snap, ok := payload.(domain.BalanceSnapshot)
		if !ok {
			return nil, domain.ErrUnknownChannel
		}
		return c.applyBalanceSnapshot(snap), nil

	case domain.ChannelLog:
		return nil, nil

	default:
		return nil, domain.ErrUnknownChannel
	}
}

// upsertEntries overwrites value, timestamp and rate per key. Entries are
// never deleted; keys missing from this batch are left untouched.
func (c *StreamCache) upsertEntries(store map[string]*domain.MetricEntry, entries []domain.MetricEntry) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changed []string
	for i := range entries {
		in := &entries[i]
		prev, exists := store[in.Key]
		if exists && prev.Value == in.Value && prev.Rate == in.Rate &&
			prev.LastUpdated == in.LastUpdated && slices.Equal(prev.Values, in.Values) {
			continue
		}

		cp := *in
		store[in.Key] = &cp
		changed = append(changed, in.Key)
	}
	return changed
}

// applyBalanceSnapshot upserts per-asset balances and rebuilds the order
// list from scratch. Orders represent point-in-time server state, so the
// previous list never carries over.
func (c *StreamCache) applyBalanceSnapshot(snap domain.BalanceSnapshot) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changed []string
	for i := range snap.Balances {
		in := &snap.Balances[i]
		prev, exists := c.balances[in.Asset]
		if exists && prev.Total.Equal(in.Total) && prev.LastUpdated == in.LastUpdated {
			continue
		}

		cp := *in
		c.balances[in.Asset] = &cp
		changed = append(changed, in.Asset)
	}

	c.orders = append([]domain.Order(nil), snap.Orders...)
	c.ordersUpdated = snap.Timestamp
	c.balanceUpdated = snap.Timestamp
	changed = append(changed, OrdersKey)

	return changed
}

// Metric returns a copy of the cached entry for a key of the telemetry or
// system channel.
func (c *StreamCache) Metric(ch domain.Channel, key string) (domain.MetricEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	store := c.storeFor(ch)
	if store == nil {
		return domain.MetricEntry{}, false
	}
	e, ok := store[key]
	if !ok {
		return domain.MetricEntry{}, false
	}
	return *e, true
}

// Entries returns all cached entries of a channel sorted by key.
func (c *StreamCache) Entries(ch domain.Channel) []domain.MetricEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	store := c.storeFor(ch)
	result := make([]domain.MetricEntry, 0, len(store))
	for _, e := range store {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Keys returns the sorted key set of a channel.
func (c *StreamCache) Keys(ch domain.Channel) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	store := c.storeFor(ch)
	keys := make([]string, 0, len(store))
	for k := range store {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FirstKey returns the first key (in sorted order) of a channel. Widgets
// added before any data arrives use this to adopt a target.
func (c *StreamCache) FirstKey(ch domain.Channel) (string, bool) {
	keys := c.Keys(ch)
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// storeFor must be called with the lock held.
func (c *StreamCache) storeFor(ch domain.Channel) map[string]*domain.MetricEntry {
	switch ch {
	case domain.ChannelTelemetry:
		return c.telemetry
	case domain.ChannelSystem:
		return c.system
	default:
		return nil
	}
}

// Orders returns a copy of the current open-order list.
func (c *StreamCache) Orders() []domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Order(nil), c.orders...)
}

// OrdersUpdated returns the timestamp of the last balance message.
func (c *StreamCache) OrdersUpdated() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ordersUpdated
}

// Balances returns all cached balances sorted by asset.
func (c *StreamCache) Balances() []domain.Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Balance, 0, len(c.balances))
	for _, b := range c.balances {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Asset < result[j].Asset
	})
	return result
}

// Balance returns the cached balance for one asset.
func (c *StreamCache) Balance(asset string) (domain.Balance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.balances[asset]
	if !ok {
		return domain.Balance{}, false
	}
	return *b, true
}

// SetChannelState records a channel connection state transition.
func (c *StreamCache) SetChannelState(ch domain.Channel, state domain.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[ch] = state
}

// ChannelStates returns a copy of the per-channel connection states.
func (c *StreamCache) ChannelStates() map[domain.Channel]domain.ChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[domain.Channel]domain.ChannelState, len(c.states))
	for ch, s := range c.states {
		result[ch] = s
	}
	return result
}
