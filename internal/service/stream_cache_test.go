package service

import (
	"testing"

	"dash_go/internal/domain"

	"github.com/shopspring/decimal"
)

func TestStreamCache_LastKnownGood(t *testing.T) {
	cache := NewStreamCache()

	changed, err := cache.Merge(domain.ChannelTelemetry, []domain.MetricEntry{
		{Key: "cpu_temp", Name: "cpu_temp", Value: 42.5, LastUpdated: 1000},
	})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(changed) != 1 || changed[0] != "cpu_temp" {
		t.Errorf("expected changed [cpu_temp], got %v", changed)
	}

	// An empty message must not erase the prior value.
	changed, err = cache.Merge(domain.ChannelTelemetry, []domain.MetricEntry{})
	if err != nil {
		t.Fatalf("Merge of empty batch failed: %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("empty batch should change nothing, got %v", changed)
	}

	e, ok := cache.Metric(domain.ChannelTelemetry, "cpu_temp")
	if !ok {
		t.Fatal("cpu_temp should still be cached")
	}
	if e.Value != 42.5 {
		t.Errorf("expected 42.5, got %v", e.Value)
	}
}

func TestStreamCache_UpsertOverwrites(t *testing.T) {
	cache := NewStreamCache()

	cache.Merge(domain.ChannelTelemetry, []domain.MetricEntry{
		{Key: "reqs", Value: 10, Rate: 1.5, LastUpdated: 1000},
	})
	cache.Merge(domain.ChannelTelemetry, []domain.MetricEntry{
		{Key: "reqs", Value: 20, Rate: 2.5, LastUpdated: 1001},
	})

	e, _ := cache.Metric(domain.ChannelTelemetry, "reqs")
	if e.Value != 20 || e.Rate != 2.5 || e.LastUpdated != 1001 {
		t.Errorf("entry not overwritten: %+v", e)
	}
}

func TestStreamCache_UnchangedValueNotReported(t *testing.T) {
	cache := NewStreamCache()

	entry := []domain.MetricEntry{{Key: "reqs", Value: 10, LastUpdated: 1000}}
	cache.Merge(domain.ChannelTelemetry, entry)

	changed, _ := cache.Merge(domain.ChannelTelemetry, entry)
	if len(changed) != 0 {
		t.Errorf("identical upsert should report no diff, got %v", changed)
	}
}

func TestStreamCache_OrdersReplacedWholesale(t *testing.T) {
	cache := NewStreamCache()

	first := domain.BalanceSnapshot{
		Orders: []domain.Order{
			{Symbol: "BTCUSD", Side: domain.SideBuy, Price: decimal.NewFromInt(50000), Quantity: decimal.NewFromFloat(0.5)},
			{Symbol: "ETHUSD", Side: domain.SideSell, Price: decimal.NewFromInt(3000), Quantity: decimal.NewFromInt(2)},
		},
		Timestamp: 1000,
	}
	cache.Merge(domain.ChannelBalance, first)

	second := domain.BalanceSnapshot{
		Orders: []domain.Order{
			{Symbol: "SOLUSD", Side: domain.SideBuy, Price: decimal.NewFromInt(150), Quantity: decimal.NewFromInt(10)},
		},
		Timestamp: 1001,
	}
	changed, err := cache.Merge(domain.ChannelBalance, second)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	orders := cache.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order (no carryover), got %d", len(orders))
	}
	if orders[0].Symbol != "SOLUSD" {
		t.Errorf("expected SOLUSD, got %s", orders[0].Symbol)
	}

	found := false
	for _, k := range changed {
		if k == OrdersKey {
			found = true
		}
	}
	if !found {
		t.Errorf("changed keys should include %q, got %v", OrdersKey, changed)
	}
}

func TestStreamCache_EmptyOrderListClears(t *testing.T) {
	cache := NewStreamCache()

	cache.Merge(domain.ChannelBalance, domain.BalanceSnapshot{
		Orders:    []domain.Order{{Symbol: "BTCUSD", Side: domain.SideBuy}},
		Timestamp: 1000,
	})
	cache.Merge(domain.ChannelBalance, domain.BalanceSnapshot{Timestamp: 1001})

	if n := len(cache.Orders()); n != 0 {
		t.Errorf("empty open_orders must clear the list, got %d orders", n)
	}
}

func TestStreamCache_BalancesSurviveOmission(t *testing.T) {
	cache := NewStreamCache()

	cache.Merge(domain.ChannelBalance, domain.BalanceSnapshot{
		Balances:  []domain.Balance{{Asset: "BTC", Total: decimal.NewFromFloat(1.25), LastUpdated: 1000}},
		Timestamp: 1000,
	})
	// Next message omits BTC entirely.
	cache.Merge(domain.ChannelBalance, domain.BalanceSnapshot{
		Balances:  []domain.Balance{{Asset: "ETH", Total: decimal.NewFromInt(10), LastUpdated: 1001}},
		Timestamp: 1001,
	})

	btc, ok := cache.Balance("BTC")
	if !ok {
		t.Fatal("BTC balance should persist across a message that omits it")
	}
	if !btc.Total.Equal(decimal.NewFromFloat(1.25)) {
		t.Errorf("expected 1.25, got %v", btc.Total)
	}

	balances := cache.Balances()
	if len(balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(balances))
	}
	if balances[0].Asset != "BTC" || balances[1].Asset != "ETH" {
		t.Errorf("balances not sorted by asset: %v, %v", balances[0].Asset, balances[1].Asset)
	}
}

func TestStreamCache_SystemArraysKeptWhole(t *testing.T) {
	cache := NewStreamCache()

	cache.Merge(domain.ChannelSystem, []domain.MetricEntry{
		{Key: "cpu_usage", Values: []float64{10, 20, 30, 40}, LastUpdated: 1000},
	})

	e, ok := cache.Metric(domain.ChannelSystem, "cpu_usage")
	if !ok {
		t.Fatal("cpu_usage should be cached")
	}
	if !e.IsArray() || len(e.Values) != 4 {
		t.Errorf("array value should be stored whole, got %+v", e)
	}
}

func TestStreamCache_LogNeverCached(t *testing.T) {
	cache := NewStreamCache()

	changed, err := cache.Merge(domain.ChannelLog, &domain.LogLine{Raw: "hello"})
	if err != nil {
		t.Fatalf("log merge should be a no-op, got error: %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("log merge should report no keys, got %v", changed)
	}
}

func TestStreamCache_FirstKey(t *testing.T) {
	cache := NewStreamCache()

	if _, ok := cache.FirstKey(domain.ChannelTelemetry); ok {
		t.Error("empty channel has no first key")
	}

	cache.Merge(domain.ChannelTelemetry, []domain.MetricEntry{
		{Key: "zeta", Value: 1},
		{Key: "alpha", Value: 2},
	})

	key, ok := cache.FirstKey(domain.ChannelTelemetry)
	if !ok || key != "alpha" {
		t.Errorf("expected first key alpha, got %q", key)
	}
}

func TestStreamCache_ChannelStates(t *testing.T) {
	cache := NewStreamCache()

	cache.SetChannelState(domain.ChannelTelemetry, domain.StateConnected)
	cache.SetChannelState(domain.ChannelBalance, domain.StateDisconnected)

	states := cache.ChannelStates()
	if states[domain.ChannelTelemetry] != domain.StateConnected {
		t.Error("telemetry should be CONNECTED")
	}
	if states[domain.ChannelBalance] != domain.StateDisconnected {
		t.Error("balance should be DISCONNECTED")
	}
}

func BenchmarkStreamCache_MergeTelemetry(b *testing.B) {
	cache := NewStreamCache()
	batch := make([]domain.MetricEntry, 50)
	for i := range batch {
		batch[i] = domain.MetricEntry{Key: domain.MetricKey("metric", map[string]string{"i": string(rune('a' + i%26))}), Value: float64(i)}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch[0].Value = float64(i)
		cache.Merge(domain.ChannelTelemetry, batch)
	}
}
