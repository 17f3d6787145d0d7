package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dash_go/internal/domain"

	"github.com/shopspring/decimal"
)

// DecodeTelemetry parses a telemetry message: either a bare metric array or
// a {"metrics":[...]} wrapper. Histogram metrics are skipped, not decoded;
// the upstream marks them unsupported and we reproduce that.
func DecodeTelemetry(data []byte) ([]domain.MetricEntry, error) {
	trimmed := bytes.TrimSpace(data)

	var items []telemetryMetric
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, domain.NewDecodeError(domain.ChannelTelemetry, data, err)
		}
	} else {
		var payload telemetryPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, domain.NewDecodeError(domain.ChannelTelemetry, data, err)
		}
		items = payload.Metrics
	}

	entries := make([]domain.MetricEntry, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.Name == "" {
			continue
		}
		if item.MetricType.Type == "histogram" {
			continue
		}

		entry := domain.MetricEntry{
			Key:         domain.MetricKey(item.Name, item.Labels),
			Name:        item.Name,
			Labels:      item.Labels,
			Class:       domain.ClassifyValue(item.Name, item.Unit),
			Rate:        item.CachedRate,
			LastUpdated: item.LastUpdated,
		}

		value, values, err := decodeMetricValue(item.MetricType.Value)
		if err != nil {
			continue // one bad item doesn't sink the batch
		}
		entry.Value = value
		entry.Values = values

		if entry.Class == domain.ValueMemory && domain.IsKibibyteUnit(item.Name, item.Unit) {
			entry.Value *= 1024
			for j := range entry.Values {
				entry.Values[j] *= 1024
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeMetricValue accepts a scalar number or an array of numbers.
func decodeMetricValue(raw json.RawMessage) (float64, []float64, error) {
	if len(raw) == 0 {
		return 0, nil, fmt.Errorf("missing value")
	}

	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return scalar, nil, nil
	}

	var values []float64
	if err := json.Unmarshal(raw, &values); err == nil {
		return 0, values, nil
	}
	return 0, nil, fmt.Errorf("unsupported value shape")
}

// DecodeBalance parses a balance-channel message into per-asset balances and
// the point-in-time open-order list.
func DecodeBalance(data []byte) (domain.BalanceSnapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload balancePayload
	if err := dec.Decode(&payload); err != nil {
		return domain.BalanceSnapshot{}, domain.NewDecodeError(domain.ChannelBalance, data, err)
	}

	snap := domain.BalanceSnapshot{Timestamp: payload.Timestamp}

	for i := range payload.Balances {
		item := &payload.Balances[i]
		if item.Asset == "" {
			continue
		}

		balance := domain.Balance{
			Asset:       item.Asset,
			Total:       numberToDecimal(item.TotalBalance),
			LastUpdated: payload.Timestamp,
		}
		for _, w := range item.Wallets {
			balance.Wallets = append(balance.Wallets, domain.WalletBalance{
				Name:   w.Name,
				Amount: numberToDecimal(w.Amount),
			})
		}
		snap.Balances = append(snap.Balances, balance)
	}

	for _, raw := range payload.OpenOrders {
		order := domain.Order{
			Symbol:    lookupString(raw, orderSymbolAliases),
			Side:      strings.ToUpper(lookupString(raw, orderSideAliases)),
			Price:     lookupDecimal(raw, orderPriceAliases),
			Quantity:  lookupDecimal(raw, orderQtyAliases),
			CreatedAt: lookupInt(raw, orderTimeAliases),
		}
		snap.Orders = append(snap.Orders, order)
	}

	return snap, nil
}

// lookupString resolves the first alias present with a string value.
func lookupString(m map[string]any, aliases []string) string {
	for _, key := range aliases {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// lookupDecimal resolves the first alias present with a numeric or numeric
// string value.
func lookupDecimal(m map[string]any, aliases []string) decimal.Decimal {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(val.String()); err == nil {
				return d
			}
		case string:
			if d, err := decimal.NewFromString(val); err == nil {
				return d
			}
		case float64:
			return decimal.NewFromFloat(val)
		}
	}
	return decimal.Zero
}

func lookupInt(m map[string]any, aliases []string) int64 {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case json.Number:
			if n, err := val.Int64(); err == nil {
				return n
			}
		case float64:
			return int64(val)
		}
	}
	return 0
}

func numberToDecimal(n json.Number) decimal.Decimal {
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecodeSystem parses a system message: a flat object of scalar and array
// fields. Nested objects are skipped; arrays (e.g. per-core usage) are
// stored as a single value. The reserved keys "type" and "timestamp" are
// not metrics.
func DecodeSystem(data []byte) ([]domain.MetricEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, domain.NewDecodeError(domain.ChannelSystem, data, err)
	}

	var timestamp int64
	if ts, ok := fields["timestamp"].(json.Number); ok {
		timestamp, _ = ts.Int64()
	}

	// Sorted key order keeps entry batches deterministic.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !systemReservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]domain.MetricEntry, 0, len(keys))
	for _, key := range keys {
		entry := domain.MetricEntry{
			Key:         key,
			Name:        key,
			Class:       domain.ClassifyValue(key, ""),
			LastUpdated: timestamp,
		}

		switch v := fields[key].(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				continue
			}
			entry.Value = f
		case []any:
			values := make([]float64, 0, len(v))
			ok := true
			for _, el := range v {
				n, isNum := el.(json.Number)
				if !isNum {
					ok = false
					break
				}
				f, err := n.Float64()
				if err != nil {
					ok = false
					break
				}
				values = append(values, f)
			}
			if !ok || len(values) == 0 {
				continue
			}
			entry.Values = values
		default:
			continue // nested objects, strings, booleans are not metrics
		}

		if entry.Class == domain.ValueMemory && domain.IsKibibyteUnit(key, "") {
			entry.Value *= 1024
			for j := range entry.Values {
				entry.Values[j] *= 1024
			}
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// DecodeLog parses a log message: a bare JSON string or a structured
// {"type":"log", ...} record.
func DecodeLog(data []byte) (*domain.LogLine, error) {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, domain.NewDecodeError(domain.ChannelLog, data, err)
		}
		return &domain.LogLine{Raw: raw}, nil
	}

	var rec structuredLog
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, domain.NewDecodeError(domain.ChannelLog, data, err)
	}
	if rec.Type != "" && rec.Type != "log" {
		return nil, domain.NewDecodeError(domain.ChannelLog, data, fmt.Errorf("unexpected type %q", rec.Type))
	}

	return &domain.LogLine{
		Timestamp: rec.Timestamp,
		Level:     rec.Level,
		Section:   rec.Section,
		Message:   rec.Message,
		ID:        rec.ID,
	}, nil
}
