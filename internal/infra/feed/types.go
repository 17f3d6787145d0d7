package feed

import "encoding/json"

// telemetryMetric is one metric item of a telemetry message.
type telemetryMetric struct {
	Name       string            `json:"name"`
	Labels     map[string]string `json:"labels"`
	MetricType struct {
		Type  string          `json:"type"` // gauge, counter, histogram
		Value json.RawMessage `json:"value"`
	} `json:"metric_type"`
	Unit        string  `json:"unit,omitempty"`
	LastUpdated int64   `json:"last_updated"`
	CachedRate  float64 `json:"cached_rate"`
}

// telemetryPayload is the wrapped form; a bare array is also accepted.
type telemetryPayload struct {
	Metrics []telemetryMetric `json:"metrics"`
}

// walletItem is one wallet's share of an asset balance.
type walletItem struct {
	Name   string      `json:"name"`
	Amount json.Number `json:"amount"`
}

// balanceItem is one asset of a balance message.
type balanceItem struct {
	Asset        string       `json:"asset"`
	TotalBalance json.Number  `json:"total_balance"`
	Wallets      []walletItem `json:"wallets"`
}

// balancePayload is a balance-channel message. Open orders are decoded as
// loose maps because the upstream field names for price and quantity are
// unstable; see the alias lists below.
type balancePayload struct {
	Balances   []balanceItem    `json:"balances"`
	OpenOrders []map[string]any `json:"open_orders"`
	Timestamp  int64            `json:"timestamp"`
}

// Field-name aliases for open-order records, tried in priority order. The
// upstream schema has shipped several names for the same field over time;
// the order here mirrors the upstream precedence and must not be reordered.
var (
	orderSymbolAliases = []string{"symbol", "pair", "market"}
	orderSideAliases   = []string{"side", "direction", "type"}
	orderPriceAliases  = []string{"price", "limit_price", "order_price", "avg_price", "px"}
	orderQtyAliases    = []string{"quantity", "qty", "orig_qty", "amount", "size", "volume"}
	orderTimeAliases   = []string{"created_at", "timestamp", "time"}
)

// structuredLog is the structured form of a log-channel message; a bare
// JSON string is also accepted.
type structuredLog struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Section   string `json:"section"`
	Message   string `json:"message"`
	ID        string `json:"id"`
}

// reserved keys of a system message that are not metrics
var systemReservedKeys = map[string]bool{
	"type":      true,
	"timestamp": true,
}
