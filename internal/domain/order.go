package domain

import "github.com/shopspring/decimal"

// Order represents one open order as reported by the balance channel.
// The cached order list is fully replaced on every balance message; orders
// never carry over from a previous update.
type Order struct {
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"` // "BUY", "SELL"
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt int64           `json:"created_at,omitempty"` // epoch seconds, 0 when unknown
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Notional returns price * quantity.
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Quantity)
}
