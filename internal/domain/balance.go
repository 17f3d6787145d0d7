package domain

import "github.com/shopspring/decimal"

// WalletBalance is the share of an asset held in one wallet.
type WalletBalance struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Balance represents the last-known holdings of a single asset.
// Balances are upserted per asset and survive messages that omit them.
type Balance struct {
	Asset       string          `json:"asset"`
	Total       decimal.Decimal `json:"total"`
	Wallets     []WalletBalance `json:"wallets,omitempty"`
	LastUpdated int64           `json:"last_updated"`
}

// BalanceSnapshot is one decoded balance-channel message: per-asset balances
// to upsert plus the full open-order list, which replaces the cached list
// wholesale because it represents point-in-time server state.
type BalanceSnapshot struct {
	Balances  []Balance `json:"balances"`
	Orders    []Order   `json:"open_orders"`
	Timestamp int64     `json:"timestamp"`
}
