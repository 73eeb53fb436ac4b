package domain

import (
	"math/big"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusDryRun  OrderStatus = "DRY_RUN"
	OrderStatusPending OrderStatus = "pending"
	OrderStatusOpen    OrderStatus = "open"
	OrderStatusMatched OrderStatus = "matched"
	OrderStatusFailed  OrderStatus = "failed"
)

// Order is a signed limit order ready for submission to the CLOB.
type Order struct {
	ID          string
	TokenID     string
	Wallet      string
	Side        OrderSide
	Type        OrderType
	Price       float64
	AmountUSDC  float64
	Salt        string
	MakerAmount *big.Int // USDC notional, 6 decimals
	TakerAmount *big.Int // outcome shares, 6 decimals
	Signature   string
	CreatedAt   time.Time
}

// OrderResult is what the execution adapter reports back for one order.
type OrderResult struct {
	OrderID    string      `json:"order_id,omitempty"`
	Status     OrderStatus `json:"status"`
	TokenID    string      `json:"token_id"`
	Amount     float64     `json:"amount"`
	Price      float64     `json:"price"`
	DynamicFee float64     `json:"dynamic_fee"`
	TotalCost  float64     `json:"total_cost"`
	Payout     float64     `json:"potential_payout"`
	Message    string      `json:"message,omitempty"`
}

// MergeResult describes a merge of complementary outcome tokens back into
// collateral.
type MergeResult struct {
	ConditionID string `json:"condition_id"`
	Amount      string `json:"amount"`
	TxHash      string `json:"tx_hash,omitempty"`
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
}
