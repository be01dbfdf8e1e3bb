package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus は注文の処理状態を表す。
type OrderStatus string

const (
	// OrderStatusNotProcessed は作成直後の既定状態。
	OrderStatusNotProcessed OrderStatus = "Not processed"
)

// Order はチェックアウト時点のカートのスナップショット。
// 作成後はカート側から変更されない。
type Order struct {
	ID        string          `json:"id"`
	OrderedBy string          `json:"ordered_by"`
	PlacedAt  time.Time       `json:"placed_at"`
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
}
