package model

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount は金額が許容される形式でない場合に返される。
var ErrInvalidAmount = errors.New("invalid amount")

// amountPattern は価格・合計金額の列（NUMERIC(12, 2)）に収まる非負の10進表記。
// 指数表記は桁数の上限を持たないため受け付けない。
var amountPattern = regexp.MustCompile(`^[0-9]{1,10}(\.[0-9]{1,2})?$`)

// ParseAmount は金額文字列を解釈する。整数部は10桁、小数部は2桁まで。
func ParseAmount(raw string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(raw)
}
