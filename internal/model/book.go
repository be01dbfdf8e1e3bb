package model

import "github.com/shopspring/decimal"

// Book はカタログ上の書籍を表す。
type Book struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Author  string          `json:"author"`
	Summary string          `json:"summary"`
	Price   decimal.Decimal `json:"price"`
}
