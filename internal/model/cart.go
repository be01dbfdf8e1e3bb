package model

import "github.com/shopspring/decimal"

// CartItem はカートの明細行を表す。
// 1つのカート内で同じProductIDの明細は高々1つ。
type CartItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal は単価×数量を返す。
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart はセッションが所有する明細の並び。
// 変更はこのメソッド群を通してのみ行う。
type Cart struct {
	Items []CartItem `json:"items"`
}

// AddItem は商品をカートに追加し、明細数を返す。
// 同じProductIDの明細があれば数量を1増やし、なければ数量1で末尾に追加する。
func (c *Cart) AddItem(productID, title, author string, unitPrice decimal.Decimal) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity++
			return len(c.Items)
		}
	}
	c.Items = append(c.Items, CartItem{
		ProductID: productID,
		Title:     title,
		Author:    author,
		UnitPrice: unitPrice,
		Quantity:  1,
	})
	return len(c.Items)
}

// RemoveItem はProductIDに一致する明細をすべて削除する。
// 該当がなければ何もしない。
func (c *Cart) RemoveItem(productID string) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	// 末尾に残った参照を切る
	for i := len(kept); i < len(c.Items); i++ {
		c.Items[i] = CartItem{}
	}
	c.Items = kept
}

// Merge は別カートの明細を取り込む。
// 同じProductIDは数量を合算し、未登録の明細は元の順序で末尾に追加する。
func (c *Cart) Merge(other Cart) {
	for _, in := range other.Items {
		merged := false
		for i := range c.Items {
			if c.Items[i].ProductID == in.ProductID {
				c.Items[i].Quantity += in.Quantity
				merged = true
				break
			}
		}
		if !merged {
			c.Items = append(c.Items, in)
		}
	}
}

// Total は全明細の単価×数量の合計を返す。
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ItemCount は明細数を返す（数量の合計ではない）。
func (c *Cart) ItemCount() int {
	return len(c.Items)
}

// Quantity は数量の合計を返す。
func (c *Cart) Quantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Clear はカートを空にする。
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// Snapshot は明細のコピーを返す。
func (c *Cart) Snapshot() []CartItem {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return items
}
