package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/bookstore/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// Create は注文を作成する。明細はJSONBとして丸ごと保存する。
// ctxがセッション更新のトランザクションを運んでいる場合はその中で書き込む。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	_, err = executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO orders (id, ordered_by, placed_at, items, total, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.OrderedBy, order.PlacedAt, items, order.Total, string(order.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// ListByOrderedBy は指定ユーザー名の注文をplaced_at昇順で返す。
func (r *PostgresOrderRepo) ListByOrderedBy(ctx context.Context, orderedBy string) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ordered_by, placed_at, items, total, status
		 FROM orders
		 WHERE ordered_by = $1
		 ORDER BY placed_at, id`,
		orderedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var (
			o      model.Order
			items  []byte
			status string
		)
		if err := rows.Scan(&o.ID, &o.OrderedBy, &o.PlacedAt, &items, &o.Total, &status); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to decode order items: %w", err)
		}
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
