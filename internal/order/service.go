// Package order はカートから注文への変換と注文履歴の参照を提供する。
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/bookstore/internal/metrics"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart は空のカートでチェックアウトしようとした場合に返される。
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTotal は申告された合計金額が非負の10進表記（整数部10桁、小数部2桁まで）でない場合に返される。
	ErrInvalidTotal = errors.New("invalid order total")
	// ErrNotAuthenticated はIdentityのないセッションでチェックアウトしようとした場合に返される。
	ErrNotAuthenticated = errors.New("checkout requires a signed-in identity")
)

// CartStateUpdater はセッション単位の排他下でカートを含む状態を更新する。
// cart.Storeが満たす。
type CartStateUpdater interface {
	WithState(ctx context.Context, sessionID string, fn repository.SessionMutator) error
}

// Service は注文のサービス層。
type Service struct {
	orders  repository.OrderRepository
	carts   CartStateUpdater
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(orders repository.OrderRepository, carts CartStateUpdater, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		orders:  orders,
		carts:   carts,
		metrics: mc,
		now:     time.Now,
	}
}

// ParseTotal は申告された合計金額をmodel.ParseAmountの形式で解釈する。
func ParseTotal(raw string) (decimal.Decimal, error) {
	total, err := model.ParseAmount(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidTotal, raw)
	}
	return total, nil
}

// PlaceOrder は現在のカート内容と申告された合計金額から注文を作成して保存し、
// 保存に成功した場合のみカートを空にする。保存に失敗した場合カートは変更されない。
// 合計金額はクライアントの申告値をそのまま記録し、サーバー側の計算値と異なる場合は警告を出す。
func (s *Service) PlaceOrder(ctx context.Context, identity *model.Identity, cart *model.Cart, declaredTotal decimal.Decimal) (*model.Order, error) {
	if identity == nil {
		return nil, ErrNotAuthenticated
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	if computed := cart.Total(); !computed.Equal(declaredTotal) {
		slog.Warn("declared order total differs from cart total",
			slog.String("ordered_by", identity.Name),
			slog.String("declared", declaredTotal.StringFixed(2)),
			slog.String("computed", computed.StringFixed(2)),
		)
	}

	order := &model.Order{
		ID:        uuid.New().String(),
		OrderedBy: identity.Name,
		PlacedAt:  s.now().UTC(),
		Items:     cart.Snapshot(),
		Total:     declaredTotal,
		Status:    model.OrderStatusNotProcessed,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	cart.Clear()
	return order, nil
}

// Checkout はセッションのカートを排他的に取り出してPlaceOrderを実行する。
// 注文の保存とカートのクリアは同じセッション更新の中で行われる。
func (s *Service) Checkout(ctx context.Context, sessionID, rawTotal string) (*model.Order, error) {
	declared, err := ParseTotal(rawTotal)
	if err != nil {
		s.metrics.RecordCheckoutFailure("invalid_total")
		return nil, err
	}

	var placed *model.Order
	err = s.carts.WithState(ctx, sessionID, func(ctx context.Context, state *model.SessionState) error {
		order, err := s.PlaceOrder(ctx, state.Identity, &state.Cart, declared)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		s.metrics.RecordCheckoutFailure(checkoutFailureReason(err))
		return nil, err
	}

	s.metrics.RecordOrderPlaced(len(placed.Items))
	slog.Info("order placed",
		slog.String("order_id", placed.ID),
		slog.String("ordered_by", placed.OrderedBy),
		slog.Int("items", len(placed.Items)),
	)
	return placed, nil
}

// ListOrders はidentityの注文をplaced_at昇順で返す。
func (s *Service) ListOrders(ctx context.Context, identity *model.Identity) ([]model.Order, error) {
	if identity == nil {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.orders.ListByOrderedBy(ctx, identity.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func checkoutFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, repository.ErrSessionNotFound):
		return "session_gone"
	default:
		return "persist"
	}
}
