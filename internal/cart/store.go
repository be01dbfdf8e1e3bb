// Package cart はセッション単位のショッピングカート操作を提供する。
//
// カートはセッション状態の一部として保存され、全ての変更はセッション単位で直列化される。
// 同一インスタンス内ではキー付きロック、インスタンス間ではSessionRepository.Updateの
// 排他（行ロックまたはRedisロック）により、連打された追加リクエストでも数量が失われない。
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/bookstore/internal/metrics"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/repository"
	"github.com/hitoshi/bookstore/internal/security"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingProductID は商品IDが空の場合に返される。
	ErrMissingProductID = errors.New("product id is required")
	// ErrInvalidPrice は価格が非負の10進表記（整数部10桁、小数部2桁まで）でない場合に返される。
	ErrInvalidPrice = errors.New("invalid product price")
)

// ItemInput はカートに追加する商品のフォーム入力。
type ItemInput struct {
	ProductID string
	Title     string
	Author    string
	Price     string
}

// Store はセッションに紐づくカートを操作する。
type Store struct {
	sessions  repository.SessionRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	locks     *keyedMutex
}

// NewStore はStoreを生成する。mcがnilの場合はメトリクスを記録しない。
func NewStore(
	sessions repository.SessionRepository,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
) *Store {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Store{
		sessions:  sessions,
		sanitizer: sanitizer,
		metrics:   mc,
		locks:     newKeyedMutex(),
	}
}

// ParsePrice は価格文字列をmodel.ParseAmountの形式で解釈する。前後の空白は無視する。
func ParsePrice(raw string) (decimal.Decimal, error) {
	price, err := model.ParseAmount(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return price, nil
}

// Add は商品をカートに追加し、追加後の明細数（商品の種類数）を返す。
// 同じ商品IDが既にあれば数量を1増やす。
func (s *Store) Add(ctx context.Context, sessionID string, in ItemInput) (int, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return 0, ErrMissingProductID
	}
	price, err := ParsePrice(in.Price)
	if err != nil {
		return 0, err
	}
	title := s.sanitizer.Sanitize(in.Title)
	author := s.sanitizer.Sanitize(in.Author)

	var count int
	err = s.WithState(ctx, sessionID, func(_ context.Context, state *model.SessionState) error {
		count = state.Cart.AddItem(productID, title, author, price)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RecordCartMutation("add")
	return count, nil
}

// Remove は商品IDに一致する明細を削除する。存在しない場合は何もしない。
func (s *Store) Remove(ctx context.Context, sessionID, productID string) error {
	productID = strings.TrimSpace(productID)
	err := s.WithState(ctx, sessionID, func(_ context.Context, state *model.SessionState) error {
		state.Cart.RemoveItem(productID)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordCartMutation("remove")
	return nil
}

// Clear はカートを空にする。
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.WithState(ctx, sessionID, func(_ context.Context, state *model.SessionState) error {
		state.Cart.Clear()
		return nil
	})
}

// View はカートのスナップショットを返す。セッションが存在しない場合は空のカートを返す。
func (s *Store) View(ctx context.Context, sessionID string) (model.Cart, error) {
	if sessionID == "" {
		return model.Cart{Items: []model.CartItem{}}, nil
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return model.Cart{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if session == nil {
		return model.Cart{Items: []model.CartItem{}}, nil
	}
	return model.Cart{Items: session.State.Cart.Snapshot()}, nil
}

// WithState はセッション単位の排他下でセッション状態を読み込み、fnで変更して保存する。
// fnがエラーを返した場合、カートを含む状態は変更されない。
func (s *Store) WithState(ctx context.Context, sessionID string, fn repository.SessionMutator) error {
	if sessionID == "" {
		return repository.ErrSessionNotFound
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.sessions.Update(ctx, sessionID, fn); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}
