package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/shopspring/decimal"
)

func TestPostgresOrderRepo_CreateAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresOrderRepo(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	items := []model.CartItem{
		{ProductID: "b1", Title: "Go", Author: "Pike", UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2},
	}

	later := &model.Order{
		ID: uuid.New().String(), OrderedBy: "alice", PlacedAt: base.Add(time.Minute),
		Items: items, Total: decimal.RequireFromString("21.00"), Status: model.OrderStatusNotProcessed,
	}
	earlier := &model.Order{
		ID: uuid.New().String(), OrderedBy: "alice", PlacedAt: base,
		Items: items, Total: decimal.RequireFromString("21.00"), Status: model.OrderStatusNotProcessed,
	}
	other := &model.Order{
		ID: uuid.New().String(), OrderedBy: "bob", PlacedAt: base,
		Items: items, Total: decimal.RequireFromString("21.00"), Status: model.OrderStatusNotProcessed,
	}
	for _, o := range []*model.Order{later, earlier, other} {
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	orders, err := repo.ListByOrderedBy(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOrderedBy returned error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len(orders) = %d, want 2", len(orders))
	}
	if orders[0].ID != earlier.ID || orders[1].ID != later.ID {
		t.Errorf("orders not sorted by placed_at: got %s, %s", orders[0].ID, orders[1].ID)
	}

	got := orders[0]
	if !got.Total.Equal(decimal.RequireFromString("21")) {
		t.Errorf("Total = %s, want 21", got.Total)
	}
	if got.Status != model.OrderStatusNotProcessed {
		t.Errorf("Status = %q, want %q", got.Status, model.OrderStatusNotProcessed)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || !got.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("Items = %+v, want one item qty 2 price 10.5", got.Items)
	}
}

func TestPostgresOrderRepo_List_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresOrderRepo(db)

	orders, err := repo.ListByOrderedBy(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByOrderedBy returned error: %v", err)
	}
	if orders == nil || len(orders) != 0 {
		t.Errorf("orders = %v, want empty non-nil slice", orders)
	}
}

func TestPostgresBookRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresBookRepo(db)
	ctx := context.Background()

	if _, err := db.Exec(
		`INSERT INTO books (id, title, author, summary, price) VALUES
		 ('b2', 'Second', 'B', '', 5.00),
		 ('b1', 'First', 'A', 'summary', 10.25)`,
	); err != nil {
		t.Fatalf("failed to seed books: %v", err)
	}

	books, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("len(books) = %d, want 2", len(books))
	}
	if books[0].ID != "b1" {
		t.Errorf("books[0].ID = %q, want b1", books[0].ID)
	}
	if !books[0].Price.Equal(decimal.RequireFromString("10.25")) {
		t.Errorf("books[0].Price = %s, want 10.25", books[0].Price)
	}
}

// セッション更新中に書いた注文はセッションの書き戻しと同じトランザクションに乗る
func TestPostgresOrderRepo_CreateInsideSessionUpdate(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewPostgresSessionRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	now := time.Now().UTC()
	session := &model.Session{ID: "s-order-tx", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create session returned error: %v", err)
	}

	newOrder := func(orderedBy string) *model.Order {
		return &model.Order{
			ID: uuid.New().String(), OrderedBy: orderedBy, PlacedAt: now,
			Items:  []model.CartItem{{ProductID: "b1", Title: "Go", UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
			Total:  decimal.NewFromInt(10),
			Status: model.OrderStatusNotProcessed,
		}
	}

	failure := errors.New("abort")
	err := sessions.Update(ctx, session.ID, func(ctx context.Context, _ *model.SessionState) error {
		if err := orders.Create(ctx, newOrder("rolled-back")); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Update error = %v, want %v", err, failure)
	}
	if got, err := orders.ListByOrderedBy(ctx, "rolled-back"); err != nil || len(got) != 0 {
		t.Errorf("orders after aborted update = %d (err %v), want 0", len(got), err)
	}

	err = sessions.Update(ctx, session.ID, func(ctx context.Context, _ *model.SessionState) error {
		return orders.Create(ctx, newOrder("committed"))
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got, err := orders.ListByOrderedBy(ctx, "committed"); err != nil || len(got) != 1 {
		t.Errorf("orders after committed update = %d (err %v), want 1", len(got), err)
	}
}
