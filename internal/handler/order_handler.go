package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookstore/internal/middleware"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Checkout(ctx context.Context, sessionID, rawTotal string) (*model.Order, error)
	ListOrders(ctx context.Context, identity *model.Identity) ([]model.Order, error)
}

// ordersView は注文履歴画面のJSONビュー。
type ordersView struct {
	Orders    []model.Order `json:"orders"`
	CartItems int           `json:"cartitems"`
}

// accountView はアカウント画面のJSONビュー。
type accountView struct {
	Uname     string         `json:"uname"`
	Email     string         `json:"email"`
	Provider  model.Provider `json:"provider"`
	CartItems int            `json:"cartitems"`
}

// profileView はプロフィール画面のJSONビュー。
type profileView struct {
	CartItems int `json:"cartitems"`
}

// OrderHandler は注文とアカウント画面のHTTPハンドラー。
// 全てのルートはRequireAuthenticatedの内側に置く。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// PlaceOrder はカートの内容で注文を確定してプロフィール画面へ戻す。
// POST /placeorder
// 空のカートはカート画面へ、保存失敗などはカートを残したままカート画面へ戻す。
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Checkout(r.Context(),
		middleware.SessionIDFromContext(r.Context()),
		r.PostFormValue("Order_total"),
	)
	switch {
	case err == nil:
		http.Redirect(w, r, pathProfile, http.StatusFound)
	case errors.Is(err, order.ErrInvalidTotal):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("Order_total"))
	case errors.Is(err, order.ErrEmptyCart):
		http.Redirect(w, r, pathCart, http.StatusFound)
	default:
		slog.Error("checkout failed", slog.String("error", err.Error()))
		http.Redirect(w, r, pathCart, http.StatusFound)
	}
}

// Orders はサインイン中の利用者の注文履歴を返す。
// GET /orders
func (h *OrderHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		slog.Error("failed to list orders", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	middleware.WriteJSON(w, http.StatusOK, ordersView{
		Orders:    orders,
		CartItems: cartItemCount(r.Context()),
	})
}

// Account はサインイン中のIdentityを返す。
// GET /account
func (h *OrderHandler) Account(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, accountView{
		Uname:     identity.Name,
		Email:     identity.Email,
		Provider:  identity.Provider,
		CartItems: cartItemCount(r.Context()),
	})
}

// Profile はプロフィール画面を返す。
// GET /profile
func (h *OrderHandler) Profile(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, profileView{CartItems: cartItemCount(r.Context())})
}
