package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookstore/internal/cart"
	"github.com/hitoshi/bookstore/internal/middleware"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/repository"
	"github.com/shopspring/decimal"
)

const addedToCartMessage = "Successfully added to cart!"

// BookLister はカタログの書籍一覧を返す。
// repository.BookRepositoryが満たす。
type BookLister interface {
	ListAll(ctx context.Context) ([]model.Book, error)
}

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Add(ctx context.Context, sessionID string, in cart.ItemInput) (int, error)
	Remove(ctx context.Context, sessionID, productID string) error
	View(ctx context.Context, sessionID string) (model.Cart, error)
}

// SessionStarter は未ログインの訪問者用のセッションを発行する。
type SessionStarter interface {
	StartSession(ctx context.Context) (*model.Session, error)
}

// homeView はホーム画面のJSONビュー。
type homeView struct {
	Products  []model.Book `json:"products"`
	CartItems int          `json:"cartitems"`
	Msg       string       `json:"msg,omitempty"`
}

// cartView はカート画面のJSONビュー。
type cartView struct {
	Cart      []model.CartItem `json:"cart"`
	Total     decimal.Decimal  `json:"total"`
	CartItems int              `json:"cartitems"`
}

// CartHandler はカタログとカートのHTTPハンドラー。
type CartHandler struct {
	books    BookLister
	carts    CartServiceInterface
	sessions SessionStarter
	cookies  CookieConfig
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(books BookLister, carts CartServiceInterface, sessions SessionStarter, cookies CookieConfig) *CartHandler {
	return &CartHandler{
		books:    books,
		carts:    carts,
		sessions: sessions,
		cookies:  cookies,
	}
}

// Home は書籍一覧とカートの明細数を返す。
// GET /home
func (h *CartHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.writeHome(w, r, cartItemCount(r.Context()), "")
}

// Cart はカートの明細と合計金額を返す。
// GET /cart
func (h *CartHandler) Cart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.View(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		slog.Error("failed to load cart", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, cartView{
		Cart:      c.Items,
		Total:     c.Total(),
		CartItems: c.ItemCount(),
	})
}

// AddCart は商品をカートに追加し、メッセージ付きのホーム画面を返す。
// POST /add_cart
// セッションのない訪問者にはIdentityを持たないセッションを発行する。
func (h *CartHandler) AddCart(w http.ResponseWriter, r *http.Request) {
	in := cart.ItemInput{
		ProductID: r.PostFormValue("product_id"),
		Title:     r.PostFormValue("product_Title"),
		Author:    r.PostFormValue("product_Author"),
		Price:     r.PostFormValue("product_Price"),
	}

	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		session, err := h.sessions.StartSession(r.Context())
		if err != nil {
			slog.Error("failed to start cart session", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		sessionID = session.ID
		setSessionCookie(w, sessionID, h.cookies)
	}

	count, err := h.carts.Add(r.Context(), sessionID, in)
	switch {
	case err == nil:
	case errors.Is(err, cart.ErrMissingProductID):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("product_id"))
		return
	case errors.Is(err, cart.ErrInvalidPrice):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPriceError(in.Price))
		return
	case errors.Is(err, repository.ErrSessionNotFound):
		clearSessionCookie(w, h.cookies)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewSessionNotFoundError())
		return
	default:
		slog.Error("failed to add to cart", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.writeHome(w, r, count, addedToCartMessage)
}

// RemoveItem は商品をカートから削除してカート画面へ戻す。
// POST /remove-item
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID != "" {
		err := h.carts.Remove(r.Context(), sessionID, r.PostFormValue("product_id"))
		if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			slog.Error("failed to remove cart item", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, pathCart, http.StatusFound)
}

func (h *CartHandler) writeHome(w http.ResponseWriter, r *http.Request, count int, msg string) {
	books, err := h.books.ListAll(r.Context())
	if err != nil {
		slog.Error("failed to list books", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, homeView{
		Products:  books,
		CartItems: count,
		Msg:       msg,
	})
}

// cartItemCount はリクエスト時点のカートの明細数を返す。
func cartItemCount(ctx context.Context) int {
	if session := middleware.SessionFromContext(ctx); session != nil {
		return session.State.Cart.ItemCount()
	}
	return 0
}
