package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cakeshop/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	AddToCart(ctx context.Context, email string, cakeID int64, qty int) (*model.CartItem, error)
	UpdateQuantity(ctx context.Context, email string, cartItemID int64, qty int) error
	RemoveItem(ctx context.Context, email string, cartItemID int64) error
	GetCart(ctx context.Context, email string) (*model.CartView, error)
	ClearCart(ctx context.Context, email string) error
}

// CartHandler はカート操作のHTTPハンドラー。
// 変更操作は常に最新のカート内容を返す。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

// addToCartRequest はカート追加リクエストのボディ。
type addToCartRequest struct {
	CakeID   int64 `json:"cakeId"`
	Quantity int   `json:"quantity"`
}

// updateQuantityRequest は数量更新リクエストのボディ。
type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// GetCart はカートの内容を返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	h.writeCart(w, r, p.Email, "Cart loaded")
}

// AddItem はケーキをカートに追加する。同じケーキは数量を加算する。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Request body must be valid JSON")
		return
	}
	if req.CakeID <= 0 {
		writeBadRequest(w, "cakeId is required")
		return
	}

	if _, err := h.service.AddToCart(r.Context(), p.Email, req.CakeID, req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeCart(w, r, p.Email, "Item added to cart")
}

// UpdateItem は明細の数量を設定する。0以下の場合は明細を削除する。
// PUT /api/cart/items/{itemId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Request body must be valid JSON")
		return
	}
	if req.Quantity == nil {
		writeBadRequest(w, "quantity is required")
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), p.Email, itemID, *req.Quantity); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeCart(w, r, p.Email, "Cart item updated")
}

// RemoveItem は明細を削除する。
// DELETE /api/cart/items/{itemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), p.Email, itemID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeCart(w, r, p.Email, "Cart item removed")
}

// ClearCart はカートの全明細を削除する。カート自体は残る。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearCart(r.Context(), p.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeCart(w, r, p.Email, "Cart cleared")
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request, email, message string) {
	view, err := h.service.GetCart(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, message, toCartResponse(view))
}

// pathID はURLパラメータを正の整数IDとして読み取る。不正な場合は400を書き込む。
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, key+" must be a positive integer")
		return 0, false
	}
	return id, true
}
