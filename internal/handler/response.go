package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cakeshop/internal/middleware"
	"github.com/hitoshi/cakeshop/internal/model"
)

// envelope は成功レスポンスの共通フォーマット。
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// writeSuccess は200と共通フォーマットのボディを書き込む。
func writeSuccess(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Message: message, Data: data}); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外のエラーは原因をログに残し、汎用の500を返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind != model.KindInternal {
		if apiErr.Kind == model.KindUnavailable {
			slog.Warn("service unavailable",
				slog.String("path", r.URL.Path),
				slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// writeBadRequest はリクエスト形式の誤りを400で返す。
func writeBadRequest(w http.ResponseWriter, reason string) {
	middleware.WriteAPIError(w, model.NewValidationError(reason))
}

// decodeJSON はJSONボディを読み込む。未知のフィールドは無視する。
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// principal はポリシーを通過したリクエストの主体を返す。
// ポリシー無しで呼ばれた場合は401を書き込みfalseを返す。
func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
	}
	return p, ok
}

// --- レスポンス型 ---

// userResponse はサインアップ・ログイン・プロフィールで返すユーザー情報。
type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// homePageResponse はトップページの案内文。
type homePageResponse struct {
	Title   string `json:"title"`
	Tagline string `json:"tagline"`
}

// shopResponse は店舗情報のAPIレスポンス。
type shopResponse struct {
	ID           int64  `json:"id"`
	SellerID     int64  `json:"sellerId"`
	ShopName     string `json:"shopName"`
	OwnerName    string `json:"ownerName"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	ShopImageURL string `json:"shopImageUrl"`
}

// cakeResponse は販売者向けのケーキ情報。
type cakeResponse struct {
	ID       int64   `json:"id"`
	SellerID int64   `json:"sellerId"`
	ShopID   int64   `json:"shopId"`
	CakeType string  `json:"cakeType"`
	Flavour  string  `json:"flavour"`
	WeightKg float64 `json:"weightKg"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl"`
}

// cakeListingResponse は一覧表示用のケーキ情報。
type cakeListingResponse struct {
	CakeID   int64   `json:"cakeId"`
	SellerID int64   `json:"sellerId"`
	CakeType string  `json:"cakeType"`
	Flavour  string  `json:"flavour"`
	WeightKg float64 `json:"weightKg"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl"`
	ShopID   int64   `json:"shopId"`
	ShopName string  `json:"shopName"`
	City     string  `json:"city"`
	State    string  `json:"state"`
}

// pageResponse はページング結果。
type pageResponse[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
}

// cartItemResponse はカート明細。
type cartItemResponse struct {
	CartItemID int64   `json:"cartItemId"`
	CakeID     int64   `json:"cakeId"`
	CakeType   string  `json:"cakeType"`
	ImageURL   string  `json:"imageUrl"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

// cartResponse はカートの内容。
type cartResponse struct {
	CartID     int64              `json:"cartId"`
	Items      []cartItemResponse `json:"items"`
	GrandTotal float64            `json:"grandTotal"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role.String(),
	}
}

func toShopResponse(s *model.SellerShop) shopResponse {
	return shopResponse{
		ID:           s.ID,
		SellerID:     s.SellerID,
		ShopName:     s.ShopName,
		OwnerName:    s.OwnerName,
		Address:      s.Address,
		City:         s.City,
		State:        s.State,
		Pincode:      s.Pincode,
		ShopImageURL: s.ShopImageURL,
	}
}

func toCakeResponse(c *model.Cake) cakeResponse {
	return cakeResponse{
		ID:       c.ID,
		SellerID: c.SellerID,
		ShopID:   c.ShopID,
		CakeType: c.CakeType,
		Flavour:  c.Flavour,
		WeightKg: c.WeightKg,
		Price:    c.Price,
		ImageURL: c.ImageURL,
	}
}

func toCakeListingResponses(listings []model.CakeListing) []cakeListingResponse {
	results := make([]cakeListingResponse, len(listings))
	for i, l := range listings {
		results[i] = cakeListingResponse{
			CakeID:   l.ID,
			SellerID: l.SellerID,
			CakeType: l.CakeType,
			Flavour:  l.Flavour,
			WeightKg: l.WeightKg,
			Price:    l.Price,
			ImageURL: l.ImageURL,
			ShopID:   l.ShopID,
			ShopName: l.ShopName,
			City:     l.City,
			State:    l.State,
		}
	}
	return results
}

func toCartResponse(v *model.CartView) cartResponse {
	items := make([]cartItemResponse, len(v.Items))
	for i, line := range v.Items {
		items[i] = cartItemResponse{
			CartItemID: line.ItemID,
			CakeID:     line.CakeID,
			CakeType:   line.CakeType,
			ImageURL:   line.ImageURL,
			Price:      line.Price,
			Quantity:   line.Quantity,
			TotalPrice: line.LineTotal,
		}
	}
	return cartResponse{
		CartID:     v.CartID,
		Items:      items,
		GrandTotal: v.GrandTotal,
	}
}
