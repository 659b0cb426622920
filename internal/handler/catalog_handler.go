package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/hitoshi/cakeshop/internal/catalog"
	"github.com/hitoshi/cakeshop/internal/middleware"
	"github.com/hitoshi/cakeshop/internal/model"
)

const (
	// dataPartName は入力JSONを格納するマルチパートのパート名。
	dataPartName = "data"
	// imagePartName は画像ファイルを格納するマルチパートのパート名。
	imagePartName = "image"
)

// CatalogServiceInterface は店舗・ケーキハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	CreateShop(ctx context.Context, email string, in catalog.ShopInput, image *catalog.Image) (*model.SellerShop, error)
	UpdateShop(ctx context.Context, email string, in catalog.ShopInput, image *catalog.Image) (*model.SellerShop, error)
	GetShop(ctx context.Context, email string) (*model.SellerShop, error)
	AddCake(ctx context.Context, email string, in catalog.CakeInput, image *catalog.Image) (*model.Cake, error)
	ListCakes(ctx context.Context) ([]model.CakeListing, error)
	ListCakesPaged(ctx context.Context, page, size int) (model.Page[model.CakeListing], error)
	SellerCakes(ctx context.Context, email string) ([]model.Cake, error)
	UpdateCake(ctx context.Context, email string, cakeID int64, in catalog.CakeInput, image *catalog.Image) (*model.Cake, error)
	DeleteCake(ctx context.Context, email string, cakeID int64) error
}

// CatalogHandlerConfig はカタログハンドラーの設定。
type CatalogHandlerConfig struct {
	MaxUploadBytes int64 // マルチパートリクエスト全体の上限
}

// CatalogHandler は店舗とケーキのHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
	config  CatalogHandlerConfig
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, config CatalogHandlerConfig) *CatalogHandler {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 5 << 20
	}
	return &CatalogHandler{
		service: service,
		config:  config,
	}
}

// shopRequest は店舗の作成・更新で受け取るdataパート。
type shopRequest struct {
	ShopName  string `json:"shopName"`
	OwnerName string `json:"ownerName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
}

// cakeRequest はケーキの登録・更新で受け取るdataパート。
type cakeRequest struct {
	CakeType string  `json:"cakeType"`
	Flavour  string  `json:"flavour"`
	WeightKg float64 `json:"weightKg"`
	Price    float64 `json:"price"`
}

func (req shopRequest) input() catalog.ShopInput {
	return catalog.ShopInput{
		ShopName:  req.ShopName,
		OwnerName: req.OwnerName,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
	}
}

func (req cakeRequest) input() catalog.CakeInput {
	return catalog.CakeInput{
		CakeType: req.CakeType,
		Flavour:  req.Flavour,
		WeightKg: req.WeightKg,
		Price:    req.Price,
	}
}

// CreateShop は販売者の店舗を作成する。画像は必須。
// POST /api/auth/seller/shop
func (h *CatalogHandler) CreateShop(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req shopRequest
	image, ok := h.readMultipart(w, r, &req)
	if !ok {
		return
	}

	shop, err := h.service.CreateShop(r.Context(), p.Email, req.input(), image)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Shop created", toShopResponse(shop))
}

// GetShop は販売者の店舗を返す。
// GET /api/auth/seller/shop
func (h *CatalogHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	shop, err := h.service.GetShop(r.Context(), p.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Seller shop loaded", toShopResponse(shop))
}

// UpdateShop は店舗情報を更新する。画像が無い場合は既存の画像を保持する。
// PUT /api/auth/seller/shop
func (h *CatalogHandler) UpdateShop(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req shopRequest
	image, ok := h.readMultipart(w, r, &req)
	if !ok {
		return
	}

	shop, err := h.service.UpdateShop(r.Context(), p.Email, req.input(), image)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Shop updated successfully", toShopResponse(shop))
}

// AddCake は販売者の店舗にケーキを登録する。画像は必須。
// POST /api/auth/seller/cakes
func (h *CatalogHandler) AddCake(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req cakeRequest
	image, ok := h.readMultipart(w, r, &req)
	if !ok {
		return
	}

	cake, err := h.service.AddCake(r.Context(), p.Email, req.input(), image)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Cake added successfully", toCakeResponse(cake))
}

// SellerCakes は販売者自身のケーキ一覧を返す。
// GET /api/auth/seller/cakes
func (h *CatalogHandler) SellerCakes(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	cakes, err := h.service.SellerCakes(r.Context(), p.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	results := make([]cakeResponse, len(cakes))
	for i := range cakes {
		results[i] = toCakeResponse(&cakes[i])
	}
	writeSuccess(w, "Seller cakes loaded", results)
}

// UpdateCake は販売者自身のケーキを更新する。画像が無い場合は既存の画像を保持する。
// PUT /api/auth/seller/cakes/{cakeId}
func (h *CatalogHandler) UpdateCake(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	cakeID, ok := pathID(w, r, "cakeId")
	if !ok {
		return
	}

	var req cakeRequest
	image, ok := h.readMultipart(w, r, &req)
	if !ok {
		return
	}

	if _, err := h.service.UpdateCake(r.Context(), p.Email, cakeID, req.input(), image); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Cake updated", nil)
}

// DeleteCake は販売者自身のケーキを削除する。
// DELETE /api/auth/seller/cakes/{cakeId}
func (h *CatalogHandler) DeleteCake(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	cakeID, ok := pathID(w, r, "cakeId")
	if !ok {
		return
	}

	if err := h.service.DeleteCake(r.Context(), p.Email, cakeID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Cake deleted", nil)
}

// ListCakes は全ケーキを店舗情報付きで返す。
// GET /api/auth/cakes
func (h *CatalogHandler) ListCakes(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListCakes(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "All cakes loaded", toCakeListingResponses(listings))
}

// ListCakesPaged は全ケーキをページ単位で返す。pageは0始まり、sizeの既定値は10。
// GET /api/auth/cakes/paged?page=0&size=10
func (h *CatalogHandler) ListCakesPaged(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		writeBadRequest(w, "page must be an integer")
		return
	}
	size, err := queryInt(r, "size", catalog.DefaultPageSize)
	if err != nil {
		writeBadRequest(w, "size must be an integer")
		return
	}

	result, err := h.service.ListCakesPaged(r.Context(), page, size)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Cakes loaded with pagination", pageResponse[cakeListingResponse]{
		Content:       toCakeListingResponses(result.Content),
		TotalElements: result.TotalElements,
		TotalPages:    result.TotalPages,
		Page:          result.Page,
		Size:          result.Size,
	})
}

// readMultipart はdataパートのJSONをdstに読み込み、imageパートがあれば返す。
// 失敗した場合はエラーレスポンスを書き込みfalseを返す。
func (h *CatalogHandler) readMultipart(w http.ResponseWriter, r *http.Request, dst any) (*catalog.Image, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(h.config.MaxUploadBytes))
			return nil, false
		}
		writeBadRequest(w, "Request must be multipart/form-data")
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	data, err := dataPart(r.MultipartForm)
	if err != nil {
		writeBadRequest(w, "The data part is required")
		return nil, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeBadRequest(w, "The data part must be valid JSON")
		return nil, false
	}

	image, err := imagePart(r.MultipartForm)
	if err != nil {
		writeBadRequest(w, "The image part could not be read")
		return nil, false
	}
	return image, true
}

// dataPart はdataパートをフォーム値またはファイルパートから読み取る。
func dataPart(form *multipart.Form) ([]byte, error) {
	if values := form.Value[dataPartName]; len(values) > 0 {
		return []byte(values[0]), nil
	}
	if files := form.File[dataPartName]; len(files) > 0 {
		return readFileHeader(files[0])
	}
	return nil, fmt.Errorf("missing %q part", dataPartName)
}

// imagePart はimageパートを読み取る。パートが無い場合はnilを返す。
func imagePart(form *multipart.Form) (*catalog.Image, error) {
	files := form.File[imagePartName]
	if len(files) == 0 {
		return nil, nil
	}
	data, err := readFileHeader(files[0])
	if err != nil {
		return nil, err
	}
	return &catalog.Image{Data: data, Filename: files[0].Filename}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %q: %w", fh.Filename, err)
	}
	return data, nil
}

// queryInt はクエリパラメータを整数として読み取る。未指定の場合はdefaultValを返す。
func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(raw)
}
