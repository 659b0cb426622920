package model

// SellerShop は販売者の店舗情報。販売者1人につき1店舗。
type SellerShop struct {
	ID           int64
	SellerID     int64
	ShopName     string
	OwnerName    string
	Address      string
	City         string
	State        string
	Pincode      string
	ShopImageURL string
}

// Cake は販売者が出品するケーキ。
type Cake struct {
	ID       int64
	SellerID int64
	ShopID   int64
	CakeType string
	Flavour  string
	WeightKg float64
	Price    float64
	ImageURL string
}

// CakeListing は一覧表示用のケーキ情報。店舗名と所在地を含む。
type CakeListing struct {
	Cake
	ShopName string
	City     string
	State    string
}

// Page はオフセット方式のページング結果。
type Page[T any] struct {
	Content       []T
	TotalElements int64
	TotalPages    int
	Page          int
	Size          int
}

// NewPage は総件数からページ数を計算してPageを生成する。
func NewPage[T any](content []T, total int64, page, size int) Page[T] {
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Page:          page,
		Size:          size,
	}
}
