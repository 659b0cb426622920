package model

import "time"

// CartStatusOpen は顧客ごとに1つだけ存在する未確定カートの状態。
const CartStatusOpen = "OPEN"

// MaxItemQuantity は1明細あたりの数量の上限。加算後の数量にも適用される。
const MaxItemQuantity = 10000

// Cart は顧客のカートを表す。初回アクセス時に遅延作成される。
type Cart struct {
	ID         int64
	CustomerID int64
	Status     string
	CreatedAt  time.Time
}

// CartItem はカート内の1明細を表す。(CartID, CakeID) は一意。
type CartItem struct {
	ID         int64
	CartID     int64
	CakeID     int64
	Quantity   int
	PriceAtAdd float64
	AddedAt    time.Time
}

// CartLine は表示用のカート明細。ケーキ情報と小計を含む。
type CartLine struct {
	ItemID    int64
	CakeID    int64
	CakeType  string
	Flavour   string
	ImageURL  string
	Quantity  int
	Price     float64
	LineTotal float64
}

// CartView はカートの表示用スナップショット。明細は追加の新しい順に並ぶ。
type CartView struct {
	CartID     int64
	Items      []CartLine
	GrandTotal float64
}
