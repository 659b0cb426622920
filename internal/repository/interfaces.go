// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/cakeshop/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmail はメールアドレスが登録済みかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	// メールアドレスが重複した場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRole はロールがfromのときだけtoに更新する条件付き書き込み。
	// 更新された場合にtrueを返す。
	UpdateRole(ctx context.Context, email string, from, to model.Role) (bool, error)
}

// CartRepository はカートとカート明細の永続化インターフェース。
type CartRepository interface {
	// FindByCustomerID は顧客のカートを取得する。見つからない場合はnilを返す。
	FindByCustomerID(ctx context.Context, customerID int64) (*model.Cart, error)

	// Create は顧客のカートを作成する。既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, customerID int64) (*model.Cart, error)

	// UpsertItem は(cartID, cakeID)の明細に数量を加算する。明細が無ければ作成する。
	// 単一文で実行し、同時加算で更新が失われない。
	UpsertItem(ctx context.Context, cartID, cakeID int64, qty int, price float64) (*model.CartItem, error)

	// UpdateItemQuantity はカート内の明細の数量を設定する。更新された場合にtrueを返す。
	UpdateItemQuantity(ctx context.Context, cartID, itemID int64, qty int) (bool, error)

	// DeleteItem はカート内の明細を削除する。削除された場合にtrueを返す。
	DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error)

	// ListLines はカートの明細をケーキ情報付きで追加の新しい順に返す。
	ListLines(ctx context.Context, cartID int64) ([]model.CartLine, error)

	// ClearItems はカートの全明細を削除し、削除件数を返す。
	ClearItems(ctx context.Context, cartID int64) (int64, error)
}

// ShopRepository は販売者店舗の永続化インターフェース。
type ShopRepository interface {
	// FindBySellerID は販売者の店舗を取得する。見つからない場合はnilを返す。
	FindBySellerID(ctx context.Context, sellerID int64) (*model.SellerShop, error)

	// Create は店舗を作成する。既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, shop *model.SellerShop) error

	// Update は店舗情報を更新する。withImageがfalseの場合は画像URLを変更しない。
	Update(ctx context.Context, shop *model.SellerShop, withImage bool) (bool, error)
}

// CakeRepository はケーキの永続化インターフェース。
type CakeRepository interface {
	// FindByID は指定IDのケーキを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Cake, error)

	// Create はケーキを作成し、採番されたIDを設定する。
	Create(ctx context.Context, cake *model.Cake) error

	// ListAll は全ケーキを店舗情報付きで新しい順に返す。
	ListAll(ctx context.Context) ([]model.CakeListing, error)

	// ListPage は全ケーキの一部を新しい順に返す。
	ListPage(ctx context.Context, limit, offset int) ([]model.CakeListing, error)

	// Count は全ケーキ数を返す。
	Count(ctx context.Context) (int64, error)

	// ListBySeller は販売者のケーキを新しい順に返す。
	ListBySeller(ctx context.Context, sellerID int64) ([]model.Cake, error)

	// Update は販売者自身のケーキを更新する。withImageがfalseの場合は画像URLを変更しない。
	Update(ctx context.Context, cake *model.Cake, withImage bool) (bool, error)

	// Delete は販売者自身のケーキを削除する。削除された場合にtrueを返す。
	Delete(ctx context.Context, sellerID, cakeID int64) (bool, error)
}

// TxManager はトランザクション境界を提供する。
// fnに渡されるコンテキストを使ったリポジトリ呼び出しは同一トランザクションで実行される。
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
