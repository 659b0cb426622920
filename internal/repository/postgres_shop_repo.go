package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/cakeshop/internal/model"
)

// PostgresShopRepo はPostgreSQLを使用した店舗リポジトリ。
type PostgresShopRepo struct {
	db *sql.DB
}

// NewPostgresShopRepo はPostgresShopRepoを生成する。
func NewPostgresShopRepo(db *sql.DB) *PostgresShopRepo {
	return &PostgresShopRepo{db: db}
}

// FindBySellerID は販売者の店舗を取得する。見つからない場合はnilを返す。
func (r *PostgresShopRepo) FindBySellerID(ctx context.Context, sellerID int64) (*model.SellerShop, error) {
	s := &model.SellerShop{}
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, seller_id, shop_name, owner_name, address, city, state, pincode, shop_image_url
		 FROM seller_shops WHERE seller_id = $1`,
		sellerID,
	).Scan(&s.ID, &s.SellerID, &s.ShopName, &s.OwnerName, &s.Address, &s.City, &s.State, &s.Pincode, &s.ShopImageURL)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find shop by seller: %w", err)
	}
	return s, nil
}

// Create は店舗を作成する。販売者が既に店舗を持つ場合はErrDuplicateを返す。
func (r *PostgresShopRepo) Create(ctx context.Context, s *model.SellerShop) error {
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO seller_shops (seller_id, shop_name, owner_name, address, city, state, pincode, shop_image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		s.SellerID, s.ShopName, s.OwnerName, s.Address, s.City, s.State, s.Pincode, s.ShopImageURL,
	).Scan(&s.ID)
	if err != nil {
		return translateError("insert shop", err)
	}
	return nil
}

// Update は店舗情報を更新する。画像URLはwithImageがtrueの場合のみ更新する。
func (r *PostgresShopRepo) Update(ctx context.Context, s *model.SellerShop, withImage bool) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	if withImage {
		result, err = runnerFrom(ctx, r.db).ExecContext(ctx,
			`UPDATE seller_shops
			 SET shop_name = $1, owner_name = $2, address = $3, city = $4, state = $5, pincode = $6, shop_image_url = $7
			 WHERE seller_id = $8`,
			s.ShopName, s.OwnerName, s.Address, s.City, s.State, s.Pincode, s.ShopImageURL, s.SellerID,
		)
	} else {
		result, err = runnerFrom(ctx, r.db).ExecContext(ctx,
			`UPDATE seller_shops
			 SET shop_name = $1, owner_name = $2, address = $3, city = $4, state = $5, pincode = $6
			 WHERE seller_id = $7`,
			s.ShopName, s.OwnerName, s.Address, s.City, s.State, s.Pincode, s.SellerID,
		)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update shop: %w", err)
	}
	return affected(result)
}

var _ ShopRepository = (*PostgresShopRepo)(nil)
