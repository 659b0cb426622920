package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/cakeshop/internal/model"
)

const cakeListingColumns = `c.id, c.seller_id, c.shop_id, c.cake_type, c.flavour, c.weight_kg, c.price, c.image_url,
	s.shop_name, s.city, s.state`

// PostgresCakeRepo はPostgreSQLを使用したケーキリポジトリ。
type PostgresCakeRepo struct {
	db *sql.DB
}

// NewPostgresCakeRepo はPostgresCakeRepoを生成する。
func NewPostgresCakeRepo(db *sql.DB) *PostgresCakeRepo {
	return &PostgresCakeRepo{db: db}
}

// FindByID は指定IDのケーキを取得する。見つからない場合はnilを返す。
func (r *PostgresCakeRepo) FindByID(ctx context.Context, id int64) (*model.Cake, error) {
	c := &model.Cake{}
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, seller_id, shop_id, cake_type, flavour, weight_kg, price, image_url
		 FROM cakes WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SellerID, &c.ShopID, &c.CakeType, &c.Flavour, &c.WeightKg, &c.Price, &c.ImageURL)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cake by ID: %w", err)
	}
	return c, nil
}

// Create はケーキを作成する。
func (r *PostgresCakeRepo) Create(ctx context.Context, c *model.Cake) error {
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO cakes (seller_id, shop_id, cake_type, flavour, weight_kg, price, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		c.SellerID, c.ShopID, c.CakeType, c.Flavour, c.WeightKg, c.Price, c.ImageURL,
	).Scan(&c.ID)
	if err != nil {
		return translateError("insert cake", err)
	}
	return nil
}

// ListAll は全ケーキを店舗情報付きで新しい順に返す。
func (r *PostgresCakeRepo) ListAll(ctx context.Context) ([]model.CakeListing, error) {
	rows, err := runnerFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+cakeListingColumns+`
		 FROM cakes c JOIN seller_shops s ON s.id = c.shop_id
		 ORDER BY c.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cakes: %w", err)
	}
	return scanListings(rows)
}

// ListPage は全ケーキのうちoffsetからlimit件を新しい順に返す。
func (r *PostgresCakeRepo) ListPage(ctx context.Context, limit, offset int) ([]model.CakeListing, error) {
	rows, err := runnerFrom(ctx, r.db).QueryContext(ctx,
		`SELECT `+cakeListingColumns+`
		 FROM cakes c JOIN seller_shops s ON s.id = c.shop_id
		 ORDER BY c.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cake page: %w", err)
	}
	return scanListings(rows)
}

// Count は全ケーキ数を返す。
func (r *PostgresCakeRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := runnerFrom(ctx, r.db).QueryRowContext(ctx, `SELECT count(*) FROM cakes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cakes: %w", err)
	}
	return n, nil
}

// ListBySeller は販売者のケーキを新しい順に返す。
func (r *PostgresCakeRepo) ListBySeller(ctx context.Context, sellerID int64) ([]model.Cake, error) {
	rows, err := runnerFrom(ctx, r.db).QueryContext(ctx,
		`SELECT id, seller_id, shop_id, cake_type, flavour, weight_kg, price, image_url
		 FROM cakes WHERE seller_id = $1
		 ORDER BY id DESC`,
		sellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller cakes: %w", err)
	}
	defer rows.Close()

	cakes := []model.Cake{}
	for rows.Next() {
		var c model.Cake
		if err := rows.Scan(&c.ID, &c.SellerID, &c.ShopID, &c.CakeType, &c.Flavour, &c.WeightKg, &c.Price, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan cake: %w", err)
		}
		cakes = append(cakes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cakes: %w", err)
	}
	return cakes, nil
}

// Update は販売者自身のケーキを更新する。画像URLはwithImageがtrueの場合のみ更新する。
func (r *PostgresCakeRepo) Update(ctx context.Context, c *model.Cake, withImage bool) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	if withImage {
		result, err = runnerFrom(ctx, r.db).ExecContext(ctx,
			`UPDATE cakes SET cake_type = $1, flavour = $2, weight_kg = $3, price = $4, image_url = $5
			 WHERE id = $6 AND seller_id = $7`,
			c.CakeType, c.Flavour, c.WeightKg, c.Price, c.ImageURL, c.ID, c.SellerID,
		)
	} else {
		result, err = runnerFrom(ctx, r.db).ExecContext(ctx,
			`UPDATE cakes SET cake_type = $1, flavour = $2, weight_kg = $3, price = $4
			 WHERE id = $5 AND seller_id = $6`,
			c.CakeType, c.Flavour, c.WeightKg, c.Price, c.ID, c.SellerID,
		)
	}
	if err != nil {
		return false, fmt.Errorf("failed to update cake: %w", err)
	}
	return affected(result)
}

// Delete は販売者自身のケーキを削除する。
func (r *PostgresCakeRepo) Delete(ctx context.Context, sellerID, cakeID int64) (bool, error) {
	result, err := runnerFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cakes WHERE id = $1 AND seller_id = $2`,
		cakeID, sellerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete cake: %w", err)
	}
	return affected(result)
}

func scanListings(rows *sql.Rows) ([]model.CakeListing, error) {
	defer rows.Close()

	listings := []model.CakeListing{}
	for rows.Next() {
		var l model.CakeListing
		if err := rows.Scan(
			&l.ID, &l.SellerID, &l.ShopID, &l.CakeType, &l.Flavour, &l.WeightKg, &l.Price, &l.ImageURL,
			&l.ShopName, &l.City, &l.State,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cake listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cake listings: %w", err)
	}
	return listings, nil
}

var _ CakeRepository = (*PostgresCakeRepo)(nil)
