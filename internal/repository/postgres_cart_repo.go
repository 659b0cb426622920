package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/cakeshop/internal/model"
)

// PostgresCartRepo はPostgreSQLを使用したカートリポジトリ。
type PostgresCartRepo struct {
	db *sql.DB
}

// NewPostgresCartRepo はPostgresCartRepoを生成する。
func NewPostgresCartRepo(db *sql.DB) *PostgresCartRepo {
	return &PostgresCartRepo{db: db}
}

// FindByCustomerID は顧客のカートを取得する。見つからない場合はnilを返す。
func (r *PostgresCartRepo) FindByCustomerID(ctx context.Context, customerID int64) (*model.Cart, error) {
	cart := &model.Cart{}
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, customer_id, status, created_at FROM carts WHERE customer_id = $1`,
		customerID,
	).Scan(&cart.ID, &cart.CustomerID, &cart.Status, &cart.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart by customer: %w", err)
	}
	return cart, nil
}

// Create は顧客のカートを作成する。
// 同時作成で競合した場合は行が返らないため、ErrDuplicateを返す。
func (r *PostgresCartRepo) Create(ctx context.Context, customerID int64) (*model.Cart, error) {
	cart := &model.Cart{}
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO carts (customer_id, status)
		 VALUES ($1, $2)
		 ON CONFLICT (customer_id) DO NOTHING
		 RETURNING id, customer_id, status, created_at`,
		customerID, model.CartStatusOpen,
	).Scan(&cart.ID, &cart.CustomerID, &cart.Status, &cart.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insert cart: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, translateError("insert cart", err)
	}
	return cart, nil
}

// UpsertItem は(cartID, cakeID)の明細に数量を加算する。
// 既存明細の追加時価格は変更しない。
func (r *PostgresCartRepo) UpsertItem(ctx context.Context, cartID, cakeID int64, qty int, price float64) (*model.CartItem, error) {
	item := &model.CartItem{}
	err := runnerFrom(ctx, r.db).QueryRowContext(ctx,
		`INSERT INTO cart_items (cart_id, cake_id, quantity, price_at_add)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cart_id, cake_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 RETURNING id, cart_id, cake_id, quantity, price_at_add, added_at`,
		cartID, cakeID, qty, price,
	).Scan(&item.ID, &item.CartID, &item.CakeID, &item.Quantity, &item.PriceAtAdd, &item.AddedAt)
	if err != nil {
		return nil, translateError("upsert cart item", err)
	}
	return item, nil
}

// UpdateItemQuantity はカート内の明細の数量を設定する。
func (r *PostgresCartRepo) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, qty int) (bool, error) {
	result, err := runnerFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2 AND cart_id = $3`,
		qty, itemID, cartID,
	)
	if err != nil {
		return false, translateError("update cart item quantity", err)
	}
	return affected(result)
}

// DeleteItem はカート内の明細を削除する。
func (r *PostgresCartRepo) DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error) {
	result, err := runnerFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`,
		itemID, cartID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item: %w", err)
	}
	return affected(result)
}

// ListLines はカートの明細をケーキ情報付きで返す。
// 小計は追加時価格×数量で計算し、明細IDの降順（追加の新しい順）に並べる。
func (r *PostgresCartRepo) ListLines(ctx context.Context, cartID int64) ([]model.CartLine, error) {
	rows, err := runnerFrom(ctx, r.db).QueryContext(ctx,
		`SELECT ci.id, ci.cake_id, c.cake_type, c.flavour, c.image_url,
		        ci.quantity, ci.price_at_add, ci.price_at_add * ci.quantity AS line_total
		 FROM cart_items ci
		 JOIN cakes c ON c.id = ci.cake_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.id DESC`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []model.CartLine{}
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(
			&l.ItemID, &l.CakeID, &l.CakeType, &l.Flavour, &l.ImageURL,
			&l.Quantity, &l.Price, &l.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart lines: %w", err)
	}
	return lines, nil
}

// ClearItems はカートの全明細を削除する。カート自体は残る。
func (r *PostgresCartRepo) ClearItems(ctx context.Context, cartID int64) (int64, error) {
	result, err := runnerFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`,
		cartID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

var _ CartRepository = (*PostgresCartRepo)(nil)
