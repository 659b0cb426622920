// Package cart は顧客ごとに1つのカートと、その明細の整合性を管理する。
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/cakeshop/internal/metrics"
	"github.com/hitoshi/cakeshop/internal/model"
	"github.com/hitoshi/cakeshop/internal/repository"
)

// UserFinder は顧客の解決に必要なインターフェース。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// CakeFinder はケーキ価格の解決に必要なインターフェース。
type CakeFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Cake, error)
}

// ServiceConfig はカートサービスの設定。
type ServiceConfig struct {
	// StoreTimeout は1操作あたりのストア呼び出しの上限時間。
	StoreTimeout time.Duration
}

// Service はカート操作のビジネスロジックを提供する。
type Service struct {
	carts   repository.CartRepository
	users   UserFinder
	cakes   CakeFinder
	txm     repository.TxManager
	metrics metrics.MetricsCollector
	config  ServiceConfig
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	carts repository.CartRepository,
	users UserFinder,
	cakes CakeFinder,
	txm repository.TxManager,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		carts:   carts,
		users:   users,
		cakes:   cakes,
		txm:     txm,
		metrics: collector,
		config:  config,
	}
}

// GetOrCreateCart は顧客のカートを返す。存在しない場合は作成する。
// 同時作成で競合した場合は既存のカートを読み直して返すため、顧客あたりのカートは常に1つ。
func (s *Service) GetOrCreateCart(ctx context.Context, customerID int64) (*model.Cart, error) {
	var cart *model.Cart
	err := s.bounded(ctx, "cart.get_or_create", func(ctx context.Context) error {
		var err error
		cart, err = s.getOrCreate(ctx, customerID)
		return err
	})
	return cart, err
}

// AddToCart はケーキを数量qtyだけカートに加える。
// 同じケーキの明細が既にあれば数量を加算し、明細は1行のまま保たれる。
func (s *Service) AddToCart(ctx context.Context, email string, cakeID int64, qty int) (*model.CartItem, error) {
	if qty < 1 || qty > model.MaxItemQuantity {
		return nil, model.NewInvalidQuantityError(qty)
	}

	var item *model.CartItem
	err := s.bounded(ctx, "cart.add", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			customer, err := s.customer(ctx, email)
			if err != nil {
				return err
			}
			cart, err := s.getOrCreate(ctx, customer.ID)
			if err != nil {
				return err
			}
			cake, err := s.cakes.FindByID(ctx, cakeID)
			if err != nil {
				return err
			}
			if cake == nil {
				return model.NewCakeNotFoundError(cakeID)
			}

			item, err = s.carts.UpsertItem(ctx, cart.ID, cake.ID, qty, cake.Price)
			switch {
			case errors.Is(err, repository.ErrReferenceMissing):
				// 価格取得後にケーキが削除された
				return model.NewCakeNotFoundError(cakeID)
			case errors.Is(err, repository.ErrOutOfRange):
				// 加算後の数量が上限を超えた
				return model.NewInvalidQuantityError(qty)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCartMutation("add")
	slog.Debug("cart item upserted",
		slog.Int64("cart_id", item.CartID),
		slog.Int64("cake_id", item.CakeID),
		slog.Int("quantity", item.Quantity),
	)
	return item, nil
}

// UpdateQuantity は明細の数量を設定する。qtyが0以下の場合は明細を削除する。
// 呼び出し元のカートに属さない明細はNotFoundになる。
func (s *Service) UpdateQuantity(ctx context.Context, email string, cartItemID int64, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, email, cartItemID)
	}
	if qty > model.MaxItemQuantity {
		return model.NewInvalidQuantityError(qty)
	}

	err := s.bounded(ctx, "cart.update", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			cart, err := s.cartOf(ctx, email)
			if err != nil {
				return err
			}
			if cart == nil {
				return model.NewCartItemNotFoundError(cartItemID)
			}
			updated, err := s.carts.UpdateItemQuantity(ctx, cart.ID, cartItemID, qty)
			if errors.Is(err, repository.ErrOutOfRange) {
				return model.NewInvalidQuantityError(qty)
			}
			if err != nil {
				return err
			}
			if !updated {
				return model.NewCartItemNotFoundError(cartItemID)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordCartMutation("update")
	return nil
}

// RemoveItem は呼び出し元のカートから明細を削除する。
// 存在しない明細の削除はNotFoundを返す。
func (s *Service) RemoveItem(ctx context.Context, email string, cartItemID int64) error {
	err := s.bounded(ctx, "cart.remove", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			cart, err := s.cartOf(ctx, email)
			if err != nil {
				return err
			}
			if cart == nil {
				return model.NewCartItemNotFoundError(cartItemID)
			}
			deleted, err := s.carts.DeleteItem(ctx, cart.ID, cartItemID)
			if err != nil {
				return err
			}
			if !deleted {
				return model.NewCartItemNotFoundError(cartItemID)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordCartMutation("remove")
	return nil
}

// GetCart はカートの内容を返す。明細は追加の新しい順に並び、
// 各小計は追加時価格×数量、合計は小計の総和。カートが無ければ作成する。
func (s *Service) GetCart(ctx context.Context, email string) (*model.CartView, error) {
	var view *model.CartView
	err := s.bounded(ctx, "cart.get", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			customer, err := s.customer(ctx, email)
			if err != nil {
				return err
			}
			cart, err := s.getOrCreate(ctx, customer.ID)
			if err != nil {
				return err
			}
			lines, err := s.carts.ListLines(ctx, cart.ID)
			if err != nil {
				return err
			}
			view = newCartView(cart.ID, lines)
			return nil
		})
	})
	return view, err
}

// ClearCart は顧客のカートの全明細を削除する。カート自体は残る。
func (s *Service) ClearCart(ctx context.Context, email string) error {
	err := s.bounded(ctx, "cart.clear", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			cart, err := s.cartOf(ctx, email)
			if err != nil {
				return err
			}
			if cart == nil {
				return nil
			}
			n, err := s.carts.ClearItems(ctx, cart.ID)
			if err != nil {
				return err
			}
			slog.Debug("cart cleared", slog.Int64("cart_id", cart.ID), slog.Int64("removed", n))
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordCartMutation("clear")
	return nil
}

// getOrCreate はカートを取得し、無ければ作成する。作成で競合した場合は読み直す。
func (s *Service) getOrCreate(ctx context.Context, customerID int64) (*model.Cart, error) {
	cart, err := s.carts.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart, err = s.carts.Create(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	}

	cart, err = s.carts.FindByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for customer %d vanished after conflicting insert", customerID)
	}
	return cart, nil
}

// customer はメールアドレスから顧客を解決する。
func (s *Service) customer(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// cartOf は顧客の既存カートを返す。カートが無い場合はnilを返す。
func (s *Service) cartOf(ctx context.Context, email string) (*model.Cart, error) {
	customer, err := s.customer(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.carts.FindByCustomerID(ctx, customer.ID)
}

func (s *Service) bounded(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := repository.Bounded(ctx, s.config.StoreTimeout, fn)
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == model.KindUnavailable {
		s.metrics.RecordStoreUnavailable(op)
	}
	return err
}

func newCartView(cartID int64, lines []model.CartLine) *model.CartView {
	view := &model.CartView{CartID: cartID, Items: lines}
	if view.Items == nil {
		view.Items = []model.CartLine{}
	}
	for _, l := range view.Items {
		view.GrandTotal += l.LineTotal
	}
	return view
}
