// Package catalog は販売者の店舗とケーキの登録・更新・一覧を提供する。
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/hitoshi/cakeshop/internal/metrics"
	"github.com/hitoshi/cakeshop/internal/model"
	"github.com/hitoshi/cakeshop/internal/repository"
	"github.com/hitoshi/cakeshop/internal/security"
	"github.com/hitoshi/cakeshop/internal/storage"
)

// ページングの既定値と上限
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage はpage*sizeがオフセットとして桁あふれしない最大のページ番号。
	MaxPage = math.MaxInt32 / MaxPageSize
)

// UserFinder は販売者の解決に必要なインターフェース。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Image はアップロードされた画像。
type Image struct {
	Data     []byte
	Filename string
}

// ShopInput は店舗の作成・更新の入力。
type ShopInput struct {
	ShopName  string
	OwnerName string
	Address   string
	City      string
	State     string
	Pincode   string
}

// CakeInput はケーキの登録・更新の入力。
type CakeInput struct {
	CakeType string
	Flavour  string
	WeightKg float64
	Price    float64
}

// ServiceConfig はカタログサービスの設定。
type ServiceConfig struct {
	// StoreTimeout は1操作あたりのストア呼び出しの上限時間。
	StoreTimeout time.Duration
}

// Service は店舗とケーキのビジネスロジックを提供する。
type Service struct {
	users     UserFinder
	shops     repository.ShopRepository
	cakes     repository.CakeRepository
	txm       repository.TxManager
	uploader  storage.Uploader
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	config    ServiceConfig
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	users UserFinder,
	shops repository.ShopRepository,
	cakes repository.CakeRepository,
	txm repository.TxManager,
	uploader storage.Uploader,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		users:     users,
		shops:     shops,
		cakes:     cakes,
		txm:       txm,
		uploader:  uploader,
		sanitizer: sanitizer,
		metrics:   collector,
		config:    config,
	}
}

// CreateShop は販売者の店舗を作成する。販売者あたり1店舗で、既に存在する場合はConflict。
// 画像は必須で、アップロードに失敗した場合は店舗を作成しない。
func (s *Service) CreateShop(ctx context.Context, email string, in ShopInput, image *Image) (*model.SellerShop, error) {
	in, err := s.cleanShop(in)
	if err != nil {
		return nil, err
	}
	if !hasImage(image) {
		return nil, model.NewImageRequiredError()
	}

	var seller *model.User
	err = s.bounded(ctx, "catalog.create_shop", func(ctx context.Context) error {
		var err error
		seller, err = s.seller(ctx, email)
		if err != nil {
			return err
		}
		existing, err := s.shops.FindBySellerID(ctx, seller.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return model.NewShopExistsError()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	imageURL, err := s.upload(ctx, image, storage.FolderShops)
	if err != nil {
		return nil, err
	}

	shop := &model.SellerShop{
		SellerID:     seller.ID,
		ShopName:     in.ShopName,
		OwnerName:    in.OwnerName,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		Pincode:      in.Pincode,
		ShopImageURL: imageURL,
	}
	err = s.bounded(ctx, "catalog.create_shop", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.shops.Create(ctx, shop); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return model.NewShopExistsError()
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("seller shop created",
		slog.Int64("shop_id", shop.ID),
		slog.Int64("seller_id", shop.SellerID),
	)
	return shop, nil
}

// UpdateShop は店舗情報を更新する。imageがnilの場合は既存の画像を維持する。
func (s *Service) UpdateShop(ctx context.Context, email string, in ShopInput, image *Image) (*model.SellerShop, error) {
	in, err := s.cleanShop(in)
	if err != nil {
		return nil, err
	}

	var current *model.SellerShop
	err = s.bounded(ctx, "catalog.update_shop", func(ctx context.Context) error {
		var err error
		current, err = s.shopOf(ctx, email)
		return err
	})
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.ShopName = in.ShopName
	updated.OwnerName = in.OwnerName
	updated.Address = in.Address
	updated.City = in.City
	updated.State = in.State
	updated.Pincode = in.Pincode

	withImage := hasImage(image)
	if withImage {
		updated.ShopImageURL, err = s.upload(ctx, image, storage.FolderShops)
		if err != nil {
			return nil, err
		}
	}

	err = s.bounded(ctx, "catalog.update_shop", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			ok, err := s.shops.Update(ctx, &updated, withImage)
			if err != nil {
				return err
			}
			if !ok {
				return model.NewShopNotFoundError()
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetShop は販売者の店舗を返す。店舗が無い場合はNotFound。
func (s *Service) GetShop(ctx context.Context, email string) (*model.SellerShop, error) {
	var shop *model.SellerShop
	err := s.bounded(ctx, "catalog.get_shop", func(ctx context.Context) error {
		var err error
		shop, err = s.shopOf(ctx, email)
		return err
	})
	return shop, err
}

// AddCake は販売者の店舗にケーキを登録する。店舗が無い場合はBadRequest。
// 画像は必須で、アップロードに失敗した場合はケーキを登録しない。
func (s *Service) AddCake(ctx context.Context, email string, in CakeInput, image *Image) (*model.Cake, error) {
	in, err := s.cleanCake(in)
	if err != nil {
		return nil, err
	}
	if !hasImage(image) {
		return nil, model.NewImageRequiredError()
	}

	var shop *model.SellerShop
	err = s.bounded(ctx, "catalog.add_cake", func(ctx context.Context) error {
		seller, err := s.seller(ctx, email)
		if err != nil {
			return err
		}
		shop, err = s.shops.FindBySellerID(ctx, seller.ID)
		if err != nil {
			return err
		}
		if shop == nil {
			return model.NewShopRequiredError()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	imageURL, err := s.upload(ctx, image, storage.FolderCakes)
	if err != nil {
		return nil, err
	}

	cake := &model.Cake{
		SellerID: shop.SellerID,
		ShopID:   shop.ID,
		CakeType: in.CakeType,
		Flavour:  in.Flavour,
		WeightKg: in.WeightKg,
		Price:    in.Price,
		ImageURL: imageURL,
	}
	err = s.bounded(ctx, "catalog.add_cake", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			return s.cakes.Create(ctx, cake)
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("cake added",
		slog.Int64("cake_id", cake.ID),
		slog.Int64("shop_id", cake.ShopID),
	)
	return cake, nil
}

// ListCakes は全ケーキを店舗情報付きで新しい順に返す。
func (s *Service) ListCakes(ctx context.Context) ([]model.CakeListing, error) {
	var listings []model.CakeListing
	err := s.bounded(ctx, "catalog.list_cakes", func(ctx context.Context) error {
		var err error
		listings, err = s.cakes.ListAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []model.CakeListing{}
	}
	return listings, nil
}

// ListCakesPaged は全ケーキをページ単位で返す。pageは0始まり。
// sizeは1から100の範囲に丸め、pageは0からMaxPageの範囲に丸める。
func (s *Service) ListCakesPaged(ctx context.Context, page, size int) (model.Page[model.CakeListing], error) {
	page, size = ClampPage(page, size)

	var (
		listings []model.CakeListing
		total    int64
	)
	err := s.bounded(ctx, "catalog.list_cakes_paged", func(ctx context.Context) error {
		var err error
		total, err = s.cakes.Count(ctx)
		if err != nil {
			return err
		}
		listings, err = s.cakes.ListPage(ctx, size, page*size)
		return err
	})
	if err != nil {
		return model.Page[model.CakeListing]{}, err
	}
	return model.NewPage(listings, total, page, size), nil
}

// SellerCakes は販売者自身のケーキを新しい順に返す。
func (s *Service) SellerCakes(ctx context.Context, email string) ([]model.Cake, error) {
	var cakes []model.Cake
	err := s.bounded(ctx, "catalog.seller_cakes", func(ctx context.Context) error {
		seller, err := s.seller(ctx, email)
		if err != nil {
			return err
		}
		cakes, err = s.cakes.ListBySeller(ctx, seller.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if cakes == nil {
		cakes = []model.Cake{}
	}
	return cakes, nil
}

// UpdateCake は販売者自身のケーキを更新する。imageがnilの場合は既存の画像を維持する。
// 他の販売者のケーキや存在しないケーキはNotFound。
func (s *Service) UpdateCake(ctx context.Context, email string, cakeID int64, in CakeInput, image *Image) (*model.Cake, error) {
	in, err := s.cleanCake(in)
	if err != nil {
		return nil, err
	}

	var current *model.Cake
	err = s.bounded(ctx, "catalog.update_cake", func(ctx context.Context) error {
		seller, err := s.seller(ctx, email)
		if err != nil {
			return err
		}
		current, err = s.cakes.FindByID(ctx, cakeID)
		if err != nil {
			return err
		}
		if current == nil || current.SellerID != seller.ID {
			return model.NewCakeNotFoundError(cakeID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.CakeType = in.CakeType
	updated.Flavour = in.Flavour
	updated.WeightKg = in.WeightKg
	updated.Price = in.Price

	withImage := hasImage(image)
	if withImage {
		updated.ImageURL, err = s.upload(ctx, image, storage.FolderCakes)
		if err != nil {
			return nil, err
		}
	}

	err = s.bounded(ctx, "catalog.update_cake", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			ok, err := s.cakes.Update(ctx, &updated, withImage)
			if err != nil {
				return err
			}
			if !ok {
				return model.NewCakeNotFoundError(cakeID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCake は販売者自身のケーキを削除する。削除対象が無い場合はNotFound。
// 削除されたケーキを含むカート明細も削除される。
func (s *Service) DeleteCake(ctx context.Context, email string, cakeID int64) error {
	err := s.bounded(ctx, "catalog.delete_cake", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			seller, err := s.seller(ctx, email)
			if err != nil {
				return err
			}
			ok, err := s.cakes.Delete(ctx, seller.ID, cakeID)
			if err != nil {
				return err
			}
			if !ok {
				return model.NewCakeNotFoundError(cakeID)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	slog.Info("cake deleted", slog.Int64("cake_id", cakeID))
	return nil
}

// ClampPage はページ番号とページサイズを有効範囲に丸める。
// MaxPageより後ろのページは常に空なので、MaxPageとして扱う。
func ClampPage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func (s *Service) seller(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) shopOf(ctx context.Context, email string) (*model.SellerShop, error) {
	seller, err := s.seller(ctx, email)
	if err != nil {
		return nil, err
	}
	shop, err := s.shops.FindBySellerID(ctx, seller.ID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, model.NewShopNotFoundError()
	}
	return shop, nil
}

// upload は画像を保存する。失敗は行の書き込み前にUnavailableとして返す。
func (s *Service) upload(ctx context.Context, image *Image, folder string) (string, error) {
	url, err := s.uploader.Upload(ctx, image.Data, image.Filename, folder)
	if err != nil {
		s.metrics.RecordUploadFailure(folder)
		slog.Error("image upload failed",
			slog.String("folder", folder),
			slog.String("error", err.Error()),
		)
		return "", model.NewUploadFailedError(err)
	}
	return url, nil
}

func (s *Service) bounded(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := repository.Bounded(ctx, s.config.StoreTimeout, fn)
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == model.KindUnavailable {
		s.metrics.RecordStoreUnavailable(op)
	}
	return err
}

func (s *Service) cleanShop(in ShopInput) (ShopInput, error) {
	out := ShopInput{
		ShopName:  s.sanitizer.Clean(in.ShopName),
		OwnerName: s.sanitizer.Clean(in.OwnerName),
		Address:   s.sanitizer.Clean(in.Address),
		City:      s.sanitizer.Clean(in.City),
		State:     s.sanitizer.Clean(in.State),
		Pincode:   s.sanitizer.Clean(in.Pincode),
	}
	for _, f := range []struct{ name, value string }{
		{"shopName", out.ShopName},
		{"ownerName", out.OwnerName},
		{"address", out.Address},
		{"city", out.City},
		{"state", out.State},
		{"pincode", out.Pincode},
	} {
		if f.value == "" {
			return ShopInput{}, model.NewValidationError(f.name + " is required")
		}
	}
	return out, nil
}

func (s *Service) cleanCake(in CakeInput) (CakeInput, error) {
	out := CakeInput{
		CakeType: s.sanitizer.Clean(in.CakeType),
		Flavour:  s.sanitizer.Clean(in.Flavour),
		WeightKg: in.WeightKg,
		Price:    in.Price,
	}
	if out.CakeType == "" {
		return CakeInput{}, model.NewValidationError("cakeType is required")
	}
	if out.Flavour == "" {
		return CakeInput{}, model.NewValidationError("flavour is required")
	}
	if !positive(out.WeightKg) {
		return CakeInput{}, model.NewValidationError("weightKg must be greater than 0")
	}
	if !positive(out.Price) {
		return CakeInput{}, model.NewValidationError("price must be greater than 0")
	}
	return out, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func hasImage(image *Image) bool {
	return image != nil && len(image.Data) > 0
}
