// Package auth はアカウント登録、ログイン、プロフィール参照、販売者への昇格を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cakeshop/internal/metrics"
	"github.com/hitoshi/cakeshop/internal/model"
	"github.com/hitoshi/cakeshop/internal/repository"
)

// TokenIssuer はトークン発行のインターフェース。
type TokenIssuer interface {
	Issue(email string, role model.Role) (string, error)
}

// ServiceConfig はアカウントサービスの設定。
type ServiceConfig struct {
	// BcryptCost はパスワードハッシュのコスト。0の場合はbcrypt.DefaultCost。
	BcryptCost int
	// StoreTimeout は1操作あたりのストア呼び出しの上限時間。
	StoreTimeout time.Duration
}

// SignupInput はサインアップの入力。
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User  *model.User
	Token string
}

// HomePage はトップページに表示する案内文。
type HomePage struct {
	Title   string
	Tagline string
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	users   repository.UserRepository
	txm     repository.TxManager
	tokens  TokenIssuer
	metrics metrics.MetricsCollector
	config  ServiceConfig

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	users repository.UserRepository,
	txm repository.TxManager,
	tokens TokenIssuer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		users:   users,
		txm:     txm,
		tokens:  tokens,
		metrics: collector,
		config:  config,
	}
}

// Signup は新規ユーザーをCUSTOMERロールで登録する。
// 既に登録済みのメールアドレスはConflictになる。
// 同時登録で存在確認をすり抜けた場合も一意性制約違反をConflictに変換する。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, model.NewValidationError("Name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("Email address is invalid")
	}
	if len(in.Password) > 72 {
		return nil, model.NewValidationError("Password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleCustomer,
	}

	err = repository.Bounded(ctx, s.config.StoreTimeout, func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			exists, err := s.users.ExistsByEmail(ctx, email)
			if err != nil {
				return err
			}
			if exists {
				return model.NewEmailExistsError()
			}
			if err := s.users.Create(ctx, user); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return model.NewEmailExistsError()
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		s.metrics.RecordSignup(resultOf(err))
		s.recordUnavailable("auth.signup", err)
		return nil, err
	}

	s.metrics.RecordSignup(metrics.ResultSuccess)
	slog.Info("user signed up",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)
	return user, nil
}

// Login は資格情報を検証してトークンを発行する。
// 未登録のメールアドレスとパスワード不一致は同一のエラー値を返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)

	var user *model.User
	err := repository.Bounded(ctx, s.config.StoreTimeout, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		s.recordUnavailable("auth.login", err)
		return nil, err
	}

	if user == nil {
		// 未登録の場合もbcrypt比較を1回行う
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.metrics.RecordLogin(metrics.ResultRejected)
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordLogin(metrics.ResultRejected)
		return nil, model.ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(user.Email, user.Role)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	return &LoginResult{User: user, Token: tok}, nil
}

// Profile は認証済みユーザーのプロフィールを返す。
func (s *Service) Profile(ctx context.Context, email string) (*model.User, error) {
	var user *model.User
	err := repository.Bounded(ctx, s.config.StoreTimeout, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		s.recordUnavailable("auth.profile", err)
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpgradeToSeller はCUSTOMERをSELLERに昇格させ、新しいロールのトークンを返す。
// 既にSELLERの場合はBadRequest。ロールの書き換えは条件付き更新で行い、
// 同時昇格で先を越された場合も同じBadRequestを返す。
// 昇格前に発行されたトークンは期限まで旧ロールのまま有効。
func (s *Service) UpgradeToSeller(ctx context.Context, email string) (string, error) {
	err := repository.Bounded(ctx, s.config.StoreTimeout, func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context) error {
			user, err := s.users.FindByEmail(ctx, email)
			if err != nil {
				return err
			}
			if user == nil {
				return model.NewUserNotFoundError()
			}
			if user.Role == model.RoleSeller {
				return model.NewAlreadySellerError()
			}

			updated, err := s.users.UpdateRole(ctx, email, model.RoleCustomer, model.RoleSeller)
			if err != nil {
				return err
			}
			if !updated {
				return model.NewAlreadySellerError()
			}
			return nil
		})
	})
	if err != nil {
		s.metrics.RecordUpgrade(resultOf(err))
		s.recordUnavailable("auth.upgrade", err)
		return "", err
	}

	tok, err := s.tokens.Issue(email, model.RoleSeller)
	if err != nil {
		s.metrics.RecordUpgrade(metrics.ResultError)
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.RecordUpgrade(metrics.ResultSuccess)
	slog.Info("user upgraded to seller", slog.String("email", email))
	return tok, nil
}

// HomePage はトップページの案内文を返す。認証は不要。
func (s *Service) HomePage() HomePage {
	return HomePage{
		Title:   "Welcome to CakeApp",
		Tagline: "Freshly baked cakes, handcrafted with love.",
	}
}

// dummy はタイミング平準化用のハッシュを返す。
func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cakeshop-timing-equalizer"), s.config.BcryptCost)
	})
	return s.dummyHash
}

func (s *Service) recordUnavailable(op string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == model.KindUnavailable {
		s.metrics.RecordStoreUnavailable(op)
	}
}

// resultOf はエラーをメトリクスの結果ラベルに変換する。
func resultOf(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return metrics.ResultError
	}
	switch apiErr.Kind {
	case model.KindConflict:
		return metrics.ResultConflict
	case model.KindBadRequest, model.KindNotFound:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
