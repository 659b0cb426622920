// Package token はステートレスなセッショントークン（HS256 JWT）の発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/cakeshop/internal/model"
)

// DefaultTTL はトークンの既定の有効期間。
const DefaultTTL = 24 * time.Hour

// ErrInvalidToken は検証に失敗したトークンを表す。
// 署名不一致、形式不正、期限切れ、アルゴリズム不一致を区別しない。
var ErrInvalidToken = errors.New("invalid token")

// Config はトークンサービスの設定。
type Config struct {
	Secret string
	TTL    time.Duration
	// Now は現在時刻を返す。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// claims はトークンに含めるクレーム。subにメールアドレス、roleにロール名を持つ。
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service はHS256でトークンを署名・検証する。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService はServiceを生成する。Secretが空の場合はエラーを返す。
func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{secret: []byte(cfg.Secret), ttl: ttl, now: now}, nil
}

// Issue はメールアドレスとロールを含むトークンを発行する。
func (s *Service) Issue(email string, role model.Role) (string, error) {
	if email == "" {
		return "", fmt.Errorf("email must not be empty")
	}
	if !role.Valid() {
		return "", fmt.Errorf("cannot issue token for %v", role)
	}

	issuedAt := s.now()
	c := claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、認証主体を返す。
// 失敗の理由にかかわらずErrInvalidTokenを返す。
func (s *Service) Verify(tokenString string) (model.Principal, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, c,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil || !parsed.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	if c.Subject == "" {
		return model.Principal{}, ErrInvalidToken
	}
	role, err := model.ParseRole(c.Role)
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}

	return model.Principal{Email: c.Subject, Role: role}, nil
}

// Email は検証済みトークンのメールアドレスを返す。
func (s *Service) Email(tokenString string) (string, error) {
	p, err := s.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return p.Email, nil
}

// Role は検証済みトークンのロールを返す。
func (s *Service) Role(tokenString string) (model.Role, error) {
	p, err := s.Verify(tokenString)
	if err != nil {
		return 0, err
	}
	return p.Role, nil
}

// TTL はトークンの有効期間を返す。Cookieの有効期間に使う。
func (s *Service) TTL() time.Duration {
	return s.ttl
}
