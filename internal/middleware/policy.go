package middleware

import (
	"net/http"

	"github.com/hitoshi/cakeshop/internal/model"
)

// PermitAll は全てのリクエストを通すポリシー。
func PermitAll() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// RequireAuthenticated は認証済み主体を要求するポリシー。
// 匿名リクエストには401を返し、ハンドラーを実行しない。
func RequireAuthenticated() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole は指定ロールの主体を要求するポリシー。
// 匿名リクエストには401、ロールが異なる場合は403を返す。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}
			if p.Role != role {
				WriteAPIError(w, model.NewForbiddenError(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
