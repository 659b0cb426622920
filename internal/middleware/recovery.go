package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hitoshi/cakeshop/internal/metrics"
)

// NewRecoveryMiddleware はハンドラーのpanicを500に変換するミドルウェアを返す。
// ロギングミドルウェアより外側に置くため、500の計上もここで行う。
// http.ErrAbortHandlerはnet/httpに処理を任せるため再送出する。
func NewRecoveryMiddleware(logger *slog.Logger, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				}
				if p, ok := PrincipalFromContext(r.Context()); ok {
					attrs = append(attrs, slog.String("email", p.Email))
				}
				logger.Error("panic recovered", attrs...)

				collector.RecordHTTPStatus(http.StatusInternalServerError)
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
