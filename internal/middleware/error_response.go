package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cakeshop/internal/model"
)

// ErrorResponseBody はエラーレスポンスのボディ。
// successは常にfalseで、成功時の{success, message, data}と見分けられる。
type ErrorResponseBody struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable,omitempty"`
}

// StatusForKind はエラー分類をHTTPステータスコードに対応付ける。
func StatusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindConflict:
		return http.StatusConflict
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindBadRequest:
		return http.StatusBadRequest
	case model.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError はエラー分類から決まるステータスでapiErrを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForKind(apiErr.Kind), apiErr)
}

// WriteErrorResponse は任意のステータスでapiErrを書き込む。
// 原因エラー(Err)はレスポンスに含めない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Retryable: apiErr.Kind == model.KindUnavailable || statusCode == http.StatusTooManyRequests,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to encode error response", slog.String("error", err.Error()))
	}
}

// WriteInternalServerError は詳細を伏せた500を書き込む。詳細はログにのみ残すこと。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteAPIError(w, &model.APIError{
		Kind:     model.KindInternal,
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred",
		Category: "system",
		Action:   "Wait a moment and try again.",
	})
}
