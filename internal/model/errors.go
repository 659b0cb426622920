// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はAPIエラーの分類を表す。HTTPステータスへの対応はハンドラー層が決める。
type ErrorKind int

const (
	// KindInternal は分類されない内部エラー。
	KindInternal ErrorKind = iota
	// KindBadRequest は入力または状態遷移が不正であることを示す。
	KindBadRequest
	// KindUnauthorized は認証情報が無い、または無効であることを示す。
	KindUnauthorized
	// KindForbidden は認証済みだがロールが不足していることを示す。
	KindForbidden
	// KindNotFound は対象リソースが存在しないことを示す。
	KindNotFound
	// KindConflict は一意性制約に抵触したことを示す。
	KindConflict
	// KindUnavailable はストアが時間内に応答しなかったことを示す。再試行可能。
	KindUnavailable
)

// String はエラー分類名を返す。
func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, catalog, system
	Action   string // ユーザー向け対処方法

	// Err は原因となったエラー。レスポンスには含めない。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeEmailExists        = "EMAIL_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeAlreadySeller      = "ALREADY_SELLER"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidQuantity    = "INVALID_QUANTITY"
	ErrCodeCakeNotFound       = "CAKE_NOT_FOUND"
	ErrCodeCartItemNotFound   = "CART_ITEM_NOT_FOUND"
	ErrCodeShopExists         = "SHOP_EXISTS"
	ErrCodeShopNotFound       = "SHOP_NOT_FOUND"
	ErrCodeShopRequired       = "SHOP_REQUIRED"
	ErrCodeImageRequired      = "IMAGE_REQUIRED"
	ErrCodeUploadFailed       = "UPLOAD_FAILED"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
)

// ErrInvalidCredentials はログイン失敗時に返す唯一のエラー値。
// メールアドレス未登録とパスワード不一致を区別しない。
var ErrInvalidCredentials = &APIError{
	Kind:     KindUnauthorized,
	Code:     ErrCodeInvalidCredentials,
	Message:  "Invalid email or password",
	Category: "auth",
	Action:   "Check your email and password and try again.",
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Kind:     KindUnauthorized,
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewForbiddenError はロール不足エラーを生成する。
func NewForbiddenError(required Role) *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("This action requires the %s role", required),
		Category: "auth",
		Action:   "Use an account with the required role.",
	}
}

// NewEmailExistsError はメールアドレス重複エラーを生成する。
func NewEmailExistsError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeEmailExists,
		Message:  "Email already exists",
		Category: "auth",
		Action:   "Log in with this email or sign up with a different one.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewAlreadySellerError は既に販売者であるユーザーの昇格エラーを生成する。
func NewAlreadySellerError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeAlreadySeller,
		Message:  "User is already a seller",
		Category: "auth",
		Action:   "Log in again to refresh your session.",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "Correct the request and try again.",
	}
}

// NewInvalidQuantityError は数量が範囲外の場合のエラーを生成する。
// 加算結果が上限を超えた場合は加算後の数量を渡す。
func NewInvalidQuantityError(qty int) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("Quantity must be between 1 and %d: %d", MaxItemQuantity, qty),
		Category: "validation",
		Action:   fmt.Sprintf("Specify a quantity from 1 to %d.", MaxItemQuantity),
	}
}

// NewCakeNotFoundError はケーキが見つからない場合のエラーを生成する。
func NewCakeNotFoundError(cakeID int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeCakeNotFound,
		Message:  fmt.Sprintf("Cake not found: %d", cakeID),
		Category: "catalog",
		Action:   "Reload the cake list.",
	}
}

// NewCartItemNotFoundError はカート明細が見つからない場合のエラーを生成する。
func NewCartItemNotFoundError(itemID int64) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeCartItemNotFound,
		Message:  fmt.Sprintf("Cart item not found: %d", itemID),
		Category: "cart",
		Action:   "Reload your cart.",
	}
}

// NewShopExistsError は店舗が既に存在する場合のエラーを生成する。
func NewShopExistsError() *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeShopExists,
		Message:  "Shop already exists for this seller",
		Category: "catalog",
		Action:   "Update the existing shop instead.",
	}
}

// NewShopNotFoundError は店舗が見つからない場合のエラーを生成する。
func NewShopNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeShopNotFound,
		Message:  "Shop not found",
		Category: "catalog",
		Action:   "Create your shop first.",
	}
}

// NewShopRequiredError は店舗未作成でケーキを登録しようとした場合のエラーを生成する。
func NewShopRequiredError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeShopRequired,
		Message:  "Create shop before adding cakes",
		Category: "catalog",
		Action:   "Create your shop and try again.",
	}
}

// NewImageRequiredError は画像が必須の操作で画像が無い場合のエラーを生成する。
func NewImageRequiredError() *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodeImageRequired,
		Message:  "Image is required",
		Category: "validation",
		Action:   "Attach an image and try again.",
	}
}

// NewUploadFailedError は画像アップロード失敗エラーを生成する。
func NewUploadFailedError(err error) *APIError {
	return &APIError{
		Kind:     KindUnavailable,
		Code:     ErrCodeUploadFailed,
		Message:  "Image upload failed",
		Category: "system",
		Action:   "Wait a moment and try again.",
		Err:      err,
	}
}

// NewStoreUnavailableError はストアがタイムアウトした場合のエラーを生成する。
func NewStoreUnavailableError(err error) *APIError {
	return &APIError{
		Kind:     KindUnavailable,
		Code:     ErrCodeStoreUnavailable,
		Message:  "Service temporarily unavailable",
		Category: "system",
		Action:   "Wait a moment and try again.",
		Err:      err,
	}
}

// NewPayloadTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Kind:     KindBadRequest,
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("Request body exceeds %d bytes", limit),
		Category: "validation",
		Action:   "Upload a smaller image.",
	}
}

// NewCSRFError はCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Kind:     KindForbidden,
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}
