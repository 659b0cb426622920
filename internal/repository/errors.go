package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATEコード
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNumericOutOfRange   = "22003"
	pgQueryCanceled       = "57014"
)

var (
	// ErrDuplicate は一意性制約違反を表す。サービス層でドメインエラーに変換する。
	ErrDuplicate = errors.New("duplicate key")
	// ErrReferenceMissing は外部キーの参照先が存在しないことを表す。
	ErrReferenceMissing = errors.New("referenced row does not exist")
	// ErrOutOfRange は値がカラムの型またはCHECK制約の範囲外であることを表す。
	ErrOutOfRange = errors.New("value out of range")
)

// translateError はドライバのエラーをリポジトリのセンチネルエラーに変換する。
// 該当しない場合はopの文脈付きでラップする。
func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pqErr.Constraint)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrReferenceMissing, pqErr.Constraint)
		case pgCheckViolation, pgNumericOutOfRange:
			return fmt.Errorf("%s: %w (%s)", op, ErrOutOfRange, pqErr.Message)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// IsTimeout はストア呼び出しが期限切れまたはキャンセルで中断されたかを判定する。
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgQueryCanceled
}
