package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner は*sql.DBと*sql.Txに共通するクエリ実行インターフェース。
type Runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

// CtxWithTx はトランザクションをコンテキストに格納する。
func CtxWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromCtx はコンテキストに格納されたトランザクションを返す。
func TxFromCtx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok
}

// runnerFrom はコンテキストにトランザクションがあればそれを、なければdbを返す。
func runnerFrom(ctx context.Context, db *sql.DB) Runner {
	if tx, ok := TxFromCtx(ctx); ok {
		return tx
	}
	return db
}

// PostgresTxManager は*sql.DBのトランザクション境界を管理する。
type PostgresTxManager struct {
	db TxBeginner
}

// NewPostgresTxManager はPostgresTxManagerを生成する。
func NewPostgresTxManager(db TxBeginner) *PostgresTxManager {
	return &PostgresTxManager{db: db}
}

// WithinTx はfnを1つのトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、成功した場合はコミットする。
// 既にトランザクション内であればそれを再利用する。
func (m *PostgresTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromCtx(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(CtxWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ TxManager = (*PostgresTxManager)(nil)
