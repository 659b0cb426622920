package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/cakeshop/internal/model"
)

// DefaultStoreTimeout は上限時間が指定されなかった場合に使うストア呼び出しの上限。
const DefaultStoreTimeout = 5 * time.Second

// Bounded はfnをtimeoutで打ち切られるコンテキストで実行する。
// ストアが期限内に応答しなかった場合はUnavailableのAPIErrorに変換する。
// fnが返したAPIErrorはそのまま返す。timeoutが0以下の場合はDefaultStoreTimeoutを使う。
func Bounded(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.NewStoreUnavailableError(err)
	}
	return err
}
