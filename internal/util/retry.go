package util

import (
	"context"
	"time"
)

// Retry 执行 fn，仅当 retryable 判定可重试时按固定间隔重试，最多 attempts 次。
// 返回最后一次的错误以及实际尝试次数。
func Retry(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() error) (int, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if ctx.Err() != nil {
			return i - 1, ctx.Err()
		}
		err = fn()
		if err == nil {
			return i, nil
		}
		if retryable == nil || !retryable(err) || i == attempts {
			return i, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return i, ctx.Err()
		case <-timer.C:
		}
	}
	return attempts, err
}
