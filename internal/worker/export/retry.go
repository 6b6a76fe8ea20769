package export

import (
	"context"
	"time"

	"github.com/hitoshi/jobtrail/internal/repository"
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 200 * time.Millisecond
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 5 * time.Second
	// maxReadAttempts は1バッチあたりの読み出し試行回数。
	maxReadAttempts = 3
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回200ms、2倍ずつ増加、最大5秒。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// readWithRetry はバッチ読み出しを最大maxReadAttempts回まで試行する。
// 試行の間はCalculateBackoffの遅延だけ待つ。
func (e *Exporter) readWithRetry(ctx context.Context, table string, c Cursor) ([]repository.ExportRow, error) {
	var lastErr error
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, CalculateBackoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		rows, err := e.source.ReadSince(ctx, table, c.At, c.Seq, e.batchSize)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		e.logger.Warn("エクスポートの読み出しに失敗しました",
			"table", table,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, lastErr
}

// sleepContext はdだけ待つ。コンテキストがキャンセルされた場合はそのエラーを返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
