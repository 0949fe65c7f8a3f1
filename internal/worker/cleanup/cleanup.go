// Package cleanup はモックツイートの一括削除ジョブを提供する。
// モード切替やフォールバックで混入したモックデータ（tweet_idが mock_ で始まるもの）を
// バッチ単位で削除する。表示履歴はCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tweetkiosk/internal/repository"
)

// 一度に削除する最大件数。ロック保持時間を短く保つためバッチに分割する。
const batchSize = 1000

// Job はモックツイートの削除ジョブ。
// cleanmockサブコマンドから起動されるワンショットのメンテナンス処理で、
// 冪等な削除を保証する。
type Job struct {
	tweetRepo repository.TweetRepository
	logger    *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(tweetRepo repository.TweetRepository, logger *slog.Logger) *Job {
	return &Job{
		tweetRepo: tweetRepo,
		logger:    logger,
	}
}

// Run は全モックツイートをバッチ単位で削除し、削除した合計件数を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	var total int64
	for {
		deleted, err := j.tweetRepo.DeleteMockTweets(ctx, batchSize)
		if err != nil {
			j.logger.Error("モックツイート削除ジョブの実行に失敗しました",
				slog.String("error", err.Error()),
				slog.Int64("deleted_so_far", total),
			)
			return total, fmt.Errorf("モックツイート削除の実行に失敗: %w", err)
		}
		total += deleted
		if deleted < batchSize {
			break
		}
	}

	duration := time.Since(start)
	j.logger.Info("モックツイート削除ジョブが完了しました",
		slog.Int64("deleted_count", total),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return total, nil
}
