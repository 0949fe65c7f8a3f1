// Package tweet はツイートのローテーション表示と統計のドメインロジックを提供する。
package tweet

import (
	"context"
	"fmt"

	"github.com/hitoshi/tweetkiosk/internal/metrics"
	"github.com/hitoshi/tweetkiosk/internal/model"
	"github.com/hitoshi/tweetkiosk/internal/repository"
)

// Service はツイートのローテーション表示と統計のサービス層。
type Service struct {
	tweetRepo repository.TweetRepository
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tweetRepo repository.TweetRepository, collector metrics.MetricsCollector) *Service {
	return &Service{
		tweetRepo: tweetRepo,
		collector: collector,
	}
}

// GetNext は未表示ツイートのうち取得日時が最も古いものを返す。
// 未表示ツイートが残っていない場合はNO_TWEETS_REMAININGエラーを返す。
func (s *Service) GetNext(ctx context.Context) (*model.Tweet, error) {
	t, err := s.tweetRepo.FindNextUndisplayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("次の表示ツイートの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewNoTweetsRemainingError()
	}
	return t, nil
}

// MarkDisplayed は外部ツイートIDで指定されたツイートを表示済みにする。
// 2番目の戻り値は既に表示済みだった場合にtrueになる。既に表示済みでも
// エラーにはしない（冪等）。初回マーキングのみメトリクスに記録する。
func (s *Service) MarkDisplayed(ctx context.Context, tweetID string) (bool, error) {
	t, err := s.tweetRepo.FindByTweetID(ctx, tweetID)
	if err != nil {
		return false, fmt.Errorf("ツイートの取得に失敗しました: %w", err)
	}
	if t == nil {
		return false, model.NewTweetNotFoundError(tweetID)
	}

	// 遷移の判定はリポジトリ側のガード付きUPDATEに委ねる。
	// 並行呼び出しでもメトリクスが初回の1件だけ記録される。
	marked, err := s.tweetRepo.MarkDisplayed(ctx, tweetID)
	if err != nil {
		return false, fmt.Errorf("表示済みへの更新に失敗しました: %w", err)
	}
	if marked {
		s.collector.RecordTweetDisplayed()
	}
	return !marked, nil
}

// Stats はストア全体の集計値を返す。
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := s.tweetRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}
