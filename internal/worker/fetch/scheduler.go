package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/tweetkiosk/internal/metrics"
	"github.com/hitoshi/tweetkiosk/internal/model"
	"github.com/hitoshi/tweetkiosk/internal/repository"
)

// HandleFetcher はハンドル単位のフェッチ処理のインターフェース。
type HandleFetcher interface {
	FetchHandle(ctx context.Context, handle string) (fetched, inserted, skipped int, err error)
}

// Scheduler はアクティブハンドルの定期フェッチを管理する。
type Scheduler struct {
	handleRepo     repository.HandleRepository
	fetcher        HandleFetcher
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	handleRepo repository.HandleRepository,
	fetcher HandleFetcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		handleRepo:     handleRepo,
		fetcher:        fetcher,
		collector:      collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は定期フェッチを開始する。ctxがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("フェッチスケジューラを開始します",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行する
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("初回フェッチサイクルに失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("フェッチスケジューラを停止します")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("フェッチサイクルに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は1サイクル分のフェッチを実行し、取り込み結果を返す。
// 個別ハンドルの失敗はログに記録して続行し、サイクル全体は止めない。
func (s *Scheduler) RunOnce(ctx context.Context) (*model.FetchStats, error) {
	start := time.Now()
	s.collector.RecordFetchRun()

	handles, err := s.handleRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("アクティブハンドルの取得に失敗しました: %w", err)
	}

	stats := &model.FetchStats{}
	if len(handles) == 0 {
		s.logger.Info("アクティブハンドルがないためフェッチをスキップします")
		return stats, nil
	}

	s.logger.Info("フェッチサイクルを開始します", slog.Int("handle_count", len(handles)))

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, h := range handles {
		wg.Add(1)
		go func(h *model.Handle) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetched, inserted, skipped, err := s.fetcher.FetchHandle(ctx, h.Handle)
			if err != nil {
				s.logger.Error("ハンドルのフェッチに失敗しました",
					slog.String("handle", h.Handle),
					slog.String("error", err.Error()),
				)
				return
			}

			mu.Lock()
			stats.Fetched += fetched
			stats.New += inserted
			stats.Skipped += skipped
			stats.HandlesProcessed++
			mu.Unlock()
		}(h)
	}

	wg.Wait()

	s.logger.Info("フェッチサイクルが完了しました",
		slog.Int("handles_processed", stats.HandlesProcessed),
		slog.Int("fetched", stats.Fetched),
		slog.Int("new", stats.New),
		slog.Int("skipped", stats.Skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return stats, nil
}
