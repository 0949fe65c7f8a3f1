// Package fetch はアクティブハンドルのツイート取り込み処理を提供する。
// スケジューラとフェッチャーを含む。
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tweetkiosk/internal/metrics"
	"github.com/hitoshi/tweetkiosk/internal/model"
	"github.com/hitoshi/tweetkiosk/internal/repository"
	"github.com/hitoshi/tweetkiosk/internal/twitter"
)

// TweetSource は外部APIからのツイート取得のインターフェース。
type TweetSource interface {
	FetchTweets(ctx context.Context, handle string, count int) ([]model.FetchedTweet, error)
}

// Sanitizer はツイート本文のサニタイズのインターフェース。
type Sanitizer interface {
	SanitizeText(raw string) string
}

// Fetcher は個別ハンドルのツイート取得・サニタイズ・保存を行う。
// APIフェッチが失敗した場合はモック生成にフォールバックし、
// キオスクの表示が止まらないようにする。
type Fetcher struct {
	tweetRepo repository.TweetRepository
	source    TweetSource
	sanitizer Sanitizer
	collector metrics.MetricsCollector
	logger    *slog.Logger
	useMock   bool
	perHandle int
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// useMockがtrueの場合は外部APIを呼ばず常にモックデータを生成する。
// perHandleが0以下の場合はデフォルト値10を使用する。
func NewFetcher(
	tweetRepo repository.TweetRepository,
	source TweetSource,
	sanitizer Sanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	useMock bool,
	perHandle int,
) *Fetcher {
	if perHandle <= 0 {
		perHandle = 10
	}
	return &Fetcher{
		tweetRepo: tweetRepo,
		source:    source,
		sanitizer: sanitizer,
		collector: collector,
		logger:    logger,
		useMock:   useMock,
		perHandle: perHandle,
	}
}

// FetchHandle は1ハンドル分のツイートを取得・保存し、
// 取得数・新規保存数・重複スキップ数を返す。
func (f *Fetcher) FetchHandle(ctx context.Context, handle string) (fetched, inserted, skipped int, err error) {
	start := time.Now()

	tweets := f.loadTweets(ctx, handle)
	f.collector.RecordFetchLatency(time.Since(start))

	for _, ft := range tweets {
		tweet := &model.Tweet{
			ID:               uuid.New().String(),
			TweetID:          ft.TweetID,
			Text:             f.sanitizer.SanitizeText(ft.Text),
			AuthorHandle:     ft.AuthorHandle,
			AuthorName:       ft.AuthorName,
			CreatedAtTwitter: ft.CreatedAtTwitter,
			MediaURL:         ft.MediaURL,
			TweetURL:         ft.TweetURL,
			IsDisplayed:      false,
			FetchedAt:        time.Now(),
		}

		ok, err := f.tweetRepo.InsertIgnoreDuplicate(ctx, tweet)
		if err != nil {
			return fetched, inserted, skipped, fmt.Errorf("ツイートの保存に失敗しました: %w", err)
		}
		fetched++
		if ok {
			inserted++
		} else {
			skipped++
		}
	}

	f.collector.RecordTweetsFetched(fetched)
	f.collector.RecordTweetsNew(inserted)
	f.collector.RecordTweetsSkipped(skipped)

	f.logger.Info("ハンドルのフェッチが完了しました",
		slog.String("handle", handle),
		slog.Int("fetched", fetched),
		slog.Int("inserted", inserted),
		slog.Int("skipped", skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return fetched, inserted, skipped, nil
}

// loadTweets はモード設定に従ってツイートデータを取得する。
// APIモードで取得に失敗した場合はモック生成に切り替える。
func (f *Fetcher) loadTweets(ctx context.Context, handle string) []model.FetchedTweet {
	if f.useMock {
		return twitter.GenerateMockTweets(handle, f.perHandle)
	}

	tweets, err := f.source.FetchTweets(ctx, handle, f.perHandle)
	if err != nil {
		f.logger.Warn("APIフェッチに失敗したためモックデータにフォールバックします",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		f.collector.RecordMockFallback(handle)
		return twitter.GenerateMockTweets(handle, f.perHandle)
	}
	return tweets
}
