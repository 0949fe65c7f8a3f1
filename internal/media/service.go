// Package media はツイート添付画像の取得プロキシのドメインロジックを提供する。
// キオスク端末は外部ネットワークへ直接出られないため、バックエンドが
// 画像を代理取得して返す。
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/tweetkiosk/internal/model"
	"github.com/hitoshi/tweetkiosk/internal/repository"
)

// mediaTimeout は画像取得のタイムアウト。
const mediaTimeout = 10 * time.Second

// allowedImageMimes はプロキシが中継する画像MIMEタイプ。
var allowedImageMimes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// Guard はメディアURLの検証と安全なHTTPクライアント生成のインターフェース。
type Guard interface {
	NewSafeClient(timeout time.Duration) *http.Client
	ValidateURL(rawURL string) error
}

// Service はツイート添付画像の代理取得を行うサービス層。
type Service struct {
	tweetRepo repository.TweetRepository
	guard     Guard
	client    *http.Client
	maxSize   int64
}

// NewService はServiceの新しいインスタンスを生成する。
// maxSizeは中継する画像の最大バイト数。
func NewService(tweetRepo repository.TweetRepository, guard Guard, maxSize int64) *Service {
	return &Service{
		tweetRepo: tweetRepo,
		guard:     guard,
		client:    guard.NewSafeClient(mediaTimeout),
		maxSize:   maxSize,
	}
}

// FetchForTweet は外部ツイートIDで指定されたツイートの添付画像を取得する。
// ツイートが存在しない場合はTWEET_NOT_FOUND、添付画像がない場合は
// MEDIA_NOT_FOUNDエラーを返す。
func (s *Service) FetchForTweet(ctx context.Context, tweetID string) ([]byte, string, error) {
	t, err := s.tweetRepo.FindByTweetID(ctx, tweetID)
	if err != nil {
		return nil, "", fmt.Errorf("ツイートの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, "", model.NewTweetNotFoundError(tweetID)
	}
	if t.MediaURL == "" {
		return nil, "", model.NewMediaNotFoundError(tweetID)
	}
	return s.Fetch(ctx, t.MediaURL)
}

// Fetch は指定URLから画像を取得して返す。
// 内部アドレスへの到達はMEDIA_BLOCKED、取得失敗・サイズ超過・
// 画像以外のContent-TypeはMEDIA_FETCH_FAILEDエラーになる。
func (s *Service) Fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if err := s.guard.ValidateURL(mediaURL); err != nil {
		slog.Warn("画像取得: SSRFブロック", "url", mediaURL, "error", err)
		return nil, "", model.NewMediaBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", model.NewMediaFetchFailedError("リクエストの作成に失敗しました")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("画像取得: HTTPリクエスト失敗", "url", mediaURL, "error", err)
		return nil, "", model.NewMediaFetchFailedError("画像の取得に失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("画像取得: HTTPステータス異常", "url", mediaURL, "status", resp.StatusCode)
		return nil, "", model.NewMediaFetchFailedError(fmt.Sprintf("配信元がステータス%dを返しました", resp.StatusCode))
	}

	// 最大サイズ+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		slog.Warn("画像取得: レスポンス読み取り失敗", "url", mediaURL, "error", err)
		return nil, "", model.NewMediaFetchFailedError("レスポンスの読み取りに失敗しました")
	}
	if int64(len(body)) > s.maxSize {
		slog.Warn("画像取得: サイズ超過", "url", mediaURL, "size", len(body))
		return nil, "", model.NewMediaFetchFailedError("画像サイズが上限を超えています")
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isAllowedImageMime(mimeType) {
		slog.Warn("画像取得: 許可されていないContent-Type", "url", mediaURL, "contentType", mimeType)
		return nil, "", model.NewMediaFetchFailedError("画像以外のコンテンツは中継できません")
	}

	return body, mimeType, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isAllowedImageMime はMIMEタイプが中継対象の画像かどうかを判定する。
func isAllowedImageMime(mimeType string) bool {
	for _, t := range allowedImageMimes {
		if mimeType == t {
			return true
		}
	}
	return false
}
