package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MediaServiceInterface はメディアプロキシハンドラーが必要とするサービスインターフェース。
type MediaServiceInterface interface {
	// FetchForTweet はツイートに紐づくメディアを取得し、データとContent-Typeを返す。
	FetchForTweet(ctx context.Context, tweetID string) ([]byte, string, error)
}

// MediaHandler はツイートメディアのプロキシ配信を行うHTTPハンドラー。
// キオスク端末が外部CDNへ直接アクセスしなくて済むように中継する。
type MediaHandler struct {
	service MediaServiceInterface
}

// NewMediaHandler はMediaHandlerを生成する。
func NewMediaHandler(service MediaServiceInterface) *MediaHandler {
	return &MediaHandler{service: service}
}

// GetTweetMedia はツイートのメディアを取得して返す。
// GET /api/tweets/:tweet_id/media
func (h *MediaHandler) GetTweetMedia(w http.ResponseWriter, r *http.Request) {
	tweetID := chi.URLParam(r, "tweet_id")

	data, contentType, err := h.service.FetchForTweet(r.Context(), tweetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
