package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tweetkiosk/internal/middleware"
	"github.com/hitoshi/tweetkiosk/internal/model"
)

// TweetServiceInterface はツイートハンドラーが必要とするサービスインターフェース。
type TweetServiceInterface interface {
	// GetNext は未表示ツイートのうち取得日時が最も古いものを返す。
	GetNext(ctx context.Context) (*model.Tweet, error)
	// MarkDisplayed はツイートを表示済みにし、既に表示済みだったかを返す。
	MarkDisplayed(ctx context.Context, tweetID string) (bool, error)
	// Stats はストア全体の集計値を返す。
	Stats(ctx context.Context) (*model.Stats, error)
}

// RefreshServiceInterface はリフレッシュ実行のインターフェース。
// ワーカーのスケジューラと同じ取り込みサイクルをAPI経由で同期実行する。
type RefreshServiceInterface interface {
	// RunOnce は1サイクル分のフェッチを実行し、取り込み結果を返す。
	RunOnce(ctx context.Context) (*model.FetchStats, error)
}

// TweetHandler はツイート表示ローテーションのHTTPハンドラー。
type TweetHandler struct {
	service   TweetServiceInterface
	refresher RefreshServiceInterface
}

// NewTweetHandler はTweetHandlerを生成する。
func NewTweetHandler(service TweetServiceInterface, refresher RefreshServiceInterface) *TweetHandler {
	return &TweetHandler{
		service:   service,
		refresher: refresher,
	}
}

// --- レスポンス型 ---

// tweetResponse はツイート情報のAPIレスポンス。
type tweetResponse struct {
	ID               string     `json:"id"`
	TweetID          string     `json:"tweet_id"`
	Text             string     `json:"text"`
	AuthorHandle     string     `json:"author_handle"`
	AuthorName       string     `json:"author_name"`
	CreatedAtTwitter *time.Time `json:"created_at_twitter"`
	MediaURL         string     `json:"media_url"`
	TweetURL         string     `json:"tweet_url"`
	IsDisplayed      bool       `json:"is_displayed"`
	DisplayedAt      *time.Time `json:"displayed_at"`
	FetchedAt        time.Time  `json:"fetched_at"`
}

// markDisplayedResponse は表示済みマークのレスポンス。
type markDisplayedResponse struct {
	TweetID          string `json:"tweet_id"`
	AlreadyDisplayed bool   `json:"already_displayed"`
}

// statsResponse は集計値のレスポンス。
type statsResponse struct {
	TotalTweets     int `json:"total_tweets"`
	DisplayedTweets int `json:"displayed_tweets"`
	RemainingTweets int `json:"remaining_tweets"`
	ActiveHandles   int `json:"active_handles"`
}

// refreshStatsResponse はリフレッシュ結果の内訳。
type refreshStatsResponse struct {
	Fetched          int `json:"fetched"`
	New              int `json:"new"`
	Skipped          int `json:"skipped"`
	HandlesProcessed int `json:"handles_processed"`
}

// refreshResponse はリフレッシュのレスポンス。
type refreshResponse struct {
	Message string               `json:"message"`
	Stats   refreshStatsResponse `json:"stats"`
}

// GetNext は次に表示するツイートを返す。
// GET /api/tweets/next
func (h *TweetHandler) GetNext(w http.ResponseWriter, r *http.Request) {
	tweet, err := h.service.GetNext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTweetResponse(tweet))
}

// MarkDisplayed はツイートを表示済みにマークする。冪等な操作で、
// 既に表示済みの場合もalready_displayed=trueの200を返す。
// POST /api/tweets/:tweet_id/mark-displayed
func (h *TweetHandler) MarkDisplayed(w http.ResponseWriter, r *http.Request) {
	tweetID := chi.URLParam(r, "tweet_id")

	alreadyDisplayed, err := h.service.MarkDisplayed(r.Context(), tweetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markDisplayedResponse{
		TweetID:          tweetID,
		AlreadyDisplayed: alreadyDisplayed,
	})
}

// GetStats はストア全体の集計値を返す。
// GET /api/tweets/stats
func (h *TweetHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		TotalTweets:     stats.TotalTweets,
		DisplayedTweets: stats.DisplayedTweets,
		RemainingTweets: stats.RemainingTweets,
		ActiveHandles:   stats.ActiveHandles,
	})
}

// Refresh は全アクティブハンドルのツイート取り込みを同期実行する。
// POST /api/tweets/refresh
func (h *TweetHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	stats, err := h.refresher.RunOnce(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(refreshResponse{
		Message: "リフレッシュが完了しました。",
		Stats: refreshStatsResponse{
			Fetched:          stats.Fetched,
			New:              stats.New,
			Skipped:          stats.Skipped,
			HandlesProcessed: stats.HandlesProcessed,
		},
	})
}

// --- ヘルパー関数 ---

// toTweetResponse はmodel.TweetからAPIレスポンスに変換する。
func toTweetResponse(tweet *model.Tweet) tweetResponse {
	return tweetResponse{
		ID:               tweet.ID,
		TweetID:          tweet.TweetID,
		Text:             tweet.Text,
		AuthorHandle:     tweet.AuthorHandle,
		AuthorName:       tweet.AuthorName,
		CreatedAtTwitter: tweet.CreatedAtTwitter,
		MediaURL:         tweet.MediaURL,
		TweetURL:         tweet.TweetURL,
		IsDisplayed:      tweet.IsDisplayed,
		DisplayedAt:      tweet.DisplayedAt,
		FetchedAt:        tweet.FetchedAt,
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidHandle:
		return http.StatusBadRequest
	case model.ErrCodeDuplicateHandle:
		return http.StatusConflict
	case model.ErrCodeHandleNotFound, model.ErrCodeTweetNotFound, model.ErrCodeNoTweetsRemaining, model.ErrCodeMediaNotFound:
		return http.StatusNotFound
	case model.ErrCodeMediaBlocked:
		return http.StatusForbidden
	case model.ErrCodeMediaFetchFailed, model.ErrCodeTwitterAPIFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
