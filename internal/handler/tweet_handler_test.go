package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tweetkiosk/internal/model"
)

// --- モック定義 ---

// mockTweetService はTweetServiceInterfaceのモック実装。
type mockTweetService struct {
	getNextFn       func(ctx context.Context) (*model.Tweet, error)
	markDisplayedFn func(ctx context.Context, tweetID string) (bool, error)
	statsFn         func(ctx context.Context) (*model.Stats, error)
}

func (m *mockTweetService) GetNext(ctx context.Context) (*model.Tweet, error) {
	if m.getNextFn != nil {
		return m.getNextFn(ctx)
	}
	return nil, nil
}

func (m *mockTweetService) MarkDisplayed(ctx context.Context, tweetID string) (bool, error) {
	if m.markDisplayedFn != nil {
		return m.markDisplayedFn(ctx, tweetID)
	}
	return false, nil
}

func (m *mockTweetService) Stats(ctx context.Context) (*model.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return nil, nil
}

// mockRefreshService はRefreshServiceInterfaceのモック実装。
type mockRefreshService struct {
	runOnceFn func(ctx context.Context) (*model.FetchStats, error)
}

func (m *mockRefreshService) RunOnce(ctx context.Context) (*model.FetchStats, error) {
	if m.runOnceFn != nil {
		return m.runOnceFn(ctx)
	}
	return &model.FetchStats{}, nil
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// testTweet はテスト用のツイートを生成するヘルパー。
func testTweet(tweetID string) *model.Tweet {
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.Tweet{
		ID:               "internal-id-1",
		TweetID:          tweetID,
		Text:             "打ち上げに成功しました",
		AuthorHandle:     "nasa",
		AuthorName:       "NASA",
		CreatedAtTwitter: &createdAt,
		MediaURL:         "https://pbs.twimg.com/media/abc.jpg",
		TweetURL:         "https://x.com/nasa/status/" + tweetID,
		IsDisplayed:      false,
		FetchedAt:        time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
	}
}

// --- GET /api/tweets/next テスト ---

func TestTweetHandler_GetNext_Success(t *testing.T) {
	svc := &mockTweetService{
		getNextFn: func(ctx context.Context) (*model.Tweet, error) {
			return testTweet("1234567890"), nil
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/next", nil)
	w := httptest.NewRecorder()

	h.GetNext(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["tweet_id"] != "1234567890" {
		t.Errorf("tweet_id = %v, want %q", result["tweet_id"], "1234567890")
	}
	if result["text"] != "打ち上げに成功しました" {
		t.Errorf("text = %v, want %q", result["text"], "打ち上げに成功しました")
	}
	if result["author_handle"] != "nasa" {
		t.Errorf("author_handle = %v, want %q", result["author_handle"], "nasa")
	}
	if result["is_displayed"] != false {
		t.Errorf("is_displayed = %v, want false", result["is_displayed"])
	}
}

func TestTweetHandler_GetNext_NoTweetsRemaining_ReturnsNotFound(t *testing.T) {
	svc := &mockTweetService{
		getNextFn: func(ctx context.Context) (*model.Tweet, error) {
			return nil, model.NewNoTweetsRemainingError()
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/next", nil)
	w := httptest.NewRecorder()

	h.GetNext(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeNoTweetsRemaining {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeNoTweetsRemaining)
	}
}

func TestTweetHandler_GetNext_InternalError_ReturnsInternalServerError(t *testing.T) {
	svc := &mockTweetService{
		getNextFn: func(ctx context.Context) (*model.Tweet, error) {
			return nil, errors.New("database connection failed")
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/next", nil)
	w := httptest.NewRecorder()

	h.GetNext(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// --- POST /api/tweets/:tweet_id/mark-displayed テスト ---

func TestTweetHandler_MarkDisplayed_Success(t *testing.T) {
	svc := &mockTweetService{
		markDisplayedFn: func(ctx context.Context, tweetID string) (bool, error) {
			if tweetID != "1234567890" {
				t.Errorf("tweetID = %q, want %q", tweetID, "1234567890")
			}
			return false, nil
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/1234567890/mark-displayed", nil)
	req = withChiURLParam(req, "tweet_id", "1234567890")
	w := httptest.NewRecorder()

	h.MarkDisplayed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["tweet_id"] != "1234567890" {
		t.Errorf("tweet_id = %v, want %q", result["tweet_id"], "1234567890")
	}
	if result["already_displayed"] != false {
		t.Errorf("already_displayed = %v, want false", result["already_displayed"])
	}
}

func TestTweetHandler_MarkDisplayed_AlreadyDisplayed_ReturnsOK(t *testing.T) {
	svc := &mockTweetService{
		markDisplayedFn: func(ctx context.Context, tweetID string) (bool, error) {
			return true, nil
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/1234567890/mark-displayed", nil)
	req = withChiURLParam(req, "tweet_id", "1234567890")
	w := httptest.NewRecorder()

	h.MarkDisplayed(w, req)

	resp := w.Result()

	// 冪等な操作なので2回目以降も200を返す
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["already_displayed"] != true {
		t.Errorf("already_displayed = %v, want true", result["already_displayed"])
	}
}

func TestTweetHandler_MarkDisplayed_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockTweetService{
		markDisplayedFn: func(ctx context.Context, tweetID string) (bool, error) {
			return false, model.NewTweetNotFoundError(tweetID)
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/nonexistent/mark-displayed", nil)
	req = withChiURLParam(req, "tweet_id", "nonexistent")
	w := httptest.NewRecorder()

	h.MarkDisplayed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeTweetNotFound {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeTweetNotFound)
	}
}

func TestTweetHandler_MarkDisplayed_InternalError_ReturnsInternalServerError(t *testing.T) {
	svc := &mockTweetService{
		markDisplayedFn: func(ctx context.Context, tweetID string) (bool, error) {
			return false, errors.New("database error")
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/1234567890/mark-displayed", nil)
	req = withChiURLParam(req, "tweet_id", "1234567890")
	w := httptest.NewRecorder()

	h.MarkDisplayed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// --- GET /api/tweets/stats テスト ---

func TestTweetHandler_GetStats_Success(t *testing.T) {
	svc := &mockTweetService{
		statsFn: func(ctx context.Context) (*model.Stats, error) {
			return &model.Stats{
				TotalTweets:     100,
				DisplayedTweets: 60,
				RemainingTweets: 40,
				ActiveHandles:   3,
			}, nil
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/stats", nil)
	w := httptest.NewRecorder()

	h.GetStats(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["total_tweets"] != float64(100) {
		t.Errorf("total_tweets = %v, want 100", result["total_tweets"])
	}
	if result["displayed_tweets"] != float64(60) {
		t.Errorf("displayed_tweets = %v, want 60", result["displayed_tweets"])
	}
	if result["remaining_tweets"] != float64(40) {
		t.Errorf("remaining_tweets = %v, want 40", result["remaining_tweets"])
	}
	if result["active_handles"] != float64(3) {
		t.Errorf("active_handles = %v, want 3", result["active_handles"])
	}
}

func TestTweetHandler_GetStats_InternalError_ReturnsInternalServerError(t *testing.T) {
	svc := &mockTweetService{
		statsFn: func(ctx context.Context) (*model.Stats, error) {
			return nil, errors.New("database error")
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/stats", nil)
	w := httptest.NewRecorder()

	h.GetStats(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// --- POST /api/tweets/refresh テスト ---

func TestTweetHandler_Refresh_Success(t *testing.T) {
	refreshCalled := false
	refresher := &mockRefreshService{
		runOnceFn: func(ctx context.Context) (*model.FetchStats, error) {
			refreshCalled = true
			return &model.FetchStats{
				Fetched:          20,
				New:              15,
				Skipped:          5,
				HandlesProcessed: 2,
			}, nil
		},
	}

	h := NewTweetHandler(&mockTweetService{}, refresher)

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if !refreshCalled {
		t.Error("expected RunOnce to be called")
	}

	var result struct {
		Message string `json:"message"`
		Stats   struct {
			Fetched          int `json:"fetched"`
			New              int `json:"new"`
			Skipped          int `json:"skipped"`
			HandlesProcessed int `json:"handles_processed"`
		} `json:"stats"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.Message != "リフレッシュが完了しました。" {
		t.Errorf("message = %q, want %q", result.Message, "リフレッシュが完了しました。")
	}
	if result.Stats.Fetched != 20 {
		t.Errorf("fetched = %d, want 20", result.Stats.Fetched)
	}
	if result.Stats.New != 15 {
		t.Errorf("new = %d, want 15", result.Stats.New)
	}
	if result.Stats.Skipped != 5 {
		t.Errorf("skipped = %d, want 5", result.Stats.Skipped)
	}
	if result.Stats.HandlesProcessed != 2 {
		t.Errorf("handles_processed = %d, want 2", result.Stats.HandlesProcessed)
	}
}

func TestTweetHandler_Refresh_TwitterAPIError_ReturnsBadGateway(t *testing.T) {
	refresher := &mockRefreshService{
		runOnceFn: func(ctx context.Context) (*model.FetchStats, error) {
			return nil, model.NewTwitterAPIFailedError("upstream returned 503")
		},
	}

	h := NewTweetHandler(&mockTweetService{}, refresher)

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeTwitterAPIFailed {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeTwitterAPIFailed)
	}
}

func TestTweetHandler_Refresh_InternalError_ReturnsInternalServerError(t *testing.T) {
	refresher := &mockRefreshService{
		runOnceFn: func(ctx context.Context) (*model.FetchStats, error) {
			return nil, errors.New("database error")
		},
	}

	h := NewTweetHandler(&mockTweetService{}, refresher)

	req := httptest.NewRequest(http.MethodPost, "/api/tweets/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// --- 統一エラーフォーマットのテスト ---

func TestTweetHandler_ErrorResponse_ContainsAllFields(t *testing.T) {
	svc := &mockTweetService{
		getNextFn: func(ctx context.Context) (*model.Tweet, error) {
			return nil, model.NewNoTweetsRemainingError()
		},
	}

	h := NewTweetHandler(svc, &mockRefreshService{})

	req := httptest.NewRequest(http.MethodGet, "/api/tweets/next", nil)
	w := httptest.NewRecorder()

	h.GetNext(w, req)

	errResp := parseAPIErrorResponse(t, w)

	// 統一エラーフォーマット（code, message, category, action）の4フィールドを検証
	requiredFields := []string{"code", "message", "category", "action"}
	for _, field := range requiredFields {
		if errResp[field] == "" {
			t.Errorf("expected non-empty %q field in error response", field)
		}
	}
}
