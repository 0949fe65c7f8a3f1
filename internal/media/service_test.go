package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

// --- モック ---

// mockGuard はテスト用のGuardモック。
type mockGuard struct {
	blockAll bool
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

type mockTweetRepo struct {
	findByTweetIDFn func(ctx context.Context, tweetID string) (*model.Tweet, error)
}

func (m *mockTweetRepo) FindByTweetID(ctx context.Context, tweetID string) (*model.Tweet, error) {
	return m.findByTweetIDFn(ctx, tweetID)
}
func (m *mockTweetRepo) FindNextUndisplayed(ctx context.Context) (*model.Tweet, error) {
	return nil, nil
}
func (m *mockTweetRepo) InsertIgnoreDuplicate(ctx context.Context, tweet *model.Tweet) (bool, error) {
	return false, nil
}
func (m *mockTweetRepo) MarkDisplayed(ctx context.Context, tweetID string) (bool, error) {
	return false, nil
}
func (m *mockTweetRepo) Stats(ctx context.Context) (*model.Stats, error) {
	return nil, nil
}
func (m *mockTweetRepo) DeleteMockTweets(ctx context.Context, limit int) (int64, error) {
	return 0, nil
}

// assertMediaErrorCode はAPIErrorのコードを検証するヘルパー。
func assertMediaErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("APIError型が期待されるが、%T が返された", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}

// --- テスト ---

// TestService_FetchForTweet_Success は添付画像の代理取得を検証する。
func TestService_FetchForTweet_Success(t *testing.T) {
	jpegData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegData)
	}))
	defer server.Close()

	repo := &mockTweetRepo{
		findByTweetIDFn: func(ctx context.Context, tweetID string) (*model.Tweet, error) {
			return &model.Tweet{
				TweetID:  tweetID,
				MediaURL: server.URL + "/media/img.jpg",
			}, nil
		},
	}
	svc := NewService(repo, &mockGuard{}, 5*1024*1024)

	data, mimeType, err := svc.FetchForTweet(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("FetchForTweet returned error: %v", err)
	}
	if !bytes.Equal(data, jpegData) {
		t.Error("returned data does not match served image")
	}
	if mimeType != "image/jpeg" {
		t.Errorf("mimeType = %q, want %q", mimeType, "image/jpeg")
	}
}

// TestService_FetchForTweet_TweetNotFound は存在しないツイートの画像要求を検証する。
func TestService_FetchForTweet_TweetNotFound(t *testing.T) {
	repo := &mockTweetRepo{
		findByTweetIDFn: func(ctx context.Context, tweetID string) (*model.Tweet, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, &mockGuard{}, 5*1024*1024)

	_, _, err := svc.FetchForTweet(context.Background(), "missing-id")
	assertMediaErrorCode(t, err, model.ErrCodeTweetNotFound)
}

// TestService_FetchForTweet_NoMedia は添付画像のないツイートの画像要求を検証する。
func TestService_FetchForTweet_NoMedia(t *testing.T) {
	repo := &mockTweetRepo{
		findByTweetIDFn: func(ctx context.Context, tweetID string) (*model.Tweet, error) {
			return &model.Tweet{TweetID: tweetID, MediaURL: ""}, nil
		},
	}
	svc := NewService(repo, &mockGuard{}, 5*1024*1024)

	_, _, err := svc.FetchForTweet(context.Background(), "1234567890")
	assertMediaErrorCode(t, err, model.ErrCodeMediaNotFound)
}

// TestService_Fetch_Blocked は内部アドレスへの取得がブロックされることを検証する。
func TestService_Fetch_Blocked(t *testing.T) {
	repo := &mockTweetRepo{
		findByTweetIDFn: func(ctx context.Context, tweetID string) (*model.Tweet, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, &mockGuard{blockAll: true}, 5*1024*1024)

	_, _, err := svc.Fetch(context.Background(), "http://169.254.169.254/latest/meta-data/")
	assertMediaErrorCode(t, err, model.ErrCodeMediaBlocked)
}

// TestService_Fetch_UpstreamError は配信元のエラーステータスを検証する。
func TestService_Fetch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := &mockTweetRepo{}
	svc := NewService(repo, &mockGuard{}, 5*1024*1024)

	_, _, err := svc.Fetch(context.Background(), server.URL+"/img.jpg")
	assertMediaErrorCode(t, err, model.ErrCodeMediaFetchFailed)
}

// TestService_Fetch_ConnectionError は配信元に到達できない場合を検証する。
func TestService_Fetch_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	repo := &mockTweetRepo{}
	svc := NewService(repo, &mockGuard{}, 5*1024*1024)

	_, _, err := svc.Fetch(context.Background(), serverURL+"/img.jpg")
	assertMediaErrorCode(t, err, model.ErrCodeMediaFetchFailed)
}

// TestService_Fetch_SizeExceeded はサイズ上限超過の画像が拒否されることを検証する。
func TestService_Fetch_SizeExceeded(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(big)
	}))
	defer server.Close()

	repo := &mockTweetRepo{}
	svc := NewService(repo, &mockGuard{}, 512)

	_, _, err := svc.Fetch(context.Background(), server.URL+"/img.png")
	assertMediaErrorCode(t, err, model.ErrCodeMediaFetchFailed)
}

// TestService_Fetch_ExactSizeLimit は上限ちょうどのサイズが受理されることを検証する。
func TestService_Fetch_ExactSizeLimit(t *testing.T) {
	data := bytes.Repeat([]byte{0xCD}, 512)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	repo := &mockTweetRepo{}
	svc := NewService(repo, &mockGuard{}, 512)

	got, _, err := svc.Fetch(context.Background(), server.URL+"/img.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(got) != 512 {
		t.Errorf("data length = %d, want 512", len(got))
	}
}

// TestService_Fetch_NonImageContentType は画像以外のContent-Typeが拒否されることを検証する。
func TestService_Fetch_NonImageContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{"HTML", "text/html"},
		{"JSON", "application/json"},
		{"SVG", "image/svg+xml"},
		{"空", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					// Goの自動判定を避けるため明示的に空にする
					w.Header()["Content-Type"] = nil
				}
				w.Write([]byte("<html>not an image</html>"))
			}))
			defer server.Close()

			repo := &mockTweetRepo{}
			svc := NewService(repo, &mockGuard{}, 5*1024*1024)

			_, _, err := svc.Fetch(context.Background(), server.URL+"/img")
			assertMediaErrorCode(t, err, model.ErrCodeMediaFetchFailed)
		})
	}
}

// TestService_Fetch_ContentTypeWithCharset はcharset付きContent-Typeの解釈を検証する。
func TestService_Fetch_ContentTypeWithCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/PNG; charset=utf-8")
		w.Write([]byte{0x89, 0x50, 0x4E, 0x47})
	}))
	defer server.Close()

	repo := &mockTweetRepo{}
	svc := NewService(repo, &mockGuard{}, 5*1024*1024)

	_, mimeType, err := svc.Fetch(context.Background(), server.URL+"/img.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("mimeType = %q, want %q", mimeType, "image/png")
	}
}

// TestExtractMimeType はContent-Typeヘッダーの解釈を検証する。
func TestExtractMimeType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"image/png", "image/png"},
		{"image/JPEG; charset=utf-8", "image/jpeg"},
		{" image/gif ", "image/gif"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := extractMimeType(tt.input); got != tt.want {
			t.Errorf("extractMimeType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
