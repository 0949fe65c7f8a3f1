// Package twitter は外部ツイートAPI（RapidAPI twitter241）との連携機能を提供する。
// ユーザー検索、タイムライン取得、およびモックツイートの生成を含む。
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

const (
	// createdAtLayout は外部APIのcreated_at形式。
	// 例: "Wed Oct 10 20:19:24 +0000 2018"
	createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"
	// maxTweetsPerRequest は1リクエストあたりの最大取得件数（API側の上限）。
	maxTweetsPerRequest = 40
)

// User は外部APIのユーザー検索結果。
type User struct {
	RestID string // API内部の数値ユーザーID
	Name   string // 表示名
}

// Client は外部ツイートAPIのクライアント。
// RapidAPI経由でユーザー検索とタイムライン取得を行う。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	apiHost    string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, apiHost string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		apiHost:    apiHost,
		baseURL:    "https://" + apiHost,
	}
}

// userResponse は /user エンドポイントのレスポンス構造。
type userResponse struct {
	Result struct {
		Data struct {
			User struct {
				Result struct {
					RestID string `json:"rest_id"`
					Legacy struct {
						Name string `json:"name"`
					} `json:"legacy"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	} `json:"result"`
}

// timelineResponse は /user-tweets エンドポイントのレスポンス構造。
type timelineResponse struct {
	Result struct {
		Timeline struct {
			Instructions []timelineInstruction `json:"instructions"`
		} `json:"timeline"`
	} `json:"result"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
}

type timelineEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		ItemContent struct {
			TweetResults struct {
				Result tweetResult `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
	} `json:"content"`
}

type tweetResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Legacy   struct {
		IDStr     string `json:"id_str"`
		FullText  string `json:"full_text"`
		CreatedAt string `json:"created_at"`
		Entities  struct {
			Media []struct {
				MediaURLHTTPS string `json:"media_url_https"`
			} `json:"media"`
		} `json:"entities"`
	} `json:"legacy"`
}

// LookupUser はハンドル名からユーザー情報を取得する。
// ユーザーが存在しない場合もエラーを返す（呼び出し元がフォールバックを判断する）。
func (c *Client) LookupUser(ctx context.Context, handle string) (*User, error) {
	body, err := c.get(ctx, "/user", url.Values{"username": {handle}})
	if err != nil {
		return nil, err
	}

	var decoded userResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("ユーザーレスポンスのパースに失敗: %v", err))
	}

	result := decoded.Result.Data.User.Result
	if result.RestID == "" {
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("ユーザーが存在しません: @%s", handle))
	}

	name := result.Legacy.Name
	if name == "" {
		name = TitleCase(handle)
	}

	return &User{RestID: result.RestID, Name: name}, nil
}

// UserTweets は数値ユーザーIDからタイムラインのツイートを取得する。
// リツイート（RT @ プレフィックス）は除外し、最大countの通常ツイートを返す。
// 作者情報とツイートURLはFetchTweetsで補完されるため、ここでは設定しない。
func (c *Client) UserTweets(ctx context.Context, restID string, count int) ([]model.FetchedTweet, error) {
	if count > maxTweetsPerRequest {
		count = maxTweetsPerRequest
	}

	body, err := c.get(ctx, "/user-tweets", url.Values{
		"user":  {restID},
		"count": {strconv.Itoa(count)},
	})
	if err != nil {
		return nil, err
	}

	var decoded timelineResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("タイムラインレスポンスのパースに失敗: %v", err))
	}

	var tweets []model.FetchedTweet
	for _, instruction := range decoded.Result.Timeline.Instructions {
		if instruction.Type != "TimelineAddEntries" {
			continue
		}
		for _, entry := range instruction.Entries {
			// プロモーションやカーソルのエントリはentryIdで除外する
			if !strings.Contains(entry.EntryID, "tweet-") {
				continue
			}
			result := entry.Content.ItemContent.TweetResults.Result
			if result.TypeName != "Tweet" {
				continue
			}

			tweetID := result.Legacy.IDStr
			if tweetID == "" {
				tweetID = result.RestID
			}
			if tweetID == "" {
				continue
			}

			text := result.Legacy.FullText
			if strings.HasPrefix(text, "RT @") {
				continue
			}

			tweet := model.FetchedTweet{
				TweetID: tweetID,
				Text:    text,
			}

			// created_atがパースできなくてもツイート自体は保持する
			if parsed, err := time.Parse(createdAtLayout, result.Legacy.CreatedAt); err == nil {
				tweet.CreatedAtTwitter = &parsed
			}

			if media := result.Legacy.Entities.Media; len(media) > 0 {
				tweet.MediaURL = media[0].MediaURLHTTPS
			}

			tweets = append(tweets, tweet)
			if len(tweets) >= count {
				return tweets, nil
			}
		}
	}

	return tweets, nil
}

// FetchTweets はハンドル名からツイートを取得する。
// ユーザー検索とタイムライン取得を合成し、作者情報とツイートURLを補完する。
func (c *Client) FetchTweets(ctx context.Context, handle string, count int) ([]model.FetchedTweet, error) {
	user, err := c.LookupUser(ctx, handle)
	if err != nil {
		return nil, err
	}

	tweets, err := c.UserTweets(ctx, user.RestID, count)
	if err != nil {
		return nil, err
	}

	for i := range tweets {
		tweets[i].AuthorHandle = handle
		tweets[i].AuthorName = user.Name
		tweets[i].TweetURL = fmt.Sprintf("https://twitter.com/%s/status/%s", handle, tweets[i].TweetID)
	}

	c.logger.Info("外部APIからツイートを取得しました",
		slog.String("handle", handle),
		slog.Int("count", len(tweets)),
	)

	return tweets, nil
}

// get はRapidAPIの認証ヘッダー付きでGETリクエストを実行し、レスポンスボディを返す。
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("エンドポイントURLのパースに失敗: %v", err))
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("HTTPリクエストの作成に失敗: %v", err))
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("外部ツイートAPIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("外部ツイートAPIのレート制限に達しました",
			slog.String("path", path),
		)
		return nil, model.NewTwitterAPIFailedError("レート制限に達しました")
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("外部ツイートAPIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("ステータス %d が返されました", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewTwitterAPIFailedError(fmt.Sprintf("レスポンスボディの読み取りに失敗: %v", err))
	}

	return body, nil
}
