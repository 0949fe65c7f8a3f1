// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, handle, tweet, media, external, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeHandleNotFound    = "HANDLE_NOT_FOUND"
	ErrCodeDuplicateHandle   = "DUPLICATE_HANDLE"
	ErrCodeInvalidHandle     = "INVALID_HANDLE"
	ErrCodeTweetNotFound     = "TWEET_NOT_FOUND"
	ErrCodeNoTweetsRemaining = "NO_TWEETS_REMAINING"
	ErrCodeMediaNotFound     = "MEDIA_NOT_FOUND"
	ErrCodeMediaBlocked      = "MEDIA_BLOCKED"
	ErrCodeMediaFetchFailed  = "MEDIA_FETCH_FAILED"
	ErrCodeTwitterAPIFailed  = "TWITTER_API_FAILED"
)

// NewHandleNotFoundError はハンドル未検出エラーを生成する。
func NewHandleNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeHandleNotFound,
		Message:  fmt.Sprintf("指定されたハンドルが見つかりません: %s", id),
		Category: "handle",
		Action:   "ハンドルIDを確認してください。",
	}
}

// NewDuplicateHandleError は重複ハンドルエラーを生成する。
func NewDuplicateHandleError(handle string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateHandle,
		Message:  fmt.Sprintf("このハンドルは既に登録されています: %s", handle),
		Category: "handle",
		Action:   "登録済みハンドルの一覧を確認してください。",
	}
}

// NewInvalidHandleError は無効なハンドルエラーを生成する。
func NewInvalidHandleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHandle,
		Message:  fmt.Sprintf("無効なハンドルです: %s", reason),
		Category: "validation",
		Action:   "ハンドルは英数字とアンダースコアのみ、15文字以内で入力してください。",
	}
}

// NewTweetNotFoundError はツイート未検出エラーを生成する。
func NewTweetNotFoundError(tweetID string) *APIError {
	return &APIError{
		Code:     ErrCodeTweetNotFound,
		Message:  fmt.Sprintf("指定されたツイートが見つかりません: %s", tweetID),
		Category: "tweet",
		Action:   "ツイートIDを確認してください。",
	}
}

// NewNoTweetsRemainingError は未表示ツイートが存在しない場合のエラーを生成する。
func NewNoTweetsRemainingError() *APIError {
	return &APIError{
		Code:     ErrCodeNoTweetsRemaining,
		Message:  "表示可能なツイートが残っていません。",
		Category: "tweet",
		Action:   "リフレッシュを実行して新しいツイートを取得してください。",
	}
}

// NewMediaNotFoundError はメディア未検出エラーを生成する。
func NewMediaNotFoundError(tweetID string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaNotFound,
		Message:  fmt.Sprintf("このツイートにはメディアがありません: %s", tweetID),
		Category: "media",
		Action:   "メディア付きのツイートを指定してください。",
	}
}

// NewMediaBlockedError はメディア取得のセキュリティブロックエラーを生成する。
func NewMediaBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeMediaBlocked,
		Message:  "セキュリティポリシーにより、メディアURLへのアクセスがブロックされました。",
		Category: "media",
		Action:   "ローカルネットワークやプライベートIPを指すメディアは取得できません。",
	}
}

// NewMediaFetchFailedError はメディア取得失敗エラーを生成する。
func NewMediaFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMediaFetchFailed,
		Message:  fmt.Sprintf("メディアの取得に失敗しました: %s", reason),
		Category: "media",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTwitterAPIFailedError は外部ツイートAPIの呼び出し失敗エラーを生成する。
// このエラーはフェッチャーがモックフォールバックで回復するため、
// HTTPレスポンスとして外部に返されることはない。
func NewTwitterAPIFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeTwitterAPIFailed,
		Message:  fmt.Sprintf("外部ツイートAPIの呼び出しに失敗しました: %s", reason),
		Category: "external",
		Action:   "APIキーとレート制限を確認してください。",
	}
}
