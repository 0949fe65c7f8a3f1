// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

// HandleRepository はハンドルデータの永続化インターフェース。
type HandleRepository interface {
	// FindByID は指定IDのハンドルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Handle, error)

	// FindByHandle はハンドル名でハンドルを検索する。見つからない場合はnilを返す。
	// 比較は保存された文字列との完全一致（大文字小文字を区別する）。
	FindByHandle(ctx context.Context, handle string) (*model.Handle, error)

	// List は全ハンドルを登録順に返す。
	List(ctx context.Context) ([]*model.Handle, error)

	// ListActive はアクティブなハンドルのみを登録順に返す。
	// リフレッシュの取得対象を決定するために使用する。
	ListActive(ctx context.Context) ([]*model.Handle, error)

	// Create はハンドルを作成する。
	Create(ctx context.Context, handle *model.Handle) error

	// Update はハンドル名とアクティブ状態を更新する。
	Update(ctx context.Context, handle *model.Handle) error

	// SetActive はハンドルのアクティブ状態を更新する。
	SetActive(ctx context.Context, id string, active bool) error

	// DeleteWithTweets はハンドルと、そのハンドルが作者である全ツイートを
	// 同一トランザクションで削除する。削除したツイート数を返す。
	// 表示履歴（displayed_tweets）はツイート削除にCASCADEする。
	DeleteWithTweets(ctx context.Context, id string) (int64, error)
}

// TweetRepository はツイートデータの永続化インターフェース。
// 外部ツイートID（tweet_id）による一意性と、表示フラグの単調遷移を保証する。
type TweetRepository interface {
	// FindByTweetID は外部ツイートIDでツイートを検索する。見つからない場合はnilを返す。
	FindByTweetID(ctx context.Context, tweetID string) (*model.Tweet, error)

	// FindNextUndisplayed は未表示ツイートのうち取得日時が最も古いものを返す。
	// 同時刻の場合はidの昇順で決定的に選択する。見つからない場合はnilを返す。
	FindNextUndisplayed(ctx context.Context) (*model.Tweet, error)

	// InsertIgnoreDuplicate はツイートを挿入する。
	// 同じtweet_idが既に存在する場合は何もせずfalseを返す（エラーにしない）。
	// 並行リフレッシュによる重複挿入はデータベースの一意制約で吸収される。
	InsertIgnoreDuplicate(ctx context.Context, tweet *model.Tweet) (bool, error)

	// MarkDisplayed はツイートを表示済みにし、表示履歴を記録する。
	// この呼び出しでfalse→trueの遷移が起きた場合にtrueを返す。
	// 既に表示済みの場合は何も変更せずfalseを返す（冪等）。
	// 表示履歴は遷移時に1件だけ作成される。
	MarkDisplayed(ctx context.Context, tweetID string) (bool, error)

	// Stats はツイートとハンドルの集計値を単一クエリで返す。
	// 単一ステートメントで実行するため、総数＝表示済み＋未表示が常に成り立つ。
	Stats(ctx context.Context) (*model.Stats, error)

	// DeleteMockTweets はモック生成されたツイート（tweet_idが mock_ で始まるもの）を
	// 最大limit件削除し、削除件数を返す。表示履歴はCASCADE削除される。
	// 呼び出し側は削除件数がlimitを下回るまで繰り返す。
	DeleteMockTweets(ctx context.Context, limit int) (int64, error)
}
