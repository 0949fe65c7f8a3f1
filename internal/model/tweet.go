// Package model はドメインモデルを定義する。
package model

import "time"

// Tweet は取得済みツイートを表す。
// TweetIDは外部API上のツイートID（またはモックID）で、ストア全体で一意。
// IsDisplayedはfalse→trueの一方向にのみ遷移する。
type Tweet struct {
	ID               string
	TweetID          string
	Text             string // サニタイズ済み
	AuthorHandle     string
	AuthorName       string
	CreatedAtTwitter *time.Time
	MediaURL         string
	TweetURL         string
	IsDisplayed      bool
	DisplayedAt      *time.Time
	FetchedAt        time.Time
}

// DisplayedTweet は表示履歴の監査レコードを表す。
// ツイートが初めて表示済みになった時点で1件だけ作成される。
type DisplayedTweet struct {
	ID          string
	TweetID     string // tweets.tweet_id（外部ID）への参照
	DisplayedAt time.Time
}

// FetchedTweet は外部APIまたはモック生成から取得した未保存のツイートデータを表す。
// フェッチャーがサニタイズと挿入を行う前の中間表現。
type FetchedTweet struct {
	TweetID          string
	Text             string // 未サニタイズ
	AuthorHandle     string
	AuthorName       string
	CreatedAtTwitter *time.Time
	MediaURL         string
	TweetURL         string
}

// FetchStats はリフレッシュ1回分の取り込み結果を表す。
type FetchStats struct {
	Fetched          int // 取得したツイート総数（重複含む）
	New              int // 新規挿入されたツイート数
	Skipped          int // 外部ID重複によりスキップされたツイート数
	HandlesProcessed int // 処理したアクティブハンドル数
}

// Stats はストア全体の集計値を表す。
// TotalTweets == DisplayedTweets + RemainingTweets が常に成り立つ。
type Stats struct {
	TotalTweets     int
	DisplayedTweets int
	RemainingTweets int
	ActiveHandles   int
}
