package repository

import (
	"testing"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

// PostgresTweetRepoはTweetRepositoryインターフェースを満たすことを検証
func TestPostgresTweetRepo_ImplementsInterface(t *testing.T) {
	var _ TweetRepository = (*PostgresTweetRepo)(nil)
}

// NewPostgresTweetRepoが正しく初期化されることを検証
func TestNewPostgresTweetRepo_Initializes(t *testing.T) {
	repo := NewPostgresTweetRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 集計値の不変条件（総数＝表示済み＋未表示）がRemainingTweetsの導出で成り立つことを検証
func TestStats_RemainingInvariant(t *testing.T) {
	stats := &model.Stats{
		TotalTweets:     10,
		DisplayedTweets: 3,
	}
	stats.RemainingTweets = stats.TotalTweets - stats.DisplayedTweets

	if stats.TotalTweets != stats.DisplayedTweets+stats.RemainingTweets {
		t.Errorf("集計値の不変条件が破れています: total=%d displayed=%d remaining=%d",
			stats.TotalTweets, stats.DisplayedTweets, stats.RemainingTweets)
	}
}

// 未挿入ツイートのIsDisplayedがfalseであることを検証
func TestTweetModel_NewTweetIsUndisplayed(t *testing.T) {
	tweet := &model.Tweet{
		TweetID:      "1234567890",
		Text:         "hello",
		AuthorHandle: "nasa",
	}
	if tweet.IsDisplayed {
		t.Error("expected new tweet to be undisplayed")
	}
	if tweet.DisplayedAt != nil {
		t.Error("expected nil DisplayedAt for new tweet")
	}
}
