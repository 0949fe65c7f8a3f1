package twitter

import (
	"fmt"
	"math/rand"
	"time"
	"unicode"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

// mockTexts はモックツイートの定型文。順番に使い回す。
var mockTexts = []string{
	"Just shipped a major update to our platform! 🚀 Excited to see what you all build with it.",
	"Thinking about the future of AI and how it will transform software development.",
	"Coffee + Code = Productivity ☕💻 #DevLife",
	"Pro tip: Always write tests before you think you need them. Future you will thank present you.",
	"The best code is no code at all. Sometimes the solution is simpler than you think.",
	"Debugging is like being a detective in a crime movie where you're also the murderer.",
	"Just discovered an amazing new library that solves a problem I've been wrestling with for weeks!",
	"Remember: premature optimization is the root of all evil. Make it work, then make it fast.",
	"Collaboration > Competition. The best projects come from teams that support each other.",
	"Taking a break from coding to recharge. Sometimes the best solutions come when you step away.",
	"Open source is amazing. Shoutout to all the maintainers who make our lives easier! 🙏",
	"Learning a new programming language is like learning to think in a different way.",
	"Code review isn't about finding mistakes, it's about sharing knowledge and improving together.",
	"The documentation you write today saves hours of confusion tomorrow.",
	"Refactoring old code and finding comments from past me. It's like time travel! 😄",
}

// GenerateMockTweets はハンドルのモックツイートをcount件生成する。
// APIキーなしでの開発と、外部API障害時のフォールバックに使用する。
// ツイートIDは mock_{handle}_{unix秒}_{連番}_{乱数4桁} の形式で、
// 実ツイートと衝突せず、cleanmockでプレフィックス一括削除できる。
// 作成日時は2時間ずつ過去に遡り、分単位の揺らぎを加える。
func GenerateMockTweets(handle string, count int) []model.FetchedTweet {
	baseTime := time.Now()
	authorName := TitleCase(handle)

	tweets := make([]model.FetchedTweet, 0, count)
	for i := 0; i < count; i++ {
		tweetID := fmt.Sprintf("mock_%s_%d_%d_%d",
			handle, baseTime.Unix(), i, 1000+rand.Intn(9000))
		createdAt := baseTime.
			Add(-time.Duration(i*2) * time.Hour).
			Add(-time.Duration(rand.Intn(60)) * time.Minute)

		tweets = append(tweets, model.FetchedTweet{
			TweetID:          tweetID,
			Text:             mockTexts[i%len(mockTexts)],
			AuthorHandle:     handle,
			AuthorName:       authorName,
			CreatedAtTwitter: &createdAt,
			TweetURL:         fmt.Sprintf("https://twitter.com/%s/status/%s", handle, tweetID),
		})
	}

	return tweets
}

// TitleCase はハンドル名を表示名向けに変換する（nasa → Nasa, space_x → Space_X）。
// 単語の先頭文字を大文字化し、それ以外を小文字化する。
func TitleCase(handle string) string {
	runes := []rune(handle)
	prevIsLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if prevIsLetter {
				runes[i] = unicode.ToLower(r)
			} else {
				runes[i] = unicode.ToUpper(r)
			}
			prevIsLetter = true
		} else {
			prevIsLetter = false
		}
	}
	return string(runes)
}
