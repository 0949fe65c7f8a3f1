package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

// PostgresTweetRepo はPostgreSQLを使用したツイートリポジトリ。
type PostgresTweetRepo struct {
	db *sql.DB
}

// NewPostgresTweetRepo はPostgresTweetRepoを生成する。
func NewPostgresTweetRepo(db *sql.DB) *PostgresTweetRepo {
	return &PostgresTweetRepo{db: db}
}

// FindByTweetID は外部ツイートIDでツイートを検索する。見つからない場合はnilを返す。
func (r *PostgresTweetRepo) FindByTweetID(ctx context.Context, tweetID string) (*model.Tweet, error) {
	tweet := &model.Tweet{}
	var createdAtTwitter sql.NullTime
	var displayedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tweet_id, text, author_handle, author_name, created_at_twitter,
		        media_url, tweet_url, is_displayed, displayed_at, fetched_at
		 FROM tweets WHERE tweet_id = $1`,
		tweetID,
	).Scan(
		&tweet.ID, &tweet.TweetID, &tweet.Text, &tweet.AuthorHandle, &tweet.AuthorName,
		&createdAtTwitter, &tweet.MediaURL, &tweet.TweetURL,
		&tweet.IsDisplayed, &displayedAt, &tweet.FetchedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ツイートの取得に失敗しました: %w", err)
	}

	if createdAtTwitter.Valid {
		tweet.CreatedAtTwitter = &createdAtTwitter.Time
	}
	if displayedAt.Valid {
		tweet.DisplayedAt = &displayedAt.Time
	}

	return tweet, nil
}

// FindNextUndisplayed は未表示ツイートのうち取得日時が最も古いものを返す。
// 同時刻の場合はidの昇順で決定的に選択する。見つからない場合はnilを返す。
func (r *PostgresTweetRepo) FindNextUndisplayed(ctx context.Context) (*model.Tweet, error) {
	tweet := &model.Tweet{}
	var createdAtTwitter sql.NullTime
	var displayedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tweet_id, text, author_handle, author_name, created_at_twitter,
		        media_url, tweet_url, is_displayed, displayed_at, fetched_at
		 FROM tweets WHERE is_displayed = FALSE
		 ORDER BY fetched_at ASC, id ASC
		 LIMIT 1`,
	).Scan(
		&tweet.ID, &tweet.TweetID, &tweet.Text, &tweet.AuthorHandle, &tweet.AuthorName,
		&createdAtTwitter, &tweet.MediaURL, &tweet.TweetURL,
		&tweet.IsDisplayed, &displayedAt, &tweet.FetchedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("次の未表示ツイートの取得に失敗しました: %w", err)
	}

	if createdAtTwitter.Valid {
		tweet.CreatedAtTwitter = &createdAtTwitter.Time
	}
	if displayedAt.Valid {
		tweet.DisplayedAt = &displayedAt.Time
	}

	return tweet, nil
}

// InsertIgnoreDuplicate はツイートを挿入する。
// 同じtweet_idが既に存在する場合はON CONFLICT DO NOTHINGで何もせずfalseを返す。
func (r *PostgresTweetRepo) InsertIgnoreDuplicate(ctx context.Context, tweet *model.Tweet) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO tweets (id, tweet_id, text, author_handle, author_name,
		                     created_at_twitter, media_url, tweet_url, is_displayed, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		 ON CONFLICT (tweet_id) DO NOTHING`,
		tweet.ID, tweet.TweetID, tweet.Text, tweet.AuthorHandle, tweet.AuthorName,
		tweet.CreatedAtTwitter, tweet.MediaURL, tweet.TweetURL, tweet.FetchedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ツイートの挿入に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkDisplayed はツイートを表示済みにし、表示履歴を記録する。
// UPDATEにis_displayed = FALSEのガードを付けることで、並行呼び出しでも
// 表示履歴がちょうど1件になることを保証する。この呼び出しで遷移が起きた
// 場合にtrueを返し、既に表示済みの場合は何もせずfalseを返す。
func (r *PostgresTweetRepo) MarkDisplayed(ctx context.Context, tweetID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE tweets SET is_displayed = TRUE, displayed_at = NOW()
		 WHERE tweet_id = $1 AND is_displayed = FALSE`,
		tweetID,
	)
	if err != nil {
		return false, fmt.Errorf("表示フラグの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}

	// false→trueの遷移時のみ表示履歴を記録する
	if rowsAffected > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO displayed_tweets (tweet_id) VALUES ($1)`,
			tweetID,
		); err != nil {
			return false, fmt.Errorf("表示履歴の記録に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// Stats はツイートとハンドルの集計値を返す。
// 単一ステートメントで実行するため、総数＝表示済み＋未表示が常に成り立つ。
func (r *PostgresTweetRepo) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM tweets),
		    (SELECT COUNT(*) FROM tweets WHERE is_displayed = TRUE),
		    (SELECT COUNT(*) FROM handles WHERE is_active = TRUE)`,
	).Scan(&stats.TotalTweets, &stats.DisplayedTweets, &stats.ActiveHandles)
	if err != nil {
		return nil, fmt.Errorf("集計値の取得に失敗しました: %w", err)
	}

	stats.RemainingTweets = stats.TotalTweets - stats.DisplayedTweets

	return stats, nil
}

// DeleteMockTweets はモック生成されたツイートを最大limit件削除し、削除件数を返す。
// LIKEパターンのアンダースコアはエスケープして、mock_ プレフィックスに限定する。
// DELETE自体はLIMITを取れないため、対象IDをサブクエリで絞り込む。
func (r *PostgresTweetRepo) DeleteMockTweets(ctx context.Context, limit int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tweets WHERE id IN (
		     SELECT id FROM tweets WHERE tweet_id LIKE 'mock\_%' ORDER BY id LIMIT $1
		 )`,
		limit,
	)
	if err != nil {
		return 0, fmt.Errorf("モックツイートの削除に失敗しました: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ TweetRepository = (*PostgresTweetRepo)(nil)
