package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tweetkiosk/internal/model"
)

// PostgresHandleRepo はPostgreSQLを使用したハンドルリポジトリ。
type PostgresHandleRepo struct {
	db *sql.DB
}

// NewPostgresHandleRepo はPostgresHandleRepoを生成する。
func NewPostgresHandleRepo(db *sql.DB) *PostgresHandleRepo {
	return &PostgresHandleRepo{db: db}
}

// FindByID は指定IDのハンドルを取得する。見つからない場合はnilを返す。
func (r *PostgresHandleRepo) FindByID(ctx context.Context, id string) (*model.Handle, error) {
	h := &model.Handle{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, handle, is_active, created_at, updated_at FROM handles WHERE id = $1`,
		id,
	).Scan(&h.ID, &h.Handle, &h.IsActive, &h.CreatedAt, &h.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ハンドルの取得に失敗しました: %w", err)
	}

	return h, nil
}

// FindByHandle はハンドル名でハンドルを検索する。見つからない場合はnilを返す。
func (r *PostgresHandleRepo) FindByHandle(ctx context.Context, handle string) (*model.Handle, error) {
	h := &model.Handle{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, handle, is_active, created_at, updated_at FROM handles WHERE handle = $1`,
		handle,
	).Scan(&h.ID, &h.Handle, &h.IsActive, &h.CreatedAt, &h.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ハンドル名によるハンドルの検索に失敗しました: %w", err)
	}

	return h, nil
}

// List は全ハンドルを登録順に返す。
func (r *PostgresHandleRepo) List(ctx context.Context) ([]*model.Handle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, handle, is_active, created_at, updated_at FROM handles ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ハンドル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var handles []*model.Handle
	for rows.Next() {
		h := &model.Handle{}
		if err := rows.Scan(&h.ID, &h.Handle, &h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ハンドル行の読み取りに失敗しました: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ハンドル一覧の走査に失敗しました: %w", err)
	}
	return handles, nil
}

// ListActive はアクティブなハンドルのみを登録順に返す。
func (r *PostgresHandleRepo) ListActive(ctx context.Context) ([]*model.Handle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, handle, is_active, created_at, updated_at FROM handles
		 WHERE is_active = TRUE ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブハンドル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var handles []*model.Handle
	for rows.Next() {
		h := &model.Handle{}
		if err := rows.Scan(&h.ID, &h.Handle, &h.IsActive, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("アクティブハンドル行の読み取りに失敗しました: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アクティブハンドル一覧の走査に失敗しました: %w", err)
	}
	return handles, nil
}

// Create はハンドルを作成する。
func (r *PostgresHandleRepo) Create(ctx context.Context, handle *model.Handle) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO handles (id, handle, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		handle.ID, handle.Handle, handle.IsActive, handle.CreatedAt, handle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ハンドルの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はハンドル名とアクティブ状態を更新する。
func (r *PostgresHandleRepo) Update(ctx context.Context, handle *model.Handle) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE handles SET handle = $2, is_active = $3, updated_at = NOW() WHERE id = $1`,
		handle.ID, handle.Handle, handle.IsActive,
	)
	if err != nil {
		return fmt.Errorf("ハンドルの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ハンドルが見つかりません: %s", handle.ID)
	}
	return nil
}

// SetActive はハンドルのアクティブ状態を更新する。
func (r *PostgresHandleRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE handles SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("アクティブ状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ハンドルが見つかりません: %s", id)
	}
	return nil
}

// DeleteWithTweets はハンドルとそのハンドルの全ツイートを同一トランザクションで削除する。
// tweetsは作者ハンドル名で紐付くため明示的に削除し、displayed_tweetsはCASCADEに任せる。
func (r *PostgresHandleRepo) DeleteWithTweets(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var handle string
	err = tx.QueryRowContext(ctx,
		`SELECT handle FROM handles WHERE id = $1`,
		id,
	).Scan(&handle)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("ハンドルが見つかりません: %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("削除対象ハンドルの取得に失敗しました: %w", err)
	}

	// このハンドルが作者のツイートを削除（他ハンドルのツイートには影響しない）
	result, err := tx.ExecContext(ctx,
		`DELETE FROM tweets WHERE author_handle = $1`,
		handle,
	)
	if err != nil {
		return 0, fmt.Errorf("ハンドルのツイート削除に失敗しました: %w", err)
	}
	tweetsDeleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM handles WHERE id = $1`,
		id,
	); err != nil {
		return 0, fmt.Errorf("ハンドルの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return tweetsDeleted, nil
}

// compile-time interface check
var _ HandleRepository = (*PostgresHandleRepo)(nil)
