// Package handle はハンドル登録・管理のドメインロジックを提供する。
package handle

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tweetkiosk/internal/model"
	"github.com/hitoshi/tweetkiosk/internal/repository"
)

// maxHandleLength はTwitterハンドルの最大文字数。
const maxHandleLength = 15

// handlePattern はハンドルに使用できる文字のパターン。
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Service はハンドル登録・管理のサービス層。
// 正規化 → 検証 → 重複チェック → 保存のフローを統括する。
type Service struct {
	handleRepo repository.HandleRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(handleRepo repository.HandleRepository) *Service {
	return &Service{handleRepo: handleRepo}
}

// List は登録済みの全ハンドルを作成日時順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Handle, error) {
	handles, err := s.handleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ハンドル一覧の取得に失敗しました: %w", err)
	}
	return handles, nil
}

// Register はハンドルを正規化・検証したうえで新規登録する。
// 同名のハンドルが既に存在する場合はDUPLICATE_HANDLEエラーを返す。
func (s *Service) Register(ctx context.Context, rawHandle string, isActive bool) (*model.Handle, error) {
	handle, err := normalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	existing, err := s.handleRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("ハンドルの重複チェックに失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateHandleError(handle)
	}

	now := time.Now()
	h := &model.Handle{
		ID:        uuid.New().String(),
		Handle:    handle,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.handleRepo.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("ハンドルの保存に失敗しました: %w", err)
	}

	slog.Info("ハンドルを登録", "handleID", h.ID, "handle", handle, "isActive", isActive)
	return h, nil
}

// Update はハンドル名と有効フラグを更新する。
// newHandle / isActive がnilの項目は変更しない。
// ハンドル名の変更先が他のレコードと衝突する場合はDUPLICATE_HANDLEエラーを返す。
func (s *Service) Update(ctx context.Context, id string, newHandle *string, isActive *bool) (*model.Handle, error) {
	h, err := s.handleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ハンドルの取得に失敗しました: %w", err)
	}
	if h == nil {
		return nil, model.NewHandleNotFoundError(id)
	}

	if newHandle != nil {
		normalized, err := normalizeHandle(*newHandle)
		if err != nil {
			return nil, err
		}
		if normalized != h.Handle {
			existing, err := s.handleRepo.FindByHandle(ctx, normalized)
			if err != nil {
				return nil, fmt.Errorf("ハンドルの重複チェックに失敗しました: %w", err)
			}
			if existing != nil {
				return nil, model.NewDuplicateHandleError(normalized)
			}
		}
		h.Handle = normalized
	}
	if isActive != nil {
		h.IsActive = *isActive
	}

	if err := s.handleRepo.Update(ctx, h); err != nil {
		return nil, fmt.Errorf("ハンドルの更新に失敗しました: %w", err)
	}

	// updated_atはDB側で設定されるため再取得して返す
	updated, err := s.handleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("更新後のハンドル取得に失敗しました: %w", err)
	}
	return updated, nil
}

// Toggle はハンドルの有効フラグを反転する。
func (s *Service) Toggle(ctx context.Context, id string) (*model.Handle, error) {
	h, err := s.handleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ハンドルの取得に失敗しました: %w", err)
	}
	if h == nil {
		return nil, model.NewHandleNotFoundError(id)
	}

	if err := s.handleRepo.SetActive(ctx, id, !h.IsActive); err != nil {
		return nil, fmt.Errorf("有効フラグの更新に失敗しました: %w", err)
	}

	updated, err := s.handleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("更新後のハンドル取得に失敗しました: %w", err)
	}

	slog.Info("ハンドルの有効フラグを切り替え", "handleID", id, "isActive", updated.IsActive)
	return updated, nil
}

// Delete はハンドルと、そのハンドルが投稿者である全ツイートを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	h, err := s.handleRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ハンドルの取得に失敗しました: %w", err)
	}
	if h == nil {
		return model.NewHandleNotFoundError(id)
	}

	tweetsDeleted, err := s.handleRepo.DeleteWithTweets(ctx, id)
	if err != nil {
		return fmt.Errorf("ハンドルの削除に失敗しました: %w", err)
	}

	slog.Info("ハンドルを削除", "handleID", id, "handle", h.Handle, "tweetsDeleted", tweetsDeleted)
	return nil
}

// normalizeHandle は入力を正規化し、ハンドルとして妥当か検証する。
// 前後の空白と先頭の@を取り除いたうえで、空文字・文字数超過・
// 使用不可文字をINVALID_HANDLEエラーとして弾く。
func normalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")

	if h == "" {
		return "", model.NewInvalidHandleError("ハンドルが空です")
	}
	if len(h) > maxHandleLength {
		return "", model.NewInvalidHandleError(fmt.Sprintf("ハンドルは%d文字以内で指定してください", maxHandleLength))
	}
	if !handlePattern.MatchString(h) {
		return "", model.NewInvalidHandleError("ハンドルに使用できるのは英数字とアンダースコアのみです")
	}
	return h, nil
}
