package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tweetkiosk/internal/middleware"
	"github.com/hitoshi/tweetkiosk/internal/model"
)

// HandleServiceInterface はハンドル管理ハンドラーが必要とするサービスインターフェース。
type HandleServiceInterface interface {
	// List は登録済みハンドルを全件返す。
	List(ctx context.Context) ([]*model.Handle, error)
	// Register は新しいハンドルを登録する。
	Register(ctx context.Context, rawHandle string, isActive bool) (*model.Handle, error)
	// Update はハンドル名またはアクティブ状態を更新する。
	Update(ctx context.Context, id string, newHandle *string, isActive *bool) (*model.Handle, error)
	// Toggle はアクティブ状態を反転する。
	Toggle(ctx context.Context, id string) (*model.Handle, error)
	// Delete はハンドルと関連ツイートを削除する。
	Delete(ctx context.Context, id string) error
}

// HandleHandler はフェッチ対象ハンドル管理のHTTPハンドラー。
type HandleHandler struct {
	service HandleServiceInterface
}

// NewHandleHandler はHandleHandlerを生成する。
func NewHandleHandler(service HandleServiceInterface) *HandleHandler {
	return &HandleHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// registerHandleRequest はハンドル登録のリクエストボディ。
type registerHandleRequest struct {
	Handle   string `json:"handle"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// updateHandleRequest はハンドル更新のリクエストボディ。
type updateHandleRequest struct {
	Handle   *string `json:"handle,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// handleResponse はハンドル情報のAPIレスポンス。
type handleResponse struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List は登録済みハンドルの一覧を返す。
// GET /api/handles
func (h *HandleHandler) List(w http.ResponseWriter, r *http.Request) {
	handles, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	response := make([]handleResponse, len(handles))
	for i, handle := range handles {
		response[i] = toHandleResponse(handle)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Register は新しいハンドルを登録する。is_activeを省略した場合はアクティブで登録する。
// POST /api/handles
func (h *HandleHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerHandleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	handle, err := h.service.Register(r.Context(), req.Handle, isActive)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toHandleResponse(handle))
}

// Update はハンドル名またはアクティブ状態を更新する。
// PUT /api/handles/:id
func (h *HandleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateHandleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.Handle == nil && req.IsActive == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "更新する項目が指定されていません。",
			Category: "validation",
			Action:   "handleまたはis_activeのいずれかを指定してください。",
		})
		return
	}

	handle, err := h.service.Update(r.Context(), id, req.Handle, req.IsActive)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toHandleResponse(handle))
}

// Toggle はハンドルのアクティブ状態を反転する。
// PATCH /api/handles/:id/toggle
func (h *HandleHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	handle, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toHandleResponse(handle))
}

// Delete はハンドルと関連ツイートを削除する。
// DELETE /api/handles/:id
func (h *HandleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toHandleResponse はmodel.HandleからAPIレスポンスに変換する。
func toHandleResponse(handle *model.Handle) handleResponse {
	return handleResponse{
		ID:        handle.ID,
		Handle:    handle.Handle,
		IsActive:  handle.IsActive,
		CreatedAt: handle.CreatedAt,
		UpdatedAt: handle.UpdatedAt,
	}
}
