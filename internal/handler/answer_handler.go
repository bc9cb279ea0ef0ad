package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/qaboard/internal/middleware"
	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/validation"
)

// AnswerServiceInterface は回答ハンドラーが必要とするサービスインターフェース。
type AnswerServiceInterface interface {
	Create(ctx context.Context, memberID, questionID string, form validation.AnswerForm) (*model.Answer, error)
	Get(ctx context.Context, id string) (*model.Answer, error)
	Modify(ctx context.Context, memberID, id string, form validation.AnswerForm) (*model.Answer, error)
	Delete(ctx context.Context, memberID, id string) error
}

// VoteStatusReader は閲覧者の投票状態を返すインターフェース。
type VoteStatusReader interface {
	HasVoted(ctx context.Context, target model.VoteTarget, memberID string) (bool, error)
}

// AnswerHandler は回答のHTTPハンドラー。
type AnswerHandler struct {
	service  AnswerServiceInterface
	votes    VoteStatusReader
	renderer ContentRenderer
}

// NewAnswerHandler はAnswerHandlerを生成する。
func NewAnswerHandler(service AnswerServiceInterface, votes VoteStatusReader, renderer ContentRenderer) *AnswerHandler {
	return &AnswerHandler{
		service:  service,
		votes:    votes,
		renderer: renderer,
	}
}

// answerResponse は回答のAPIレスポンス。
type answerResponse struct {
	ID          string     `json:"id"`
	QuestionID  string     `json:"question_id"`
	Content     string     `json:"content"`
	ContentHTML string     `json:"content_html"`
	AuthorID    string     `json:"author_id"`
	AuthorName  string     `json:"author_name"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
	VoteCount   int        `json:"vote_count"`
	Voted       bool       `json:"voted"`
}

// answerRequest は回答の投稿・変更リクエストのボディ。
type answerRequest struct {
	Content string `json:"content"`
}

// CreateAnswer は質問に回答を投稿する。
// POST /api/questions/{id}/answers
func (h *AnswerHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	a, err := h.service.Create(r.Context(), memberID, chi.URLParam(r, "id"), validation.AnswerForm{Content: req.Content})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, idResponse{ID: a.ID})
}

// GetAnswer は回答を返す。
// GET /api/answers/{id}
func (h *AnswerHandler) GetAnswer(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	voted, err := h.votes.HasVoted(r.Context(), model.AnswerTarget(a.ID), middleware.OptionalMemberID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnswerResponse(a, voted, h.renderer))
}

// ModifyAnswer は回答の本文を変更する。作成者のみ実行できる。
// PUT /api/answers/{id}
func (h *AnswerHandler) ModifyAnswer(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	a, err := h.service.Modify(r.Context(), memberID, chi.URLParam(r, "id"), validation.AnswerForm{Content: req.Content})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idResponse{ID: a.ID})
}

// DeleteAnswer は回答を削除する。作成者のみ実行できる。
// DELETE /api/answers/{id}
func (h *AnswerHandler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), memberID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toAnswerResponse(a *model.Answer, voted bool, renderer ContentRenderer) answerResponse {
	return answerResponse{
		ID:          a.ID,
		QuestionID:  a.QuestionID,
		Content:     a.Content,
		ContentHTML: renderer.Sanitize(a.Content),
		AuthorID:    a.AuthorID,
		AuthorName:  a.AuthorName,
		CreatedAt:   a.CreatedAt,
		ModifiedAt:  a.ModifiedAt,
		VoteCount:   a.VoteCount,
		Voted:       voted,
	}
}
