package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/qaboard/internal/model"
)

// VoteServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type VoteServiceInterface interface {
	Vote(ctx context.Context, target model.VoteTarget, memberID string) error
	VoteStatusReader
}

// VoteHandler は質問・回答への投票のHTTPハンドラー。
type VoteHandler struct {
	service VoteServiceInterface
}

// NewVoteHandler はVoteHandlerを生成する。
func NewVoteHandler(service VoteServiceInterface) *VoteHandler {
	return &VoteHandler{service: service}
}

// VoteQuestion は質問に投票する。投票済みでも204を返す。
// POST /api/questions/{id}/vote
func (h *VoteHandler) VoteQuestion(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, model.QuestionTarget(chi.URLParam(r, "id")))
}

// VoteAnswer は回答に投票する。投票済みでも204を返す。
// POST /api/answers/{id}/vote
func (h *VoteHandler) VoteAnswer(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, model.AnswerTarget(chi.URLParam(r, "id")))
}

func (h *VoteHandler) vote(w http.ResponseWriter, r *http.Request, target model.VoteTarget) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}

	if err := h.service.Vote(r.Context(), target, memberID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
