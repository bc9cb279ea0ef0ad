package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/hitoshi/qaboard/internal/middleware"
	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/pagination"
	"github.com/hitoshi/qaboard/internal/question"
	"github.com/hitoshi/qaboard/internal/validation"
)

const (
	// imageFileField は質問投稿フォームの添付ファイルのフィールド名。
	imageFileField = "image_file"

	// multipartFormOverhead は添付ファイル以外のフォーム項目に許容するバイト数。
	multipartFormOverhead = 1 << 20

	multipartMemory = 8 << 20
)

// QuestionServiceInterface は質問ハンドラーが必要とするサービスインターフェース。
type QuestionServiceInterface interface {
	List(ctx context.Context, page int, keyword string) (pagination.Page[model.QuestionSummary], error)
	Get(ctx context.Context, id, viewerID string) (*question.Detail, error)
	Create(ctx context.Context, memberID string, form validation.QuestionForm, upload *question.Upload) (*model.Question, error)
	Modify(ctx context.Context, memberID, id string, form validation.QuestionForm) (*model.Question, error)
	Delete(ctx context.Context, memberID, id string) error
}

// ContentRenderer は投稿された本文を表示用の安全なHTMLに変換する。
// security.ContentSanitizerServiceが実装する。
type ContentRenderer interface {
	Sanitize(rawHTML string) string
}

// QuestionHandlerConfig は質問ハンドラーの設定。
type QuestionHandlerConfig struct {
	MaxUploadBytes int64
}

// QuestionHandler は質問のHTTPハンドラー。
type QuestionHandler struct {
	service  QuestionServiceInterface
	renderer ContentRenderer
	config   QuestionHandlerConfig
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(service QuestionServiceInterface, renderer ContentRenderer, config QuestionHandlerConfig) *QuestionHandler {
	return &QuestionHandler{
		service:  service,
		renderer: renderer,
		config:   config,
	}
}

// questionSummaryResponse は質問一覧の1行のAPIレスポンス。
type questionSummaryResponse struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Content       string    `json:"content"`
	AuthorName    string    `json:"author_name"`
	CreatedAt     time.Time `json:"created_at"`
	VoteCount     int       `json:"vote_count"`
	AnswerCount   int       `json:"answer_count"`
	HasAttachment bool      `json:"has_attachment"`
}

// questionPageResponse は質問一覧1ページ分のAPIレスポンス。
type questionPageResponse struct {
	Items       []questionSummaryResponse `json:"items"`
	Page        int                       `json:"page"`
	Size        int                       `json:"size"`
	TotalItems  int                       `json:"total_items"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// attachmentResponse は添付ファイルのAPIレスポンス。
type attachmentResponse struct {
	OriginalFilename string `json:"original_filename"`
	StoredFilename   string `json:"stored_filename"`
	URL              string `json:"url"`
}

// questionDetailResponse は質問詳細のAPIレスポンス。
// contentはテキストのまま、content_htmlは表示用にサニタイズしたHTMLを返す。
type questionDetailResponse struct {
	ID          string              `json:"id"`
	Subject     string              `json:"subject"`
	Content     string              `json:"content"`
	ContentHTML string              `json:"content_html"`
	AuthorID    string              `json:"author_id"`
	AuthorName  string              `json:"author_name"`
	CreatedAt   time.Time           `json:"created_at"`
	ModifiedAt  *time.Time          `json:"modified_at,omitempty"`
	VoteCount   int                 `json:"vote_count"`
	Voted       bool                `json:"voted"`
	Attachment  *attachmentResponse `json:"attachment,omitempty"`
	Answers     []answerResponse    `json:"answers"`
}

// questionRequest は質問変更リクエストのボディ。
type questionRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// ListQuestions は質問一覧を返す。kwを指定した場合はキーワード検索を行う。
// GET /api/questions?page=0&kw=...
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	keyword := r.URL.Query().Get("kw")

	result, err := h.service.List(r.Context(), page, keyword)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toQuestionPageResponse(result))
}

// GetQuestion は質問の詳細と回答一覧を返す。
// GET /api/questions/{id}
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "id")
	viewerID := middleware.OptionalMemberID(r.Context())

	detail, err := h.service.Get(r.Context(), questionID, viewerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toQuestionDetailResponse(detail, h.renderer))
}

// CreateQuestion は質問を投稿する。画像の添付は任意。
// POST /api/questions (multipart/form-data: subject, content, image_file)
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes+multipartFormOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(h.config.MaxUploadBytes))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("multipart/form-data形式で送信してください"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := validation.QuestionForm{
		Subject: r.FormValue("subject"),
		Content: r.FormValue("content"),
	}

	upload, closeUpload, err := h.openUpload(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer closeUpload()

	q, err := h.service.Create(r.Context(), memberID, form, upload)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, idResponse{ID: q.ID})
}

// openUpload はフォームの添付ファイルを開く。未指定の場合はnilを返す。
func (h *QuestionHandler) openUpload(r *http.Request) (*question.Upload, func(), error) {
	file, header, err := r.FormFile(imageFileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, model.NewValidationError("添付ファイルを読み取れません")
	}
	if header.Size > h.config.MaxUploadBytes {
		file.Close()
		return nil, nil, model.NewUploadTooLargeError(h.config.MaxUploadBytes)
	}

	return &question.Upload{Filename: header.Filename, Body: file}, closeFile(file), nil
}

func closeFile(f multipart.File) func() {
	return func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close uploaded file", slog.String("error", err.Error()))
		}
	}
}

// ModifyQuestion は質問の件名と本文を変更する。作成者のみ実行できる。
// PUT /api/questions/{id}
func (h *QuestionHandler) ModifyQuestion(w http.ResponseWriter, r *http.Request) {
	memberID, ok := requireMember(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	q, err := h.service.Modify(r.Context(), memberID, chi.URLParam(r, "id"), validation.QuestionForm{
		Subject: req.Subject,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idResponse{ID: q.ID})
}

// DeleteQuestion は質問を削除する。作成者のみ実行できる。
// DELETE /api/questions/{id}
func (h *QuestionHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
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

func toQuestionPageResponse(p pagination.Page[model.QuestionSummary]) questionPageResponse {
	return questionPageResponse{
		Items: lo.Map(p.Items, func(q model.QuestionSummary, _ int) questionSummaryResponse {
			return questionSummaryResponse{
				ID:            q.ID,
				Subject:       q.Subject,
				Content:       q.Content,
				AuthorName:    q.AuthorName,
				CreatedAt:     q.CreatedAt,
				VoteCount:     q.VoteCount,
				AnswerCount:   q.AnswerCount,
				HasAttachment: q.Attachment != nil,
			}
		}),
		Page:        p.Page,
		Size:        p.Size,
		TotalItems:  p.TotalItems,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext(),
		HasPrevious: p.HasPrevious(),
	}
}

func toQuestionDetailResponse(d *question.Detail, renderer ContentRenderer) questionDetailResponse {
	q := d.Question
	resp := questionDetailResponse{
		ID:          q.ID,
		Subject:     q.Subject,
		Content:     q.Content,
		ContentHTML: renderer.Sanitize(q.Content),
		AuthorID:    q.AuthorID,
		AuthorName:  q.AuthorName,
		CreatedAt:   q.CreatedAt,
		ModifiedAt:  q.ModifiedAt,
		VoteCount:   q.VoteCount,
		Voted:       d.Voted,
		Answers: lo.Map(d.Answers, func(a question.AnswerView, _ int) answerResponse {
			return toAnswerResponse(&a.Answer, a.Voted, renderer)
		}),
	}
	if q.Attachment != nil {
		resp.Attachment = &attachmentResponse{
			OriginalFilename: q.Attachment.OriginalFilename,
			StoredFilename:   q.Attachment.StoredFilename,
			URL:              "/api/attachments/" + q.Attachment.StoredFilename,
		}
	}
	return resp
}
