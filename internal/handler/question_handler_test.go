package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/pagination"
	"github.com/hitoshi/qaboard/internal/question"
	"github.com/hitoshi/qaboard/internal/security"
	"github.com/hitoshi/qaboard/internal/validation"
)

// --- モック定義 ---

// mockQuestionService はQuestionServiceInterfaceのモック実装。
type mockQuestionService struct {
	listFn   func(ctx context.Context, page int, keyword string) (pagination.Page[model.QuestionSummary], error)
	getFn    func(ctx context.Context, id, viewerID string) (*question.Detail, error)
	createFn func(ctx context.Context, memberID string, form validation.QuestionForm, upload *question.Upload) (*model.Question, error)
	modifyFn func(ctx context.Context, memberID, id string, form validation.QuestionForm) (*model.Question, error)
	deleteFn func(ctx context.Context, memberID, id string) error
}

func (m *mockQuestionService) List(ctx context.Context, page int, keyword string) (pagination.Page[model.QuestionSummary], error) {
	if m.listFn != nil {
		return m.listFn(ctx, page, keyword)
	}
	return pagination.Page[model.QuestionSummary]{}, nil
}

func (m *mockQuestionService) Get(ctx context.Context, id, viewerID string) (*question.Detail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id, viewerID)
	}
	return nil, model.NewQuestionNotFoundError(id)
}

func (m *mockQuestionService) Create(ctx context.Context, memberID string, form validation.QuestionForm, upload *question.Upload) (*model.Question, error) {
	if m.createFn != nil {
		return m.createFn(ctx, memberID, form, upload)
	}
	return &model.Question{ID: "q-new"}, nil
}

func (m *mockQuestionService) Modify(ctx context.Context, memberID, id string, form validation.QuestionForm) (*model.Question, error) {
	if m.modifyFn != nil {
		return m.modifyFn(ctx, memberID, id, form)
	}
	return &model.Question{ID: id}, nil
}

func (m *mockQuestionService) Delete(ctx context.Context, memberID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, memberID, id)
	}
	return nil
}

// --- テストヘルパー ---

// newMultipartRequest は質問投稿用のmultipartリクエストを組み立てる。
// filenameが空の場合は添付ファイルを含めない。
func newMultipartRequest(t *testing.T, subject, content, filename string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("subject", subject)
	_ = mw.WriteField("content", content)
	if filename != "" {
		fw, err := mw.CreateFormFile(imageFileField, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write(file)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/questions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestQuestionHandler(svc *mockQuestionService) *QuestionHandler {
	return NewQuestionHandler(svc, security.NewContentSanitizer(), QuestionHandlerConfig{MaxUploadBytes: 1024})
}

// --- テスト ---

func TestListQuestions_PassesQueryAndRendersPage(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var gotPage int
	var gotKeyword string
	svc := &mockQuestionService{
		listFn: func(ctx context.Context, page int, keyword string) (pagination.Page[model.QuestionSummary], error) {
			gotPage, gotKeyword = page, keyword
			items := []model.QuestionSummary{{
				Question: model.Question{
					ID: "q1", Subject: "Go", Content: "chan", AuthorName: "alice",
					CreatedAt: created, VoteCount: 3,
					Attachment: &model.Attachment{StoredFilename: "x.png"},
				},
				AnswerCount: 2,
			}}
			return pagination.NewPage(items, pagination.NewRequest(page, 1), 3), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/questions?page=1&kw=chan", nil)
	w := httptest.NewRecorder()
	newTestQuestionHandler(svc).ListQuestions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotPage != 1 || gotKeyword != "chan" {
		t.Errorf("page = %d, keyword = %q", gotPage, gotKeyword)
	}

	var body questionPageResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ID != "q1" || body.Items[0].AnswerCount != 2 || !body.Items[0].HasAttachment {
		t.Errorf("items = %+v", body.Items)
	}
	if body.TotalItems != 3 || body.TotalPages != 3 || !body.HasNext || !body.HasPrevious {
		t.Errorf("page info = %+v", body)
	}
}

func TestListQuestions_InvalidPage_DefaultsToFirst(t *testing.T) {
	gotPage := -1
	svc := &mockQuestionService{
		listFn: func(ctx context.Context, page int, keyword string) (pagination.Page[model.QuestionSummary], error) {
			gotPage = page
			return pagination.NewPage[model.QuestionSummary](nil, pagination.NewRequest(page, 10), 0), nil
		},
	}

	w := httptest.NewRecorder()
	newTestQuestionHandler(svc).ListQuestions(w, httptest.NewRequest(http.MethodGet, "/api/questions?page=abc", nil))

	if gotPage != 0 {
		t.Errorf("page = %d, want 0", gotPage)
	}
	var body questionPageResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Items == nil || len(body.Items) != 0 {
		t.Errorf("items should be an empty array, got %v", body.Items)
	}
}

func TestGetQuestion_ViewerAndNotFound(t *testing.T) {
	var gotViewer string
	svc := &mockQuestionService{
		getFn: func(ctx context.Context, id, viewerID string) (*question.Detail, error) {
			if id != "q1" {
				return nil, model.NewQuestionNotFoundError(id)
			}
			gotViewer = viewerID
			return &question.Detail{
				Question: model.Question{ID: "q1", Subject: "s", Attachment: &model.Attachment{StoredFilename: "a.png"}},
				Voted:    true,
				Answers:  []question.AnswerView{{Answer: model.Answer{ID: "a1", QuestionID: "q1"}, Voted: true}},
			}, nil
		},
	}
	h := newTestQuestionHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/questions/q1", nil), "id", "q1")
	req = withMemberID(req, "member-1")
	w := httptest.NewRecorder()
	h.GetQuestion(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotViewer != "member-1" {
		t.Errorf("viewerID = %q, want member-1", gotViewer)
	}
	var body questionDetailResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	if !body.Voted || len(body.Answers) != 1 || !body.Answers[0].Voted {
		t.Errorf("body = %+v", body)
	}
	if body.Attachment == nil || body.Attachment.URL != "/api/attachments/a.png" {
		t.Errorf("attachment = %+v", body.Attachment)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/questions/missing", nil), "id", "missing")
	w = httptest.NewRecorder()
	h.GetQuestion(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestGetQuestion_ContentAsTextAndSanitizedHTML は本文をテキストのまま返し、
// content_htmlには無害化したHTMLを返すことを検証する。
func TestGetQuestion_ContentAsTextAndSanitizedHTML(t *testing.T) {
	content := `Q&A: don't use <script>alert(1)</script><p onclick="x()">x < y</p>`
	svc := &mockQuestionService{
		getFn: func(ctx context.Context, id, viewerID string) (*question.Detail, error) {
			return &question.Detail{
				Question: model.Question{ID: id, Subject: "Q&A", Content: content},
				Answers:  []question.AnswerView{{Answer: model.Answer{ID: "a1", QuestionID: id, Content: "a & b <script>x</script>"}}},
			}, nil
		},
	}

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/questions/q1", nil), "id", "q1")
	w := httptest.NewRecorder()
	newTestQuestionHandler(svc).GetQuestion(w, req)

	var body questionDetailResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Subject != "Q&A" || body.Content != content {
		t.Errorf("subject/content should be returned as posted: %q / %q", body.Subject, body.Content)
	}
	for _, html := range []string{body.ContentHTML, body.Answers[0].ContentHTML} {
		if strings.Contains(html, "<script") || strings.Contains(html, "onclick") {
			t.Errorf("content_html not sanitized: %q", html)
		}
	}
	if !strings.Contains(body.ContentHTML, "&lt; y") {
		t.Errorf("content_html should escape text: %q", body.ContentHTML)
	}
	if body.Answers[0].Content != "a & b <script>x</script>" {
		t.Errorf("answer content = %q", body.Answers[0].Content)
	}
}

func TestCreateQuestion_WithAttachment(t *testing.T) {
	var gotForm validation.QuestionForm
	var gotFilename, gotBody string
	svc := &mockQuestionService{
		createFn: func(ctx context.Context, memberID string, form validation.QuestionForm, upload *question.Upload) (*model.Question, error) {
			gotForm = form
			if upload == nil {
				t.Fatal("expected upload")
			}
			gotFilename = upload.Filename
			b, _ := io.ReadAll(upload.Body)
			gotBody = string(b)
			return &model.Question{ID: "q-42"}, nil
		},
	}

	req := withMemberID(newMultipartRequest(t, "件名", "本文", "photo.PNG", []byte("png-bytes")), "member-1")
	w := httptest.NewRecorder()
	newTestQuestionHandler(svc).CreateQuestion(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body = %s", w.Code, w.Body.String())
	}
	var body idResponse
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.ID != "q-42" {
		t.Errorf("id = %q, want q-42", body.ID)
	}
	if gotForm.Subject != "件名" || gotForm.Content != "本文" {
		t.Errorf("form = %+v", gotForm)
	}
	if gotFilename != "photo.PNG" || gotBody != "png-bytes" {
		t.Errorf("upload = %q / %q", gotFilename, gotBody)
	}
}

func TestCreateQuestion_WithoutAttachment(t *testing.T) {
	svc := &mockQuestionService{
		createFn: func(ctx context.Context, memberID string, form validation.QuestionForm, upload *question.Upload) (*model.Question, error) {
			if upload != nil {
				t.Errorf("upload = %+v, want nil", upload)
			}
			return &model.Question{ID: "q-1"}, nil
		},
	}

	w := httptest.NewRecorder()
	newTestQuestionHandler(svc).CreateQuestion(w, withMemberID(newMultipartRequest(t, "s", "c", "", nil), "member-1"))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestCreateQuestion_Rejections(t *testing.T) {
	called := false
	svc := &mockQuestionService{
		createFn: func(ctx context.Context, memberID string, form validation.QuestionForm, upload *question.Upload) (*model.Question, error) {
			called = true
			return &model.Question{ID: "q"}, nil
		},
	}
	h := newTestQuestionHandler(svc)

	tests := []struct {
		name     string
		req      func() *http.Request
		want     int
		wantCode string
	}{
		{
			name:     "未ログイン",
			req:      func() *http.Request { return newMultipartRequest(t, "s", "c", "", nil) },
			want:     http.StatusUnauthorized,
			wantCode: model.ErrCodeUnauthorized,
		},
		{
			name: "サイズ超過",
			req: func() *http.Request {
				return withMemberID(newMultipartRequest(t, "s", "c", "big.png", bytes.Repeat([]byte("x"), 2048)), "member-1")
			},
			want:     http.StatusRequestEntityTooLarge,
			wantCode: model.ErrCodeUploadTooLarge,
		},
		{
			name: "multipartでない",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{"subject":"s"}`))
				req.Header.Set("Content-Type", "application/json")
				return withMemberID(req, "member-1")
			},
			want:     http.StatusBadRequest,
			wantCode: model.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateQuestion(w, tt.req())

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if body := parseAPIErrorResponse(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
	if called {
		t.Error("service should not be called")
	}
}

func TestModifyQuestion(t *testing.T) {
	svc := &mockQuestionService{
		modifyFn: func(ctx context.Context, memberID, id string, form validation.QuestionForm) (*model.Question, error) {
			if memberID != "author" {
				return nil, model.NewNotAuthorError()
			}
			if form.Subject != "new" || form.Content != "body" {
				t.Errorf("form = %+v", form)
			}
			return &model.Question{ID: id}, nil
		},
	}
	h := newTestQuestionHandler(svc)

	tests := []struct {
		name     string
		memberID string
		body     string
		want     int
	}{
		{"作成者", "author", `{"subject":"new","content":"body"}`, http.StatusOK},
		{"作成者以外", "other", `{"subject":"new","content":"body"}`, http.StatusForbidden},
		{"不正なJSON", "author", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/questions/q1", strings.NewReader(tt.body))
			req = withMemberID(withChiURLParam(req, "id", "q1"), tt.memberID)
			w := httptest.NewRecorder()
			h.ModifyQuestion(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestDeleteQuestion_ReturnsNoContent(t *testing.T) {
	var gotID string
	svc := &mockQuestionService{
		deleteFn: func(ctx context.Context, memberID, id string) error {
			gotID = id
			return nil
		},
	}

	req := withMemberID(withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/questions/q9", nil), "id", "q9"), "author")
	w := httptest.NewRecorder()
	newTestQuestionHandler(svc).DeleteQuestion(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if gotID != "q9" {
		t.Errorf("id = %q, want q9", gotID)
	}
}
