package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/qaboard/internal/attachment"
	"github.com/hitoshi/qaboard/internal/middleware"
	"github.com/hitoshi/qaboard/internal/model"
)

type mockSessionFinder struct {
	sessions map[string]string // sessionID -> memberID
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	memberID, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &model.Session{ID: id, MemberID: memberID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// newTestRouter はモックサービスで全ルートを構成したルーターを返す。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	if deps == nil {
		deps = &RouterDeps{}
	}
	deps.RateLimiter = rl
	if deps.SessionFinder == nil {
		deps.SessionFinder = &mockSessionFinder{sessions: map[string]string{"sess-1": "member-1"}}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.MemberService == nil {
		deps.MemberService = &mockMemberService{}
	}
	if deps.QuestionService == nil {
		deps.QuestionService = &mockQuestionService{}
	}
	if deps.AnswerService == nil {
		deps.AnswerService = &mockAnswerService{}
	}
	if deps.VoteService == nil {
		deps.VoteService = &mockVoteService{}
	}
	if deps.Attachments == nil {
		deps.Attachments = &mockAttachmentOpener{openFn: func(ctx context.Context, name string) (*attachment.Object, error) {
			return nil, model.NewAttachmentNotFoundError(name)
		}}
	}
	deps.QuestionConfig.MaxUploadBytes = 1024
	return NewRouter(deps)
}

// serve はセッションとCSRFトークンを付与してリクエストを処理する。
func serve(h http.Handler, method, path, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.10:1234"
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	req.Header.Set("X-CSRF-Token", "tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Routes(t *testing.T) {
	h := newTestRouter(t, nil)

	tests := []struct {
		method    string
		path      string
		sessionID string
		want      int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/csrf-token", "", http.StatusOK},
		{http.MethodGet, "/api/questions", "", http.StatusOK},
		{http.MethodGet, "/api/questions/q1", "", http.StatusNotFound},
		{http.MethodGet, "/api/answers/a1", "", http.StatusNotFound},
		{http.MethodGet, "/api/attachments/nope", "", http.StatusNotFound},
		{http.MethodPost, "/api/questions/q1/vote", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/questions/q1/vote", "sess-1", http.StatusNoContent},
		{http.MethodPost, "/api/answers/a1/vote", "sess-1", http.StatusNoContent},
		{http.MethodDelete, "/api/questions/q1", "sess-1", http.StatusNoContent},
		{http.MethodDelete, "/api/answers/a1", "sess-1", http.StatusNoContent},
		{http.MethodDelete, "/api/answers/a1", "unknown", http.StatusUnauthorized},
		{http.MethodGet, "/auth/me", "", http.StatusUnauthorized},
		{http.MethodPost, "/auth/logout", "sess-1", http.StatusNoContent},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
		{http.MethodGet, "/metrics", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := serve(h, tt.method, tt.path, tt.sessionID); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// TestNewRouter_AttachmentHead はHEADリクエストでヘッダーのみを返すことを検証する。
func TestNewRouter_AttachmentHead(t *testing.T) {
	const content = "\x89PNG\r\n\x1a\nrest"
	h := newTestRouter(t, &RouterDeps{
		Attachments: &mockAttachmentOpener{openFn: func(ctx context.Context, name string) (*attachment.Object, error) {
			return &attachment.Object{
				Body:        io.NopCloser(strings.NewReader(content)),
				Size:        int64(len(content)),
				ContentType: "image/png",
			}, nil
		}},
	})

	w := serve(h, http.MethodHead, "/api/attachments/x.png", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Length"); got != "12" {
		t.Errorf("Content-Length = %q, want 12", got)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", w.Body.String())
	}

	if w := serve(h, http.MethodGet, "/api/attachments/x.png", ""); w.Body.String() != content {
		t.Errorf("GET body = %q, want %q", w.Body.String(), content)
	}
}

func TestNewRouter_MutationRequiresCSRFToken(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/questions/q1/vote", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestNewRouter_SecurityHeadersAndMetrics(t *testing.T) {
	h := newTestRouter(t, &RouterDeps{
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("qaboard_votes_total 1\n"))
		}),
	})

	w := serve(h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}

	w = serve(h, http.MethodGet, "/api/questions", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestNewRouter_HealthUnavailable(t *testing.T) {
	h := newTestRouter(t, &RouterDeps{HealthChecker: &mockHealthChecker{err: errors.New("no db")}})

	if w := serve(h, http.MethodGet, "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
