package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/qaboard/internal/metrics"
	"github.com/hitoshi/qaboard/internal/middleware"
	"github.com/hitoshi/qaboard/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント。MetricsHandlerがnilの場合は/metricsを公開しない
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証・会員
	AuthService   AuthServiceInterface
	MemberService MemberServiceInterface
	AuthConfig    AuthHandlerConfig

	// 質問・回答・投票
	QuestionService QuestionServiceInterface
	QuestionConfig  QuestionHandlerConfig
	AnswerService   AnswerServiceInterface
	VoteService     VoteServiceInterface

	// 本文の表示用HTML変換。nilの場合はsecurity.NewContentSanitizerを使う
	ContentRenderer ContentRenderer

	// 添付ファイル
	Attachments AttachmentOpener
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → OptionalSession → RateLimit(General) → CSRF
//
// 変更系ルートはさらに Session → RateLimit(Post) を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// 運用エンドポイントはセッション・CSRFの対象外
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	renderer := deps.ContentRenderer
	if renderer == nil {
		renderer = security.NewContentSanitizer()
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.MemberService, deps.AuthConfig)
	questionHandler := NewQuestionHandler(deps.QuestionService, renderer, deps.QuestionConfig)
	answerHandler := NewAnswerHandler(deps.AnswerService, deps.VoteService, renderer)
	voteHandler := NewVoteHandler(deps.VoteService)
	attachmentHandler := NewAttachmentHandler(deps.Attachments)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Post("/api/members", authHandler.Signup)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Get("/api/questions", questionHandler.ListQuestions)
		r.Get("/api/questions/{id}", questionHandler.GetQuestion)
		r.Get("/api/answers/{id}", answerHandler.GetAnswer)
		r.Get("/api/attachments/{storedFilename}", attachmentHandler.Download)
		r.Head("/api/attachments/{storedFilename}", attachmentHandler.Download)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(Post)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.PostMiddleware())

			r.Post("/api/questions", questionHandler.CreateQuestion)
			r.Put("/api/questions/{id}", questionHandler.ModifyQuestion)
			r.Delete("/api/questions/{id}", questionHandler.DeleteQuestion)
			r.Post("/api/questions/{id}/vote", voteHandler.VoteQuestion)
			r.Post("/api/questions/{id}/answers", answerHandler.CreateAnswer)

			r.Put("/api/answers/{id}", answerHandler.ModifyAnswer)
			r.Delete("/api/answers/{id}", answerHandler.DeleteAnswer)
			r.Post("/api/answers/{id}/vote", voteHandler.VoteAnswer)
		})
	})

	return r
}
