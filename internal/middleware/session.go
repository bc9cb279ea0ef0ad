// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/qaboard/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// memberIDContextKey はリクエストコンテキストに会員IDを格納するためのキー。
	memberIDContextKey = contextKey("member_id")
	// memberIDHolderKey はアクセスログに会員IDを渡すためのholderのキー。
	memberIDHolderKey = contextKey("member_id_holder")
)

// memberIDHolder は後段で認証された会員IDを前段のミドルウェアに伝える。
type memberIDHolder struct {
	memberID string
}

func withMemberIDHolder(ctx context.Context, h *memberIDHolder) context.Context {
	return context.WithValue(ctx, memberIDHolderKey, h)
}

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済み会員IDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			memberID, ok := resolveSession(r, sessionFinder)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithMemberID(r.Context(), memberID)))
		})
	}
}

// NewOptionalSessionMiddleware は有効なセッションがあれば会員IDを注入し、
// なければ匿名のまま次のハンドラーに渡すミドルウェアを返す。
// 閲覧系のエンドポイントで投票状態を表示するために使う。
func NewOptionalSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if memberID, ok := resolveSession(r, sessionFinder); ok {
				r = r.WithContext(ContextWithMemberID(r.Context(), memberID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveSession はCookieのセッションIDから会員IDを求める。
func resolveSession(r *http.Request, sessionFinder SessionFinder) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	if session == nil {
		return "", false
	}
	return session.MemberID, true
}

// MemberIDFromContext はリクエストコンテキストから会員IDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func MemberIDFromContext(ctx context.Context) (string, error) {
	memberID, ok := ctx.Value(memberIDContextKey).(string)
	if !ok || memberID == "" {
		return "", fmt.Errorf("member ID not found in context")
	}
	return memberID, nil
}

// OptionalMemberID はコンテキストの会員IDを返す。未認証の場合は空文字列を返す。
func OptionalMemberID(ctx context.Context) string {
	memberID, _ := MemberIDFromContext(ctx)
	return memberID
}

// ContextWithMemberID はコンテキストに会員IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithMemberID(ctx context.Context, memberID string) context.Context {
	if h, ok := ctx.Value(memberIDHolderKey).(*memberIDHolder); ok {
		h.memberID = memberID
	}
	return context.WithValue(ctx, memberIDContextKey, memberID)
}
