// Package auth はパスワードによるログインとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/repository"
	"github.com/hitoshi/qaboard/internal/validation"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 会員登録時と同じハッシュコスト。0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	memberRepo  repository.MemberRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	dummyHash   []byte
}

// NewService はServiceを生成する。
func NewService(
	memberRepo repository.MemberRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	// 存在しない会員名でも照合時間を揃えるため、会員と同じコストで生成する
	dummy, _ := bcrypt.GenerateFromPassword([]byte("qaboard-dummy-password"), config.BcryptCost)
	return &Service{
		memberRepo:  memberRepo,
		sessionRepo: sessionRepo,
		config:      config,
		dummyHash:   dummy,
	}
}

// Login は会員名とパスワードを照合し、セッションを発行する。
// 会員名・パスワードのどちらが誤っていても同じINVALID_CREDENTIALSエラーを返す。
func (s *Service) Login(ctx context.Context, form validation.LoginForm) (*model.Session, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	member, err := s.memberRepo.FindByName(ctx, form.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(form.Password))
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(form.Password)); err != nil {
		slog.Info("login failed", slog.String("member_id", member.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("member logged in", slog.String("member_id", member.ID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("member logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentMember はセッションから現在の会員を取得する。
// セッションが無効な場合はUNAUTHORIZEDエラーを返す。
func (s *Service) GetCurrentMember(ctx context.Context, sessionID string) (*model.Member, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	member, err := s.memberRepo.FindByID(ctx, session.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil {
		return nil, model.NewUnauthorizedError()
	}

	return member, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, memberID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		MemberID:  memberID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
