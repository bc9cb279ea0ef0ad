// Package member は会員登録と会員情報の参照を提供する。
package member

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/repository"
	"github.com/hitoshi/qaboard/internal/validation"
)

// Service は会員管理のサービス層。
type Service struct {
	memberRepo repository.MemberRepository
	bcryptCost int
}

// NewService はServiceの新しいインスタンスを生成する。
// costが0の場合はbcrypt.DefaultCostを使う。
func NewService(memberRepo repository.MemberRepository, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{memberRepo: memberRepo, bcryptCost: cost}
}

// Signup は会員を登録する。パスワードはbcryptでハッシュ化して保存する。
// 会員名またはメールアドレスが重複する場合はDUPLICATE_MEMBERエラーを返す。
func (s *Service) Signup(ctx context.Context, form validation.SignupForm) (*model.Member, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	if !validation.PasswordFitsBcrypt(form.Password) {
		return nil, model.NewValidationError("password は72バイト以内で入力してください")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	m := &model.Member{
		ID:           uuid.New().String(),
		Name:         form.Name,
		Email:        form.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		if model.HasCode(err, model.ErrCodeDuplicateMember) {
			return nil, err
		}
		return nil, fmt.Errorf("会員の作成に失敗しました: %w", err)
	}

	slog.Info("会員を登録しました",
		slog.String("member_id", m.ID),
		slog.String("name", m.Name),
	)
	return m, nil
}

// FindByID は会員を取得する。存在しない場合はMEMBER_NOT_FOUNDエラーを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.Member, error) {
	m, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("会員の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMemberNotFoundError()
	}
	return m, nil
}

// FindByName は会員名で会員を取得する。存在しない場合はMEMBER_NOT_FOUNDエラーを返す。
func (s *Service) FindByName(ctx context.Context, name string) (*model.Member, error) {
	m, err := s.memberRepo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("会員の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMemberNotFoundError()
	}
	return m, nil
}
