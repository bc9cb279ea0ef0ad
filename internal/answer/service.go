// Package answer は質問に対する回答の投稿、取得、変更、削除を提供する。
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/repository"
	"github.com/hitoshi/qaboard/internal/validation"
)

// Service は回答のサービス層。
type Service struct {
	answerRepo   repository.AnswerRepository
	questionRepo repository.QuestionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	answerRepo repository.AnswerRepository,
	questionRepo repository.QuestionRepository,
) *Service {
	return &Service{
		answerRepo:   answerRepo,
		questionRepo: questionRepo,
	}
}

// Create は質問questionIDに回答を投稿する。質問が存在しない場合はQUESTION_NOT_FOUNDエラーを返す。
func (s *Service) Create(ctx context.Context, memberID, questionID string, form validation.AnswerForm) (*model.Answer, error) {
	if memberID == "" {
		return nil, model.NewUnauthorizedError()
	}
	q, err := s.questionRepo.FindByID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("質問の取得に失敗しました: %w", err)
	}
	if q == nil {
		return nil, model.NewQuestionNotFoundError(questionID)
	}

	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	a := &model.Answer{
		ID:         uuid.New().String(),
		QuestionID: questionID,
		Content:    form.Content,
		AuthorID:   memberID,
		CreatedAt:  time.Now(),
	}
	// 確認後に質問が削除された場合はリポジトリが外部キー違反をQUESTION_NOT_FOUNDに変換する
	if err := s.answerRepo.Create(ctx, a); err != nil {
		if model.HasCode(err, model.ErrCodeQuestionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("回答の保存に失敗しました: %w", err)
	}

	slog.Info("回答を投稿しました",
		slog.String("answer_id", a.ID),
		slog.String("question_id", questionID),
		slog.String("member_id", memberID),
	)
	return a, nil
}

// Get は回答を取得する。存在しない場合はANSWER_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Answer, error) {
	a, err := s.answerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("回答の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewAnswerNotFoundError(id)
	}
	return a, nil
}

// Modify は回答の本文を変更する。作成者以外はFORBIDDEN_NOT_AUTHORエラーになる。
func (s *Service) Modify(ctx context.Context, memberID, id string, form validation.AnswerForm) (*model.Answer, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := model.RequireAuthor(a, memberID); err != nil {
		return nil, err
	}

	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	now := time.Now()
	a.Content = form.Content
	a.ModifiedAt = &now
	if err := s.answerRepo.Update(ctx, a); err != nil {
		if model.HasCode(err, model.ErrCodeAnswerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("回答の更新に失敗しました: %w", err)
	}
	return a, nil
}

// Delete は回答を削除する。回答への投票はCASCADE削除される。
// 作成者以外はFORBIDDEN_NOT_AUTHORエラーになる。
func (s *Service) Delete(ctx context.Context, memberID, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := model.RequireAuthor(a, memberID); err != nil {
		return err
	}

	if err := s.answerRepo.Delete(ctx, id); err != nil {
		if model.HasCode(err, model.ErrCodeAnswerNotFound) {
			return err
		}
		return fmt.Errorf("回答の削除に失敗しました: %w", err)
	}

	slog.Info("回答を削除しました",
		slog.String("answer_id", id),
		slog.String("member_id", memberID),
	)
	return nil
}
