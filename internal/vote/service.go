// Package vote は質問・回答への投票を扱う。
//
// 投票は会員と対象の組としてのみ記録し、件数はその組の数から求める。
// 件数を読み出して書き戻す処理は持たないため、異なる会員の同時投票で票が失われることはない。
package vote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/qaboard/internal/metrics"
	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/repository"
)

// Service は投票のサービス層。
type Service struct {
	voteRepo     repository.VoteRepository
	questionRepo repository.QuestionRepository
	answerRepo   repository.AnswerRepository
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	voteRepo repository.VoteRepository,
	questionRepo repository.QuestionRepository,
	answerRepo repository.AnswerRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		voteRepo:     voteRepo,
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		metrics:      collector,
		logger:       logger,
	}
}

// Vote は会員memberIDによる対象への投票を記録する。
// 投票済みの場合は何もせず成功を返す。
func (s *Service) Vote(ctx context.Context, target model.VoteTarget, memberID string) error {
	if memberID == "" {
		return model.NewUnauthorizedError()
	}
	if err := s.ensureTarget(ctx, target); err != nil {
		return err
	}

	added, err := s.voteRepo.Add(ctx, target, memberID)
	if err != nil {
		// 一意制約違反は「この会員は投票済み」を意味するため成功として扱う
		if model.HasCode(err, model.ErrCodeVoteConflict) {
			s.metrics.RecordVote(string(target.Kind), false)
			return nil
		}
		return err
	}

	s.metrics.RecordVote(string(target.Kind), added)
	if added {
		s.logger.Info("投票を記録しました",
			slog.String("kind", string(target.Kind)),
			slog.String("target_id", target.ID),
			slog.String("member_id", memberID),
		)
	}
	return nil
}

// HasVoted は会員が対象に投票済みかを返す。memberIDが空の場合はfalseを返す。
func (s *Service) HasVoted(ctx context.Context, target model.VoteTarget, memberID string) (bool, error) {
	if !target.Valid() {
		return false, model.NewInvalidVoteTargetError(string(target.Kind))
	}
	if memberID == "" {
		return false, nil
	}
	voted, err := s.voteRepo.HasVoted(ctx, target, memberID)
	if err != nil {
		return false, fmt.Errorf("投票状態の取得に失敗しました: %w", err)
	}
	return voted, nil
}

// Count は対象の投票数を返す。
func (s *Service) Count(ctx context.Context, target model.VoteTarget) (int, error) {
	if !target.Valid() {
		return 0, model.NewInvalidVoteTargetError(string(target.Kind))
	}
	n, err := s.voteRepo.Count(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("投票数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// ensureTarget は投票対象が存在するかを確認する。
func (s *Service) ensureTarget(ctx context.Context, target model.VoteTarget) error {
	switch target.Kind {
	case model.VoteKindQuestion:
		q, err := s.questionRepo.FindByID(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("質問の取得に失敗しました: %w", err)
		}
		if q == nil {
			return model.NewQuestionNotFoundError(target.ID)
		}
	case model.VoteKindAnswer:
		a, err := s.answerRepo.FindByID(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("回答の取得に失敗しました: %w", err)
		}
		if a == nil {
			return model.NewAnswerNotFoundError(target.ID)
		}
	default:
		return model.NewInvalidVoteTargetError(string(target.Kind))
	}
	return nil
}
