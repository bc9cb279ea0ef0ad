// Package question は質問の一覧・検索、詳細表示、投稿、変更、削除を提供する。
package question

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/qaboard/internal/metrics"
	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/pagination"
	"github.com/hitoshi/qaboard/internal/repository"
	"github.com/hitoshi/qaboard/internal/search"
	"github.com/hitoshi/qaboard/internal/validation"
)

// AttachmentStore は質問の添付ファイルの保存と削除を行うインターフェース。
// attachment.Storeが実装する。
type AttachmentStore interface {
	Save(ctx context.Context, originalFilename string, r io.Reader) (*model.Attachment, error)
	Delete(ctx context.Context, storedFilename string) error
}

// Upload はアップロードされた添付ファイルを表す。
type Upload struct {
	Filename string
	Body     io.Reader
}

// AnswerView は詳細画面に表示する回答と、閲覧者の投票状態を表す。
type AnswerView struct {
	model.Answer
	Voted bool
}

// Detail は質問の詳細（回答一覧と閲覧者の投票状態を含む）を表す。
type Detail struct {
	Question model.Question
	Voted    bool
	Answers  []AnswerView
}

// Config は質問サービスの設定。
type Config struct {
	PageSize int
}

// Service は質問のサービス層。
type Service struct {
	questionRepo repository.QuestionRepository
	answerRepo   repository.AnswerRepository
	voteRepo     repository.VoteRepository
	attachments  AttachmentStore
	metrics      metrics.MetricsCollector
	config       Config
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	questionRepo repository.QuestionRepository,
	answerRepo repository.AnswerRepository,
	voteRepo repository.VoteRepository,
	attachments AttachmentStore,
	collector metrics.MetricsCollector,
	config Config,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.PageSize <= 0 {
		config.PageSize = pagination.DefaultPageSize
	}
	return &Service{
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		voteRepo:     voteRepo,
		attachments:  attachments,
		metrics:      collector,
		config:       config,
	}
}

// List はキーワードに一致する質問を1ページ分返す。
// キーワードが空の場合は全件を対象にする。一致しない場合は空のページを返す。
func (s *Service) List(ctx context.Context, page int, keyword string) (pagination.Page[model.QuestionSummary], error) {
	pred := search.Build(keyword)
	req := pagination.NewRequest(page, s.config.PageSize)

	result, err := s.questionRepo.FindAllMatching(ctx, pred, req)
	if err != nil {
		return pagination.Page[model.QuestionSummary]{}, fmt.Errorf("質問一覧の取得に失敗しました: %w", err)
	}

	s.metrics.RecordSearch(!pred.MatchAll(), result.TotalItems)
	return result, nil
}

// Get は質問の詳細を返す。viewerIDが空でない場合は閲覧者の投票状態も含める。
func (s *Service) Get(ctx context.Context, id, viewerID string) (*Detail, error) {
	q, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	answers, err := s.answerRepo.ListByQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("回答一覧の取得に失敗しました: %w", err)
	}

	detail := &Detail{Question: *q, Answers: make([]AnswerView, len(answers))}
	for i, a := range answers {
		detail.Answers[i] = AnswerView{Answer: a}
	}
	if viewerID == "" {
		return detail, nil
	}

	detail.Voted, err = s.voteRepo.HasVoted(ctx, model.QuestionTarget(id), viewerID)
	if err != nil {
		return nil, fmt.Errorf("投票状態の取得に失敗しました: %w", err)
	}
	for i := range detail.Answers {
		voted, err := s.voteRepo.HasVoted(ctx, model.AnswerTarget(detail.Answers[i].ID), viewerID)
		if err != nil {
			return nil, fmt.Errorf("投票状態の取得に失敗しました: %w", err)
		}
		detail.Answers[i].Voted = voted
	}
	return detail, nil
}

// Create は質問を投稿する。uploadがnilまたは空の場合は添付なしで保存する。
// 質問の保存に失敗した場合は保存済みの添付ファイルを削除する。
func (s *Service) Create(ctx context.Context, memberID string, form validation.QuestionForm, upload *Upload) (*model.Question, error) {
	if memberID == "" {
		return nil, model.NewUnauthorizedError()
	}
	form = normalize(form)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	var att *model.Attachment
	if upload != nil && upload.Body != nil {
		var err error
		att, err = s.attachments.Save(ctx, upload.Filename, upload.Body)
		if err != nil {
			s.metrics.RecordUpload(false)
			return nil, err
		}
		if att != nil {
			s.metrics.RecordUpload(true)
		}
	}

	q := &model.Question{
		ID:         uuid.New().String(),
		Subject:    form.Subject,
		Content:    form.Content,
		AuthorID:   memberID,
		CreatedAt:  time.Now(),
		Attachment: att,
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		if att != nil {
			s.discardAttachment(ctx, att.StoredFilename)
		}
		if model.HasCode(err, model.ErrCodeMemberNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("質問の保存に失敗しました: %w", err)
	}

	slog.Info("質問を投稿しました",
		slog.String("question_id", q.ID),
		slog.String("member_id", memberID),
		slog.Bool("has_attachment", att != nil),
	)
	return q, nil
}

// Modify は質問の件名と本文を変更する。作成者以外はFORBIDDEN_NOT_AUTHORエラーになる。
func (s *Service) Modify(ctx context.Context, memberID, id string, form validation.QuestionForm) (*model.Question, error) {
	q, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := model.RequireAuthor(q, memberID); err != nil {
		return nil, err
	}
	form = normalize(form)
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	now := time.Now()
	q.Subject = form.Subject
	q.Content = form.Content
	q.ModifiedAt = &now
	if err := s.questionRepo.Update(ctx, q); err != nil {
		if model.HasCode(err, model.ErrCodeQuestionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("質問の更新に失敗しました: %w", err)
	}
	return q, nil
}

// Delete は質問を削除する。回答と投票はCASCADE削除され、添付ファイルも削除する。
// 作成者以外はFORBIDDEN_NOT_AUTHORエラーになる。
func (s *Service) Delete(ctx context.Context, memberID, id string) error {
	q, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := model.RequireAuthor(q, memberID); err != nil {
		return err
	}

	if err := s.questionRepo.Delete(ctx, id); err != nil {
		if model.HasCode(err, model.ErrCodeQuestionNotFound) {
			return err
		}
		return fmt.Errorf("質問の削除に失敗しました: %w", err)
	}
	if q.Attachment != nil {
		s.discardAttachment(ctx, q.Attachment.StoredFilename)
	}

	slog.Info("質問を削除しました",
		slog.String("question_id", id),
		slog.String("member_id", memberID),
	)
	return nil
}

// find は質問を取得する。存在しない場合はQUESTION_NOT_FOUNDエラーを返す。
func (s *Service) find(ctx context.Context, id string) (*model.Question, error) {
	q, err := s.questionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("質問の取得に失敗しました: %w", err)
	}
	if q == nil {
		return nil, model.NewQuestionNotFoundError(id)
	}
	return q, nil
}

// normalize は件名の前後の空白だけを取り除く。
// 本文は投稿されたまま保存し、HTMLとしての無害化は表示時に行う。
func normalize(form validation.QuestionForm) validation.QuestionForm {
	return validation.QuestionForm{
		Subject: strings.TrimSpace(form.Subject),
		Content: form.Content,
	}
}

// discardAttachment は参照されなくなった添付ファイルを削除する。
// 失敗しても質問の操作は取り消さず、孤立したファイルとしてログに残す。
func (s *Service) discardAttachment(ctx context.Context, storedFilename string) {
	if err := s.attachments.Delete(ctx, storedFilename); err != nil {
		slog.Error("添付ファイルの削除に失敗しました",
			slog.String("stored_filename", storedFilename),
			slog.String("error", err.Error()),
		)
	}
}
