package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/qaboard/internal/model"
)

// PostgresAnswerRepo はPostgreSQLを使用した回答リポジトリ。
type PostgresAnswerRepo struct {
	db *sql.DB
}

// NewPostgresAnswerRepo はPostgresAnswerRepoを生成する。
func NewPostgresAnswerRepo(db *sql.DB) *PostgresAnswerRepo {
	return &PostgresAnswerRepo{db: db}
}

const answerSelect = `
	SELECT a.id, a.question_id, a.content, a.author_id, m.name,
	       a.created_at, a.modified_at,
	       (SELECT count(*) FROM answer_voters av WHERE av.answer_id = a.id)
	FROM answers a
	JOIN members m ON m.id = a.author_id`

// FindByID は指定IDの回答を作成者名・投票数付きで取得する。見つからない場合はnilを返す。
func (r *PostgresAnswerRepo) FindByID(ctx context.Context, id string) (*model.Answer, error) {
	if !isCanonicalUUID(id) {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, answerSelect+` WHERE a.id = $1`, id)
	answer, err := scanAnswer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find answer: %w", err)
	}
	return answer, nil
}

// ListByQuestion は質問に対する回答を作成日時の昇順で返す。
func (r *PostgresAnswerRepo) ListByQuestion(ctx context.Context, questionID string) ([]model.Answer, error) {
	rows, err := r.db.QueryContext(ctx,
		answerSelect+` WHERE a.question_id = $1 ORDER BY a.created_at ASC, a.id ASC`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		answers = append(answers, *answer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answer rows: %w", err)
	}
	return answers, nil
}

// Create は回答を作成する。質問が存在しない場合はQUESTION_NOT_FOUNDエラーを返す。
func (r *PostgresAnswerRepo) Create(ctx context.Context, answer *model.Answer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO answers (id, question_id, content, author_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		answer.ID, answer.QuestionID, answer.Content, answer.AuthorID, answer.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return model.NewQuestionNotFoundError(answer.QuestionID)
	}
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

// Update は回答の本文・更新日時を更新する。
func (r *PostgresAnswerRepo) Update(ctx context.Context, answer *model.Answer) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE answers SET content = $2, modified_at = $3 WHERE id = $1`,
		answer.ID, answer.Content, nullTime(answer.ModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	return requireAffected(result, model.NewAnswerNotFoundError(answer.ID))
}

// Delete は回答を削除する。
func (r *PostgresAnswerRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM answers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}
	return requireAffected(result, model.NewAnswerNotFoundError(id))
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnswer(s rowScanner) (*model.Answer, error) {
	var a model.Answer
	var modifiedAt sql.NullTime
	if err := s.Scan(
		&a.ID, &a.QuestionID, &a.Content, &a.AuthorID, &a.AuthorName,
		&a.CreatedAt, &modifiedAt, &a.VoteCount,
	); err != nil {
		return nil, err
	}
	a.ModifiedAt = nullTimePtr(modifiedAt)
	return &a, nil
}

// compile-time interface check
var _ AnswerRepository = (*PostgresAnswerRepo)(nil)
