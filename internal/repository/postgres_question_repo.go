package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/pagination"
	"github.com/hitoshi/qaboard/internal/search"
)

// PostgresQuestionRepo はPostgreSQLを使用した質問リポジトリ。
type PostgresQuestionRepo struct {
	db *sql.DB
}

// NewPostgresQuestionRepo はPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db *sql.DB) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{db: db}
}

// FindByID は指定IDの質問を作成者名・投票数付きで取得する。見つからない場合はnilを返す。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	if !isCanonicalUUID(id) {
		return nil, nil
	}
	var q model.Question
	var originalFilename, storedFilename sql.NullString
	var modifiedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT q.id, q.subject, q.content, q.author_id, m.name,
		        q.original_filename, q.stored_filename, q.created_at, q.modified_at,
		        (SELECT count(*) FROM question_voters qv WHERE qv.question_id = q.id)
		 FROM questions q
		 JOIN members m ON m.id = q.author_id
		 WHERE q.id = $1`,
		id,
	).Scan(
		&q.ID, &q.Subject, &q.Content, &q.AuthorID, &q.AuthorName,
		&originalFilename, &storedFilename, &q.CreatedAt, &modifiedAt,
		&q.VoteCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question: %w", err)
	}

	q.ModifiedAt = nullTimePtr(modifiedAt)
	q.Attachment = attachmentFromColumns(originalFilename, storedFilename)
	return &q, nil
}

// FindAllMatching は検索条件に一致する質問を1ページ分返す。
// 件数取得とページ取得は同一のREAD ONLYトランザクション内で行い、
// 総件数とページ内容の整合を保つ。
func (r *PostgresQuestionRepo) FindAllMatching(
	ctx context.Context,
	pred search.Predicate,
	req pagination.Request,
) (pagination.Page[model.QuestionSummary], error) {
	where, args := buildSearchCondition(pred, 1)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return pagination.Page[model.QuestionSummary]{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int
	err = tx.QueryRowContext(ctx,
		`SELECT count(*)
		 FROM questions q
		 JOIN members m ON m.id = q.author_id
		 WHERE `+where,
		args...,
	).Scan(&total)
	if err != nil {
		return pagination.Page[model.QuestionSummary]{}, fmt.Errorf("failed to count questions: %w", err)
	}

	// 最終ページより後ろは問い合わせずに空のページを返す
	if req.Offset() >= total {
		return pagination.NewPage([]model.QuestionSummary{}, req, total), nil
	}

	argIndex := len(args) + 1
	query := fmt.Sprintf(
		`SELECT q.id, q.subject, q.content, q.author_id, m.name,
		        q.original_filename, q.stored_filename, q.created_at, q.modified_at,
		        (SELECT count(*) FROM question_voters qv WHERE qv.question_id = q.id),
		        (SELECT count(*) FROM answers ac WHERE ac.question_id = q.id)
		 FROM questions q
		 JOIN members m ON m.id = q.author_id
		 WHERE %s
		 ORDER BY q.created_at DESC, q.id ASC
		 LIMIT $%d OFFSET $%d`,
		where, argIndex, argIndex+1,
	)
	args = append(args, req.Limit(), req.Offset())

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Page[model.QuestionSummary]{}, fmt.Errorf("failed to search questions: %w", err)
	}
	defer rows.Close()

	items := make([]model.QuestionSummary, 0, req.Limit())
	for rows.Next() {
		var s model.QuestionSummary
		var originalFilename, storedFilename sql.NullString
		var modifiedAt sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.Subject, &s.Content, &s.AuthorID, &s.AuthorName,
			&originalFilename, &storedFilename, &s.CreatedAt, &modifiedAt,
			&s.VoteCount, &s.AnswerCount,
		); err != nil {
			return pagination.Page[model.QuestionSummary]{}, fmt.Errorf("failed to scan question row: %w", err)
		}
		s.ModifiedAt = nullTimePtr(modifiedAt)
		s.Attachment = attachmentFromColumns(originalFilename, storedFilename)
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[model.QuestionSummary]{}, fmt.Errorf("failed to iterate question rows: %w", err)
	}

	return pagination.NewPage(items, req, total), nil
}

// Create は質問を作成する。
func (r *PostgresQuestionRepo) Create(ctx context.Context, question *model.Question) error {
	var originalFilename, storedFilename sql.NullString
	if question.Attachment != nil {
		originalFilename = nullString(question.Attachment.OriginalFilename)
		storedFilename = nullString(question.Attachment.StoredFilename)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO questions (id, subject, content, author_id, original_filename, stored_filename, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		question.ID, question.Subject, question.Content, question.AuthorID,
		originalFilename, storedFilename, question.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return model.NewMemberNotFoundError()
	}
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// Update は質問の件名・本文・更新日時を更新する。
func (r *PostgresQuestionRepo) Update(ctx context.Context, question *model.Question) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE questions SET subject = $2, content = $3, modified_at = $4 WHERE id = $1`,
		question.ID, question.Subject, question.Content, nullTime(question.ModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return requireAffected(result, model.NewQuestionNotFoundError(question.ID))
}

// Delete は質問を削除する。回答と投票はCASCADE削除される。
func (r *PostgresQuestionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return requireAffected(result, model.NewQuestionNotFoundError(id))
}

// attachmentFromColumns は添付ファイル列からAttachmentを組み立てる。保存名がNULLならnilを返す。
func attachmentFromColumns(originalFilename, storedFilename sql.NullString) *model.Attachment {
	if !storedFilename.Valid {
		return nil
	}
	return &model.Attachment{
		OriginalFilename: nullStringValue(originalFilename),
		StoredFilename:   storedFilename.String,
	}
}

// requireAffected は更新件数が0件の場合にnotFoundを返す。
func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// compile-time interface check
var _ QuestionRepository = (*PostgresQuestionRepo)(nil)
