package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/qaboard/internal/model"
)

// voteTable は投票対象種別ごとのテーブル名と対象列名。
type voteTable struct {
	table     string
	targetCol string
}

var voteTables = map[model.VoteKind]voteTable{
	model.VoteKindQuestion: {table: "question_voters", targetCol: "question_id"},
	model.VoteKindAnswer:   {table: "answer_voters", targetCol: "answer_id"},
}

func lookupVoteTable(target model.VoteTarget) (voteTable, error) {
	vt, ok := voteTables[target.Kind]
	if !ok {
		return voteTable{}, model.NewInvalidVoteTargetError(string(target.Kind))
	}
	return vt, nil
}

// PostgresVoteRepo はPostgreSQLを使用した投票リポジトリ。
// (対象ID, 会員ID)の主キーとINSERT ... ON CONFLICT DO NOTHINGにより、
// 同時に投票が行われても1会員1票が保たれる。読み取り・変更・書き戻しは行わない。
type PostgresVoteRepo struct {
	db *sql.DB
}

// NewPostgresVoteRepo はPostgresVoteRepoを生成する。
func NewPostgresVoteRepo(db *sql.DB) *PostgresVoteRepo {
	return &PostgresVoteRepo{db: db}
}

// Add は投票を冪等に追加する。
// 新たに記録した場合はtrue、既に投票済みの場合はfalseを返す。
// 対象または会員が存在しない場合はNOT_FOUNDエラーを返す。
func (r *PostgresVoteRepo) Add(ctx context.Context, target model.VoteTarget, memberID string) (bool, error) {
	vt, err := lookupVoteTable(target)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(
			`INSERT INTO %s (%s, member_id, created_at) VALUES ($1, $2, now())
			 ON CONFLICT (%s, member_id) DO NOTHING`,
			vt.table, vt.targetCol, vt.targetCol,
		),
		target.ID, memberID,
	)
	if isUniqueViolation(err) {
		return false, model.NewVoteConflictError()
	}
	if isForeignKeyViolation(err) {
		return false, notFoundForTarget(target)
	}
	if err != nil {
		return false, fmt.Errorf("failed to add vote: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Count は対象の投票数を返す。
func (r *PostgresVoteRepo) Count(ctx context.Context, target model.VoteTarget) (int, error) {
	vt, err := lookupVoteTable(target)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`, vt.table, vt.targetCol),
		target.ID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

// HasVoted は会員が対象に投票済みかを返す。
func (r *PostgresVoteRepo) HasVoted(ctx context.Context, target model.VoteTarget, memberID string) (bool, error) {
	vt, err := lookupVoteTable(target)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND member_id = $2)`, vt.table, vt.targetCol),
		target.ID, memberID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check vote: %w", err)
	}
	return exists, nil
}

func notFoundForTarget(target model.VoteTarget) error {
	if target.Kind == model.VoteKindAnswer {
		return model.NewAnswerNotFoundError(target.ID)
	}
	return model.NewQuestionNotFoundError(target.ID)
}

// compile-time interface check
var _ VoteRepository = (*PostgresVoteRepo)(nil)
