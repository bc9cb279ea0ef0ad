package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/qaboard/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用した会員リポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	if !isCanonicalUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx,
		`SELECT id, name, email, password_hash, created_at FROM members WHERE id = $1`, id)
}

// FindByName は会員名で会員を取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByName(ctx context.Context, name string) (*model.Member, error) {
	return r.findOne(ctx,
		`SELECT id, name, email, password_hash, created_at FROM members WHERE name = $1`, name)
}

func (r *PostgresMemberRepo) findOne(ctx context.Context, query string, arg string) (*model.Member, error) {
	member := &model.Member{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&member.ID, &member.Name, &member.Email, &member.PasswordHash, &member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

// Create は会員を作成する。
// 会員名またはメールアドレスが重複する場合はDUPLICATE_MEMBERエラーを返す。
func (r *PostgresMemberRepo) Create(ctx context.Context, member *model.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (id, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		member.ID, member.Name, member.Email, member.PasswordHash, member.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.NewDuplicateMemberError()
	}
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
