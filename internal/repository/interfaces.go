// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/qaboard/internal/model"
	"github.com/hitoshi/qaboard/internal/pagination"
	"github.com/hitoshi/qaboard/internal/search"
)

// MemberRepository は会員データの永続化インターフェース。
type MemberRepository interface {
	// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Member, error)

	// FindByName は会員名で会員を取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Member, error)

	// Create は会員を作成する。
	// 会員名またはメールアドレスが重複する場合はDUPLICATE_MEMBERエラーを返す。
	Create(ctx context.Context, member *model.Member) error
}

// QuestionRepository は質問データの永続化インターフェース。
// 変更・削除は作成者を検証しない。呼び出し側でmodel.RequireAuthorを使うこと。
type QuestionRepository interface {
	// FindByID は指定IDの質問を作成者名・投票数付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Question, error)

	// FindAllMatching は検索条件に一致する質問を質問ID単位で重複排除し、
	// 作成日時の降順（同時刻はID昇順）で1ページ分返す。
	// 最終ページより後ろを要求した場合は空のページを返す。
	FindAllMatching(ctx context.Context, pred search.Predicate, req pagination.Request) (pagination.Page[model.QuestionSummary], error)

	// Create は質問を作成する。
	Create(ctx context.Context, question *model.Question) error

	// Update は質問の件名・本文・更新日時を更新する。
	Update(ctx context.Context, question *model.Question) error

	// Delete は質問を削除する。回答と投票はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// AnswerRepository は回答データの永続化インターフェース。
type AnswerRepository interface {
	// FindByID は指定IDの回答を作成者名・投票数付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Answer, error)

	// ListByQuestion は質問に対する回答を作成日時の昇順で返す。
	ListByQuestion(ctx context.Context, questionID string) ([]model.Answer, error)

	// Create は回答を作成する。質問が存在しない場合はQUESTION_NOT_FOUNDエラーを返す。
	Create(ctx context.Context, answer *model.Answer) error

	// Update は回答の本文・更新日時を更新する。
	Update(ctx context.Context, answer *model.Answer) error

	// Delete は回答を削除する。回答への投票はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// VoteRepository は投票（対象と会員の組）の永続化インターフェース。
// 投票は追加のみで、取り消しはない。
type VoteRepository interface {
	// Add は投票を冪等に追加する。
	// 新たに記録した場合はtrue、既に投票済みの場合はfalseを返す。
	Add(ctx context.Context, target model.VoteTarget, memberID string) (bool, error)

	// Count は対象の投票数を返す。
	Count(ctx context.Context, target model.VoteTarget) (int, error)

	// HasVoted は会員が対象に投票済みかを返す。
	HasVoted(ctx context.Context, target model.VoteTarget, memberID string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByMemberID は指定会員の全セッションを削除する。
	DeleteByMemberID(ctx context.Context, memberID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
