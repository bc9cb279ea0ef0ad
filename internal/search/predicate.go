// Package search は質問のキーワード検索条件を組み立てる。
//
// Predicate はストレージに依存しない検索条件の値型で、
// 「結合済みフィールドに対する部分一致条件のOR」を表す。
// PostgreSQLリポジトリはこれをSQLに変換し、メモリ上の評価はMatches/Filterで行う。
package search

import (
	"strings"

	"github.com/samber/lo"

	"github.com/hitoshi/qaboard/internal/model"
)

// Field は検索対象となる結合済みフィールドを表す。
type Field string

const (
	// FieldQuestionSubject は質問の件名。
	FieldQuestionSubject Field = "question.subject"
	// FieldQuestionContent は質問の本文。
	FieldQuestionContent Field = "question.content"
	// FieldQuestionAuthorName は質問作成者の会員名。
	FieldQuestionAuthorName Field = "question.author_name"
	// FieldAnswerContent は回答の本文。
	FieldAnswerContent Field = "answer.content"
	// FieldAnswerAuthorName は回答作成者の会員名。
	FieldAnswerAuthorName Field = "answer.author_name"
)

// AllFields は検索対象の5フィールド。
var AllFields = []Field{
	FieldQuestionSubject,
	FieldQuestionContent,
	FieldQuestionAuthorName,
	FieldAnswerContent,
	FieldAnswerAuthorName,
}

// IsAnswerField は回答側（answers JOIN）のフィールドかを返す。
func (f Field) IsAnswerField() bool {
	return f == FieldAnswerContent || f == FieldAnswerAuthorName
}

// Clause は1フィールドに対する部分一致条件を表す。
type Clause struct {
	Field Field
}

// Predicate はClauseのORで構成される検索条件。
// Keywordが空の場合は全件に一致する。
type Predicate struct {
	Keyword string
	Clauses []Clause
}

// Build はキーワードから5フィールドのOR条件を組み立てる。
// 一致判定は大文字小文字を区別する部分一致であり、トークン検索ではない。
func Build(keyword string) Predicate {
	if keyword == "" {
		return Predicate{}
	}
	return Predicate{
		Keyword: keyword,
		Clauses: lo.Map(AllFields, func(f Field, _ int) Clause {
			return Clause{Field: f}
		}),
	}
}

// MatchAll は条件が全件一致（キーワードなし）かを返す。
func (p Predicate) MatchAll() bool {
	return p.Keyword == "" || len(p.Clauses) == 0
}

// JoinedRow は questions LEFT JOIN members LEFT JOIN answers LEFT JOIN members の1行を表す。
// 回答を持たない質問ではAnswerがnilになる。
type JoinedRow struct {
	Question         model.QuestionSummary
	Answer           *model.Answer
	AnswerAuthorName string
}

// Matches は結合済みの1行が条件に一致するかを返す。
func (p Predicate) Matches(row JoinedRow) bool {
	if p.MatchAll() {
		return true
	}
	for _, c := range p.Clauses {
		value, ok := fieldValue(row, c.Field)
		if ok && strings.Contains(value, p.Keyword) {
			return true
		}
	}
	return false
}

// fieldValue は行からフィールド値を取り出す。LEFT JOINでNULLとなる列はfalseを返す。
func fieldValue(row JoinedRow, f Field) (string, bool) {
	switch f {
	case FieldQuestionSubject:
		return row.Question.Subject, true
	case FieldQuestionContent:
		return row.Question.Content, true
	case FieldQuestionAuthorName:
		return row.Question.AuthorName, true
	case FieldAnswerContent:
		if row.Answer == nil {
			return "", false
		}
		return row.Answer.Content, true
	case FieldAnswerAuthorName:
		if row.Answer == nil {
			return "", false
		}
		return row.AnswerAuthorName, true
	}
	return "", false
}

// Filter は結合行を評価し、一致した質問を質問IDで重複排除して返す。
// 1つの質問が複数の回答と結合されると一致行が増えるため、ページング前に必ず重複排除する。
// 返却順は最初に一致した行の順序を保つ。
func Filter(p Predicate, rows []JoinedRow) []model.QuestionSummary {
	matched := lo.Filter(rows, func(row JoinedRow, _ int) bool {
		return p.Matches(row)
	})
	unique := lo.UniqBy(matched, func(row JoinedRow) string {
		return row.Question.ID
	})
	return lo.Map(unique, func(row JoinedRow, _ int) model.QuestionSummary {
		return row.Question
	})
}
