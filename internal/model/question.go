// Package model はドメインモデルを定義する。
package model

import "time"

// Attachment は質問に添付された画像のメタデータを表す。
// StoredFilenameは内部で生成した衝突しない名前で、ユーザー指定の名前をファイルシステムに渡すことはない。
type Attachment struct {
	OriginalFilename string
	StoredFilename   string
}

// Question は会員が投稿した質問を表す。
type Question struct {
	ID         string
	Subject    string
	Content    string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	Attachment *Attachment
	VoteCount  int
}

// AuthorMemberID は作成者の会員IDを返す。
func (q *Question) AuthorMemberID() string {
	if q == nil {
		return ""
	}
	return q.AuthorID
}

// QuestionSummary は質問一覧の1行を表す。
// question_votersとanswersの件数を集計した結果を含む。
type QuestionSummary struct {
	Question
	AnswerCount int
}

// Answer は質問に対する回答を表す。
// QuestionIDとAuthorIDは作成時に一度だけ設定され、以後変更しない。
type Answer struct {
	ID         string
	QuestionID string
	Content    string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	VoteCount  int
}

// AuthorMemberID は作成者の会員IDを返す。
func (a *Answer) AuthorMemberID() string {
	if a == nil {
		return ""
	}
	return a.AuthorID
}
