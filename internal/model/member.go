// Package model はドメインモデルを定義する。
package model

import "time"

// Member は掲示板に投稿・投票する会員を表す。
// 作成後は変更しない（名前変更の契約はない）。
type Member struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // bcryptハッシュ。コア層では不透明な値として扱う
	CreatedAt    time.Time
}

// Session は会員のログインセッションを表す。
type Session struct {
	ID        string
	MemberID  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
