package model

// Authored は作成者を持つエンティティ（質問・回答）を表す。
type Authored interface {
	AuthorMemberID() string
}

// IsAuthor は actingMemberID がエンティティの作成者と一致するかを返す。
func IsAuthor(entity Authored, actingMemberID string) bool {
	if entity == nil || actingMemberID == "" || entity.AuthorMemberID() == "" {
		return false
	}
	return entity.AuthorMemberID() == actingMemberID
}

// RequireAuthor は作成者でない場合にFORBIDDEN_NOT_AUTHORエラーを返す。
// 変更・削除の前に呼び出し側で実行する。サービス層の変更操作自体は作成者を検証しない。
func RequireAuthor(entity Authored, actingMemberID string) error {
	if !IsAuthor(entity, actingMemberID) {
		return NewNotAuthorError()
	}
	return nil
}
