// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, attachment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeQuestionNotFound   = "QUESTION_NOT_FOUND"
	ErrCodeAnswerNotFound     = "ANSWER_NOT_FOUND"
	ErrCodeMemberNotFound     = "MEMBER_NOT_FOUND"
	ErrCodeAttachmentNotFound = "ATTACHMENT_NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotAuthor          = "FORBIDDEN_NOT_AUTHOR"
	ErrCodeAttachmentIOFailed = "ATTACHMENT_IO_FAILED"
	ErrCodeVoteConflict       = "VOTE_CONFLICT"
	ErrCodeDuplicateMember    = "DUPLICATE_MEMBER"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUploadTooLarge     = "UPLOAD_TOO_LARGE"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidVoteTarget  = "INVALID_VOTE_TARGET"

	// HTTP層で発生するエラー
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeCSRFTokenInvalid  = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// HasCode はerrがAPIErrorであり、指定コードを持つかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewQuestionNotFoundError は質問未検出エラーを生成する。
func NewQuestionNotFoundError(questionID string) *APIError {
	return &APIError{
		Code:     ErrCodeQuestionNotFound,
		Message:  fmt.Sprintf("指定された質問が見つかりません: %s", questionID),
		Category: "content",
		Action:   "質問IDを確認してください。",
	}
}

// NewAnswerNotFoundError は回答未検出エラーを生成する。
func NewAnswerNotFoundError(answerID string) *APIError {
	return &APIError{
		Code:     ErrCodeAnswerNotFound,
		Message:  fmt.Sprintf("指定された回答が見つかりません: %s", answerID),
		Category: "content",
		Action:   "回答IDを確認してください。",
	}
}

// NewMemberNotFoundError は会員未検出エラーを生成する。
func NewMemberNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  "会員が見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAttachmentNotFoundError は添付ファイル未検出エラーを生成する。
func NewAttachmentNotFoundError(storedFilename string) *APIError {
	return &APIError{
		Code:     ErrCodeAttachmentNotFound,
		Message:  fmt.Sprintf("指定された添付ファイルが見つかりません: %s", storedFilename),
		Category: "attachment",
		Action:   "ファイル名を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotAuthorError は作成者以外による変更・削除のエラーを生成する。
func NewNotAuthorError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthor,
		Message:  "この操作は作成者のみ実行できます。",
		Category: "auth",
		Action:   "自分が投稿した質問・回答のみ変更・削除できます。",
	}
}

// NewAttachmentIOError は添付ファイルの読み書き失敗エラーを生成する。
func NewAttachmentIOError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAttachmentIOFailed,
		Message:  fmt.Sprintf("添付ファイルの読み書きに失敗しました: %s", reason),
		Category: "attachment",
		Action:   "しばらく待ってから再度アップロードしてください。",
	}
}

// NewVoteConflictError は投票の一意制約違反エラーを生成する。
// 「この会員は投票済み」という意図は満たされているため、呼び出し側は成功として扱う。
func NewVoteConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeVoteConflict,
		Message:  "既に投票済みです。",
		Category: "content",
		Action:   "対応は不要です。",
	}
}

// NewDuplicateMemberError は会員名またはメールアドレスの重複エラーを生成する。
func NewDuplicateMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateMember,
		Message:  "この会員名またはメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別の会員名またはメールアドレスを指定してください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewUploadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("アップロードできるファイルサイズの上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "サイズの小さい画像を選択してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "会員名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewInvalidVoteTargetError は不明な投票対象種別のエラーを生成する。
func NewInvalidVoteTargetError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVoteTarget,
		Message:  fmt.Sprintf("無効な投票対象です: %s", kind),
		Category: "validation",
		Action:   "投票対象には question または answer を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
