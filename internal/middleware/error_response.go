package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/qaboard/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードとHTTPステータスの対応表。
// 表にないコードは500として扱う。
var statusByCode = map[string]int{
	model.ErrCodeQuestionNotFound:   http.StatusNotFound,
	model.ErrCodeAnswerNotFound:     http.StatusNotFound,
	model.ErrCodeMemberNotFound:     http.StatusNotFound,
	model.ErrCodeAttachmentNotFound: http.StatusNotFound,
	model.ErrCodeUnauthorized:       http.StatusUnauthorized,
	model.ErrCodeInvalidCredentials: http.StatusUnauthorized,
	model.ErrCodeNotAuthor:          http.StatusForbidden,
	model.ErrCodeCSRFTokenInvalid:   http.StatusForbidden,
	model.ErrCodeDuplicateMember:    http.StatusConflict,
	model.ErrCodeVoteConflict:       http.StatusConflict,
	model.ErrCodeValidationFailed:   http.StatusBadRequest,
	model.ErrCodeInvalidVoteTarget:  http.StatusBadRequest,
	model.ErrCodeInvalidRequest:     http.StatusBadRequest,
	model.ErrCodeUploadTooLarge:     http.StatusRequestEntityTooLarge,
	model.ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,
}

// StatusForAPIError はAPIErrorのコードに対応するHTTPステータスを返す。
func StatusForAPIError(apiErr *model.APIError) int {
	if apiErr == nil {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// エラー応答は会員ごとに内容が変わるため、キャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteAPIError はコードに対応するステータスでAPIErrorを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
