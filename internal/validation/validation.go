// Package validation は入力フォームの検証を行う。
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/qaboard/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// QuestionForm は質問の作成・変更フォーム。
type QuestionForm struct {
	Subject string `validate:"required,max=200"`
	Content string `validate:"required,max=20000"`
}

// AnswerForm は回答の作成・変更フォーム。
type AnswerForm struct {
	Content string `validate:"required,max=20000"`
}

// SignupForm は会員登録フォーム。
// パスワードの上限はbcryptが扱える72バイトに合わせる。
type SignupForm struct {
	Name     string `validate:"required,min=3,max=25,alphanum"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

// LoginForm はログインフォーム。
type LoginForm struct {
	Name     string `validate:"required"`
	Password string `validate:"required"`
}

// Struct はフォームを検証し、違反がある場合はVALIDATION_FAILEDエラーを返す。
// 文字数の上限はバイト数ではなく文字数で判定する。
func Struct(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate form: %w", err)
	}

	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		reasons = append(reasons, describe(fe))
	}
	return model.NewValidationError(strings.Join(reasons, ", "))
}

// describe は1件の検証エラーを利用者向けの文言にする。
func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", field)
	case "max":
		return fmt.Sprintf("%s は%s文字以内で入力してください", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s は%s文字以上で入力してください", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s の形式が正しくありません", field)
	case "alphanum":
		return fmt.Sprintf("%s は半角英数字で入力してください", field)
	default:
		return fmt.Sprintf("%s が不正です", field)
	}
}

// PasswordFitsBcrypt はパスワードがbcryptの入力上限（72バイト）に収まるかを返す。
// validatorのmaxは文字数で判定するため、マルチバイト文字を含む場合に別途確認する。
func PasswordFitsBcrypt(password string) bool {
	return len(password) <= 72 && utf8.ValidString(password)
}
