// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, user, book, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeBookNotFound       = "BOOK_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeWrongPassword      = "WRONG_PASSWORD"
	ErrCodeIncorrectPassword  = "INCORRECT_PASSWORD"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidShelf       = "INVALID_SHELF"
	ErrCodeBookNotSaved       = "BOOK_NOT_SAVED"
)

// IncorrectPasswordMessage はパスワード変更時に現在のパスワードが一致しない場合のメッセージ。
const IncorrectPasswordMessage = "The current password entered is incorrect"

// NewUserNotFoundError は指定IDのユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("Could not find the user with ID %d", id),
		Category: "user",
		Action:   "Check the user ID.",
	}
}

// NewCurrentUserNotFoundError はログイン中のユーザーレコードが存在しない場合のエラーを生成する。
func NewCurrentUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewBookNotFoundError は指定IDの本が見つからない場合のエラーを生成する。
func NewBookNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("Could not find book with ID %d", id),
		Category: "book",
		Action:   "Check the book ID.",
	}
}

// NewEmailTakenError はユーザー登録に失敗した場合のエラーを生成する。
// 重複メールとメール送信失敗の両方でこのエラーを返す。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "Email taken",
		Category: "user",
		Action:   "Use a different email address.",
	}
}

// NewWrongPasswordError はアカウント削除時のパスワード不一致エラーを生成する。
func NewWrongPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWrongPassword,
		Message:  "Wrong password.",
		Category: "auth",
		Action:   "Enter your current password.",
	}
}

// NewIncorrectPasswordError はパスワード変更時の現在パスワード不一致エラーを生成する。
func NewIncorrectPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeIncorrectPassword,
		Message:  IncorrectPasswordMessage,
		Category: "auth",
		Action:   "Enter your current password.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid username or password.",
		Category: "auth",
		Action:   "Check your username and password.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Log in.",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Fix the request and try again.",
	}
}

// NewValidationError はフィールド単位の検証エラーを1つのAPIErrorにまとめる。
// メッセージはフィールド名の昇順で連結するため、同じ入力には常に同じメッセージを返す。
func NewValidationError(fieldErrors map[string]string) *APIError {
	keys := make([]string, 0, len(fieldErrors))
	for k := range fieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fieldErrors[k]
	}
	return NewInvalidRequestError(strings.Join(parts, "; "))
}

// NewInvalidIDError はパスパラメータのIDが不正な場合のエラーを生成する。
func NewInvalidIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("Invalid ID: %s", raw),
		Category: "validation",
		Action:   "IDs are positive integers.",
	}
}

// NewInvalidShelfError は未定義の本棚名が指定された場合のエラーを生成する。
func NewInvalidShelfError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidShelf,
		Message:  fmt.Sprintf("Unknown shelf: %s", name),
		Category: "validation",
		Action:   "Use one of: to-read, reading, read, did-not-finish.",
	}
}

// NewBookNotSavedError は本の保存が制約違反などで行われなかった場合のエラーを生成する。
func NewBookNotSavedError() *APIError {
	return &APIError{
		Code:     ErrCodeBookNotSaved,
		Message:  "Could not save book",
		Category: "book",
		Action:   "Check the book fields and try again.",
	}
}
