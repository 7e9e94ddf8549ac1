// Package validator はフィールド単位の検証エラーを蓄積する軽量バリデータを提供する。
package validator

import (
	"regexp"
	"strings"
)

// EmailRX は簡易的なメールアドレス形式の正規表現。
var EmailRX = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Validator はフィールド名とエラーメッセージの対応を保持する。
// Errorsが空のValidatorは検証成功とみなす。
type Validator struct {
	Errors map[string]string
}

// New は空のValidatorを生成する。
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid はエラーが1件もない場合にtrueを返す。
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError はkeyにエラーを記録する。
// 既に同じkeyのエラーがある場合は上書きせず、最初の失敗を残す。
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check はokがfalseの場合のみエラーを記録する。
//
//	v.Check(NotBlank(title), "title", "must be provided")
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// NotBlank は空白以外の文字を含む場合にtrueを返す。
func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Matches は正規表現に一致する場合にtrueを返す。
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// Between はmin以上max以下の場合にtrueを返す。
func Between[T int | float64](value, min, max T) bool {
	return value >= min && value <= max
}
