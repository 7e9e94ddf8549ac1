// Package notification はアカウント操作に伴うメール通知を提供する。
//
// Dispatcher はテンプレートを描画してSMTPで送信し、送信結果を監査ログに記録する。
package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Template は通知メールの種類を表す。値はテンプレートファイル名と一致する。
type Template string

const (
	// AccountCreated はユーザー登録完了の通知。
	AccountCreated Template = "account-created"
	// AccountDeleted は退会完了の通知。
	AccountDeleted Template = "account-deleted"
	// PasswordChanged はパスワード変更の通知。
	PasswordChanged Template = "password-changed"
)

var subjects = map[Template]string{
	AccountCreated:  "Your Book Project account has been created",
	AccountDeleted:  "Your Book Project account has been deleted",
	PasswordChanged: "Your Book Project password has been changed",
}

// Subject はメールの件名を返す。未定義のテンプレートでは空文字列を返す。
func (t Template) Subject() string {
	return subjects[t]
}

// UsernameFromEmail はメールアドレスのローカル部を宛名として返す。
// @を含まない場合は入力をそのまま返す。
func UsernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return email
	}
	return local
}

// Renderer は埋め込みテンプレートからメール本文を描画する。
type Renderer struct {
	templates *template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render はテンプレートに宛名を埋め込んだHTML本文を返す。
func (r *Renderer) Render(t Template, username string) (string, error) {
	var buf bytes.Buffer
	data := struct{ Username string }{Username: username}
	if err := r.templates.ExecuteTemplate(&buf, string(t)+".html", data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t, err)
	}
	return buf.String(), nil
}
