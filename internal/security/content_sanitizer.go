// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はユーザーが入力した本の情報を保存前にサニタイズし、
// 一覧画面などでのXSSを防ぐ。
// bluemondayライブラリの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はユーザー入力のサニタイズ機能のインターフェースを定義する。
type ContentSanitizer interface {
	// SanitizeText は全てのタグを除去したプレーンテキストを返す。
	// タイトル、著者名、ジャンルなど1行の項目に使用する。
	// 前後の空白は除去される。
	SanitizeText(raw string) string

	// SanitizeReview はレビュー本文をサニタイズする。
	// 許可タグ（p, br, ul, ol, li, blockquote, strong, em）のみを通過させ、
	// script, iframe, style, a, imgタグおよびon*イベント属性を除去する。
	SanitizeReview(raw string) string
}

// contentSanitizer はContentSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	text   *bluemonday.Policy
	review *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	review := bluemonday.NewPolicy()
	// リンクと画像はレビューに不要なため許可しない
	review.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	return &contentSanitizer{
		text:   bluemonday.StrictPolicy(),
		review: review,
	}
}

// SanitizeText は全てのタグを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、保存用に元の文字へ戻す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.text.Sanitize(raw)))
}

// SanitizeReview はレビュー本文をサニタイズする。
func (s *contentSanitizer) SanitizeReview(raw string) string {
	if raw == "" {
		return ""
	}
	return s.review.Sanitize(raw)
}
