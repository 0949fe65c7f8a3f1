// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はツイート本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからキオスク表示を保護する。
// bluemondayライブラリの厳格ポリシーで全てのHTMLタグを除去し、
// プレーンテキストのみを保存する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はツイート本文のサニタイズ機能のインターフェースを定義する。
// ツイートの保存前（取り込み時）に使用される。
type TextSanitizerService interface {
	// SanitizeText はツイート本文からHTMLタグを全て除去し、
	// HTMLエンティティを復元したプレーンテキストを返す。
	// scriptタグとstyleタグは内容ごと除去される。
	// 外部APIが返す &amp; 等のエンティティは表示用の文字に復元される。
	// 前後の空白は取り除かれる。空文字列の入力には空文字列を返す。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを持たないため、全てのタグが除去される。
// キオスクはツイートをテキストノードとして描画するので、
// マークアップを保存する必要はない。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はツイート本文からHTMLタグを除去したプレーンテキストを返す。
// bluemondayの出力はHTMLエスケープされているため、
// html.UnescapeStringで表示用の文字に戻す。
func (s *textSanitizer) SanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
