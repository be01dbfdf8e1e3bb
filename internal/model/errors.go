// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInvalidPrice = "INVALID_PRICE"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeSessionGone  = "SESSION_NOT_FOUND"
	ErrCodeCSRF         = "CSRF_TOKEN_INVALID"
)

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidPriceError は価格の形式が不正な場合のエラーを生成する。
func NewInvalidPriceError(price string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("価格の形式が正しくありません: %q", price),
		Category: "validation",
		Action:   "0以上の数値を指定してください。",
	}
}

// NewInvalidInputError は必須項目の欠落などの入力エラーを生成する。
func NewInvalidInputError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力項目が不足しています: %s", field),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewSessionNotFoundError はセッションが失効している場合のエラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionGone,
		Message:  "セッションが見つからないか期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "フォームの有効期限が切れているか、不正な送信です。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度送信してください。",
	}
}
