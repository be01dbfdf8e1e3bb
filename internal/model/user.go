// Package model はドメインモデルを定義する。
package model

import "time"

// Provider はIdentityの出所（ローカル認証または外部IdP）を表す。
type Provider string

const (
	// ProviderLocal はユーザー名とパスワードによるローカル認証。
	ProviderLocal Provider = "Local"
	// ProviderGoogle はGoogleアカウントによる外部認証。
	ProviderGoogle Provider = "Google"
)

// Account は登録済みアカウントの永続化レコードを表す。
// Usernameは全アカウントで一意。外部IdPのアカウントは初回ログイン時に自動作成される。
type Account struct {
	ID                 string
	Username           string
	Email              string
	PasswordCredential string // ローカル: bcryptハッシュ / 外部IdP: プレースホルダ
	Provider           Provider
	CreatedAt          time.Time
}

// Identity は認証済みユーザーの正規化された表現。
// 認証元によらず同じ形になり、下流のコードは認証元で分岐しない。
// セッション中は変更されず、再ログインで新しいIdentityが発行される。
type Identity struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Provider Provider `json:"provider"`
}
