package model

import "time"

// SessionState はセッションに紐づく訪問者の状態。
// Identityは未ログインの間nil。
type SessionState struct {
	Identity *Identity `json:"identity,omitempty"`
	Cart     Cart      `json:"cart"`
}

// Authenticated はIdentityが設定されているかを返す。
func (s *SessionState) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// Session は訪問者のセッションを表す。
// IdentityはDB上のAccountを再取得せずにそのまま保持するため、
// ログイン後にAccountが変更されても再ログインまで反映されない。
type Session struct {
	ID        string
	State     SessionState
	ExpiresAt time.Time
	CreatedAt time.Time
}
