package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher はbcryptによるパスワード資格情報の生成と照合を行う。
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher はPasswordHasherを生成する。
// 存在しないユーザーの照合に使うダミーハッシュを同じコストで用意する。
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("bookstore-dummy-credential"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

// Hash はパスワードから保存用の資格情報を生成する。
func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は保存済み資格情報とパスワードが一致するかを返す。
// 資格情報が空（プロバイダー経由のアカウント）の場合もダミーハッシュと照合してからfalseを返す。
func (h *PasswordHasher) Verify(credential, password string) bool {
	if credential == "" {
		h.VerifyDummy(password)
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(password))
	return err == nil
}

// VerifyDummy はダミーハッシュと照合して同等の時間を消費する。結果は常に不一致。
func (h *PasswordHasher) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
