package auth

import "github.com/hitoshi/bookstore/internal/model"

// CredentialSource はサインインに使われる資格情報の種類を表す。
// LocalCredential と ProviderCredential のいずれか。
type CredentialSource interface {
	credentialSource()
}

// LocalCredential はusernameとパスワードによる資格情報。
type LocalCredential struct {
	Username string
	Password string
}

// ProviderProfile は外部プロバイダーから取得したプロフィール。
type ProviderProfile struct {
	DisplayName string
}

// ProviderCredential は外部プロバイダーで認証済みのプロフィール。
type ProviderCredential struct {
	Provider model.Provider
	Profile  ProviderProfile
}

func (LocalCredential) credentialSource()    {}
func (ProviderCredential) credentialSource() {}
