// Package auth はローカル認証・外部プロバイダー認証を1つのIdentityに正規化し、
// サインイン時のセッション発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/bookstore/internal/metrics"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/repository"
	"github.com/hitoshi/bookstore/internal/security"
)

var (
	// ErrRejected はusernameが存在しない場合とパスワードが一致しない場合の両方で返される。
	ErrRejected = errors.New("invalid username or password")
	// ErrProviderConflict は外部プロバイダーの表示名が別プロバイダーのアカウントと衝突した場合に返される。
	ErrProviderConflict = errors.New("display name is registered with another provider")
	// ErrUnsupportedCredential は未知のCredentialSourceが渡された場合に返される。
	ErrUnsupportedCredential = errors.New("unsupported credential source")
)

// 登録時の入力制約。
const (
	MinPasswordLength = 6
	MinUsernameLength = 5
	MaxUsernameLength = 15

	passwordLengthMessage = "Password length must be more than 5 characters!"
	usernameLengthMessage = "Username minlength is 5 and max 15!"
)

// ValidationError は登録フォームの入力検証エラー。Messageはそのまま利用者に表示する。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*ProviderProfile, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	// OAuthProviderName はOAuthProviderが表すプロバイダー。
	OAuthProviderName model.Provider
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	accounts  repository.AccountRepository
	sessions  repository.SessionRepository
	hasher    *PasswordHasher
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	oauth OAuthProvider,
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	hasher *PasswordHasher,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if config.OAuthProviderName == "" {
		config.OAuthProviderName = model.ProviderGoogle
	}
	return &Service{
		oauth:     oauth,
		accounts:  accounts,
		sessions:  sessions,
		hasher:    hasher,
		sanitizer: sanitizer,
		metrics:   mc,
		config:    config,
		now:       time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Authenticate は資格情報の種類に関わらず同じ形のIdentityを返す。
func (s *Service) Authenticate(ctx context.Context, source CredentialSource) (*model.Identity, error) {
	switch cred := source.(type) {
	case LocalCredential:
		identity, err := s.authenticateLocal(ctx, cred)
		s.metrics.RecordSignIn(string(model.ProviderLocal), signInResult(err))
		return identity, err
	case ProviderCredential:
		identity, err := s.authenticateProvider(ctx, cred)
		s.metrics.RecordSignIn(string(cred.Provider), signInResult(err))
		return identity, err
	default:
		return nil, ErrUnsupportedCredential
	}
}

// authenticateLocal はRegisterと同じ正規化を施したusernameでアカウントを引く。
func (s *Service) authenticateLocal(ctx context.Context, cred LocalCredential) (*model.Identity, error) {
	account, err := s.accounts.FindByUsername(ctx, s.sanitizer.Sanitize(cred.Username))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	// 未登録の場合も照合コストを払い、応答時間で区別できないようにする
	if account == nil {
		s.hasher.VerifyDummy(cred.Password)
		return nil, ErrRejected
	}
	if account.Provider != model.ProviderLocal {
		s.hasher.VerifyDummy(cred.Password)
		return nil, ErrRejected
	}
	if !s.hasher.Verify(account.PasswordCredential, cred.Password) {
		return nil, ErrRejected
	}

	return &model.Identity{
		Name:     account.Username,
		Email:    account.Email,
		Provider: model.ProviderLocal,
	}, nil
}

func (s *Service) authenticateProvider(ctx context.Context, cred ProviderCredential) (*model.Identity, error) {
	name := s.sanitizer.Sanitize(cred.Profile.DisplayName)
	if name == "" {
		return nil, ErrEmptyDisplayName
	}
	email := providerPlaceholderEmail(cred.Provider)

	account, created, err := s.accounts.FindOrCreate(ctx, &model.Account{
		ID:        uuid.New().String(),
		Username:  name,
		Email:     email,
		Provider:  cred.Provider,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find or create provider account: %w", err)
	}
	if account.Provider != cred.Provider {
		slog.Warn("provider sign-in collides with existing account",
			slog.String("username", name),
			slog.String("provider", string(cred.Provider)),
			slog.String("existing_provider", string(account.Provider)),
		)
		return nil, ErrProviderConflict
	}
	if created {
		slog.Info("provider account created",
			slog.String("username", name),
			slog.String("provider", string(cred.Provider)),
		)
	}

	return &model.Identity{
		Name:     name,
		Email:    email,
		Provider: cred.Provider,
	}, nil
}

// Register は入力を検証してローカルアカウントを作成する。
// 検証エラーは*ValidationError、username重複はrepository.ErrDuplicateUsernameを返す。
func (s *Service) Register(ctx context.Context, username, password, email string) error {
	username = s.sanitizer.Sanitize(username)
	email = s.sanitizer.Sanitize(email)

	if err := validateRegistration(username, password); err != nil {
		s.metrics.RecordSignup(metrics.ResultRejected)
		return err
	}

	credential, err := s.hasher.Hash(password)
	if err != nil {
		s.metrics.RecordSignup(metrics.ResultError)
		return err
	}

	account := &model.Account{
		ID:                 uuid.New().String(),
		Username:           username,
		Email:              email,
		PasswordCredential: credential,
		Provider:           model.ProviderLocal,
		CreatedAt:          s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			s.metrics.RecordSignup(metrics.ResultRejected)
		} else {
			s.metrics.RecordSignup(metrics.ResultError)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.RecordSignup(metrics.ResultSuccess)
	slog.Info("local account registered", slog.String("username", username))
	return nil
}

// validateRegistration はパスワード長、username長の順に検証する。
func validateRegistration(username, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Message: passwordLengthMessage}
	}
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return &ValidationError{Message: usernameLengthMessage}
	}
	return nil
}

// Login はローカル資格情報で認証し、新しいセッションを発行する。
func (s *Service) Login(ctx context.Context, username, password, previousSessionID string) (*model.Session, error) {
	identity, err := s.Authenticate(ctx, LocalCredential{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return s.SignIn(ctx, identity, previousSessionID)
}

// HandleCallback はOAuthコールバックを処理し、新しいセッションを発行する。
// 未登録の表示名であればアカウントを自動作成する。
func (s *Service) HandleCallback(ctx context.Context, code, previousSessionID string) (*model.Session, error) {
	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordSignIn(string(s.config.OAuthProviderName), metrics.ResultError)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.Authenticate(ctx, ProviderCredential{
		Provider: s.config.OAuthProviderName,
		Profile:  *profile,
	})
	if err != nil {
		return nil, err
	}
	return s.SignIn(ctx, identity, previousSessionID)
}

// SignIn はidentityを持つ新しいセッションを発行する。
// 有効な旧セッションがあればそのカートを新しいセッションに統合する。
// 旧セッションは新しいセッションの保存後に削除する。
func (s *Service) SignIn(ctx context.Context, identity *model.Identity, previousSessionID string) (*model.Session, error) {
	session, err := s.newSession(identity)
	if err != nil {
		return nil, err
	}

	var previous *model.Session
	if previousSessionID != "" {
		previous, err = s.sessions.FindByID(ctx, previousSessionID)
		if err != nil {
			slog.Warn("failed to load previous session", slog.String("error", err.Error()))
			previous = nil
		}
		if previous != nil {
			session.State.Cart.Merge(previous.State.Cart)
		}
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if previous != nil {
		if err := s.sessions.DeleteByID(ctx, previous.ID); err != nil {
			slog.Warn("failed to delete previous session", slog.String("error", err.Error()))
		}
	}

	slog.Info("signed in",
		slog.String("username", identity.Name),
		slog.String("provider", string(identity.Provider)),
		slog.Int("carried_items", session.State.Cart.ItemCount()),
	)
	return session, nil
}

// StartSession は未ログインの訪問者用にIdentityを持たないセッションを発行する。
func (s *Service) StartSession(ctx context.Context) (*model.Session, error) {
	session, err := s.newSession(nil)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

func (s *Service) newSession(identity *model.Identity) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	return &model.Session{
		ID: sessionID,
		State: model.SessionState{
			Identity: identity,
			Cart:     model.Cart{Items: []model.CartItem{}},
		},
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}, nil
}

// providerPlaceholderEmail は外部プロバイダーのアカウントに保存するメールアドレスの代替値。
func providerPlaceholderEmail(provider model.Provider) string {
	return strings.ToLower(string(provider)) + "-signin"
}

func signInResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrRejected), errors.Is(err, ErrProviderConflict):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
