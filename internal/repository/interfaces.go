// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/bookstore/internal/model"
)

var (
	// ErrDuplicateUsername はusernameが既に使われている場合に返される。
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrSessionNotFound はセッションが存在しないか期限切れの場合に返される。
	ErrSessionNotFound = errors.New("session not found or expired")
)

// AccountRepository はアカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByUsername はusernameでアカウントを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Account, error)

	// Create はアカウントを作成する。usernameが重複する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, account *model.Account) error

	// FindOrCreate はusernameをキーにアカウントを検索し、なければ作成する。
	// 既存・新規いずれの場合も永続化済みのアカウントを返し、作成した場合はcreated=trueとなる。
	FindOrCreate(ctx context.Context, account *model.Account) (found *model.Account, created bool, err error)
}

// BookRepository はカタログの参照インターフェース。
type BookRepository interface {
	// ListAll は全書籍を登録順に返す。
	ListAll(ctx context.Context) ([]model.Book, error)
}

// OrderRepository は注文の永続化インターフェース。
type OrderRepository interface {
	// Create は注文を作成する。
	Create(ctx context.Context, order *model.Order) error

	// ListByOrderedBy は指定ユーザー名の注文をplaced_at昇順で返す。
	ListByOrderedBy(ctx context.Context, orderedBy string) ([]model.Order, error)
}

// SessionMutator はセッション更新の中で状態を変更する関数。
// PostgreSQL実装ではctxがセッション更新のトランザクションを運ぶため、
// 同じDBのリポジトリへctxで書き込むとセッションの書き戻しと一緒にコミットされる。
type SessionMutator func(ctx context.Context, state *model.SessionState) error

// SessionRepository はセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// Update はセッション状態を排他的に読み込み、fnで変更して書き戻す。
	// 同じセッションに対する並行Updateは直列化される。
	// fnがエラーを返した場合は何も書き込まない。
	// セッションが存在しない場合はErrSessionNotFoundを返す。
	Update(ctx context.Context, id string, fn SessionMutator) error

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
