package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/bookstore/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByUsername はusernameでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	return findAccountByUsername(ctx, r.db, username)
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, password_credential, provider, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Username, account.Email, account.PasswordCredential,
		string(account.Provider), account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// FindOrCreate はusernameをキーにアカウントを検索し、なければ作成する。
// 同時に同じusernameで呼ばれてもON CONFLICTにより1件だけ作成される。
func (r *PostgresAccountRepo) FindOrCreate(ctx context.Context, account *model.Account) (*model.Account, bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, password_credential, provider, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username) DO NOTHING`,
		account.ID, account.Username, account.Email, account.PasswordCredential,
		string(account.Provider), account.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	found, err := findAccountByUsername(ctx, r.db, account.Username)
	if err != nil {
		return nil, false, err
	}
	if found == nil {
		return nil, false, fmt.Errorf("account %q vanished after upsert", account.Username)
	}
	return found, rowsAffected == 1, nil
}

// queryRower は*sql.DBと*sql.Txの共通部分。
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findAccountByUsername(ctx context.Context, q queryRower, username string) (*model.Account, error) {
	account := &model.Account{}
	var provider string
	err := q.QueryRowContext(ctx,
		`SELECT id, username, email, password_credential, provider, created_at
		 FROM accounts WHERE username = $1`,
		username,
	).Scan(&account.ID, &account.Username, &account.Email, &account.PasswordCredential, &provider, &account.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by username: %w", err)
	}
	account.Provider = model.Provider(provider)

	return account, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
