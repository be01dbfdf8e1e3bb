package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bookstore/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用したカタログリポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// ListAll は全書籍を返す。
func (r *PostgresBookRepo) ListAll(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, author, summary, price FROM books ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Summary, &b.Price); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}

	return books, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
