package repository

import (
	"context"
	"database/sql"
)

// dbExecutor は*sql.DBと*sql.Txに共通するクエリ実行メソッド。
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// contextWithTx はtxを運ぶcontextを返す。
func contextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// executor はctxが進行中のトランザクションを運んでいればそれを、なければdbを返す。
// セッション更新中の書き込みは同じコネクションとコミットに乗る。
func executor(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
