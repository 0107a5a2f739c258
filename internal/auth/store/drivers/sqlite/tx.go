package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/tracker/internal/auth/store"
)

var errNestedTx = errors.New("sqlite: transaction already open")

// txStore scopes every repository to one *sql.Tx. Its lifecycle belongs to
// whoever opened it.
type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore { return &txStore{tx: tx} }

func (t *txStore) Users() store.Users                   { return &usersRepo{q: t.tx} }
func (t *txStore) Roles() store.Roles                   { return &rolesRepo{q: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens   { return &refreshTokensRepo{q: t.tx} }
func (t *txStore) PasswordResets() store.PasswordResets { return &passwordResetsRepo{q: t.tx} }

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Tx refuses to open a second transaction. SQLite would block on it.
func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, errNestedTx }

// WithTx joins the open transaction: fn runs against t and the outermost
// caller decides whether it commits.
func (t *txStore) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}

// Ping, Close and ApplyMigrations act on the database, not the transaction.
func (t *txStore) Ping(context.Context) error { return nil }
func (t *txStore) Close() error               { return nil }
func (t *txStore) ApplyMigrations() error     { return nil }
