package store

import (
	"context"
	"database/sql"
)

// Execer, Getter and Selecter are the narrow slices of sqlx that store
// methods accept, so any method can run against a *sqlx.DB or a
// *sqlx.Tx interchangeably.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
