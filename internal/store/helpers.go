package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// sqlxIn expands `?` placeholders into the right number of positional
// placeholders, used for dynamic IN (...) clauses; any arg may itself be
// a slice, in which case sqlx.In expands it in place.
func sqlxIn(query string, args ...any) (string, []any, error) {
	return sqlx.In(query, args...)
}
