package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	pqUndefinedTable  = "42P01"
)

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint violation
// If constraint is empty, it returns true for any unique violation
// If constraint is specified, it only returns true for that specific constraint
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := asPQError(err, pqUniqueViolation)
	if !ok {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsUndefinedTable reports whether err says a table is missing, which means
// the schema has not been migrated
func IsUndefinedTable(err error) bool {
	_, ok := asPQError(err, pqUndefinedTable)
	return ok
}

func asPQError(err error, code string) (*pq.Error, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, false
	}
	return pqErr, string(pqErr.Code) == code
}
