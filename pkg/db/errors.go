package db

import (
	"strings"

	pkgerrors "github.com/sahilarora/merakart-backend/pkg/errors"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
// When constraint identifiers are given, the violated constraint must match
// one of them. Postgres names the index, while the sqlite driver used in
// tests reports table.column, so callers pass both spellings. Without
// identifiers any unique violation matches.
func IsUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}

	if pg, ok := pkgerrors.PGError(err); ok {
		if pg.Code != pgUniqueViolationCode {
			return false
		}
		if len(constraints) == 0 {
			return true
		}
		for _, constraint := range constraints {
			if pg.Constraint == constraint {
				return true
			}
		}
		return false
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, constraint := range constraints {
		if constraint != "" && strings.Contains(msg, constraint) {
			return true
		}
	}
	return false
}
