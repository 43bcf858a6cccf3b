package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// Constraint names from the schema migrations. Violation of one of these is
// how concurrent inserts of the same username or identity get serialized.
const (
	constraintAccountsUsername  = "accounts_username_key"
	constraintIdentitiesPairKey = "identities_provider_provider_user_id_key"
	constraintSessionsToken     = "sessions_token_key"
)

// isUniqueViolation reports whether err is a PostgreSQL unique violation.
// When constraint is non-empty, the violation must be on that constraint.
func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
