package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var _ DBTX = pgxmock.PgxPoolIface(nil)

// NewMockPool creates a pgxmock pool for repository tests. Statements are
// matched by regular expression. Call ExpectationsWereMet() at the end of
// each test.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
}
