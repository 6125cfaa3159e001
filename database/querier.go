package database

import "database/sql"

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Handler methods with a Tx suffix take a Querier so the same statement can
// run either on the pooled connection or inside a caller-owned transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
