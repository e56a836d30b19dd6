package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is a log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// pgDiagnostics is the subset of server error fields both drivers expose.
type pgDiagnostics struct {
	code, constraint, table, column, detail, message string
}

func pgDiagnosticsOf(err error) (pgDiagnostics, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgDiagnostics{
			code:       pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			detail:     pgxErr.Detail,
			message:    pgxErr.Message,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgDiagnostics{
			code:       string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			column:     pqErr.Column,
			detail:     pqErr.Detail,
			message:    pqErr.Message,
		}, true
	}
	return pgDiagnostics{}, false
}

// SQLState returns the Postgres SQLSTATE carried by err, if any.
func SQLState(err error) string {
	diag, ok := pgDiagnosticsOf(err)
	if !ok {
		return ""
	}
	return diag.code
}

// Constraint returns the violated constraint name carried by err, if any.
func Constraint(err error) string {
	diag, ok := pgDiagnosticsOf(err)
	if !ok {
		return ""
	}
	return diag.constraint
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if diag, ok := pgDiagnosticsOf(err); ok {
		d.PGCode = diag.code
		d.PGConstraint = diag.constraint
		d.PGTable = diag.table
		d.PGColumn = diag.column
		d.PGDetail = diag.detail
		d.PGMessage = diag.message
	}
	return d
}
