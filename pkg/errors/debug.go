package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error: its code, the unwrapped chain
// and, when the root cause is a Postgres error, the server's diagnostics.
type ErrorDump struct {
	TopMessage   string   `json:"top_message"`
	Code         Code     `json:"code,omitempty"`
	HTTPStatus   int      `json:"http_status,omitempty"`
	Chain        []string `json:"chain,omitempty"`
	PGCode       string   `json:"pg_code,omitempty"`
	PGConstraint string   `json:"pg_constraint,omitempty"`
	PGTable      string   `json:"pg_table,omitempty"`
	PGDetail     string   `json:"pg_detail,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	dump := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		dump.Code = typed.Code()
		dump.HTTPStatus = MetadataFor(typed.Code()).HTTPStatus
	}
	for link := err; link != nil; link = stdErrors.Unwrap(link) {
		dump.Chain = append(dump.Chain, fmt.Sprintf("%T: %v", link, link))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		dump.PGCode, dump.PGConstraint = pgxErr.Code, pgxErr.ConstraintName
		dump.PGTable, dump.PGDetail = pgxErr.TableName, pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		dump.PGCode, dump.PGConstraint = string(pqErr.Code), pqErr.Constraint
		dump.PGTable, dump.PGDetail = pqErr.Table, pqErr.Detail
	}
	return dump
}
