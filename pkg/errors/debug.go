package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// maxChainDepth bounds the chain walk for pathological wrappers.
const maxChainDepth = 16

// PGDetails carries the server side fields of a Postgres error, whichever
// driver produced it.
type PGDetails struct {
	Code       string `json:"pg_code,omitempty"`
	Constraint string `json:"pg_constraint,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
	Message    string `json:"pg_message,omitempty"`
}

// ErrorDump is the log view of an error chain.
type ErrorDump struct {
	TopMessage string     `json:"top_message"`
	Code       Code       `json:"code,omitempty"`
	Retryable  bool       `json:"retryable"`
	Chain      []string   `json:"chain,omitempty"`
	PG         *PGDetails `json:"pg,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{
		TopMessage: err.Error(),
		Retryable:  Retryable(err),
		Chain:      chain(err),
		PG:         pgDetails(err),
	}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	return d
}

// chain lists every error reachable from err, depth first. Joined errors
// (errors.Join, multierr) contribute each branch.
func chain(err error) []string {
	var out []string
	var walk func(error, int)
	walk = func(e error, depth int) {
		if e == nil || depth >= maxChainDepth {
			return
		}
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, branch := range u.Unwrap() {
				walk(branch, depth+1)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap(), depth+1)
		}
	}
	walk(err, 0)
	return out
}

func pgDetails(err error) *PGDetails {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDetails{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDetails{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Fields flattens the dump into logger fields, dropping empty Postgres values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.PG == nil {
		return fields
	}
	for key, value := range map[string]string{
		"pg_code":       d.PG.Code,
		"pg_constraint": d.PG.Constraint,
		"pg_table":      d.PG.Table,
		"pg_column":     d.PG.Column,
		"pg_detail":     d.PG.Detail,
		"pg_message":    d.PG.Message,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
