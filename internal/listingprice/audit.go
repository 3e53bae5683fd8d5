package listingprice

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/bigquery"
)

// AuditSink records update reports somewhere durable.
type AuditSink interface {
	Record(ctx context.Context, report *Report) error
}

// RowInserter streams rows into a table.
type RowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryAudit writes one row per result into the update audit table.
type BigQueryAudit struct {
	inserter RowInserter
	table    string
}

// NewBigQueryAudit builds an audit sink over inserter.
func NewBigQueryAudit(inserter RowInserter, table string) (*BigQueryAudit, error) {
	if inserter == nil {
		return nil, errors.New("row inserter is required")
	}
	if table == "" {
		return nil, errors.New("audit table is required")
	}
	return &BigQueryAudit{inserter: inserter, table: table}, nil
}

// Record inserts the report's results.
func (a *BigQueryAudit) Record(ctx context.Context, report *Report) error {
	if report == nil || len(report.Results) == 0 {
		return nil
	}
	rows := make([]any, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, &auditRow{
			RunID:       report.RunID,
			ProductID:   res.ProductID,
			CanonicalID: res.CanonicalID,
			Status:      string(res.Status),
			RuleCount:   res.RuleCount,
			Error:       res.ErrorMessage(),
			Trigger:     report.Trigger,
			OccurredAt:  report.StartedAt,
		})
	}
	return a.inserter.InsertRows(ctx, a.table, rows)
}

type auditRow struct {
	RunID       string
	ProductID   string
	CanonicalID string
	Status      string
	RuleCount   int
	Error       string
	Trigger     string
	OccurredAt  time.Time
}

// Save implements bigquery.ValueSaver. The insert id makes retried inserts idempotent.
func (r *auditRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"run_id":      r.RunID,
		"product_id":  r.ProductID,
		"status":      r.Status,
		"rule_count":  r.RuleCount,
		"trigger":     r.Trigger,
		"occurred_at": r.OccurredAt,
	}
	if r.CanonicalID != "" {
		row["canonical_id"] = r.CanonicalID
	}
	if r.Error != "" {
		row["error"] = r.Error
	}
	return row, r.RunID + ":" + r.ProductID, nil
}
