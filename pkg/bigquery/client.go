package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

const (
	metadataCheckTimeout = 10 * time.Second
	// maxRowsPerPut stays well under the streaming insert request limit.
	maxRowsPerPut = 500
)

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// UpdateTableSchema is the column layout of the listing price update audit table.
var UpdateTableSchema = bigquery.Schema{
	{Name: "run_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "product_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "canonical_id", Type: bigquery.StringFieldType},
	{Name: "status", Type: bigquery.StringFieldType, Required: true},
	{Name: "rule_count", Type: bigquery.IntegerFieldType},
	{Name: "error", Type: bigquery.StringFieldType},
	{Name: "trigger", Type: bigquery.StringFieldType},
	{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
}

// Client streams audit rows into one dataset.
type Client struct {
	client      *bigquery.Client
	dataset     *bigquery.Dataset
	updateTable string
}

// NewClient connects to BigQuery and checks that the dataset and the update table
// exist. With AutoCreate set, a missing update table is created with UpdateTableSchema.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.UpdateTable)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case table == "":
		return nil, errTableNameRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bqClient, dataset: bqClient.Dataset(datasetID), updateTable: table}

	checkCtx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	if err := c.checkDataset(checkCtx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}
	created, err := c.ensureUpdateTable(checkCtx, cfg.AutoCreate)
	if err != nil {
		_ = bqClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset":       datasetID,
			"update_table":  table,
			"table_created": created,
		}), "bigquery client initialized")
	}
	return c, nil
}

func (c *Client) checkDataset(ctx context.Context) error {
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

func (c *Client) ensureUpdateTable(ctx context.Context, create bool) (bool, error) {
	tbl := c.dataset.Table(c.updateTable)
	_, err := tbl.Metadata(ctx)
	switch {
	case err == nil:
		return false, nil
	case !isNotFound(err):
		return false, fmt.Errorf("checking table %q: %w", c.updateTable, err)
	case !create:
		return false, fmt.Errorf("table %q does not exist", c.updateTable)
	}

	meta := &bigquery.TableMetadata{
		Schema:           UpdateTableSchema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "occurred_at"},
	}
	if err := tbl.Create(ctx, meta); err != nil && !isConflict(err) {
		return false, fmt.Errorf("creating table %q: %w", c.updateTable, err)
	}
	return true, nil
}

// Ping checks that the dataset is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	return c.checkDataset(ctx)
}

// InsertRows streams rows into table in chunks of maxRowsPerPut. Rows should
// implement bigquery.ValueSaver so retried puts are deduplicated by insert id.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}

	inserter := c.dataset.Table(table).Inserter()
	for start := 0; start < len(rows); start += maxRowsPerPut {
		end := min(start+maxRowsPerPut, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return describePutError(table, start, end-start, err)
		}
	}
	return nil
}

// describePutError reports how many rows of a chunk were rejected.
func describePutError(table string, offset, size int, err error) error {
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		first := multi[0]
		return fmt.Errorf("inserting into %q: %d of %d rows rejected (first at row %d): %w",
			table, len(multi), size, offset+first.RowIndex, err)
	}
	return fmt.Errorf("inserting %d rows into %q: %w", size, table, err)
}

// UpdateTable returns the audit table listing price updates are streamed into.
func (c *Client) UpdateTable() string {
	if c == nil {
		return ""
	}
	return c.updateTable
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func isConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
