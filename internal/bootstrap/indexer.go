package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/listingprice-indexer/internal/listingprice"
	"github.com/angelmondragon/listingprice-indexer/pkg/bigquery"
	"github.com/angelmondragon/listingprice-indexer/pkg/config"
	"github.com/angelmondragon/listingprice-indexer/pkg/db"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
	"github.com/angelmondragon/listingprice-indexer/pkg/outbox"
)

// Indexing bundles the listing price store and indexer shared by every binary.
type Indexing struct {
	Repository *listingprice.Repository
	Indexer    *listingprice.Indexer

	closers []func() error
}

// IndexingParams wire NewIndexing. Cache and Registerer are optional.
type IndexingParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Cache      listingprice.CacheInvalidator
	Registerer prometheus.Registerer
}

// NewIndexing builds the repository, its outbox emitter and the indexer. The BigQuery
// audit sink is attached only when enabled in config.
func NewIndexing(ctx context.Context, params IndexingParams) (*Indexing, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	cfg := params.Config

	emitter := outbox.NewService(outbox.NewRepository(params.DB.DB()), params.Logger)
	repo := listingprice.NewRepository(params.DB, emitter)

	out := &Indexing{Repository: repo}
	indexerParams := listingprice.IndexerParams{
		Store:      repo,
		Metrics:    metrics.NewIndexerMetrics(params.Registerer),
		Logger:     params.Logger,
		ClearEmpty: cfg.Indexer.ClearEmpty,
	}
	if params.Cache != nil {
		indexerParams.Cache = params.Cache
	}

	if cfg.BigQuery.Enabled {
		bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, params.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap bigquery audit: %w", err)
		}
		out.closers = append(out.closers, bq.Close)
		audit, err := listingprice.NewBigQueryAudit(bq, bq.UpdateTable())
		if err != nil {
			return nil, multierr.Append(err, out.Close())
		}
		indexerParams.Audit = audit
	}

	indexer, err := listingprice.NewIndexer(indexerParams)
	if err != nil {
		return nil, multierr.Append(err, out.Close())
	}
	out.Indexer = indexer
	return out, nil
}

// Close releases the optional audit client.
func (i *Indexing) Close() error {
	if i == nil {
		return nil
	}
	var err error
	for _, closeFn := range i.closers {
		err = multierr.Append(err, closeFn())
	}
	i.closers = nil
	return err
}
