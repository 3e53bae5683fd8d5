package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/listingprice-indexer/internal/listingprice"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

const defaultReindexPageSize = 200

type canonicalLister interface {
	ListCanonicalIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type listingPriceUpdater interface {
	Update(ctx context.Context, productIDs []string) (*listingprice.Report, error)
}

// ReindexJobParams wire the full listing price reindex.
type ReindexJobParams struct {
	Logger   *logger.Logger
	Products canonicalLister
	Updater  listingPriceUpdater
	PageSize int
}

// ReindexJob recomputes listing prices for every canonical product, one page at a time.
type ReindexJob struct {
	logg     *logger.Logger
	products canonicalLister
	updater  listingPriceUpdater
	pageSize int
	now      func() time.Time
}

// NewReindexJob builds the reindex job.
func NewReindexJob(params ReindexJobParams) (*ReindexJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product lister required")
	}
	if params.Updater == nil {
		return nil, fmt.Errorf("listing price updater required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultReindexPageSize
	}
	return &ReindexJob{
		logg:     params.Logger,
		products: params.Products,
		updater:  params.Updater,
		pageSize: pageSize,
		now:      time.Now,
	}, nil
}

func (j *ReindexJob) Name() string { return "listing-price-reindex" }

// Run reindexes everything and reports page errors and item failures together.
func (j *ReindexJob) Run(ctx context.Context) error {
	report, err := j.Reindex(ctx)
	return multierr.Combine(err, report.Err())
}

// Reindex walks canonical ids by keyset pagination and returns the merged report.
// It stops at the first page whose listing or update fails; the partial report is
// returned alongside the error.
func (j *ReindexJob) Reindex(ctx context.Context) (*listingprice.Report, error) {
	started := j.now()
	total := &listingprice.Report{
		RunID:     uuid.NewString(),
		Trigger:   listingprice.TriggerReindex,
		StartedAt: started.UTC(),
		Results:   []listingprice.Result{},
	}
	ctx = listingprice.WithTrigger(j.logg.WithRunID(ctx, total.RunID), listingprice.TriggerReindex)

	cursor := uuid.Nil
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := j.products.ListCanonicalIDs(ctx, cursor, j.pageSize)
		if err != nil {
			return total, fmt.Errorf("list canonical products after %s: %w", listingprice.HexID(cursor), err)
		}
		if len(ids) == 0 {
			break
		}

		batch := make([]string, 0, len(ids))
		for _, id := range ids {
			batch = append(batch, listingprice.HexID(id))
		}
		report, err := j.updater.Update(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("reindex page %d: %w", pages+1, err)
		}
		total.Merge(report)
		pages++
		cursor = ids[len(ids)-1]
		if len(ids) < j.pageSize {
			break
		}
	}
	total.Duration = j.now().Sub(started)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pages":       pages,
		"products":    len(total.Results),
		"failed":      len(total.Failed()),
		"duration_ms": total.Duration.Milliseconds(),
	})
	j.logg.Info(logCtx, "listing price reindex complete")
	return total, nil
}
