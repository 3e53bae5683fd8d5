package listingprice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
	"github.com/angelmondragon/listingprice-indexer/pkg/metrics"
	"github.com/angelmondragon/listingprice-indexer/pkg/redis"
)

// CacheInvalidator drops cached reads after a write.
type CacheInvalidator interface {
	Del(ctx context.Context, keys ...string) error
}

// IndexerParams wires an Indexer. Only Store is required.
type IndexerParams struct {
	Store      Store
	Cache      CacheInvalidator
	Audit      AuditSink
	Metrics    *metrics.IndexerMetrics
	Logger     *logger.Logger
	ClearEmpty bool
	Now        func() time.Time
}

// Indexer recomputes the cheapest price per pricing rule for product families.
// It holds no state between calls.
type Indexer struct {
	store      Store
	cache      CacheInvalidator
	audit      AuditSink
	metrics    *metrics.IndexerMetrics
	logg       *logger.Logger
	clearEmpty bool
	now        func() time.Time
}

// NewIndexer validates params and builds an Indexer.
func NewIndexer(params IndexerParams) (*Indexer, error) {
	if params.Store == nil {
		return nil, errors.New("listing price store is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Indexer{
		store:      params.Store,
		cache:      params.Cache,
		audit:      params.Audit,
		metrics:    params.Metrics,
		logg:       logg,
		clearEmpty: params.ClearEmpty,
		now:        now,
	}, nil
}

type pendingItem struct {
	resultIdx int
	id        uuid.UUID
}

type familyOutcome struct {
	status    enums.UpdateStatus
	ruleCount int
	err       error
}

// Update recomputes listing prices for every family touched by productIDs.
// The error is non-nil only when the store cannot fold ids or load quotes; per-item
// failures are in the report.
func (i *Indexer) Update(ctx context.Context, productIDs []string) (*Report, error) {
	started := i.now()
	report := &Report{
		RunID:     uuid.NewString(),
		Trigger:   TriggerFrom(ctx),
		StartedAt: started.UTC(),
		Results:   []Result{},
	}
	ctx = i.logg.WithRunID(ctx, report.RunID)

	pending := i.parseInputs(productIDs, report)
	if len(pending) == 0 {
		i.finish(ctx, report, 0)
		return report, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.id)
	}
	canonicalByID, err := i.store.ResolveCanonical(ctx, ids)
	if err != nil {
		return nil, err
	}

	families := []uuid.UUID{}
	members := map[uuid.UUID][]int{}
	for _, p := range pending {
		canonical, ok := canonicalByID[p.id]
		if !ok {
			report.Results[p.resultIdx].Status = enums.UpdateStatusNotFound
			continue
		}
		report.Results[p.resultIdx].CanonicalID = HexID(canonical)
		if _, seen := members[canonical]; !seen {
			families = append(families, canonical)
		}
		members[canonical] = append(members[canonical], p.resultIdx)
	}
	if len(families) == 0 {
		i.finish(ctx, report, 0)
		return report, nil
	}

	rows, err := i.store.LoadQuotes(ctx, families)
	if err != nil {
		return nil, err
	}
	report.Families = len(families)
	report.QuotesRead = len(rows)
	i.metrics.AddQuotes(len(rows))

	grouped := make(map[uuid.UUID][]QuoteRow, len(families))
	for _, row := range rows {
		grouped[row.CanonicalID] = append(grouped[row.CanonicalID], row)
	}

	written := 0
	at := i.now().UTC()
	for _, canonical := range families {
		outcome := i.updateFamily(ctx, canonical, grouped[canonical], at)
		if outcome.status.Wrote() {
			written++
		}
		for _, idx := range members[canonical] {
			res := &report.Results[idx]
			res.Status = outcome.status
			res.RuleCount = outcome.ruleCount
			res.Err = outcome.err
		}
	}

	i.finish(ctx, report, written)
	return report, nil
}

func (i *Indexer) parseInputs(productIDs []string, report *Report) []pendingItem {
	seenText := map[string]struct{}{}
	seenID := map[uuid.UUID]struct{}{}
	pending := []pendingItem{}
	for _, raw := range productIDs {
		text := strings.TrimSpace(raw)
		if _, dup := seenText[text]; dup {
			continue
		}
		seenText[text] = struct{}{}

		id, err := ParseID(text)
		if err != nil {
			report.Results = append(report.Results, Result{
				ProductID: text,
				Status:    enums.UpdateStatusInvalidID,
				Err:       pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"),
			})
			continue
		}
		if _, dup := seenID[id]; dup {
			continue
		}
		seenID[id] = struct{}{}
		report.Results = append(report.Results, Result{ProductID: text})
		pending = append(pending, pendingItem{resultIdx: len(report.Results) - 1, id: id})
	}
	return pending
}

func (i *Indexer) updateFamily(ctx context.Context, canonical uuid.UUID, rows []QuoteRow, at time.Time) familyOutcome {
	quotes := make([]Quote, 0, len(rows))
	for _, row := range rows {
		q, err := row.Normalize()
		if err != nil {
			return familyOutcome{
				status: enums.UpdateStatusMalformedPayload,
				err: pkgerrors.Wrap(pkgerrors.CodeMalformed, err,
					fmt.Sprintf("quote %s has an undecodable price", HexID(row.ID))),
			}
		}
		quotes = append(quotes, q)
	}

	if len(quotes) == 0 && !i.clearEmpty {
		return familyOutcome{status: enums.UpdateStatusNoQuotes}
	}

	entries := SelectCheapest(quotes)
	data, err := Encode(entries)
	if err != nil {
		return familyOutcome{
			status: enums.UpdateStatusMalformedPayload,
			err:    pkgerrors.Wrap(pkgerrors.CodeMalformed, err, "encode listing prices"),
		}
	}

	ruleIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ruleIDs = append(ruleIDs, e.RuleID)
	}
	write := FamilyWrite{CanonicalID: canonical, Data: data, RuleIDs: ruleIDs, At: at}
	if err := i.store.WriteListingPrices(ctx, write); err != nil {
		return familyOutcome{status: enums.UpdateStatusWriteFailed, ruleCount: len(entries), err: err}
	}
	i.metrics.IncFamiliesWritten()
	i.invalidate(ctx, canonical)

	status := enums.UpdateStatusUpdated
	if write.Cleared() {
		status = enums.UpdateStatusCleared
	}
	return familyOutcome{status: status, ruleCount: len(entries)}
}

func (i *Indexer) invalidate(ctx context.Context, canonical uuid.UUID) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Del(ctx, redis.ListingPriceKey(HexID(canonical))); err != nil {
		warnCtx := i.logg.WithField(i.logg.WithProductID(ctx, HexID(canonical)), "error", err.Error())
		i.logg.Warn(warnCtx, "listing price cache invalidation failed")
	}
}

func (i *Indexer) finish(ctx context.Context, report *Report, written int) {
	report.Duration = i.now().Sub(report.StartedAt)
	i.metrics.ObserveUpdate(report.Trigger, report.Duration)

	for _, res := range report.Results {
		i.metrics.IncItem(string(res.Status))
		if !res.Status.IsFailure() {
			continue
		}
		itemCtx := i.logg.WithFields(i.logg.WithProductID(ctx, res.ProductID), map[string]any{
			"status": res.Status,
			"error":  res.ErrorMessage(),
		})
		i.logg.Warn(itemCtx, "listing price update item failed")
	}

	logCtx := i.logg.WithFields(ctx, map[string]any{
		"trigger":     report.Trigger,
		"requested":   len(report.Results),
		"families":    report.Families,
		"quotes":      report.QuotesRead,
		"written":     written,
		"duration_ms": report.Duration.Milliseconds(),
	})
	i.logg.Info(logCtx, "listing prices updated")

	if i.audit != nil && len(report.Results) > 0 {
		if err := i.audit.Record(ctx, report); err != nil {
			i.logg.Warn(i.logg.WithField(logCtx, "error", err.Error()), "listing price audit failed")
		}
	}
}
