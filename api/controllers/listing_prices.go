package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/listingprice-indexer/api/responses"
	"github.com/angelmondragon/listingprice-indexer/api/validators"
	"github.com/angelmondragon/listingprice-indexer/internal/cron"
	"github.com/angelmondragon/listingprice-indexer/internal/listingprice"
	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
	"github.com/angelmondragon/listingprice-indexer/pkg/logger"
)

// ListingPriceUpdater recomputes listing prices.
type ListingPriceUpdater interface {
	Update(ctx context.Context, productIDs []string) (*listingprice.Report, error)
}

// ListingPriceReader serves the cached column.
type ListingPriceReader interface {
	Get(ctx context.Context, productID string) (*listingprice.ListingPrices, error)
}

// ReindexRunner walks every canonical product.
type ReindexRunner interface {
	Reindex(ctx context.Context) (*listingprice.Report, error)
}

type updateListingPricesRequest struct {
	ProductIDs []string `json:"productIds" validate:"required,min=1,dive,notblank"`
}

type resultResponse struct {
	ProductID   string `json:"productId"`
	CanonicalID string `json:"canonicalId,omitempty"`
	Status      string `json:"status"`
	RuleCount   int    `json:"ruleCount"`
	Error       string `json:"error,omitempty"`
}

type reportResponse struct {
	RunID      string           `json:"runId"`
	Trigger    string           `json:"trigger"`
	Families   int              `json:"families"`
	QuotesRead int              `json:"quotesRead"`
	DurationMS int64            `json:"durationMs"`
	Counts     map[string]int   `json:"counts"`
	Results    []resultResponse `json:"results"`
}

func newReportResponse(report *listingprice.Report) reportResponse {
	out := reportResponse{
		RunID:      report.RunID,
		Trigger:    report.Trigger,
		Families:   report.Families,
		QuotesRead: report.QuotesRead,
		DurationMS: report.Duration.Milliseconds(),
		Counts:     map[string]int{},
		Results:    make([]resultResponse, 0, len(report.Results)),
	}
	for status, n := range report.Counts() {
		out.Counts[string(status)] = n
	}
	for _, res := range report.Results {
		out.Results = append(out.Results, resultResponse{
			ProductID:   res.ProductID,
			CanonicalID: res.CanonicalID,
			Status:      string(res.Status),
			RuleCount:   res.RuleCount,
			Error:       res.ErrorMessage(),
		})
	}
	return out
}

// ListingPricesUpdate recomputes listing prices for the posted product ids.
func ListingPricesUpdate(svc ListingPriceUpdater, maxBatch int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing price indexer unavailable"))
			return
		}

		var payload updateListingPricesRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if maxBatch > 0 && len(payload.ProductIDs) > maxBatch {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many product ids").
				WithDetails(map[string]string{"productIds": fmt.Sprintf("must be at most %d", maxBatch)}))
			return
		}

		ctx := listingprice.WithTrigger(r.Context(), listingprice.TriggerAPI)
		report, err := svc.Update(ctx, payload.ProductIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReportResponse(report))
	}
}

// ListingPricesReindex runs the full reindex synchronously under the cron lock.
func ListingPricesReindex(runner ReindexRunner, lock cron.Lock, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil || lock == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reindex unavailable"))
			return
		}

		var report *listingprice.Report
		err := cron.WithLock(r.Context(), lock, func(ctx context.Context) error {
			var runErr error
			report, runErr = runner.Reindex(ctx)
			return runErr
		})
		if errors.Is(err, cron.ErrLockHeld) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "reindex already running"))
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reindex failed"))
			return
		}
		responses.WriteSuccess(w, newReportResponse(report))
	}
}

// ListingPricesGet returns the cached listing prices of a product or variant.
func ListingPricesGet(reader ListingPriceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing price reader unavailable"))
			return
		}

		productID := chi.URLParam(r, "productId")
		got, err := reader.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, got)
	}
}
