package listingprice

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/listingprice-indexer/pkg/enums"
)

// Result is the outcome for one distinct input id.
type Result struct {
	ProductID   string             `json:"productId"`
	CanonicalID string             `json:"canonicalId,omitempty"`
	Status      enums.UpdateStatus `json:"status"`
	RuleCount   int                `json:"ruleCount"`
	Err         error              `json:"-"`
}

// ErrorMessage returns the item error text, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report is the outcome of one Update call.
type Report struct {
	RunID      string        `json:"runId"`
	Trigger    string        `json:"trigger"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"-"`
	Families   int           `json:"families"`
	QuotesRead int           `json:"quotesRead"`
	Results    []Result      `json:"results"`
}

// Err combines every per-item failure, or returns nil when no item failed.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	var err error
	for _, res := range r.Results {
		if !res.Status.IsFailure() {
			continue
		}
		itemErr := res.Err
		if itemErr == nil {
			itemErr = fmt.Errorf("%s", res.Status)
		}
		err = multierr.Append(err, fmt.Errorf("product %s: %w", res.ProductID, itemErr))
	}
	return err
}

// Counts tallies results by status.
func (r *Report) Counts() map[enums.UpdateStatus]int {
	counts := map[enums.UpdateStatus]int{}
	if r == nil {
		return counts
	}
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Failed returns the results whose status is a failure.
func (r *Report) Failed() []Result {
	if r == nil {
		return nil
	}
	var failed []Result
	for _, res := range r.Results {
		if res.Status.IsFailure() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Merge appends other's results and totals into r. Used by paged runs.
func (r *Report) Merge(other *Report) {
	if r == nil || other == nil {
		return
	}
	r.Families += other.Families
	r.QuotesRead += other.QuotesRead
	r.Duration += other.Duration
	r.Results = append(r.Results, other.Results...)
}
