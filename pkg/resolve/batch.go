package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shelfmark/bookmeta/pkg/isbn"
	"github.com/shelfmark/bookmeta/pkg/provider"
)

const (
	// MaxBatchSize caps the number of ISBNs per batch request.
	MaxBatchSize = 100

	// DefaultBatchConcurrency is the worker count when none is configured.
	DefaultBatchConcurrency = 3

	// maxBatchConcurrency bounds the configured worker count.
	maxBatchConcurrency = 10
)

var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmeta_batch_items_total",
		Help: "Batch items processed by outcome",
	}, []string{"outcome"}) // outcome: resolved, invalid, not_found, failed

	batchSizeHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookmeta_batch_size",
		Help:    "Distinct ISBNs per accepted batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})
)

// BatchOutcome is the terminal state of one batch item. Exactly one of
// Result and Err is set.
type BatchOutcome struct {
	Result   *provider.Result
	Err      error
	Attempts int
}

// ResolveBatch resolves up to MaxBatchSize ISBNs concurrently with a
// fixed worker pool. Inputs are deduplicated after normalization; the
// returned map is keyed by normalized ISBN for valid inputs and by the
// raw input for unparseable ones. One item's failure never aborts the
// batch, and transiently failed items get a single synchronous retry.
// A non-empty forced provider applies to every item.
func (r *Resolver) ResolveBatch(ctx context.Context, isbns []string, forced string, concurrency int) (map[string]BatchOutcome, error) {
	if len(isbns) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(isbns), MaxBatchSize)
	}
	if forced != "" && !r.HasProvider(forced) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, forced)
	}
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	if concurrency > maxBatchConcurrency {
		concurrency = maxBatchConcurrency
	}

	outcomes := make(map[string]BatchOutcome)
	valid := make([]string, 0, len(isbns))

	for _, raw := range isbns {
		normalized, err := isbn.Normalize(raw)
		if err != nil {
			if _, seen := outcomes[raw]; !seen {
				outcomes[raw] = BatchOutcome{Err: err}
				batchItemsTotal.WithLabelValues("invalid").Inc()
			}
			continue
		}
		if _, seen := outcomes[normalized]; seen {
			continue
		}
		outcomes[normalized] = BatchOutcome{}
		valid = append(valid, normalized)
	}

	batchSizeHist.Observe(float64(len(valid)))

	if len(valid) == 0 {
		return outcomes, nil
	}
	if concurrency > len(valid) {
		concurrency = len(valid)
	}

	type itemResult struct {
		isbn    string
		outcome BatchOutcome
	}

	work := make(chan string)
	results := make(chan itemResult, len(valid))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				results <- itemResult{isbn: id, outcome: r.resolveBatchItem(ctx, id, forced)}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, id := range valid {
			select {
			case work <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	for res := range results {
		outcomes[res.isbn] = res.outcome
	}

	// Items never dispatched because the context expired mid-batch.
	for _, id := range valid {
		o := outcomes[id]
		if o.Result == nil && o.Err == nil {
			o.Err = ctx.Err()
			if o.Err == nil {
				o.Err = context.Canceled
			}
			outcomes[id] = o
			batchItemsTotal.WithLabelValues("failed").Inc()
		}
	}

	return outcomes, nil
}

// resolveBatchItem runs one item through the normal resolution pipeline,
// retrying once on a retryable failure. A clean empty result is final.
func (r *Resolver) resolveBatchItem(ctx context.Context, id, forced string) BatchOutcome {
	attempts := 0
	var lastErr error

	for attempts < 2 {
		attempts++

		outcome, err := r.LookupISBN(ctx, id, forced)
		if err == nil {
			batchItemsTotal.WithLabelValues("resolved").Inc()
			return BatchOutcome{Result: outcome.Result, Attempts: attempts}
		}

		if errors.Is(err, provider.ErrNoResults) {
			batchItemsTotal.WithLabelValues("not_found").Inc()
			return BatchOutcome{Err: err, Attempts: attempts}
		}
		if ctx.Err() != nil {
			batchItemsTotal.WithLabelValues("failed").Inc()
			return BatchOutcome{Err: err, Attempts: attempts}
		}

		lastErr = err
		r.logger.Debug().Err(err).Str("isbn", id).Int("attempt", attempts).Msg("Batch item failed")
	}

	batchItemsTotal.WithLabelValues("failed").Inc()
	return BatchOutcome{Err: lastErr, Attempts: attempts}
}
