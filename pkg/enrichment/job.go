// Package enrichment refreshes the stock quantity of marketplace-listed products.
//
// Sync looks up every eligible product concurrently with a bounded fan-out, waits
// for all lookups, and persists the changed quantities in one batched write. Lookup
// failures are recorded per product and never abort the other lookups.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/Sternrassler/marketplace-sync/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_enrichment_outcomes_total",
		Help: "Total number of per-product enrichment outcomes by status",
	}, []string{"status"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketsync_enrichment_lookup_duration_seconds",
		Help:    "Duration of a single stock lookup",
		Buckets: prometheus.DefBuckets,
	})

	lookupsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketsync_enrichment_lookups_in_flight",
		Help: "Number of stock lookups currently running",
	})
)

// Status is the result of one product in a Sync run.
type Status string

const (
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// StockLookup returns the available quantity of a marketplace product.
type StockLookup interface {
	ProductStock(ctx context.Context, productID int64) (int, error)
}

// Config holds enrichment job configuration
type Config struct {
	// Concurrency bounds the number of simultaneous lookups.
	Concurrency int
	// LookupTimeout bounds a single lookup; 0 leaves it to the client.
	LookupTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{Concurrency: 8}
}

// Outcome describes what happened to one product.
type Outcome struct {
	ProductID  string `json:"productId"`
	ExternalID int64  `json:"externalId,omitempty"`
	Status     Status `json:"status"`
	Previous   int    `json:"previous"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason,omitempty"`
	Err        error  `json:"-"`
}

// Result summarizes one Sync run.
type Result struct {
	Outcomes  []Outcome     `json:"outcomes"`
	Eligible  int           `json:"eligible"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Failures returns the failed outcomes.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Job is the stock enrichment job.
type Job struct {
	lookup StockLookup
	store  store.Gateway[Product]
	config Config
	logger zerolog.Logger
}

// NewJob creates a new enrichment job persisting into gw.
func NewJob(lookup StockLookup, gw store.Gateway[Product], config Config) *Job {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	return &Job{
		lookup: lookup,
		store:  gw,
		config: config,
		logger: logging.NewLogger(logging.ComponentEnrichment),
	}
}

// Sync refreshes the quantities of products and persists the changed ones.
// Result.Updated is the number of products whose quantity changed. An error is
// returned only when the batched write fails.
func (j *Job) Sync(ctx context.Context, products []Product) (*Result, error) {
	start := time.Now()
	res := &Result{Outcomes: make([]Outcome, len(products))}

	var g errgroup.Group
	g.SetLimit(j.config.Concurrency)

	for i, p := range products {
		out := &res.Outcomes[i]
		out.ProductID = p.ID
		out.Previous = p.Quantity
		out.Quantity = p.Quantity

		remoteID, ok := p.MarketplaceID()
		if !ok {
			out.Status = StatusSkipped
			continue
		}
		out.ExternalID = remoteID
		res.Eligible++

		// each goroutine writes only its own outcome
		g.Go(func() error {
			qty, err := j.lookupOne(ctx, remoteID)
			if err != nil {
				out.Status = StatusFailed
				out.Err = err
				out.Reason = err.Error()
				return nil
			}
			out.Quantity = qty
			return nil
		})
	}
	_ = g.Wait()

	changes := make(map[string]int)
	for i := range res.Outcomes {
		out := &res.Outcomes[i]
		switch {
		case out.Status == StatusSkipped:
			res.Skipped++
		case out.Status == StatusFailed:
			res.Failed++
			j.logger.Warn().
				Err(out.Err).
				Str("product", out.ProductID).
				Int64("external_id", out.ExternalID).
				Msg("Stock lookup failed - product left unchanged")
		case out.Quantity != out.Previous:
			out.Status = StatusUpdated
			res.Updated++
			changes[out.ProductID] = out.Quantity
		default:
			out.Status = StatusUnchanged
			res.Unchanged++
		}
	}

	if len(changes) > 0 {
		applied, err := j.persist(ctx, changes)
		if err != nil {
			res.Duration = time.Since(start)
			recordOutcomes(res)
			j.logger.Error().Err(err).Int("changed", len(changes)).Msg("Failed to persist stock changes")
			return res, err
		}
		j.dropUnapplied(res, applied)
	}

	res.Duration = time.Since(start)
	recordOutcomes(res)

	j.logger.Info().
		Int("products", len(products)).
		Int("eligible", res.Eligible).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("Stock enrichment complete")
	return res, nil
}

// dropUnapplied reclassifies updated outcomes whose product was no longer stored
// when the write happened, so Updated counts only persisted changes.
func (j *Job) dropUnapplied(res *Result, applied map[string]bool) {
	for i := range res.Outcomes {
		out := &res.Outcomes[i]
		if out.Status != StatusUpdated || applied[out.ProductID] {
			continue
		}
		out.Status = StatusSkipped
		out.Reason = "product no longer stored"
		out.Quantity = out.Previous
		res.Updated--
		res.Skipped++
		j.logger.Warn().
			Str("product", out.ProductID).
			Int64("external_id", out.ExternalID).
			Msg("Stock change not applied - product removed from store")
	}
}

func recordOutcomes(res *Result) {
	for _, out := range res.Outcomes {
		lookupsTotal.WithLabelValues(string(out.Status)).Inc()
	}
}

// Run reads the stored products and syncs them.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	products, err := j.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	return j.Sync(ctx, products)
}

func (j *Job) lookupOne(ctx context.Context, remoteID int64) (int, error) {
	if j.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.LookupTimeout)
		defer cancel()
	}

	lookupsInFlight.Inc()
	defer lookupsInFlight.Dec()
	start := time.Now()
	defer func() { lookupDuration.Observe(time.Since(start).Seconds()) }()

	qty, err := j.lookup.ProductStock(ctx, remoteID)
	if err != nil {
		return 0, err
	}
	j.logger.Debug().Int64("external_id", remoteID).Int("quantity", qty).Msg("Stock lookup")
	return qty, nil
}

// persist applies changes by product id onto the current stored collection, so
// edits made to other products since the caller's read are kept. It returns the
// ids that were applied.
func (j *Job) persist(ctx context.Context, changes map[string]int) (map[string]bool, error) {
	var applied map[string]bool
	err := j.store.Update(ctx, func(items []Product) ([]Product, error) {
		applied = make(map[string]bool, len(changes))
		for i := range items {
			qty, ok := changes[items[i].ID]
			if !ok {
				continue
			}
			items[i].SetQuantity(qty)
			applied[items[i].ID] = true
		}
		if len(applied) == 0 {
			return nil, store.ErrSkipWrite
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}
