package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/marketplace-sync/pkg/logging"
	"github.com/Sternrassler/marketplace-sync/pkg/marketplace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_history_pages_total",
		Help: "Total number of history page requests by result",
	}, []string{"result"})

	historyIncompleteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_history_incomplete_total",
		Help: "Total number of history walks that stopped before the declared total",
	}, []string{"reason"})

	historyFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketsync_history_fetch_duration_seconds",
		Help:    "Duration of a full history walk",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Stop reasons reported in Stats.StopReason.
const (
	StopCompleted = "completed"
	StopPageError = "page_error"
	StopMaxPages  = "max_pages"
)

// Config holds history fetcher configuration
type Config struct {
	// MaxPages bounds the walk against a server that never reports a stable total.
	MaxPages int
	// PageTimeout bounds a single page request
	PageTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxPages:    100,
		PageTimeout: 30 * time.Second,
	}
}

// PageFetcher fetches one zero-based page of orders dated within [from, to] and
// reports the server-declared total page count. *marketplace.API implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, from, to time.Time, page int) ([]marketplace.Order, int, error)
}

// Stats describes one history walk.
type Stats struct {
	Pages      int
	TotalPages int
	Items      int
	Duration   time.Duration
	StopReason string
}

// HistoryFetcher walks the order history page by page.
type HistoryFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewHistoryFetcher creates a new history fetcher
func NewHistoryFetcher(fetcher PageFetcher, config Config) *HistoryFetcher {
	if config.MaxPages <= 0 {
		config.MaxPages = 100
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 30 * time.Second
	}

	return &HistoryFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination),
	}
}

// FetchAll returns every order dated within [from, to] in server order, page 0 first.
// complete is false when the walk stopped early; the items gathered up to that point
// are still returned.
func (f *HistoryFetcher) FetchAll(ctx context.Context, from, to time.Time) ([]marketplace.Order, bool) {
	items, stats := f.FetchAllWithStats(ctx, from, to)
	return items, stats.StopReason == StopCompleted
}

// FetchAllWithStats is FetchAll with a description of the walk.
func (f *HistoryFetcher) FetchAllWithStats(ctx context.Context, from, to time.Time) ([]marketplace.Order, Stats) {
	start := time.Now()
	var (
		items []marketplace.Order
		stats Stats
	)

	finish := func(reason string) ([]marketplace.Order, Stats) {
		stats.Items = len(items)
		stats.Duration = time.Since(start)
		stats.StopReason = reason
		historyFetchDuration.Observe(stats.Duration.Seconds())
		if items == nil {
			items = []marketplace.Order{}
		}
		return items, stats
	}

	for page := 0; ; {
		if page >= f.config.MaxPages {
			historyIncompleteTotal.WithLabelValues(StopMaxPages).Inc()
			f.logger.Warn().
				Int("pages", stats.Pages).
				Int("total_pages", stats.TotalPages).
				Int("max_pages", f.config.MaxPages).
				Int("items", len(items)).
				Msg("Page safety bound reached - returning partial history")
			return finish(StopMaxPages)
		}

		pageCtx, cancel := context.WithTimeout(ctx, f.config.PageTimeout)
		pageItems, totalPages, err := f.fetcher.FetchPage(pageCtx, from, to, page)
		cancel()

		if err != nil {
			pagesFetchedTotal.WithLabelValues("error").Inc()
			historyIncompleteTotal.WithLabelValues(StopPageError).Inc()
			f.logger.Warn().
				Err(err).
				Int("page", page).
				Int("pages", stats.Pages).
				Int("total_pages", stats.TotalPages).
				Int("items", len(items)).
				Msg("Page fetch failed - returning partial history")
			return finish(StopPageError)
		}

		pagesFetchedTotal.WithLabelValues("ok").Inc()
		items = append(items, pageItems...)
		stats.Pages++
		stats.TotalPages = totalPages

		f.logger.Debug().
			Int("page", page).
			Int("items", len(pageItems)).
			Int("total_pages", totalPages).
			Msg("Fetched history page")

		page++
		if page >= totalPages {
			break
		}
	}

	items, stats = finish(StopCompleted)
	f.logger.Info().
		Int("pages", stats.Pages).
		Int("items", stats.Items).
		Dur("duration", stats.Duration).
		Msg("History fetch complete")
	return items, stats
}
