// Package pagination walks the paged, date-bounded order history of the marketplace.
//
// Pages are requested strictly in increasing order starting at page 0. The walk
// stops when the page index reaches the server-declared total, when a page request
// fails, or when the MaxPages safety bound is hit. The last two cases return the
// items gathered so far with complete=false; the fetcher never returns an error.
//
// Example usage:
//
//	api := marketplace.NewAPI(c, shopIDs, marketplace.DefaultPageSize)
//	fetcher := pagination.NewHistoryFetcher(api, pagination.DefaultConfig())
//	orders, complete := fetcher.FetchAll(ctx, from, time.Now())
package pagination
