// Package pagination drains paginated listing endpoints into a single ordered
// collection.
//
// Upstream listing APIs disagree on how they signal the end of a collection.
// Some hand back a full next-page URL, some a next page number, some only
// limit/page/total counters and some nothing at all. The Aggregator resolves
// the next request through an ordered chain of strategies:
//
//   - url_cursor: next_page is an absolute URL, requested verbatim
//   - next_page_number: next_page is a number; 0 or null ends the listing
//   - counters: ceil(total/limit) pages, continue while page < total pages
//   - short_page: a page with fewer items than the page size is the last
//
// Example usage:
//
//	agg := pagination.NewAggregator(upstream, pagination.DefaultConfig())
//	res, err := agg.Aggregate(ctx, pagination.Query{
//		Endpoint: "/v1/properties",
//		PageSize: 50,
//	})
//	if errors.Is(err, pagination.ErrUnavailable) {
//		// first page failed: nothing could be listed
//	}
//
// Page fetches are strictly sequential. A hard page ceiling, a per-page
// timeout and an overall budget bound every run. A failure after the first
// page returns the items gathered so far with Truncated set, unless the
// fail-fast policy is selected.
package pagination
