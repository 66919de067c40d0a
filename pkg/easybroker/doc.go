// Package easybroker exposes the EasyBroker listing catalog.
//
// Service drains the paginated properties, contacts and contact request
// listings through a pagination.Aggregator, caches the aggregated snapshot
// and shapes it for callers either as a flat item list or as a single
// synthesized page.
//
//	svc := easybroker.NewService(upstreamClient, easybroker.Config{
//		Aggregator: pagination.DefaultConfig(),
//		Cache:      layeredCache,
//		CacheTTL:   5 * time.Minute,
//	})
//
//	listing, err := svc.ListProperties(ctx, easybroker.PropertyFilter{
//		OperationType: "sale",
//		Statuses:      []string{"published"},
//	}, easybroker.ListOptions{})
//	if errors.Is(err, pagination.ErrUnavailable) {
//		// upstream could not be asked
//	}
//	view := listing.ContentView()
package easybroker
