package syncer

import (
	"context"

	"github.com/Sternrassler/listing-sync/pkg/easybroker"
)

// Job is one named warmup unit.
type Job struct {
	Name string
	Run  func(ctx context.Context) (*easybroker.Listing, error)
}

// Job names used by CatalogJobs.
const (
	JobProperties      = "properties"
	JobContacts        = "contacts"
	JobContactRequests = "contact_requests"
)

// CatalogJobs returns the standard warmup set: the unfiltered properties
// listing, contacts and contact requests, all refreshed at pageSize.
// Snapshots are keyed by page size, so pageSize must match what readers
// request; 0 selects the service default.
func CatalogJobs(svc *easybroker.Service, pageSize int) []Job {
	opts := easybroker.ListOptions{PageSize: pageSize, Refresh: true}
	return []Job{
		{
			Name: JobProperties,
			Run: func(ctx context.Context) (*easybroker.Listing, error) {
				return svc.ListProperties(ctx, easybroker.PropertyFilter{}, opts)
			},
		},
		{
			Name: JobContacts,
			Run: func(ctx context.Context) (*easybroker.Listing, error) {
				return svc.ListContacts(ctx, opts)
			},
		},
		{
			Name: JobContactRequests,
			Run: func(ctx context.Context) (*easybroker.Listing, error) {
				return svc.ListContactRequests(ctx, opts)
			},
		},
	}
}
