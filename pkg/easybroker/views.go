package easybroker

import (
	"encoding/json"
	"time"

	"github.com/Sternrassler/listing-sync/pkg/pagination"
)

// Listing is an aggregated listing, fresh or from cache.
type Listing struct {
	Items     []json.RawMessage
	Pages     int
	Reason    pagination.Reason
	Truncated bool
	FromCache bool
	ETag      string
	CachedAt  time.Time
	Expires   time.Time
}

// ItemsView is the flat output shape.
type ItemsView struct {
	Items     []json.RawMessage `json:"items"`
	Truncated bool              `json:"truncated"`
}

// ContentView presents the whole aggregate as one provider-style page.
type ContentView struct {
	Content    []json.RawMessage   `json:"content"`
	Pagination SyntheticPagination `json:"pagination"`
	Truncated  bool                `json:"truncated"`
}

// SyntheticPagination describes a single page holding every item.
type SyntheticPagination struct {
	Limit    int  `json:"limit"`
	Page     int  `json:"page"`
	Total    int  `json:"total"`
	NextPage *int `json:"next_page"`
}

// ItemsView returns {items, truncated}.
func (l *Listing) ItemsView() ItemsView {
	return ItemsView{Items: l.items(), Truncated: l.Truncated}
}

// ContentView returns {content, pagination, truncated} with page 1 of 1.
func (l *Listing) ContentView() ContentView {
	items := l.items()
	return ContentView{
		Content: items,
		Pagination: SyntheticPagination{
			Limit: len(items),
			Page:  1,
			Total: len(items),
		},
		Truncated: l.Truncated,
	}
}

// items never returns nil so views encode [] rather than null.
func (l *Listing) items() []json.RawMessage {
	if l.Items == nil {
		return []json.RawMessage{}
	}
	return l.Items
}

// Properties decodes the listing items as properties.
func (l *Listing) Properties() ([]Property, error) {
	return pagination.Decode[Property](l.Items)
}
