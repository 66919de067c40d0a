package pagination

// Decision is the outcome of next-page resolution.
type Decision struct {
	// Stop ends the aggregation as exhausted.
	Stop bool

	// NextURL is an absolute URL to request verbatim.
	NextURL string

	// NextPage is the page number to request next.
	NextPage int
}

// Cursor is the part of the aggregation state visible to strategies.
type Cursor struct {
	// PageSize is the clamped page size sent upstream.
	PageSize int

	// CurrentPage is the page number of the response being resolved.
	// It is 0 after following a URL cursor whose page is unknown.
	CurrentPage int

	// TotalPages is remembered from the first response exposing counters.
	TotalPages int
}

// Strategy resolves the next page from a response. ok is false when the
// strategy does not apply and the next one in the chain should be tried.
type Strategy interface {
	Name() string
	Resolve(cursor *Cursor, page Page) (decision Decision, ok bool)
}

// DefaultStrategies returns the resolution chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		URLCursor{},
		NextPageNumber{},
		Counters{},
		ShortPage{},
	}
}

// URLCursor follows a fully-qualified next_page URL.
type URLCursor struct{}

func (URLCursor) Name() string { return "url_cursor" }

func (URLCursor) Resolve(_ *Cursor, page Page) (Decision, bool) {
	if page.Meta.NextPage.URL == "" {
		return Decision{}, false
	}
	return Decision{NextURL: page.Meta.NextPage.URL}, true
}

// NextPageNumber jumps to a numeric next_page; a falsy value stops.
type NextPageNumber struct{}

func (NextPageNumber) Name() string { return "next_page_number" }

func (NextPageNumber) Resolve(_ *Cursor, page Page) (Decision, bool) {
	next := page.Meta.NextPage
	if !next.Present {
		return Decision{}, false
	}
	if next.Number <= 0 {
		return Decision{Stop: true}, true
	}
	return Decision{NextPage: next.Number}, true
}

// Counters derives the page count from limit/page/total.
type Counters struct{}

func (Counters) Name() string { return "counters" }

func (Counters) Resolve(cursor *Cursor, page Page) (Decision, bool) {
	if page.Meta.HasCounters() {
		cursor.TotalPages = page.Meta.TotalPages()
	}
	if cursor.TotalPages == 0 {
		return Decision{}, false
	}

	current := cursor.CurrentPage
	if page.Meta.Page != nil && *page.Meta.Page > 0 {
		current = *page.Meta.Page
	}
	if current <= 0 || current >= cursor.TotalPages {
		return Decision{Stop: true}, true
	}
	return Decision{NextPage: current + 1}, true
}

// ShortPage treats a page smaller than the page size as the last one.
type ShortPage struct{}

func (ShortPage) Name() string { return "short_page" }

func (ShortPage) Resolve(cursor *Cursor, page Page) (Decision, bool) {
	if len(page.Items) < cursor.PageSize || cursor.CurrentPage <= 0 {
		return Decision{Stop: true}, true
	}
	return Decision{NextPage: cursor.CurrentPage + 1}, true
}

// resolve runs the chain and reports which strategy decided.
func resolve(chain []Strategy, cursor *Cursor, page Page) (Decision, string) {
	for _, s := range chain {
		if d, ok := s.Resolve(cursor, page); ok {
			return d, s.Name()
		}
	}
	return Decision{Stop: true}, "none"
}
