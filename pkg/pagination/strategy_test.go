package pagination

import (
	"encoding/json"
	"testing"
)

func intPtr(v int) *int { return &v }

func itemsOf(n int) []json.RawMessage {
	items := make([]json.RawMessage, n)
	for i := range items {
		items[i] = json.RawMessage(`{}`)
	}
	return items
}

func TestURLCursor(t *testing.T) {
	page := Page{Meta: Meta{NextPage: NextPage{Present: true, URL: "https://x.test/p?c=1"}}}
	d, ok := URLCursor{}.Resolve(&Cursor{}, page)
	if !ok || d.NextURL != "https://x.test/p?c=1" {
		t.Errorf("Resolve() = %+v, %v", d, ok)
	}

	if _, ok := (URLCursor{}).Resolve(&Cursor{}, Page{}); ok {
		t.Error("URLCursor should not apply without a URL")
	}
}

func TestNextPageNumber(t *testing.T) {
	tests := []struct {
		name     string
		next     NextPage
		wantOK   bool
		wantStop bool
		wantPage int
	}{
		{"absent", NextPage{}, false, false, 0},
		{"null", NextPage{Present: true}, true, true, 0},
		{"jump", NextPage{Present: true, Number: 7}, true, false, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := NextPageNumber{}.Resolve(&Cursor{}, Page{Meta: Meta{NextPage: tt.next}})
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if d.Stop != tt.wantStop || d.NextPage != tt.wantPage {
				t.Errorf("Resolve() = %+v", d)
			}
		})
	}
}

func TestCounters(t *testing.T) {
	cursor := &Cursor{PageSize: 10, CurrentPage: 1}

	first := Page{Meta: Meta{Limit: intPtr(10), Page: intPtr(1), Total: intPtr(25)}}
	d, ok := Counters{}.Resolve(cursor, first)
	if !ok || d.NextPage != 2 {
		t.Fatalf("first page: Resolve() = %+v, %v", d, ok)
	}
	if cursor.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", cursor.TotalPages)
	}

	// Later pages only report "page"; the remembered total still applies.
	cursor.CurrentPage = 2
	d, ok = Counters{}.Resolve(cursor, Page{Meta: Meta{Page: intPtr(2)}})
	if !ok || d.NextPage != 3 {
		t.Fatalf("second page: Resolve() = %+v, %v", d, ok)
	}

	cursor.CurrentPage = 3
	d, ok = Counters{}.Resolve(cursor, Page{Meta: Meta{Page: intPtr(3)}})
	if !ok || !d.Stop {
		t.Fatalf("last page: Resolve() = %+v, %v", d, ok)
	}

	if _, ok := (Counters{}).Resolve(&Cursor{}, Page{}); ok {
		t.Error("Counters should not apply without counters")
	}
}

func TestShortPage(t *testing.T) {
	tests := []struct {
		name     string
		items    int
		current  int
		wantStop bool
		wantPage int
	}{
		{"full page continues", 20, 1, false, 2},
		{"short page stops", 5, 1, true, 0},
		{"empty page stops", 0, 3, true, 0},
		{"unknown page stops", 20, 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor := &Cursor{PageSize: 20, CurrentPage: tt.current}
			d, ok := ShortPage{}.Resolve(cursor, Page{Items: itemsOf(tt.items)})
			if !ok {
				t.Fatal("ShortPage must always apply")
			}
			if d.Stop != tt.wantStop || d.NextPage != tt.wantPage {
				t.Errorf("Resolve() = %+v", d)
			}
		})
	}
}

func TestResolve_Priority(t *testing.T) {
	// A URL wins over counters that would otherwise stop.
	page := Page{
		Items: itemsOf(1),
		Meta: Meta{
			Limit:    intPtr(10),
			Page:     intPtr(1),
			Total:    intPtr(1),
			NextPage: NextPage{Present: true, URL: "https://x.test/next"},
		},
	}
	d, name := resolve(DefaultStrategies(), &Cursor{PageSize: 10, CurrentPage: 1}, page)
	if name != "url_cursor" || d.NextURL == "" {
		t.Errorf("resolve() = %+v by %s, want url_cursor", d, name)
	}

	// An explicit null next_page wins over the size heuristic.
	page = Page{Items: itemsOf(10), Meta: Meta{NextPage: NextPage{Present: true}}}
	d, name = resolve(DefaultStrategies(), &Cursor{PageSize: 10, CurrentPage: 1}, page)
	if name != "next_page_number" || !d.Stop {
		t.Errorf("resolve() = %+v by %s, want next_page_number stop", d, name)
	}

	d, name = resolve(nil, &Cursor{}, Page{})
	if name != "none" || !d.Stop {
		t.Errorf("empty chain: resolve() = %+v by %s", d, name)
	}
}
