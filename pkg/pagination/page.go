package pagination

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// DefaultItemsKey is the envelope key holding page items.
const DefaultItemsKey = "content"

// FallbackItemsKeys are tried in order when the items key is absent.
var FallbackItemsKeys = []string{"contacts", "requests", "items", "data", "results"}

// PageRequest describes a single page fetch.
type PageRequest struct {
	// Endpoint is the listing path relative to the upstream base URL.
	Endpoint string

	// Query holds the replayed parameters plus page and limit.
	Query url.Values

	// URL is an absolute next-page URL handed back by the upstream.
	// When set it is requested verbatim and Endpoint/Query are ignored.
	URL string

	// Page is the page number being requested (0 when following a URL).
	Page int
}

// Target returns a printable identifier of the page being requested.
func (r PageRequest) Target() string {
	if r.URL != "" {
		return r.URL
	}
	if len(r.Query) == 0 {
		return r.Endpoint
	}
	return r.Endpoint + "?" + r.Query.Encode()
}

// NextPage is the decoded "next_page" pagination field.
type NextPage struct {
	// Present is true when the field exists in the body (even as null).
	Present bool

	// URL is set when the field is a fully-qualified URL or a reference
	// relative to the requested page ("/v1/properties?page=2", "?page=2").
	URL string

	// Number is the next page number; 0 means no more pages.
	Number int
}

// Meta is the pagination block of a page response.
// Nil pointers mean the counter was not sent.
type Meta struct {
	Limit    *int
	Page     *int
	Total    *int
	NextPage NextPage
}

// HasCounters reports whether limit and total are both usable.
func (m Meta) HasCounters() bool {
	return m.Limit != nil && m.Total != nil && *m.Limit > 0
}

// TotalPages returns ceil(total/limit), or 0 when counters are missing.
func (m Meta) TotalPages() int {
	if !m.HasCounters() {
		return 0
	}
	return int(math.Ceil(float64(*m.Total) / float64(*m.Limit)))
}

// Page is a decoded page response.
type Page struct {
	Items     []json.RawMessage
	Meta      Meta
	Malformed bool
}

// ParsePage decodes a page body. It never fails: a body that is not a JSON
// object yields an empty, malformed page with no pagination metadata.
func ParsePage(body []byte, itemsKey string) Page {
	if itemsKey == "" {
		itemsKey = DefaultItemsKey
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Page{Malformed: true}
		}
		return Page{Items: items}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope == nil {
		return Page{Malformed: true}
	}

	page := Page{Items: decodeItems(envelope, itemsKey)}
	if raw, ok := envelope["pagination"]; ok {
		page.Meta = decodeMeta(raw)
	}
	return page
}

func decodeItems(envelope map[string]json.RawMessage, itemsKey string) []json.RawMessage {
	keys := append([]string{itemsKey}, FallbackItemsKeys...)
	for _, key := range keys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		return items
	}
	return nil
}

func decodeMeta(raw json.RawMessage) Meta {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Meta{}
	}

	meta := Meta{
		Limit: decodeInt(fields["limit"]),
		Page:  decodeInt(fields["page"]),
		Total: decodeInt(fields["total"]),
	}
	if next, ok := fields["next_page"]; ok {
		meta.NextPage = decodeNextPage(next)
	}
	return meta
}

func decodeInt(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		n = json.Number(s)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return nil
		}
		v = int(f)
	}
	return &v
}

func decodeNextPage(raw json.RawMessage) NextPage {
	next := NextPage{Present: true}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return next
	}

	switch v := value.(type) {
	case float64:
		if v > 0 {
			next.Number = int(v)
		}
	case string:
		s := strings.TrimSpace(v)
		if isAbsoluteURL(s) || isRelativeRef(s) {
			next.URL = s
		} else if n, err := strconv.Atoi(s); err == nil && n > 0 {
			next.Number = n
		}
	}
	// null, false and anything else leave Number at 0: no more pages.
	return next
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isRelativeRef(s string) bool {
	if !strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "?") {
		return false
	}
	_, err := url.Parse(s)
	return err == nil
}

// resolveRef resolves a next_page reference against the page that carried it.
// Absolute references are returned verbatim.
func resolveRef(prev PageRequest, ref string) string {
	if isAbsoluteURL(ref) {
		return ref
	}
	base, err := url.Parse(prev.Target())
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
