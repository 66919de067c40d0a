package easybroker

import (
	"net/url"
	"strconv"
	"time"
)

// PropertyFilter narrows the properties listing.
// Zero values are omitted from the upstream query.
type PropertyFilter struct {
	OperationType string // "sale", "rental" or "temporary_rental"
	PropertyTypes []string
	Statuses      []string
	Locations     []string
	MinPrice      float64
	MaxPrice      float64
	MinBedrooms   int
	MinBathrooms  int
	UpdatedAfter  time.Time
}

// Values returns the filter as search[...] query parameters.
func (f PropertyFilter) Values() url.Values {
	v := url.Values{}
	if f.OperationType != "" {
		v.Set("search[operation_type]", f.OperationType)
	}
	for _, t := range f.PropertyTypes {
		v.Add("search[property_types][]", t)
	}
	for _, s := range f.Statuses {
		v.Add("search[statuses][]", s)
	}
	for _, l := range f.Locations {
		v.Add("search[locations][]", l)
	}
	if f.MinPrice > 0 {
		v.Set("search[min_price]", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		v.Set("search[max_price]", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	if f.MinBedrooms > 0 {
		v.Set("search[min_bedrooms]", strconv.Itoa(f.MinBedrooms))
	}
	if f.MinBathrooms > 0 {
		v.Set("search[min_bathrooms]", strconv.Itoa(f.MinBathrooms))
	}
	if !f.UpdatedAfter.IsZero() {
		v.Set("search[updated_after]", f.UpdatedAfter.UTC().Format(time.RFC3339))
	}
	return v
}

// ParsePropertyFilter reads a filter from caller query parameters
// (operation_type, property_type, status, location, min_price, max_price,
// min_bedrooms, min_bathrooms, updated_after). Unparseable numbers are ignored.
func ParsePropertyFilter(q url.Values) PropertyFilter {
	f := PropertyFilter{
		OperationType: q.Get("operation_type"),
		PropertyTypes: q["property_type"],
		Statuses:      q["status"],
		Locations:     q["location"],
	}
	if n, err := strconv.ParseFloat(q.Get("min_price"), 64); err == nil {
		f.MinPrice = n
	}
	if n, err := strconv.ParseFloat(q.Get("max_price"), 64); err == nil {
		f.MaxPrice = n
	}
	if n, err := strconv.Atoi(q.Get("min_bedrooms")); err == nil {
		f.MinBedrooms = n
	}
	if n, err := strconv.Atoi(q.Get("min_bathrooms")); err == nil {
		f.MinBathrooms = n
	}
	if ts, err := time.Parse(time.RFC3339, q.Get("updated_after")); err == nil {
		f.UpdatedAfter = ts
	}
	return f
}
