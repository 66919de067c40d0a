package easybroker

import (
	"encoding/json"
	"time"
)

// Upstream listing endpoints.
const (
	EndpointProperties      = "/v1/properties"
	EndpointContacts        = "/v1/contacts"
	EndpointContactRequests = "/v1/contact_requests"
)

// MaxPageSize is the largest page the provider serves.
const MaxPageSize = 50

// Property is a catalog entry as returned by the properties listing.
type Property struct {
	PublicID         string          `json:"public_id"`
	Title            string          `json:"title"`
	TitleImageFull   string          `json:"title_image_full,omitempty"`
	TitleImageThumb  string          `json:"title_image_thumb,omitempty"`
	Location         json.RawMessage `json:"location,omitempty"`
	Operations       []Operation     `json:"operations,omitempty"`
	Bedrooms         *int            `json:"bedrooms,omitempty"`
	Bathrooms        *int            `json:"bathrooms,omitempty"`
	ParkingSpaces    *int            `json:"parking_spaces,omitempty"`
	PropertyType     string          `json:"property_type,omitempty"`
	LotSize          *float64        `json:"lot_size,omitempty"`
	ConstructionSize *float64        `json:"construction_size,omitempty"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// Operation is a sale or rental offer on a property.
type Operation struct {
	Type            string  `json:"type"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	FormattedAmount string  `json:"formatted_amount,omitempty"`
	Unit            string  `json:"unit,omitempty"`
}

// Contact is a CRM contact.
type Contact struct {
	ID        json.Number `json:"id"`
	FullName  string      `json:"full_name,omitempty"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Source    string      `json:"source,omitempty"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

// ContactRequest is an inbound inquiry recorded by the provider.
type ContactRequest struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name,omitempty"`
	Email      string      `json:"email,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	PropertyID string      `json:"property_id,omitempty"`
	Message    string      `json:"message,omitempty"`
	Source     string      `json:"source,omitempty"`
	HappenedAt *time.Time  `json:"happened_at,omitempty"`
}

// Lead is a website inquiry forwarded to the provider as a contact request.
type Lead struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
	Message    string `json:"message,omitempty"`
	Source     string `json:"source,omitempty"`
}

// LeadReceipt acknowledges a forwarded lead.
type LeadReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
