package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Lead is a CRM lead record as seen by the dedup engine.
// Field order matches schema: id, tenant_id, business_name, contact fields, ...
type Lead struct {
	ID               string       `json:"id" db:"id"`
	TenantID         string       `json:"tenant_id" db:"tenant_id"`
	BusinessName     string       `json:"business_name" db:"business_name"`
	ContactPerson    *string      `json:"contact_person,omitempty" db:"contact_person"`
	Email            *string      `json:"email,omitempty" db:"email"`
	Phone            *string      `json:"phone,omitempty" db:"phone"`
	Website          *string      `json:"website,omitempty" db:"website"`
	Address          *string      `json:"address,omitempty" db:"address"`
	City             *string      `json:"city,omitempty" db:"city"`
	State            *string      `json:"state,omitempty" db:"state"`
	ZipCode          *string      `json:"zip_code,omitempty" db:"zip_code"`
	Country          *string      `json:"country,omitempty" db:"country"`
	BusinessCategory *string      `json:"business_category,omitempty" db:"business_category"`
	GooglePlaceID    *string      `json:"google_place_id,omitempty" db:"google_place_id"`
	Source           string       `json:"source" db:"source"`
	Status           string       `json:"status" db:"status"`
	Rating           *float64     `json:"rating,omitempty" db:"rating"`
	LeadScore        *float64     `json:"lead_score,omitempty" db:"lead_score"`
	EnrichedData     EnrichedData `json:"enriched_data,omitempty" db:"enriched_data"`
	MergeHistory     MergeHistory `json:"merge_history,omitempty" db:"merge_history"`
	LastEnrichedAt   *time.Time   `json:"last_enriched_at,omitempty" db:"last_enriched_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// Snapshot captures the lead's mergeable fields for history entries and
// explicit merge requests.
func (l *Lead) Snapshot() LeadSnapshot {
	return LeadSnapshot{
		ID:           l.ID,
		BusinessName: l.BusinessName,
		Email:        l.Email,
		Phone:        l.Phone,
		Website:      l.Website,
		Address:      l.Address,
		City:         l.City,
		State:        l.State,
		ZipCode:      l.ZipCode,
		Country:      l.Country,
		Source:       l.Source,
		EnrichedData: l.EnrichedData,
	}
}

// CreateLeadRequest is the request for creating a lead
type CreateLeadRequest struct {
	BusinessName     string         `json:"business_name" validate:"required"`
	ContactPerson    *string        `json:"contact_person,omitempty"`
	Email            *string        `json:"email,omitempty"`
	Phone            *string        `json:"phone,omitempty"`
	Website          *string        `json:"website,omitempty"`
	Address          *string        `json:"address,omitempty"`
	City             *string        `json:"city,omitempty"`
	State            *string        `json:"state,omitempty"`
	ZipCode          *string        `json:"zip_code,omitempty"`
	Country          *string        `json:"country,omitempty"`
	BusinessCategory *string        `json:"business_category,omitempty"`
	GooglePlaceID    *string        `json:"google_place_id,omitempty"`
	Source           string         `json:"source" validate:"required"`
	Status           string         `json:"status,omitempty"`
	Rating           *float64       `json:"rating,omitempty"`
	EnrichedData     map[string]any `json:"enriched_data,omitempty"`
}

// LeadListResponse is the response for listing leads
type LeadListResponse struct {
	Items      []Lead `json:"items"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// EnrichedData is the free-form enrichment payload, stored as JSONB.
type EnrichedData map[string]any

// Value implements driver.Valuer for JSONB storage
func (e EnrichedData) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB storage
func (e *EnrichedData) Scan(src any) error {
	if src == nil {
		*e = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("enriched_data: unsupported scan type %T", src)
	}
	if len(b) == 0 {
		*e = nil
		return nil
	}
	return json.Unmarshal(b, e)
}

// MergeHistory is the append-only audit trail of merges into a lead, stored as JSONB.
type MergeHistory []MergeEvent

// Value implements driver.Valuer for JSONB storage
func (h MergeHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner for JSONB storage
func (h *MergeHistory) Scan(src any) error {
	if src == nil {
		*h = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("merge_history: unsupported scan type %T", src)
	}
	if len(b) == 0 {
		*h = nil
		return nil
	}
	return json.Unmarshal(b, h)
}

// MergeEvent records a single merge: the absorbed lead's pre-merge fields,
// when it happened, and where the absorbed lead came from.
type MergeEvent struct {
	MergedWith LeadSnapshot `json:"merged_with"`
	MergedAt   time.Time    `json:"merged_at"`
	Source     string       `json:"source,omitempty"`
}

// LeadSnapshot is the mergeable field set of a lead. It is what the merge
// engine consumes for the secondary side and what history entries preserve.
type LeadSnapshot struct {
	ID           string         `json:"id,omitempty"`
	BusinessName string         `json:"business_name"`
	Email        *string        `json:"email,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Website      *string        `json:"website,omitempty"`
	Address      *string        `json:"address,omitempty"`
	City         *string        `json:"city,omitempty"`
	State        *string        `json:"state,omitempty"`
	ZipCode      *string        `json:"zip_code,omitempty"`
	Country      *string        `json:"country,omitempty"`
	Source       string         `json:"source,omitempty"`
	EnrichedData map[string]any `json:"enriched_data,omitempty"`
}
