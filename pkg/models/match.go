package models

import "time"

// Confidence grades how certain a duplicate classification is
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// MatchType names which layer of the cascade produced a match
type MatchType string

const (
	MatchTypeExact MatchType = "exact"
	MatchTypeEmail MatchType = "email"
	MatchTypePhone MatchType = "phone"
	MatchTypeFuzzy MatchType = "fuzzy"
)

// MatchResult is the outcome of classifying one candidate lead against the
// tenant's lead pool
type MatchResult struct {
	IsDuplicate bool       `json:"is_duplicate"`
	DuplicateID string     `json:"duplicate_id,omitempty"`
	Confidence  Confidence `json:"confidence"`
	MatchType   MatchType  `json:"match_type,omitempty"`
}

// LeadInput is the candidate field set handed to the classifier. ExcludeID
// (when set) removes an already-stored lead from consideration so a stored
// lead never matches itself.
type LeadInput struct {
	ExcludeID    string         `json:"exclude_id,omitempty"`
	BusinessName string         `json:"business_name" validate:"required"`
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

// LeadRef is the trimmed projection the candidate finder scans: identity plus
// the match fields only
type LeadRef struct {
	ID           string    `json:"id" db:"id"`
	BusinessName string    `json:"business_name" db:"business_name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	City         *string   `json:"city,omitempty" db:"city"`
	State        *string   `json:"state,omitempty" db:"state"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DuplicatePair is one advisory pairing reported by the candidate finder
type DuplicatePair struct {
	Lead1      LeadRef   `json:"lead1"`
	Lead2      LeadRef   `json:"lead2"`
	Similarity float64   `json:"similarity"`
	MatchType  MatchType `json:"match_type"`
}
