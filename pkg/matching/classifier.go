// Package matching implements lead duplicate classification
package matching

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LeadStore is the read surface the classifier needs. All lookups are
// tenant-scoped; excludeID (when non-empty) removes a stored lead from the
// result so a lead never matches itself.
type LeadStore interface {
	FindByEmailAndPhone(ctx context.Context, tenantID, email, phone, excludeID string) (*models.Lead, error)
	FindByEmail(ctx context.Context, tenantID, email, excludeID string) (*models.Lead, error)
	FindByPhone(ctx context.Context, tenantID, phone, excludeID string) (*models.Lead, error)
	ListByCityState(ctx context.Context, tenantID, city, state, excludeID string) ([]models.Lead, error)
}

// ClassifierConfig contains configuration for the duplicate classifier
type ClassifierConfig struct {
	FuzzyThreshold       float64 // Name similarity above which same-locale leads match (default: 0.85)
	SameCompanyThreshold float64 // Name similarity above which two leads are the same company (default: 0.90)
}

// DefaultClassifierConfig returns default classifier configuration
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		FuzzyThreshold:       0.85,
		SameCompanyThreshold: 0.90,
	}
}

// Classifier decides whether a candidate lead duplicates an existing lead.
// It runs a layered cascade from cheapest/most-precise to most expensive:
// exact email+phone, then email, then phone, then fuzzy name within the same
// city+state. The first layer that produces a hit wins.
type Classifier struct {
	logger ectologger.Logger
	store  LeadStore
	scorer *Scorer
	config ClassifierConfig
}

// NewClassifier creates a new duplicate classifier
func NewClassifier(logger ectologger.Logger, store LeadStore, config ClassifierConfig) *Classifier {
	return &Classifier{
		logger: logger,
		store:  store,
		scorer: NewScorer(),
		config: config,
	}
}

// Classify checks the candidate against the tenant's lead pool and reports
// the first duplicate found. A candidate with no hit in any layer comes back
// {IsDuplicate: false, Confidence: high}: high confidence that it is new.
func (c *Classifier) Classify(ctx context.Context, tenantID string, candidate *models.LeadInput) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Classifier.Classify")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":     tenantID,
		"business_name": candidate.BusinessName,
	})

	email := strValue(candidate.Email)
	phone := strValue(candidate.Phone)

	// Layer 1: exact email + phone
	if email != "" && phone != "" {
		found, err := c.store.FindByEmailAndPhone(ctx, tenantID, email, phone, candidate.ExcludeID)
		if err != nil {
			return nil, fmt.Errorf("exact lookup failed: %w", err)
		}
		if found != nil {
			log.WithFields(map[string]any{"duplicate_id": found.ID}).Debug("Exact email+phone match")
			return &models.MatchResult{
				IsDuplicate: true,
				DuplicateID: found.ID,
				Confidence:  models.ConfidenceHigh,
				MatchType:   models.MatchTypeExact,
			}, nil
		}
	}

	// Layer 2: email match, gated on the leads being the same company
	if email != "" {
		found, err := c.store.FindByEmail(ctx, tenantID, email, candidate.ExcludeID)
		if err != nil {
			return nil, fmt.Errorf("email lookup failed: %w", err)
		}
		if found != nil && c.isSameCompany(candidate.BusinessName, found.BusinessName) {
			log.WithFields(map[string]any{"duplicate_id": found.ID}).Debug("Email match")
			return &models.MatchResult{
				IsDuplicate: true,
				DuplicateID: found.ID,
				Confidence:  models.ConfidenceHigh,
				MatchType:   models.MatchTypeEmail,
			}, nil
		}
	}

	// Layer 3: phone match, same company gate, medium confidence
	if phone != "" {
		found, err := c.store.FindByPhone(ctx, tenantID, phone, candidate.ExcludeID)
		if err != nil {
			return nil, fmt.Errorf("phone lookup failed: %w", err)
		}
		if found != nil && c.isSameCompany(candidate.BusinessName, found.BusinessName) {
			log.WithFields(map[string]any{"duplicate_id": found.ID}).Debug("Phone match")
			return &models.MatchResult{
				IsDuplicate: true,
				DuplicateID: found.ID,
				Confidence:  models.ConfidenceMedium,
				MatchType:   models.MatchTypePhone,
			}, nil
		}
	}

	// Layer 4: fuzzy name match within the same city+state
	city := strValue(candidate.City)
	state := strValue(candidate.State)
	if city != "" && state != "" {
		leads, err := c.store.ListByCityState(ctx, tenantID, city, state, candidate.ExcludeID)
		if err != nil {
			return nil, fmt.Errorf("city/state lookup failed: %w", err)
		}

		name := normalizers.CompanyName(candidate.BusinessName)
		for i := range leads {
			similarity := c.scorer.Similarity(name, normalizers.CompanyName(leads[i].BusinessName))
			if similarity > c.config.FuzzyThreshold {
				log.WithFields(map[string]any{
					"duplicate_id": leads[i].ID,
					"similarity":   similarity,
				}).Debug("Fuzzy name match")
				return &models.MatchResult{
					IsDuplicate: true,
					DuplicateID: leads[i].ID,
					Confidence:  models.ConfidenceLow,
					MatchType:   models.MatchTypeFuzzy,
				}, nil
			}
		}
	}

	return &models.MatchResult{
		IsDuplicate: false,
		Confidence:  models.ConfidenceHigh,
	}, nil
}

// isSameCompany reports whether two business names refer to the same company:
// equal after normalization, or nearly so.
func (c *Classifier) isSameCompany(a, b string) bool {
	na := normalizers.CompanyName(a)
	nb := normalizers.CompanyName(b)
	if na == nb {
		return true
	}
	return c.scorer.Similarity(na, nb) > c.config.SameCompanyThreshold
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
