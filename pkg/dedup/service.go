// Package dedup orchestrates lead deduplication: the online check-and-merge
// path, batch runs over unscored leads, and the advisory candidate finder.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LeadStore is the persistence surface the orchestrator needs beyond what the
// classifier and merge engine consume themselves
type LeadStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error)
	ListUnscored(ctx context.Context, tenantID string) ([]models.Lead, error)
	ListMatchFields(ctx context.Context, tenantID string) ([]models.LeadRef, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// Classifier decides whether a candidate duplicates a stored lead
type Classifier interface {
	Classify(ctx context.Context, tenantID string, candidate *models.LeadInput) (*models.MatchResult, error)
}

// Merger reconciles duplicate pairs
type Merger interface {
	MergeLead(ctx context.Context, tenantID, primaryID string, secondary models.LeadSnapshot) (*models.Lead, error)
	AbsorbLead(ctx context.Context, tenantID, primaryID, secondaryID string) (*models.Lead, error)
}

// AuditEmitter publishes dedup audit events. A nil emitter disables emission.
type AuditEmitter interface {
	EmitLeadMerged(ctx context.Context, survivor *models.Lead, absorbedID string, matchType models.MatchType) error
	EmitLeadDeleted(ctx context.Context, tenantID, leadID, keptLeadID string) error
}

// ServiceConfig contains configuration for the dedup orchestrator
type ServiceConfig struct {
	FinderThreshold float64           // Name similarity for the candidate finder (default: 0.85)
	BatchTimeout    time.Duration     // Overall cap on one batch run; 0 disables it
	Enrichment      config.Enrichment // Credentials handed to downstream enrichment hooks
}

// DefaultServiceConfig returns default orchestrator configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		FinderThreshold: 0.85,
		BatchTimeout:    5 * time.Minute,
	}
}

// Service is the dedup orchestrator
type Service struct {
	logger      ectologger.Logger
	store       LeadStore
	classifier  Classifier
	merger      Merger
	emitter     AuditEmitter
	scorer      *matching.Scorer
	config      ServiceConfig
	tenantLocks sync.Map // tenantID -> *sync.Mutex
}

// NewService creates a new dedup orchestrator. emitter may be nil.
func NewService(logger ectologger.Logger, store LeadStore, classifier Classifier, merger Merger, emitter AuditEmitter, config ServiceConfig) *Service {
	return &Service{
		logger:     logger,
		store:      store,
		classifier: classifier,
		merger:     merger,
		emitter:    emitter,
		scorer:     matching.NewScorer(),
		config:     config,
	}
}

// DeduplicateLead classifies a candidate lead against the tenant's pool
// without writing anything
func (s *Service) DeduplicateLead(ctx context.Context, tenantID string, candidate *models.LeadInput) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Service.DeduplicateLead")
	defer span.End()

	return s.classifier.Classify(ctx, tenantID, candidate)
}

// MergeLead merges caller-supplied secondary fields into a stored primary
// lead and returns the survivor
func (s *Service) MergeLead(ctx context.Context, tenantID, primaryID string, secondary models.LeadSnapshot) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Service.MergeLead")
	defer span.End()

	survivor, err := s.merger.MergeLead(ctx, tenantID, primaryID, secondary)
	if err != nil {
		return nil, err
	}

	s.emitMerged(ctx, survivor, secondary.ID, "")
	return survivor, nil
}

// ProcessLead runs the online dedup path for a stored lead: classify it
// against the rest of the pool and absorb it into the older duplicate when
// one exists. A lead that disappeared before processing is treated as clean.
func (s *Service) ProcessLead(ctx context.Context, tenantID, leadID string) (*models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Service.ProcessLead")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"lead_id":   leadID,
	})

	lead, err := s.store.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		log.Warn("Lead no longer exists, skipping dedup")
		return &models.MatchResult{IsDuplicate: false, Confidence: models.ConfidenceHigh}, nil
	}

	match, err := s.classifier.Classify(ctx, tenantID, inputFromLead(lead))
	if err != nil {
		return nil, err
	}
	if !match.IsDuplicate {
		return match, nil
	}

	survivor, err := s.merger.AbsorbLead(ctx, tenantID, match.DuplicateID, leadID)
	if err != nil {
		return nil, err
	}

	s.emitMerged(ctx, survivor, leadID, match.MatchType)
	return match, nil
}

// BatchDeduplicateLeads runs the dedup pipeline over every unscored lead of
// the tenant, newest first. One lead failing never aborts the run; it just
// lowers the merged count. Batch runs for the same tenant are serialized.
func (s *Service) BatchDeduplicateLeads(ctx context.Context, tenantID string) (*models.BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Service.BatchDeduplicateLeads")
	defer span.End()

	mu := s.tenantLock(tenantID)
	mu.Lock()
	defer mu.Unlock()

	if s.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.BatchTimeout)
		defer cancel()
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID})

	leads, err := s.store.ListUnscored(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &models.BatchResult{}
	for i := range leads {
		select {
		case <-ctx.Done():
			log.WithFields(map[string]any{"processed": result.Processed}).Warn("Batch dedup cancelled")
			return result, ctx.Err()
		default:
		}

		result.Processed++
		leadLog := log.WithFields(map[string]any{"lead_id": leads[i].ID})

		match, err := s.classifier.Classify(ctx, tenantID, inputFromLead(&leads[i]))
		if err != nil {
			result.Failed++
			leadLog.WithError(err).Warn("Failed to classify lead, skipping")
			continue
		}
		if !match.IsDuplicate {
			continue
		}

		result.Duplicates++
		survivor, err := s.merger.AbsorbLead(ctx, tenantID, match.DuplicateID, leads[i].ID)
		if err != nil {
			result.Failed++
			leadLog.WithError(err).Warn("Failed to merge duplicate, skipping")
			continue
		}

		result.Merged++
		s.emitMerged(ctx, survivor, leads[i].ID, match.MatchType)
	}

	log.WithFields(map[string]any{
		"processed":  result.Processed,
		"duplicates": result.Duplicates,
		"merged":     result.Merged,
		"failed":     result.Failed,
	}).Info("Batch dedup completed")

	return result, nil
}

// FindPotentialDuplicates scans every pair of leads and reports likely
// duplicates without mutating anything. Equal emails pair at similarity 1.0,
// then equal phones, then fuzzy name similarity within the same city+state.
// threshold <= 0 falls back to the configured default.
func (s *Service) FindPotentialDuplicates(ctx context.Context, tenantID string, threshold float64) ([]models.DuplicatePair, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Service.FindPotentialDuplicates")
	defer span.End()

	if threshold <= 0 {
		threshold = s.config.FinderThreshold
	}

	refs, err := s.store.ListMatchFields(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	// Normalize every name once; the pairwise loop only compares.
	names := make([]string, len(refs))
	for i := range refs {
		names[i] = normalizers.CompanyName(refs[i].BusinessName)
	}

	pairs := []models.DuplicatePair{}
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			a, b := &refs[i], &refs[j]

			if sameValue(a.Email, b.Email) {
				pairs = append(pairs, models.DuplicatePair{
					Lead1: *a, Lead2: *b, Similarity: 1.0, MatchType: models.MatchTypeEmail,
				})
				continue
			}

			if sameValue(a.Phone, b.Phone) {
				pairs = append(pairs, models.DuplicatePair{
					Lead1: *a, Lead2: *b, Similarity: 1.0, MatchType: models.MatchTypePhone,
				})
				continue
			}

			if sameValue(a.City, b.City) && sameValue(a.State, b.State) {
				similarity := s.scorer.Similarity(names[i], names[j])
				if similarity >= threshold {
					pairs = append(pairs, models.DuplicatePair{
						Lead1: *a, Lead2: *b, Similarity: similarity, MatchType: models.MatchTypeFuzzy,
					})
				}
			}
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"leads":     len(refs),
		"pairs":     len(pairs),
	}).Debug("Candidate scan completed")

	return pairs, nil
}

// DeleteDuplicates sweeps the candidate pairs and deletes the newer lead of
// each, keeping the oldest. A lead kept by one pair is never deleted by
// another. Returns how many pairs were found and how many leads were removed.
func (s *Service) DeleteDuplicates(ctx context.Context, tenantID string, threshold float64) (*models.CleanupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Service.DeleteDuplicates")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{"tenant_id": tenantID})

	pairs, err := s.FindPotentialDuplicates(ctx, tenantID, threshold)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	remove := make(map[string]string) // doomed lead -> kept lead
	for _, p := range pairs {
		older, newer := p.Lead1, p.Lead2
		if newer.CreatedAt.Before(older.CreatedAt) {
			older, newer = newer, older
		}
		keep[older.ID] = true
		if _, ok := remove[newer.ID]; !ok {
			remove[newer.ID] = older.ID
		}
	}

	result := &models.CleanupResult{Found: len(pairs)}
	for id, keptID := range remove {
		if keep[id] {
			continue
		}
		if err := s.store.Delete(ctx, tenantID, id); err != nil {
			log.WithError(err).WithFields(map[string]any{"lead_id": id}).Warn("Failed to delete duplicate lead")
			continue
		}
		result.Deleted++
		if s.emitter != nil {
			if err := s.emitter.EmitLeadDeleted(ctx, tenantID, id, keptID); err != nil {
				log.WithError(err).WithFields(map[string]any{"lead_id": id}).Warn("Failed to emit lead.deleted event")
			}
		}
	}

	log.WithFields(map[string]any{"found": result.Found, "deleted": result.Deleted}).Info("Duplicate cleanup completed")
	return result, nil
}

func (s *Service) emitMerged(ctx context.Context, survivor *models.Lead, absorbedID string, matchType models.MatchType) {
	if s.emitter == nil || survivor == nil {
		return
	}
	if err := s.emitter.EmitLeadMerged(ctx, survivor, absorbedID, matchType); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"lead_id": survivor.ID,
		}).Warn("Failed to emit lead.merged event")
	}
}

// tenantLock returns the mutex serializing batch runs for a tenant
func (s *Service) tenantLock(tenantID string) *sync.Mutex {
	mu, _ := s.tenantLocks.LoadOrStore(tenantID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// inputFromLead projects a stored lead into classifier input, excluding the
// lead itself from the search
func inputFromLead(lead *models.Lead) *models.LeadInput {
	return &models.LeadInput{
		ExcludeID:    lead.ID,
		BusinessName: lead.BusinessName,
		Email:        lead.Email,
		Phone:        lead.Phone,
		Website:      lead.Website,
		Address:      lead.Address,
		City:         lead.City,
		State:        lead.State,
		ZipCode:      lead.ZipCode,
		Country:      lead.Country,
		Source:       lead.Source,
		EnrichedData: lead.EnrichedData,
	}
}

func sameValue(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}
