package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeLeadStore struct {
	leads map[string]*models.Lead

	unscored []models.Lead
	refs     []models.LeadRef

	listErr   error
	deleteErr error

	deletedIDs []string
}

func (f *fakeLeadStore) GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error) {
	return f.leads[id], nil
}

func (f *fakeLeadStore) ListUnscored(ctx context.Context, tenantID string) ([]models.Lead, error) {
	return f.unscored, f.listErr
}

func (f *fakeLeadStore) ListMatchFields(ctx context.Context, tenantID string) ([]models.LeadRef, error) {
	return f.refs, f.listErr
}

func (f *fakeLeadStore) Delete(ctx context.Context, tenantID, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

// fakeClassifier returns the result keyed by the candidate's ExcludeID, or a
// clean result when no entry exists.
type fakeClassifier struct {
	results map[string]*models.MatchResult
	errFor  map[string]error
	calls   []string
}

func (f *fakeClassifier) Classify(ctx context.Context, tenantID string, candidate *models.LeadInput) (*models.MatchResult, error) {
	f.calls = append(f.calls, candidate.ExcludeID)
	if err := f.errFor[candidate.ExcludeID]; err != nil {
		return nil, err
	}
	if result, ok := f.results[candidate.ExcludeID]; ok {
		return result, nil
	}
	return &models.MatchResult{IsDuplicate: false, Confidence: models.ConfidenceHigh}, nil
}

type absorbCall struct {
	primaryID   string
	secondaryID string
}

type fakeMerger struct {
	survivor *models.Lead
	errFor   map[string]error // keyed by secondary ID

	mergeCalls  int
	absorbCalls []absorbCall
}

func (f *fakeMerger) MergeLead(ctx context.Context, tenantID, primaryID string, secondary models.LeadSnapshot) (*models.Lead, error) {
	f.mergeCalls++
	return f.survivor, nil
}

func (f *fakeMerger) AbsorbLead(ctx context.Context, tenantID, primaryID, secondaryID string) (*models.Lead, error) {
	if err := f.errFor[secondaryID]; err != nil {
		return nil, err
	}
	f.absorbCalls = append(f.absorbCalls, absorbCall{primaryID: primaryID, secondaryID: secondaryID})
	return f.survivor, nil
}

type emittedMerge struct {
	survivorID string
	absorbedID string
	matchType  models.MatchType
}

type emittedDelete struct {
	leadID     string
	keptLeadID string
}

type fakeEmitter struct {
	mergedEvents  []emittedMerge
	deletedEvents []emittedDelete
	err           error
}

func (f *fakeEmitter) EmitLeadMerged(ctx context.Context, survivor *models.Lead, absorbedID string, matchType models.MatchType) error {
	if f.err != nil {
		return f.err
	}
	f.mergedEvents = append(f.mergedEvents, emittedMerge{
		survivorID: survivor.ID,
		absorbedID: absorbedID,
		matchType:  matchType,
	})
	return nil
}

func (f *fakeEmitter) EmitLeadDeleted(ctx context.Context, tenantID, leadID, keptLeadID string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedEvents = append(f.deletedEvents, emittedDelete{leadID: leadID, keptLeadID: keptLeadID})
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func ptr(s string) *string {
	return &s
}

func newTestService(store *fakeLeadStore, classifier *fakeClassifier, merger *fakeMerger, emitter AuditEmitter) *Service {
	return NewService(testLogger(), store, classifier, merger, emitter, DefaultServiceConfig())
}

func TestProcessLead_AbsorbsDuplicate(t *testing.T) {
	lead := &models.Lead{ID: "new-lead", TenantID: "tenant-1", BusinessName: "Acme"}
	survivor := &models.Lead{ID: "old-lead", TenantID: "tenant-1", BusinessName: "Acme Inc"}

	store := &fakeLeadStore{leads: map[string]*models.Lead{"new-lead": lead}}
	classifier := &fakeClassifier{results: map[string]*models.MatchResult{
		"new-lead": {IsDuplicate: true, DuplicateID: "old-lead", Confidence: models.ConfidenceHigh, MatchType: models.MatchTypeExact},
	}}
	merger := &fakeMerger{survivor: survivor}
	emitter := &fakeEmitter{}
	service := newTestService(store, classifier, merger, emitter)

	match, err := service.ProcessLead(context.Background(), "tenant-1", "new-lead")
	require.NoError(t, err)

	assert.True(t, match.IsDuplicate)
	require.Len(t, merger.absorbCalls, 1)
	assert.Equal(t, absorbCall{primaryID: "old-lead", secondaryID: "new-lead"}, merger.absorbCalls[0])

	require.Len(t, emitter.mergedEvents, 1)
	assert.Equal(t, emittedMerge{
		survivorID: "old-lead",
		absorbedID: "new-lead",
		matchType:  models.MatchTypeExact,
	}, emitter.mergedEvents[0])
}

func TestProcessLead_MissingLeadIsClean(t *testing.T) {
	store := &fakeLeadStore{leads: map[string]*models.Lead{}}
	classifier := &fakeClassifier{}
	merger := &fakeMerger{}
	service := newTestService(store, classifier, merger, nil)

	match, err := service.ProcessLead(context.Background(), "tenant-1", "gone")
	require.NoError(t, err)

	assert.False(t, match.IsDuplicate)
	assert.Empty(t, classifier.calls)
	assert.Empty(t, merger.absorbCalls)
}

func TestProcessLead_NotDuplicate(t *testing.T) {
	lead := &models.Lead{ID: "new-lead", TenantID: "tenant-1", BusinessName: "Acme"}
	store := &fakeLeadStore{leads: map[string]*models.Lead{"new-lead": lead}}
	classifier := &fakeClassifier{}
	merger := &fakeMerger{}
	service := newTestService(store, classifier, merger, nil)

	match, err := service.ProcessLead(context.Background(), "tenant-1", "new-lead")
	require.NoError(t, err)

	assert.False(t, match.IsDuplicate)
	assert.Empty(t, merger.absorbCalls)
}

func TestBatchDeduplicateLeads(t *testing.T) {
	survivor := &models.Lead{ID: "survivor", TenantID: "tenant-1", BusinessName: "Acme"}

	// Three unscored leads: one duplicate, one clean, one that fails to
	// classify. The failure never aborts the run.
	store := &fakeLeadStore{
		unscored: []models.Lead{
			{ID: "dup", TenantID: "tenant-1", BusinessName: "Acme Inc"},
			{ID: "clean", TenantID: "tenant-1", BusinessName: "Beta"},
			{ID: "broken", TenantID: "tenant-1", BusinessName: "Gamma"},
		},
	}
	classifier := &fakeClassifier{
		results: map[string]*models.MatchResult{
			"dup": {IsDuplicate: true, DuplicateID: "survivor", Confidence: models.ConfidenceHigh, MatchType: models.MatchTypeEmail},
		},
		errFor: map[string]error{
			"broken": errors.New("lookup failed"),
		},
	}
	merger := &fakeMerger{survivor: survivor}
	emitter := &fakeEmitter{}
	service := newTestService(store, classifier, merger, emitter)

	result, err := service.BatchDeduplicateLeads(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Failed)

	require.Len(t, merger.absorbCalls, 1)
	assert.Equal(t, absorbCall{primaryID: "survivor", secondaryID: "dup"}, merger.absorbCalls[0])
	assert.Len(t, emitter.mergedEvents, 1)

	// Every lead excludes itself from its own candidate search.
	assert.Equal(t, []string{"dup", "clean", "broken"}, classifier.calls)
}

func TestBatchDeduplicateLeads_MergeFailureCountsAsFailed(t *testing.T) {
	store := &fakeLeadStore{
		unscored: []models.Lead{
			{ID: "dup-1", TenantID: "tenant-1", BusinessName: "Acme"},
			{ID: "dup-2", TenantID: "tenant-1", BusinessName: "Acme Inc"},
		},
	}
	classifier := &fakeClassifier{
		results: map[string]*models.MatchResult{
			"dup-1": {IsDuplicate: true, DuplicateID: "survivor", MatchType: models.MatchTypePhone},
			"dup-2": {IsDuplicate: true, DuplicateID: "survivor", MatchType: models.MatchTypePhone},
		},
	}
	merger := &fakeMerger{
		survivor: &models.Lead{ID: "survivor", TenantID: "tenant-1", BusinessName: "Acme"},
		errFor:   map[string]error{"dup-1": errors.New("deadlock")},
	}
	service := newTestService(store, classifier, merger, nil)

	result, err := service.BatchDeduplicateLeads(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Failed)
}

func TestBatchDeduplicateLeads_CancelledContext(t *testing.T) {
	store := &fakeLeadStore{
		unscored: []models.Lead{
			{ID: "a", TenantID: "tenant-1", BusinessName: "Acme"},
			{ID: "b", TenantID: "tenant-1", BusinessName: "Beta"},
		},
	}
	service := newTestService(store, &fakeClassifier{}, &fakeMerger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := service.BatchDeduplicateLeads(ctx, "tenant-1")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "partial result comes back on cancellation")
	assert.Equal(t, 0, result.Processed)
}

func TestBatchDeduplicateLeads_ListError(t *testing.T) {
	store := &fakeLeadStore{listErr: errors.New("connection refused")}
	service := newTestService(store, &fakeClassifier{}, &fakeMerger{}, nil)

	result, err := service.BatchDeduplicateLeads(context.Background(), "tenant-1")
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestFindPotentialDuplicates(t *testing.T) {
	now := time.Now()
	store := &fakeLeadStore{
		refs: []models.LeadRef{
			{ID: "a", BusinessName: "Acme Widgets", Email: ptr("info@acme.com"), CreatedAt: now},
			{ID: "b", BusinessName: "Beta Industries", Email: ptr("info@acme.com"), CreatedAt: now.Add(time.Hour)},
			{ID: "c", BusinessName: "Gamma LLC", Phone: ptr("555-123-4567"), CreatedAt: now},
			{ID: "d", BusinessName: "Gamma Corp", Phone: ptr("555-123-4567"), CreatedAt: now.Add(time.Hour)},
			{ID: "e", BusinessName: "Acme Widgets Inc", City: ptr("Denver"), State: ptr("CO"), CreatedAt: now},
			{ID: "f", BusinessName: "Acme Widgets LLC", City: ptr("Denver"), State: ptr("CO"), CreatedAt: now.Add(time.Hour)},
			{ID: "g", BusinessName: "Unrelated Plumbing", City: ptr("Denver"), State: ptr("CO"), CreatedAt: now},
		},
	}
	service := newTestService(store, &fakeClassifier{}, &fakeMerger{}, nil)

	pairs, err := service.FindPotentialDuplicates(context.Background(), "tenant-1", 0)
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	byType := map[models.MatchType]models.DuplicatePair{}
	for _, p := range pairs {
		byType[p.MatchType] = p
	}

	emailPair := byType[models.MatchTypeEmail]
	assert.Equal(t, "a", emailPair.Lead1.ID)
	assert.Equal(t, "b", emailPair.Lead2.ID)
	assert.Equal(t, 1.0, emailPair.Similarity)

	phonePair := byType[models.MatchTypePhone]
	assert.Equal(t, "c", phonePair.Lead1.ID)
	assert.Equal(t, "d", phonePair.Lead2.ID)
	assert.Equal(t, 1.0, phonePair.Similarity)

	fuzzyPair := byType[models.MatchTypeFuzzy]
	assert.Equal(t, "e", fuzzyPair.Lead1.ID)
	assert.Equal(t, "f", fuzzyPair.Lead2.ID)
	assert.GreaterOrEqual(t, fuzzyPair.Similarity, 0.85)

	assert.Empty(t, store.deletedIDs, "the finder never mutates")
}

func TestFindPotentialDuplicates_ThresholdFiltersFuzzy(t *testing.T) {
	now := time.Now()
	store := &fakeLeadStore{
		refs: []models.LeadRef{
			{ID: "a", BusinessName: "Acme Widgets", City: ptr("Denver"), State: ptr("CO"), CreatedAt: now},
			{ID: "b", BusinessName: "Acme Wodgets", City: ptr("Denver"), State: ptr("CO"), CreatedAt: now},
		},
	}
	service := newTestService(store, &fakeClassifier{}, &fakeMerger{}, nil)

	pairs, err := service.FindPotentialDuplicates(context.Background(), "tenant-1", 0.85)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)

	pairs, err = service.FindPotentialDuplicates(context.Background(), "tenant-1", 0.99)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestDeleteDuplicates_KeepsOldest(t *testing.T) {
	now := time.Now()
	store := &fakeLeadStore{
		refs: []models.LeadRef{
			{ID: "oldest", BusinessName: "Acme", Email: ptr("info@acme.com"), CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "middle", BusinessName: "Acme", Email: ptr("info@acme.com"), CreatedAt: now.Add(-time.Hour)},
			{ID: "newest", BusinessName: "Acme", Email: ptr("info@acme.com"), CreatedAt: now},
		},
	}
	emitter := &fakeEmitter{}
	service := newTestService(store, &fakeClassifier{}, &fakeMerger{}, emitter)

	result, err := service.DeleteDuplicates(context.Background(), "tenant-1", 0)
	require.NoError(t, err)

	// middle is the keeper of the (middle, newest) pair, so a single sweep
	// only removes newest; a later sweep would catch middle.
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"newest"}, store.deletedIDs)

	require.Len(t, emitter.deletedEvents, 1)
	assert.Equal(t, "oldest", emitter.deletedEvents[0].keptLeadID)
}

func TestDeleteDuplicates_DeleteFailureContinues(t *testing.T) {
	now := time.Now()
	store := &fakeLeadStore{
		refs: []models.LeadRef{
			{ID: "keep", BusinessName: "Acme", Email: ptr("info@acme.com"), CreatedAt: now.Add(-time.Hour)},
			{ID: "doomed", BusinessName: "Acme", Email: ptr("info@acme.com"), CreatedAt: now},
		},
		deleteErr: errors.New("foreign key violation"),
	}
	service := newTestService(store, &fakeClassifier{}, &fakeMerger{}, nil)

	result, err := service.DeleteDuplicates(context.Background(), "tenant-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 0, result.Deleted)
}

func TestHandleMessage(t *testing.T) {
	lead := &models.Lead{ID: "new-lead", TenantID: "tenant-1", BusinessName: "Acme"}
	store := &fakeLeadStore{leads: map[string]*models.Lead{"new-lead": lead}}
	classifier := &fakeClassifier{results: map[string]*models.MatchResult{
		"new-lead": {IsDuplicate: true, DuplicateID: "old-lead", MatchType: models.MatchTypeEmail},
	}}
	merger := &fakeMerger{survivor: &models.Lead{ID: "old-lead", TenantID: "tenant-1", BusinessName: "Acme"}}
	service := newTestService(store, classifier, merger, nil)

	t.Run("lead.created triggers the online path", func(t *testing.T) {
		msg := &kafka.IncomingMessage{
			LeadMessage: &models.LeadMessage{
				EventType: models.EventLeadCreated,
				TenantID:  "tenant-1",
				LeadID:    "new-lead",
			},
		}
		err := service.HandleMessage(context.Background(), msg)
		require.NoError(t, err)
		assert.Len(t, merger.absorbCalls, 1)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		msg := &kafka.IncomingMessage{
			LeadMessage: &models.LeadMessage{
				EventType: models.EventLeadUpdated,
				TenantID:  "tenant-1",
				LeadID:    "new-lead",
			},
		}
		err := service.HandleMessage(context.Background(), msg)
		require.NoError(t, err)
		assert.Len(t, merger.absorbCalls, 1, "no new absorb")
	})

	t.Run("missing tenant id is dropped", func(t *testing.T) {
		msg := &kafka.IncomingMessage{
			Headers: map[string]string{"event_type": models.EventLeadCreated},
		}
		err := service.HandleMessage(context.Background(), msg)
		require.NoError(t, err)
	})
}

func TestEmitterFailureNeverFailsTheMerge(t *testing.T) {
	lead := &models.Lead{ID: "new-lead", TenantID: "tenant-1", BusinessName: "Acme"}
	store := &fakeLeadStore{leads: map[string]*models.Lead{"new-lead": lead}}
	classifier := &fakeClassifier{results: map[string]*models.MatchResult{
		"new-lead": {IsDuplicate: true, DuplicateID: "old-lead", MatchType: models.MatchTypeExact},
	}}
	merger := &fakeMerger{survivor: &models.Lead{ID: "old-lead", TenantID: "tenant-1", BusinessName: "Acme"}}
	emitter := &fakeEmitter{err: errors.New("broker unavailable")}
	service := newTestService(store, classifier, merger, emitter)

	_, err := service.ProcessLead(context.Background(), "tenant-1", "new-lead")
	require.NoError(t, err)
	assert.Len(t, merger.absorbCalls, 1)
}
