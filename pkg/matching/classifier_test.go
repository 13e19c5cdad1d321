package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

type fakeLeadStore struct {
	byEmailAndPhone *models.Lead
	byEmail         *models.Lead
	byPhone         *models.Lead
	byCityState     []models.Lead
	err             error

	exactCalls     int
	emailCalls     int
	phoneCalls     int
	cityStateCalls int
	lastExcludeID  string
}

func (f *fakeLeadStore) FindByEmailAndPhone(ctx context.Context, tenantID, email, phone, excludeID string) (*models.Lead, error) {
	f.exactCalls++
	f.lastExcludeID = excludeID
	return f.byEmailAndPhone, f.err
}

func (f *fakeLeadStore) FindByEmail(ctx context.Context, tenantID, email, excludeID string) (*models.Lead, error) {
	f.emailCalls++
	f.lastExcludeID = excludeID
	return f.byEmail, f.err
}

func (f *fakeLeadStore) FindByPhone(ctx context.Context, tenantID, phone, excludeID string) (*models.Lead, error) {
	f.phoneCalls++
	f.lastExcludeID = excludeID
	return f.byPhone, f.err
}

func (f *fakeLeadStore) ListByCityState(ctx context.Context, tenantID, city, state, excludeID string) ([]models.Lead, error) {
	f.cityStateCalls++
	f.lastExcludeID = excludeID
	return f.byCityState, f.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func ptr(s string) *string {
	return &s
}

func newTestClassifier(store LeadStore) *Classifier {
	return NewClassifier(testLogger(), store, DefaultClassifierConfig())
}

func TestClassify_ExactEmailAndPhone(t *testing.T) {
	store := &fakeLeadStore{
		byEmailAndPhone: &models.Lead{ID: "lead-1", BusinessName: "Totally Different Name"},
	}
	classifier := newTestClassifier(store)

	candidate := &models.LeadInput{
		BusinessName: "Acme Inc.",
		Email:        ptr("john@acme.com"),
		Phone:        ptr("555-123-4567"),
	}

	result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.NoError(t, err)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, "lead-1", result.DuplicateID)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Equal(t, models.MatchTypeExact, result.MatchType)

	// Exact layer wins without touching the rest of the cascade,
	// and no company name gate applies.
	assert.Equal(t, 1, store.exactCalls)
	assert.Equal(t, 0, store.emailCalls)
	assert.Equal(t, 0, store.phoneCalls)
	assert.Equal(t, 0, store.cityStateCalls)
}

func TestClassify_EmailMatchSameCompany(t *testing.T) {
	tests := []struct {
		name         string
		storedName   string
		expectDup    bool
		expectedType models.MatchType
	}{
		{
			name:         "identical normalized names",
			storedName:   "ACME Widgets, LLC",
			expectDup:    true,
			expectedType: models.MatchTypeEmail,
		},
		{
			name:         "nearly identical names",
			storedName:   "Acme Widgetz Inc",
			expectDup:    true,
			expectedType: models.MatchTypeEmail,
		},
		{
			name:       "different company sharing an email",
			storedName: "Beta Industries",
			expectDup:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeLeadStore{
				byEmail: &models.Lead{ID: "lead-2", BusinessName: tt.storedName},
			}
			classifier := newTestClassifier(store)

			candidate := &models.LeadInput{
				BusinessName: "Acme Widgets Inc.",
				Email:        ptr("info@acme.com"),
			}

			result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
			require.NoError(t, err)

			assert.Equal(t, tt.expectDup, result.IsDuplicate)
			if tt.expectDup {
				assert.Equal(t, "lead-2", result.DuplicateID)
				assert.Equal(t, models.ConfidenceHigh, result.Confidence)
				assert.Equal(t, tt.expectedType, result.MatchType)
			}
		})
	}
}

func TestClassify_PhoneMatchMediumConfidence(t *testing.T) {
	store := &fakeLeadStore{
		byPhone: &models.Lead{ID: "lead-3", BusinessName: "Acme Inc"},
	}
	classifier := newTestClassifier(store)

	candidate := &models.LeadInput{
		BusinessName: "Acme",
		Phone:        ptr("555-123-4567"),
	}

	result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.NoError(t, err)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, "lead-3", result.DuplicateID)
	assert.Equal(t, models.ConfidenceMedium, result.Confidence)
	assert.Equal(t, models.MatchTypePhone, result.MatchType)
}

func TestClassify_PhoneMatchDifferentCompanyIsNotDuplicate(t *testing.T) {
	// A shared office line is not a duplicate lead.
	store := &fakeLeadStore{
		byPhone: &models.Lead{ID: "lead-3", BusinessName: "Beta Industries"},
	}
	classifier := newTestClassifier(store)

	candidate := &models.LeadInput{
		BusinessName: "Acme",
		Phone:        ptr("555-123-4567"),
	}

	result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.NoError(t, err)

	assert.False(t, result.IsDuplicate)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
}

func TestClassify_FuzzyNameMatch(t *testing.T) {
	tests := []struct {
		name       string
		storedName string
		expectDup  bool
	}{
		{
			name:       "near identical name in same locale",
			storedName: "Acme Widgets Inc.",
			expectDup:  true,
		},
		{
			name:       "unrelated name in same locale",
			storedName: "Zeta Holdings",
			expectDup:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeLeadStore{
				byCityState: []models.Lead{
					{ID: "lead-4", BusinessName: tt.storedName},
				},
			}
			classifier := newTestClassifier(store)

			candidate := &models.LeadInput{
				BusinessName: "Acme Widgets",
				City:         ptr("Denver"),
				State:        ptr("CO"),
			}

			result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
			require.NoError(t, err)

			assert.Equal(t, tt.expectDup, result.IsDuplicate)
			if tt.expectDup {
				assert.Equal(t, "lead-4", result.DuplicateID)
				assert.Equal(t, models.ConfidenceLow, result.Confidence)
				assert.Equal(t, models.MatchTypeFuzzy, result.MatchType)
			}
		})
	}
}

func TestClassify_LayersSkippedWhenFieldsMissing(t *testing.T) {
	store := &fakeLeadStore{}
	classifier := newTestClassifier(store)

	// No email, no phone, no city/state: nothing to look up.
	candidate := &models.LeadInput{BusinessName: "Acme"}

	result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.NoError(t, err)

	assert.False(t, result.IsDuplicate)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 0, store.exactCalls)
	assert.Equal(t, 0, store.emailCalls)
	assert.Equal(t, 0, store.phoneCalls)
	assert.Equal(t, 0, store.cityStateCalls)
}

func TestClassify_ExactLayerNeedsBothFields(t *testing.T) {
	store := &fakeLeadStore{}
	classifier := newTestClassifier(store)

	candidate := &models.LeadInput{
		BusinessName: "Acme",
		Email:        ptr("info@acme.com"),
	}

	_, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.NoError(t, err)

	assert.Equal(t, 0, store.exactCalls)
	assert.Equal(t, 1, store.emailCalls)
}

func TestClassify_ExcludeIDForwardedToStore(t *testing.T) {
	store := &fakeLeadStore{}
	classifier := newTestClassifier(store)

	candidate := &models.LeadInput{
		ExcludeID:    "self-id",
		BusinessName: "Acme",
		Email:        ptr("info@acme.com"),
	}

	_, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.NoError(t, err)

	assert.Equal(t, "self-id", store.lastExcludeID)
}

func TestClassify_StoreError(t *testing.T) {
	store := &fakeLeadStore{err: errors.New("connection refused")}
	classifier := newTestClassifier(store)

	candidate := &models.LeadInput{
		BusinessName: "Acme",
		Email:        ptr("info@acme.com"),
		Phone:        ptr("555-123-4567"),
	}

	result, err := classifier.Classify(context.Background(), "tenant-1", candidate)
	require.Error(t, err)
	assert.Nil(t, result)
}
