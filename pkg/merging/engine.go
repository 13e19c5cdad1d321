// Package merging implements the lead merge engine: reconciling the fields of
// a duplicate pair into the surviving lead and recording the merge.
package merging

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LeadStore is the persistence surface the merge engine needs
type LeadStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error)
	ApplyMergePatch(ctx context.Context, tenantID, id string, patch models.LeadMergePatch) (*models.Lead, error)
	Delete(ctx context.Context, tenantID, id string) error
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Engine merges duplicate leads. The primary (surviving) lead always wins
// ties; the secondary only contributes fields the primary is missing or holds
// invalid values for.
type Engine struct {
	logger ectologger.Logger
	store  LeadStore
	now    func() time.Time
}

// NewEngine creates a new merge engine
func NewEngine(logger ectologger.Logger, store LeadStore) *Engine {
	return &Engine{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

// MergeLead merges caller-supplied secondary fields into the stored primary
// lead and returns the updated row. Nothing is deleted; the secondary here is
// a field set, not necessarily a stored lead.
func (e *Engine) MergeLead(ctx context.Context, tenantID, primaryID string, secondary models.LeadSnapshot) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeLead")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"primary_id": primaryID,
	})

	var merged *models.Lead
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		primary, err := e.store.GetByID(ctx, tenantID, primaryID)
		if err != nil {
			return err
		}
		if primary == nil {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "primary lead %s not found", primaryID)
		}

		patch := Reconcile(primary, secondary, e.now().UTC())
		merged, err = e.store.ApplyMergePatch(ctx, tenantID, primaryID, patch)
		if err != nil {
			return err
		}
		if merged == nil {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "primary lead %s not found", primaryID)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Merge failed")
		return nil, err
	}

	log.Info("Merged fields into lead")
	return merged, nil
}

// AbsorbLead merges the stored secondary lead into the stored primary and
// deletes the secondary. Update and delete happen in one transaction: either
// the survivor holds the reconciled fields and the duplicate is gone, or
// nothing changed.
func (e *Engine) AbsorbLead(ctx context.Context, tenantID, primaryID, secondaryID string) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.AbsorbLead")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":    tenantID,
		"primary_id":   primaryID,
		"secondary_id": secondaryID,
	})

	var merged *models.Lead
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		primary, err := e.store.GetByID(ctx, tenantID, primaryID)
		if err != nil {
			return err
		}
		if primary == nil {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "primary lead %s not found", primaryID)
		}

		secondary, err := e.store.GetByID(ctx, tenantID, secondaryID)
		if err != nil {
			return err
		}
		if secondary == nil {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "secondary lead %s not found", secondaryID)
		}

		patch := Reconcile(primary, secondary.Snapshot(), e.now().UTC())
		merged, err = e.store.ApplyMergePatch(ctx, tenantID, primaryID, patch)
		if err != nil {
			return err
		}
		if merged == nil {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "primary lead %s not found", primaryID)
		}

		return e.store.Delete(ctx, tenantID, secondaryID)
	})
	if err != nil {
		log.WithError(err).Error("Absorb failed")
		return nil, err
	}

	log.Info("Absorbed duplicate lead")
	return merged, nil
}
