// Package lead implements the tenant-scoped lead record store backing the
// dedup engine.
package lead

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/internal/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "leads"

var leadColumns = []string{
	"id", "tenant_id", "business_name", "contact_person", "email", "phone",
	"website", "address", "city", "state", "zip_code", "country",
	"business_category", "google_place_id", "source", "status", "rating",
	"lead_score", "enriched_data", "merge_history", "last_enriched_at",
	"created_at", "updated_at",
}

// Repository handles lead persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new lead repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// queryer prefers the transaction carried by ctx over the live connection so
// every method participates in an enclosing InTx automatically.
func (r *Repository) queryer(ctx context.Context) database.Queryer {
	if tx, ok := database.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// InTx runs fn inside a single transaction. Repository calls made with the
// context fn receives share that transaction.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.InTx")
	defer span.End()

	ctxTx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := fn(ctxTx); err != nil {
		return err
	}

	if err := tx.Commit(ctxTx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit transaction")
	}
	return nil
}

// GetByID retrieves a lead by id. Returns nil when the lead does not exist.
func (r *Repository) GetByID(ctx context.Context, tenantID, id string) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var lead models.Lead
	if err := r.queryer(ctx).GetContext(ctx, &lead, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "lead_id": id}).Error("Failed to get lead")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get lead")
	}
	return &lead, nil
}

// FindByEmailAndPhone returns the oldest lead with the exact email and phone.
// Returns nil when there is no match.
func (r *Repository) FindByEmailAndPhone(ctx context.Context, tenantID, email, phone, excludeID string) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.FindByEmailAndPhone")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(table)
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("email", email),
		sb.Equal("phone", phone),
	}
	if excludeID != "" {
		where = append(where, sb.NotEqual("id", excludeID))
	}
	sb.Where(where...)
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.findOne(ctx, sb, tenantID)
}

// FindByEmail returns the oldest lead with the exact email.
// Returns nil when there is no match.
func (r *Repository) FindByEmail(ctx context.Context, tenantID, email, excludeID string) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.FindByEmail")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(table)
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("email", email),
	}
	if excludeID != "" {
		where = append(where, sb.NotEqual("id", excludeID))
	}
	sb.Where(where...)
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.findOne(ctx, sb, tenantID)
}

// FindByPhone returns the oldest lead with the exact phone.
// Returns nil when there is no match.
func (r *Repository) FindByPhone(ctx context.Context, tenantID, phone, excludeID string) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.FindByPhone")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(table)
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("phone", phone),
	}
	if excludeID != "" {
		where = append(where, sb.NotEqual("id", excludeID))
	}
	sb.Where(where...)
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.findOne(ctx, sb, tenantID)
}

func (r *Repository) findOne(ctx context.Context, sb *sqlbuilder.SelectBuilder, tenantID string) (*models.Lead, error) {
	query, args := sb.Build()
	var lead models.Lead
	if err := r.queryer(ctx).GetContext(ctx, &lead, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to find lead")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find lead")
	}
	return &lead, nil
}

// ListByCityState returns all leads in the given city and state, oldest first
func (r *Repository) ListByCityState(ctx context.Context, tenantID, city, state, excludeID string) ([]models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.ListByCityState")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(table)
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("city", city),
		sb.Equal("state", state),
	}
	if excludeID != "" {
		where = append(where, sb.NotEqual("id", excludeID))
	}
	sb.Where(where...)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var leads []models.Lead
	if err := r.queryer(ctx).SelectContext(ctx, &leads, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "city": city, "state": state}).Error("Failed to list leads by city/state")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list leads")
	}
	return leads, nil
}

// ListUnscored returns all leads that have not been scored yet, newest first
func (r *Repository) ListUnscored(ctx context.Context, tenantID string) ([]models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.ListUnscored")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("lead_score"),
	)
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var leads []models.Lead
	if err := r.queryer(ctx).SelectContext(ctx, &leads, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to list unscored leads")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list leads")
	}
	return leads, nil
}

// ListMatchFields returns the match-field projection of every lead for the
// tenant, oldest first. The candidate finder scans this instead of full rows.
func (r *Repository) ListMatchFields(ctx context.Context, tenantID string) ([]models.LeadRef, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.ListMatchFields")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "business_name", "email", "phone", "city", "state", "created_at")
	sb.From(table)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var refs []models.LeadRef
	if err := r.queryer(ctx).SelectContext(ctx, &refs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to list lead match fields")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list leads")
	}
	return refs, nil
}

// Create inserts a new lead and returns the stored row
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateLeadRequest) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	status := req.Status
	if status == "" {
		status = "new"
	}

	ib := database.NewInsertBuilder().
		InsertInto(table).
		Cols(leadColumns...).
		Values(
			uuid.New().String(), tenantID, req.BusinessName, req.ContactPerson,
			req.Email, req.Phone, req.Website, req.Address, req.City, req.State,
			req.ZipCode, req.Country, req.BusinessCategory, req.GooglePlaceID,
			req.Source, status, req.Rating, nil,
			models.EnrichedData(req.EnrichedData), models.MergeHistory{}, nil,
			now, now,
		).
		Returning(leadColumns...)

	query, args := ib.Build()
	var lead models.Lead
	if err := r.queryer(ctx).GetContext(ctx, &lead, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "business_name": req.BusinessName}).Error("Failed to create lead")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create lead")
	}
	return &lead, nil
}

// ApplyMergePatch writes the reconciled merge fields back to a lead and
// returns the updated row. Returns nil when the lead does not exist.
func (r *Repository) ApplyMergePatch(ctx context.Context, tenantID, id string, patch models.LeadMergePatch) (*models.Lead, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.ApplyMergePatch")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("email", patch.Email),
		ub.Assign("phone", patch.Phone),
		ub.Assign("website", patch.Website),
		ub.Assign("address", patch.Address),
		ub.Assign("city", patch.City),
		ub.Assign("state", patch.State),
		ub.Assign("zip_code", patch.ZipCode),
		ub.Assign("enriched_data", patch.EnrichedData),
		ub.Assign("merge_history", patch.MergeHistory),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("id", id),
	)
	ub.SQL("RETURNING " + strings.Join(leadColumns, ", "))

	query, args := ub.Build()
	var lead models.Lead
	if err := r.queryer(ctx).GetContext(ctx, &lead, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "lead_id": id}).Error("Failed to apply merge patch")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update lead")
	}
	return &lead, nil
}

// UpdateScore sets the lead score
func (r *Repository) UpdateScore(ctx context.Context, tenantID, id string, score float64) error {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.UpdateScore")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("lead_score", score),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("id", id),
	)

	query, args := ub.Build()
	if _, err := r.queryer(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "lead_id": id}).Error("Failed to update lead score")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update lead score")
	}
	return nil
}

// Delete removes a lead. Deleting a missing lead is an error so callers can
// surface merges that raced with another writer.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("tenant_id", tenantID),
		db.Equal("id", id),
	)

	query, args := db.Build()
	result, err := r.queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "lead_id": id}).Error("Failed to delete lead")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete lead")
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "lead %s not found", id)
	}
	return nil
}

// DeleteByTenant removes all leads for a tenant and returns the count
func (r *Repository) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "lead.Repository.DeleteByTenant")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("tenant_id", tenantID))

	query, args := db.Build()
	result, err := r.queryer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to delete tenant leads")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete tenant leads")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
