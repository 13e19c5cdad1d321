// Package dedupe exposes the dedup engine's ops routes
package dedupe

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	ctxvalues "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/dedup"
	"github.com/Ramsey-B/clover/pkg/models"
)

var validate = validator.New()

// Register registers dedupe routes
func Register(g *echo.Group) {
	g.POST("/check", CheckLead)
	g.POST("/merge", MergeLead)
	g.POST("/batch", RunBatch)
	g.GET("/candidates", ListCandidates)
	g.POST("/candidates/cleanup", CleanupCandidates)
}

// CheckLead classifies a candidate lead against the tenant's pool without
// writing anything
func CheckLead(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxvalues.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.LeadInput
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*dedup.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := service.DeduplicateLead(ctx, tenantID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// MergeLead merges caller-supplied fields into a stored primary lead
func MergeLead(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxvalues.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.MergeLeadRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*dedup.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	survivor, err := service.MergeLead(ctx, tenantID, req.PrimaryID, req.Secondary)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, survivor)
}

// RunBatch runs batch deduplication over the tenant's unscored leads
func RunBatch(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxvalues.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, service, err := ectoinject.GetContext[*dedup.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := service.BatchDeduplicateLeads(ctx, tenantID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListCandidates reports likely duplicate pairs without mutating anything
func ListCandidates(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxvalues.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	threshold, err := parseThreshold(c.QueryParam("threshold"))
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*dedup.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	pairs, err := service.FindPotentialDuplicates(ctx, tenantID, threshold)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"pairs": pairs,
		"count": len(pairs),
	})
}

// CleanupCandidates deletes the newer lead of every candidate pair
func CleanupCandidates(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxvalues.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	threshold, err := parseThreshold(c.QueryParam("threshold"))
	if err != nil {
		return err
	}

	ctx, service, err := ectoinject.GetContext[*dedup.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := service.DeleteDuplicates(ctx, tenantID, threshold)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func parseThreshold(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "threshold must be a number in (0, 1]")
	}
	return threshold, nil
}
