package tenant

import (
	"net/http"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/lead"
)

// Register registers tenant routes
func Register(g *echo.Group) {
	g.DELETE("/tenant/:tenant_id", deleteTenantData)
}

// deleteTenantData deletes all leads for a specific tenant
// This is intended for testing purposes to clean up test data
func deleteTenantData(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "tenant_id is required",
		})
	}

	ctx, repo, err := ectoinject.GetContext[*lead.Repository](ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to get lead repository",
		})
	}

	deleted, err := repo.DeleteByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id": tenantID,
			"leads":     deleted,
		}).Info("Tenant data deleted")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "tenant data deleted",
		"tenant_id": tenantID,
		"leads":     deleted,
	})
}
