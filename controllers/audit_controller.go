// controllers/audit_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/services"
)

// AuditController exposes the read-only integrity sweep to admins
type AuditController struct {
	auditor *services.IntegrityAuditor
}

func NewAuditController(auditor *services.IntegrityAuditor) *AuditController {
	return &AuditController{auditor: auditor}
}

// Run executes a full integrity sweep and returns the report
func (ac *AuditController) Run(c echo.Context) error {
	report, err := ac.auditor.Run(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Integrity audit completed",
		Data:    report,
	})
}
