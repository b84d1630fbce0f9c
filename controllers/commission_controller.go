// controllers/commission_controller.go
package controllers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/services"
)

// CommissionController exposes the commission ledger to agents and admins
type CommissionController struct {
	ledger *services.CommissionLedger
}

func NewCommissionController(ledger *services.CommissionLedger) *CommissionController {
	return &CommissionController{ledger: ledger}
}

// GetBalance returns the caller's commission balances. Summary reads degrade
// to zero on store trouble instead of erroring, so dashboards stay up.
func (cc *CommissionController) GetBalance(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	available, err := cc.ledger.AvailableBalance(c.Request().Context(), agentID)
	if err != nil {
		log.Printf("Warning: commission balance read failed for agent %s: %v", agentID.Hex(), err)
		available = 0
	}
	totalCommissions, totalPaidOut, err := cc.ledger.Totals(c.Request().Context(), agentID)
	if err != nil {
		log.Printf("Warning: commission totals read failed for agent %s: %v", agentID.Hex(), err)
		totalCommissions, totalPaidOut = 0, 0
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission balance retrieved",
		Data: map[string]interface{}{
			"availableBalance": available,
			"totalCommissions": totalCommissions,
			"totalPaidOut":     totalPaidOut,
		},
	})
}

// GetHistory returns the caller's commission records, optionally filtered by
// ?status=
func (cc *CommissionController) GetHistory(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	var statuses []string
	if status := c.QueryParam("status"); status != "" {
		statuses = append(statuses, status)
	}

	records, err := cc.ledger.History(c.Request().Context(), agentID, statuses...)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission history retrieved",
		Data:    records,
	})
}

type createCommissionRequest struct {
	AgentID    string  `json:"agentId" validate:"required"`
	SourceType string  `json:"sourceType" validate:"required"`
	SourceID   string  `json:"sourceId" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
}

// Create records a commission directly. Admin escape hatch; the normal path
// is the order status hook.
func (cc *CommissionController) Create(c echo.Context) error {
	var req createCommissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "agentId, sourceType, sourceId and a positive amount are required",
		})
	}

	agentID, err := parseObjectID(req.AgentID, "agent id")
	if err != nil {
		return respondError(c, err)
	}
	sourceID, err := parseObjectID(req.SourceID, "source id")
	if err != nil {
		return respondError(c, err)
	}

	rec, err := cc.ledger.Create(c.Request().Context(), agentID, req.SourceType, sourceID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Commission recorded",
		Data:    rec,
	})
}

type reverseCommissionRequest struct {
	SourceType string `json:"sourceType" validate:"required"`
	SourceID   string `json:"sourceId" validate:"required"`
}

// Reverse removes the unpaid commission for a source. Already-withdrawn
// commissions are left alone and the call still succeeds.
func (cc *CommissionController) Reverse(c echo.Context) error {
	var req reverseCommissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "sourceType and sourceId are required",
		})
	}

	sourceID, err := parseObjectID(req.SourceID, "source id")
	if err != nil {
		return respondError(c, err)
	}

	if err := cc.ledger.Reverse(c.Request().Context(), req.SourceType, sourceID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission reversal processed",
	})
}
