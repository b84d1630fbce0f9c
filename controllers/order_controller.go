// controllers/order_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/services"
)

// OrderController receives order status-change events from the ordering
// subsystem and exposes the reconciliation sweeps
type OrderController struct {
	sync *services.OrderSyncService
}

func NewOrderController(sync *services.OrderSyncService) *OrderController {
	return &OrderController{sync: sync}
}

type statusChangeRequest struct {
	SourceType string `json:"sourceType" validate:"required"`
	SourceID   string `json:"sourceId" validate:"required"`
	OldStatus  string `json:"oldStatus"`
	NewStatus  string `json:"newStatus" validate:"required"`
}

// StatusChange applies one source status transition to the ledger. The
// ordering subsystem delivers events at-least-once; repeats are absorbed.
func (oc *OrderController) StatusChange(c echo.Context) error {
	var req statusChangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "sourceType, sourceId and newStatus are required",
		})
	}

	sourceID, err := parseObjectID(req.SourceID, "source id")
	if err != nil {
		return respondError(c, err)
	}

	err = oc.sync.HandleStatusChange(c.Request().Context(), req.SourceType, sourceID, req.OldStatus, req.NewStatus)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Status change processed",
	})
}

// SyncAgent reconciles one agent's ledger against their current sources
func (oc *OrderController) SyncAgent(c echo.Context) error {
	agentID, err := parseObjectID(c.Param("id"), "agent id")
	if err != nil {
		return respondError(c, err)
	}

	created, reversed, err := oc.sync.SyncAgent(c.Request().Context(), agentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agent synced",
		Data: map[string]interface{}{
			"commissionsCreated":  created,
			"commissionsReversed": reversed,
		},
	})
}

// SyncAll reconciles every agent's ledger
func (oc *OrderController) SyncAll(c echo.Context) error {
	summary, err := oc.sync.SyncAll(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Full sync completed",
		Data:    summary,
	})
}
