// controllers/withdrawal_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/services"
)

// WithdrawalController exposes commission withdrawals to agents and the
// approval queue to admins
type WithdrawalController struct {
	withdrawals *services.WithdrawalProcessor
}

func NewWithdrawalController(withdrawals *services.WithdrawalProcessor) *WithdrawalController {
	return &WithdrawalController{withdrawals: withdrawals}
}

type withdrawalRequestBody struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// Request creates a withdrawal request against the caller's earned
// commissions
func (wc *WithdrawalController) Request(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req withdrawalRequestBody
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A positive amount is required",
		})
	}

	withdrawal, err := wc.withdrawals.Request(c.Request().Context(), agentID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Withdrawal request submitted",
		Data:    withdrawal,
	})
}

// GetHistory returns the caller's withdrawal requests, newest first
func (wc *WithdrawalController) GetHistory(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	withdrawals, err := wc.withdrawals.History(c.Request().Context(), agentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal history retrieved",
		Data:    withdrawals,
	})
}

// ListPending returns withdrawals awaiting an admin decision
func (wc *WithdrawalController) ListPending(c echo.Context) error {
	withdrawals, err := wc.withdrawals.ListPending(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Pending withdrawals retrieved",
		Data:    withdrawals,
	})
}

// Approve finalizes a withdrawal: marks it paid, settles the locked
// commissions and triggers the momo payout. Safe to retry.
func (wc *WithdrawalController) Approve(c echo.Context) error {
	adminID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}
	withdrawalID, err := parseObjectID(c.Param("id"), "withdrawal id")
	if err != nil {
		return respondError(c, err)
	}

	withdrawal, err := wc.withdrawals.Finalize(c.Request().Context(), withdrawalID, adminID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal approved and paid",
		Data:    withdrawal,
	})
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// Reject cancels a withdrawal and returns its commissions to earned
func (wc *WithdrawalController) Reject(c echo.Context) error {
	adminID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}
	withdrawalID, err := parseObjectID(c.Param("id"), "withdrawal id")
	if err != nil {
		return respondError(c, err)
	}

	var req rejectWithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	withdrawal, err := wc.withdrawals.Cancel(c.Request().Context(), withdrawalID, adminID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal rejected",
		Data:    withdrawal,
	})
}
