// controllers/wallet_controller.go
package controllers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/services"
)

// WalletController exposes the wallet transaction log and spendable balance
type WalletController struct {
	wallets *services.WalletService
}

func NewWalletController(wallets *services.WalletService) *WalletController {
	return &WalletController{wallets: wallets}
}

// GetBalance returns the caller's spendable balance, degrading to zero on
// store trouble.
func (wc *WalletController) GetBalance(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	balance, err := wc.wallets.GetBalance(c.Request().Context(), agentID)
	if err != nil {
		log.Printf("Warning: wallet balance read failed for agent %s: %v", agentID.Hex(), err)
		balance = 0
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Wallet balance retrieved",
		Data: map[string]interface{}{
			"balance": balance,
		},
	})
}

// GetHistory returns the caller's wallet transactions, newest first
func (wc *WalletController) GetHistory(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	txns, err := wc.wallets.History(c.Request().Context(), agentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Wallet history retrieved",
		Data:    txns,
	})
}

type topupRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference"`
}

// RequestTopup records a pending topup for admin approval
func (wc *WalletController) RequestTopup(c echo.Context) error {
	agentID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req topupRequest
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

	txn, err := wc.wallets.RequestTopup(c.Request().Context(), agentID, req.Amount, req.Reference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Topup request submitted for approval",
		Data:    txn,
	})
}

type processTransactionRequest struct {
	Approve bool `json:"approve"`
}

// ProcessTransaction approves or rejects a pending wallet transaction
func (wc *WalletController) ProcessTransaction(c echo.Context) error {
	adminID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}
	txnID, err := parseObjectID(c.Param("id"), "transaction id")
	if err != nil {
		return respondError(c, err)
	}

	var req processTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := wc.wallets.ProcessTransaction(c.Request().Context(), txnID, adminID, req.Approve); err != nil {
		return respondError(c, err)
	}

	message := "Transaction rejected"
	if req.Approve {
		message = "Transaction approved"
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: message,
	})
}

type adjustmentRequest struct {
	AgentID   string  `json:"agentId" validate:"required"`
	Type      string  `json:"type" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference"`
}

// RecordAdjustment inserts an immediately-approved admin correction
func (wc *WalletController) RecordAdjustment(c echo.Context) error {
	adminID, err := callerID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req adjustmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "agentId, type and a positive amount are required",
		})
	}

	agentID, err := parseObjectID(req.AgentID, "agent id")
	if err != nil {
		return respondError(c, err)
	}

	txn, err := wc.wallets.RecordAdjustment(c.Request().Context(), agentID, adminID, req.Type, req.Amount, req.Reference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Adjustment recorded",
		Data:    txn,
	})
}
