package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/controllers"
	"github.com/datamartgh/datamart_backend/middleware"
	"github.com/datamartgh/datamart_backend/models"
)

// RegisterAdminRoutes sets up the admin-only routes
func RegisterAdminRoutes(e *echo.Echo,
	commissionController *controllers.CommissionController,
	walletController *controllers.WalletController,
	withdrawalController *controllers.WithdrawalController,
	orderController *controllers.OrderController,
	auditController *controllers.AuditController,
) {
	r := e.Group("/api/admin")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireUserType(models.UserTypeAdmin))

	// Commission management
	r.POST("/commissions", commissionController.Create)
	r.POST("/commissions/reverse", commissionController.Reverse)

	// Wallet approvals and corrections
	r.PUT("/wallet/transactions/:id", walletController.ProcessTransaction)
	r.POST("/wallet/adjustments", walletController.RecordAdjustment)

	// Withdrawal queue
	r.GET("/withdrawals/pending", withdrawalController.ListPending)
	r.PUT("/withdrawals/:id/approve", withdrawalController.Approve)
	r.PUT("/withdrawals/:id/reject", withdrawalController.Reject)

	// Order status hook and reconciliation
	r.POST("/orders/status-change", orderController.StatusChange)
	r.POST("/agents/:id/sync", orderController.SyncAgent)
	r.POST("/sync", orderController.SyncAll)

	// Integrity audit
	r.POST("/audit", auditController.Run)
}
