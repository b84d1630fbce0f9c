package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/controllers"
	"github.com/datamartgh/datamart_backend/middleware"
	"github.com/datamartgh/datamart_backend/models"
)

// RegisterAgentRoutes sets up the agent-facing protected routes
func RegisterAgentRoutes(e *echo.Echo,
	commissionController *controllers.CommissionController,
	walletController *controllers.WalletController,
	withdrawalController *controllers.WithdrawalController,
) {
	r := e.Group("/api/agent")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireUserType(models.UserTypeAgent, models.UserTypeAdmin))

	// Commission ledger
	r.GET("/commissions/balance", commissionController.GetBalance)
	r.GET("/commissions", commissionController.GetHistory)

	// Wallet
	r.GET("/wallet/balance", walletController.GetBalance)
	r.GET("/wallet/transactions", walletController.GetHistory)
	r.POST("/wallet/topup", walletController.RequestTopup)

	// Withdrawals
	r.POST("/withdrawals", withdrawalController.Request)
	r.GET("/withdrawals", withdrawalController.GetHistory)
}
