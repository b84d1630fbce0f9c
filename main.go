package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/datamartgh/datamart_backend/config"
	"github.com/datamartgh/datamart_backend/controllers"
	"github.com/datamartgh/datamart_backend/middleware"
	"github.com/datamartgh/datamart_backend/repositories"
	"github.com/datamartgh/datamart_backend/routes"
	"github.com/datamartgh/datamart_backend/services"
	"github.com/datamartgh/datamart_backend/utils"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis
	config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()
	db := client.Database(config.DatabaseName())

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "DataMart Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	agentRepo := repositories.NewAgentRepository(db)
	commissionRepo := repositories.NewCommissionRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	orderRepo := repositories.NewOrderRepository(db)

	// Initialize services
	policy := config.LoadCommissionPolicy()
	locker := services.NewAgentLocker(config.GetRedisClient())
	momoService := services.NewMomoService()

	ledger := services.NewCommissionLedger(commissionRepo, walletRepo, agentRepo)
	walletService := services.NewWalletService(walletRepo, agentRepo)
	withdrawalProcessor := services.NewWithdrawalProcessor(withdrawalRepo, ledger, agentRepo, locker, momoService)
	orderSync := services.NewOrderSyncService(orderRepo, ledger, agentRepo, locker, policy)
	auditor := services.NewIntegrityAuditor(agentRepo, commissionRepo, walletRepo, withdrawalRepo, orderRepo)

	// Initialize controllers
	authController := controllers.NewAuthController(agentRepo)
	commissionController := controllers.NewCommissionController(ledger)
	walletController := controllers.NewWalletController(walletService)
	withdrawalController := controllers.NewWithdrawalController(withdrawalProcessor)
	orderController := controllers.NewOrderController(orderSync)
	auditController := controllers.NewAuditController(auditor)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterAgentRoutes(e, commissionController, walletController, withdrawalController)
	routes.RegisterAdminRoutes(e, commissionController, walletController, withdrawalController, orderController, auditController)

	// Periodic integrity sweep, enabled with AUDIT_INTERVAL_MINUTES
	startAuditTicker(auditor)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}

// startAuditTicker runs the integrity auditor on a fixed interval when
// configured. Violations are logged; the report endpoint stays the
// interactive way to get full details.
func startAuditTicker(auditor *services.IntegrityAuditor) {
	raw := os.Getenv("AUDIT_INTERVAL_MINUTES")
	if raw == "" {
		return
	}
	minutes, err := utils.ParseFloat(raw)
	if err != nil || minutes <= 0 {
		log.Printf("Warning: invalid AUDIT_INTERVAL_MINUTES %q, periodic audit disabled", raw)
		return
	}

	interval := time.Duration(minutes * float64(time.Minute))
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			report, err := auditor.Run(ctx)
			cancel()
			if err != nil {
				log.Printf("Periodic audit failed: %v", err)
				continue
			}
			if len(report.Violations) > 0 {
				log.Printf("Periodic audit: %d violations across %d agents (health %.2f)",
					len(report.Violations), report.AgentsChecked, report.HealthScore)
			}
		}
	}()
	log.Printf("Periodic integrity audit every %s", interval)
}
