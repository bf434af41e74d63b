package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/ledger-service/ledger_service/internal/api/handlers"
	"github.com/ledger-service/ledger_service/internal/api/middleware"
	"github.com/ledger-service/ledger_service/internal/domain/services/ledger"
	"github.com/ledger-service/ledger_service/internal/infrastructure/config"
	"github.com/ledger-service/ledger_service/pkg/logger"
	"github.com/ledger-service/ledger_service/pkg/metrics"
)

// SetupRouter wires middleware and all API routes
func SetupRouter(
	cfg *config.Config,
	log *logger.Logger,
	db *sqlx.DB,
	service *ledger.Service,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Server.RateLimitPerMin > 0 {
		router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))
	}
	if m != nil {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	healthHandler := handlers.NewHealthHandler(db)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	accountHandler := handlers.NewAccountHandler(service, log)
	transactionHandler := handlers.NewTransactionHandler(service, log)

	v1 := router.Group("/api/v1")
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.CreateAccount)
			accounts.GET("/:id", accountHandler.GetAccount)
			accounts.GET("/:id/history", accountHandler.GetAccountHistory)
		}

		v1.POST("/transactions", transactionHandler.ProcessTransaction)
	}

	return router
}
