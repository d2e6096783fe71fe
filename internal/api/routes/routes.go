package routes

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/finlog/backend/internal/api/handlers"
	"github.com/finlog/backend/internal/api/middleware"
	"github.com/finlog/backend/internal/config"
	"github.com/finlog/backend/internal/database"
	"github.com/finlog/backend/internal/services"
)

// Register migrates the schema and wires every /api route onto router.
// notifier receives undo events and may be nil.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, notifier services.Notifier) error {
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	loc := cfg.Location()
	history := services.NewHistoryService(db, loc, RetentionPolicy(cfg.Ledger))
	transactions := services.NewTransactionService(db, history)
	categories := services.NewCategoryService(db, history)
	goals := services.NewGoalService(db, history)
	budgets := services.NewBudgetService(db, history)
	limits := services.NewCategoryLimitService(db, history)
	undo := services.NewUndoService(db, services.UndoDeps{
		History:      history,
		Transactions: transactions,
		Categories:   categories,
		Goals:        goals,
		Budgets:      budgets,
		Limits:       limits,
	}, cfg.Ledger.StrictUndo, notifier)

	authService := services.NewAuthService(db, cfg)
	authHandler := handlers.NewAuthHandler(authService, cfg.Environment == "production")
	historyHandler := handlers.NewHistoryHandler(history, undo)
	transactionHandler := handlers.NewTransactionHandler(transactions, loc)
	categoryHandler := handlers.NewCategoryHandler(categories)
	goalHandler := handlers.NewGoalHandler(goals)
	budgetHandler := handlers.NewBudgetHandler(budgets, limits)

	router.GET("/api/health", handlers.HealthHandler)

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	protected.GET("/auth/me", authHandler.Me)

	hist := protected.Group("/history")
	hist.GET("", historyHandler.List)
	hist.POST("/add", historyHandler.Add)
	hist.POST("/undo", historyHandler.Undo)

	tx := protected.Group("/transaction")
	tx.GET("", transactionHandler.List)
	tx.POST("/add", transactionHandler.Create)
	tx.POST("/update", transactionHandler.Update)
	tx.POST("/delete", transactionHandler.Delete)

	cat := protected.Group("/category")
	cat.GET("", categoryHandler.List)
	cat.POST("/add", categoryHandler.Create)
	cat.POST("/update", categoryHandler.Update)
	cat.POST("/delete", categoryHandler.Delete)

	goal := protected.Group("/goals")
	goal.GET("", goalHandler.List)
	goal.POST("/add", goalHandler.Create)
	goal.POST("/update", goalHandler.Update)
	goal.POST("/delete", goalHandler.Delete)
	goal.POST("/add-money", goalHandler.AddMoney)

	budget := protected.Group("/budget")
	budget.GET("", budgetHandler.Get)
	budget.POST("", budgetHandler.Set)
	budget.GET("/limits", budgetHandler.ListLimits)
	budget.POST("/limits", budgetHandler.SetLimit)

	return nil
}

// RetentionPolicy converts ledger settings into the service policy.
func RetentionPolicy(c config.LedgerConfig) services.RetentionPolicy {
	return services.RetentionPolicy{
		MaxAge:            time.Duration(c.RetentionDays) * 24 * time.Hour,
		MaxRecordsPerUser: c.MaxRecordsPerUser,
	}
}
