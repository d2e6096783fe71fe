package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/finlog/backend/internal/api/routes"
	"github.com/finlog/backend/internal/config"
	"github.com/finlog/backend/internal/database"
	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/models"
	"github.com/finlog/backend/internal/services"
)

const (
	demoEmail    = "demo@finlog.local"
	demoPassword = "finlog-demo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.Init(cfg.Debug, nil)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	fmt.Println("✓ Database migrated successfully")

	user, err := services.NewAuthService(db, cfg).Register(demoEmail, demoPassword, "Demo User")
	if errors.Is(err, services.ErrEmailTaken) {
		fmt.Printf("✓ %s already exists, nothing to seed\n", demoEmail)
		return
	}
	if err != nil {
		log.Fatal("Failed to create demo user:", err)
	}
	fmt.Printf("✓ Created user %s (password %q)\n", demoEmail, demoPassword)

	history := services.NewHistoryService(db, cfg.Location(), routes.RetentionPolicy(cfg.Ledger))
	categories := services.NewCategoryService(db, history)
	transactions := services.NewTransactionService(db, history)
	goals := services.NewGoalService(db, history)
	budgets := services.NewBudgetService(db, history)
	limits := services.NewCategoryLimitService(db, history)

	catIDs := map[string]uint{}
	for _, in := range []services.CategoryInput{
		{Name: "Salary", Color: "#2E7D32", IsTypeIncome: true},
		{Name: "Groceries", Color: "#F9A825"},
		{Name: "Transport", Color: "#1565C0"},
		{Name: "Rent", Color: "#6A1B9A"},
	} {
		cat, err := categories.Create(user.ID, in)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", in.Name, err)
		}
		catIDs[in.Name] = cat.ID
	}
	fmt.Printf("✓ Seeded %d categories\n", len(catIDs))

	today := history.Now()
	day := func(offset int) string { return today.AddDate(0, 0, -offset).Format("2006-01-02") }
	ref := func(name string) *uint { id := catIDs[name]; return &id }

	seedTxs := []services.TransactionInput{
		{Amount: 85000, Description: "Monthly salary", Date: day(14), Type: models.TransactionIncome, CategoryID: ref("Salary")},
		{Amount: 30000, Description: "Apartment rent", Date: day(12), Type: models.TransactionExpense, CategoryID: ref("Rent")},
		{Amount: 2350, Description: "Weekly groceries", Date: day(6), Type: models.TransactionExpense, CategoryID: ref("Groceries")},
		{Amount: 500, Description: "Metro card", Date: day(2), Type: models.TransactionExpense, CategoryID: ref("Transport")},
		{Amount: 1200, Description: "Farmers market", Date: day(0), Type: models.TransactionExpense, CategoryID: ref("Groceries")},
	}
	for _, in := range seedTxs {
		if _, err := transactions.Create(user.ID, in); err != nil {
			log.Fatalf("Failed to seed transaction %q: %v", in.Description, err)
		}
	}
	fmt.Printf("✓ Seeded %d transactions\n", len(seedTxs))

	goal, err := goals.Create(user.ID, services.GoalInput{
		Title:        "Emergency fund",
		TargetAmount: 150000,
		Deadline:     today.AddDate(1, 0, 0).Format("2006-01-02"),
	})
	if err != nil {
		log.Fatal("Failed to seed goal:", err)
	}
	if _, err := goals.AddMoney(user.ID, goal.ID, 10000); err != nil {
		log.Fatal("Failed to add money to goal:", err)
	}
	fmt.Println("✓ Seeded 1 goal")

	if _, err := budgets.Set(user.ID, 40000); err != nil {
		log.Fatal("Failed to seed budget:", err)
	}
	if _, err := limits.Set(user.ID, catIDs["Groceries"], 12000); err != nil {
		log.Fatal("Failed to seed category limit:", err)
	}
	fmt.Println("✓ Seeded budget and category limit")

	var count int64
	db.Model(&models.ActionRecord{}).Where("user_id = ?", user.ID).Count(&count)
	fmt.Printf("\n✓ Seed complete: %d history records for %s\n", count, demoEmail)
}
