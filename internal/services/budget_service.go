package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finlog/backend/internal/models"
)

var ErrBudgetNotFound = fmt.Errorf("budget %w", ErrNotFound)

// BudgetService manages the user's single monthly budget.
type BudgetService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewBudgetService returns a BudgetService.
func NewBudgetService(db *gorm.DB, history *HistoryService) *BudgetService {
	return &BudgetService{db: db, history: history}
}

// Get returns the user's budget row.
func (s *BudgetService) Get(userID uint) (*models.Budget, error) {
	var b models.Budget
	if err := s.db.Where("user_id = ?", userID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Set replaces the budget amount, recording an UPDATE_BUDGET entry. A user
// without a budget row is recorded as moving from zero.
func (s *BudgetService) Set(userID uint, amount float64) (*models.Budget, error) {
	if amount < 0 {
		return nil, invalid("budget cannot be negative")
	}
	var saved models.Budget
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, err := loadBudget(tx, userID)
		if err != nil {
			return err
		}
		before := models.BudgetSnapshot{Amount: b.Amount}
		if err := saveBudget(tx, userID, amount); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).First(&saved).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionUpdateBudget, models.EntityBudget, nil, before, models.BudgetSnapshot{Amount: amount})
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// revertTx writes old back as the budget, checking expected when set.
func (s *BudgetService) revertTx(tx *gorm.DB, userID uint, old models.BudgetSnapshot, expected *models.BudgetSnapshot) (models.BudgetSnapshot, error) {
	b, err := loadBudget(tx, userID)
	if err != nil {
		return models.BudgetSnapshot{}, err
	}
	if expected != nil && !sameAmount(b.Amount, expected.Amount) {
		return models.BudgetSnapshot{}, fmt.Errorf("%w: budget changed since this action", ErrUndoConflict)
	}
	if err := saveBudget(tx, userID, old.Amount); err != nil {
		return models.BudgetSnapshot{}, err
	}
	return old, nil
}

// loadBudget returns the stored budget, or a zero budget when none exists.
func loadBudget(tx *gorm.DB, userID uint) (models.Budget, error) {
	var b models.Budget
	if err := tx.Where("user_id = ?", userID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Budget{UserID: userID}, nil
		}
		return b, err
	}
	return b, nil
}

func saveBudget(tx *gorm.DB, userID uint, amount float64) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&models.Budget{UserID: userID, Amount: amount}).Error
}

// CategoryLimitService manages per-category spending limits.
type CategoryLimitService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewCategoryLimitService returns a CategoryLimitService.
func NewCategoryLimitService(db *gorm.DB, history *HistoryService) *CategoryLimitService {
	return &CategoryLimitService{db: db, history: history}
}

// List returns the user's limits keyed by category id.
func (s *CategoryLimitService) List(userID uint) (map[uint]float64, error) {
	var limits []models.CategoryLimit
	if err := s.db.Where("user_id = ?", userID).Find(&limits).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]float64, len(limits))
	for _, l := range limits {
		out[l.CategoryID] = l.LimitAmount
	}
	return out, nil
}

// Set assigns a limit to one of the user's categories, recording a
// SET_CATEGORY_LIMIT entry against the category.
func (s *CategoryLimitService) Set(userID, categoryID uint, limit float64) (models.CategoryLimitSnapshot, error) {
	if limit < 0 {
		return models.CategoryLimitSnapshot{}, invalid("limit cannot be negative")
	}
	after := models.CategoryLimitSnapshot{CategoryID: categoryID, LimitAmount: &limit}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		if err := findOwned(tx, userID, categoryID, &cat, ErrCategoryNotFound); err != nil {
			return err
		}
		before, err := loadLimit(tx, userID, categoryID)
		if err != nil {
			return err
		}
		if err := saveLimit(tx, userID, after); err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionSetCategoryLimit, models.EntityCategory, &categoryID, before, after)
	})
	if err != nil {
		return models.CategoryLimitSnapshot{}, err
	}
	return after, nil
}

// revertTx restores a category's previous limit; a nil LimitAmount removes it.
func (s *CategoryLimitService) revertTx(tx *gorm.DB, userID uint, old models.CategoryLimitSnapshot, expected *models.CategoryLimitSnapshot) (models.CategoryLimitSnapshot, error) {
	var cat models.Category
	if err := findOwned(tx, userID, old.CategoryID, &cat, ErrCategoryNotFound); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return old, fmt.Errorf("%w: category %d no longer exists", ErrUndoConflict, old.CategoryID)
		}
		return old, err
	}
	if expected != nil {
		live, err := loadLimit(tx, userID, old.CategoryID)
		if err != nil {
			return old, err
		}
		if !sameLimit(live.LimitAmount, expected.LimitAmount) {
			return old, fmt.Errorf("%w: limit for category %d changed since this action", ErrUndoConflict, old.CategoryID)
		}
	}
	return old, saveLimit(tx, userID, old)
}

func loadLimit(tx *gorm.DB, userID, categoryID uint) (models.CategoryLimitSnapshot, error) {
	snap := models.CategoryLimitSnapshot{CategoryID: categoryID}
	var l models.CategoryLimit
	if err := tx.Where("user_id = ? AND category_id = ?", userID, categoryID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return snap, nil
		}
		return snap, err
	}
	snap.LimitAmount = &l.LimitAmount
	return snap, nil
}

func saveLimit(tx *gorm.DB, userID uint, snap models.CategoryLimitSnapshot) error {
	if snap.LimitAmount == nil {
		return tx.Where("user_id = ? AND category_id = ?", userID, snap.CategoryID).Delete(&models.CategoryLimit{}).Error
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"limit_amount", "updated_at"}),
	}).Create(&models.CategoryLimit{UserID: userID, CategoryID: snap.CategoryID, LimitAmount: *snap.LimitAmount}).Error
}

func sameLimit(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameAmount(*a, *b)
}
