package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/finlog/backend/internal/models"
)

var ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name         string `json:"name"`
	Color        string `json:"color"`
	IsTypeIncome bool   `json:"is_type_income"`
}

// CategoryPatch carries the fields to change; nil means unchanged.
type CategoryPatch struct {
	Name         *string `json:"name"`
	Color        *string `json:"color"`
	IsTypeIncome *bool   `json:"is_type_income"`
}

// CategoryService persists categories and records every mutation.
type CategoryService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewCategoryService returns a CategoryService.
func NewCategoryService(db *gorm.DB, history *HistoryService) *CategoryService {
	return &CategoryService{db: db, history: history}
}

// List returns the user's categories ordered by name.
func (s *CategoryService) List(userID uint) ([]models.Category, error) {
	cats := []models.Category{}
	if err := s.db.Where("user_id = ?", userID).Order("name asc").Order("id asc").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

// Get returns one of the user's categories.
func (s *CategoryService) Get(userID, id uint) (*models.Category, error) {
	var c models.Category
	if err := findOwned(s.db, userID, id, &c, ErrCategoryNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create stores a category, recording an ADD entry.
func (s *CategoryService) Create(userID uint, in CategoryInput) (*models.Category, error) {
	c := &models.Category{UserID: userID}
	c.Apply(models.CategorySnapshot{Name: strings.TrimSpace(in.Name), Color: in.Color, IsTypeIncome: in.IsTypeIncome})
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	if err := validateCategory(c); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionAdd, models.EntityCategory, &c.ID, nil, c.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update applies patch to one of the user's categories, recording an UPDATE entry.
func (s *CategoryService) Update(userID, id uint, patch CategoryPatch) (*models.Category, error) {
	var c models.Category
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := findOwned(tx, userID, id, &c, ErrCategoryNotFound); err != nil {
			return err
		}
		before := c.Snapshot()
		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Color != nil {
			c.Color = *patch.Color
		}
		if patch.IsTypeIncome != nil {
			c.IsTypeIncome = *patch.IsTypeIncome
		}
		if err := validateCategory(&c); err != nil {
			return err
		}
		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionUpdate, models.EntityCategory, &c.ID, before, c.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a category, detaches its transactions and drops its limit,
// recording a DELETE entry.
func (s *CategoryService) Delete(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var c models.Category
		if err := findOwned(tx, userID, id, &c, ErrCategoryNotFound); err != nil {
			return err
		}
		if err := tx.Model(&models.Transaction{}).
			Where("user_id = ? AND category_id = ?", userID, id).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND category_id = ?", userID, id).Delete(&models.CategoryLimit{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionDelete, models.EntityCategory, &c.ID, c.Snapshot(), nil)
	})
}

// restoreTx recreates a deleted category under a new id.
func (s *CategoryService) restoreTx(tx *gorm.DB, userID uint, snap models.CategorySnapshot) (*models.Category, error) {
	c := &models.Category{UserID: userID}
	c.Apply(snap)
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	if err := validateCategory(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotUndoable, err)
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// revertTx overwrites a live category with old, checking expected when set.
func (s *CategoryService) revertTx(tx *gorm.DB, userID, id uint, old models.CategorySnapshot, expected *models.CategorySnapshot) (*models.Category, error) {
	var c models.Category
	if err := findOwned(tx, userID, id, &c, ErrCategoryNotFound); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, fmt.Errorf("%w: category %d no longer exists", ErrUndoConflict, id)
		}
		return nil, err
	}
	if expected != nil && c.Snapshot() != *expected {
		return nil, fmt.Errorf("%w: category %d changed since this action", ErrUndoConflict, id)
	}
	c.Apply(old)
	if err := tx.Save(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func validateCategory(c *models.Category) error {
	if c.Name == "" {
		return invalid("category name is required")
	}
	if !hexColor.MatchString(c.Color) {
		return invalid("color must be a #RRGGBB hex value")
	}
	return nil
}
