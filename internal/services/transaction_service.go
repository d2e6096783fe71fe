package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/models"
)

var (
	ErrTransactionNotFound  = fmt.Errorf("transaction %w", ErrNotFound)
	ErrCategoryTypeMismatch = invalid("transaction type does not match category type")
)

const dateLayout = "2006-01-02"

// TransactionInput carries the fields of a new transaction.
type TransactionInput struct {
	Amount      float64                `json:"amount"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
	Type        models.TransactionType `json:"type"`
	CategoryID  *uint                  `json:"category_id"`
}

// TransactionPatch carries the fields to change; nil means unchanged.
type TransactionPatch struct {
	Amount      *float64                `json:"amount"`
	Description *string                 `json:"description"`
	Date        *string                 `json:"date"`
	Type        *models.TransactionType `json:"type"`
	CategoryID  *uint                   `json:"category_id"`
}

// TransactionQuery narrows a transaction listing.
type TransactionQuery struct {
	Range      ledger.Filter
	CategoryID *uint
	Type       models.TransactionType
	Search     string
	Page       int
	Limit      int
}

// TransactionService persists transactions and records every mutation.
type TransactionService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewTransactionService returns a TransactionService.
func NewTransactionService(db *gorm.DB, history *HistoryService) *TransactionService {
	return &TransactionService{db: db, history: history}
}

// List returns one page of the user's transactions, newest date first, and the total count.
func (s *TransactionService) List(userID uint, q TransactionQuery) ([]models.Transaction, int64, error) {
	if err := q.Range.Validate(); err != nil {
		return nil, 0, err
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, 0, invalid("unknown transaction type %q", q.Type)
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if from, to, ok := q.Range.Window(s.history.Now()); ok {
		base = base.Where("date >= ? AND date <= ?", from.Format(dateLayout), to.Format(dateLayout))
	}
	if q.CategoryID != nil {
		base = base.Where("category_id = ?", *q.CategoryID)
	}
	if q.Type != "" {
		base = base.Where("type = ?", q.Type)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		base = base.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	txs := []models.Transaction{}
	if err := base.Preload("Category").
		Order("date desc").Order("id desc").
		Limit(q.Limit).Offset((q.Page - 1) * q.Limit).
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// Create validates and stores a transaction, recording an ADD entry.
func (s *TransactionService) Create(userID uint, in TransactionInput) (*models.Transaction, error) {
	if in.Date == "" {
		in.Date = s.history.Now().Format(dateLayout)
	}
	t := &models.Transaction{UserID: userID}
	t.Apply(models.TransactionSnapshot(in))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := validateTransaction(tx, userID, t); err != nil {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionAdd, models.EntityTransaction, &t.ID, nil, t.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies patch to one of the user's transactions, recording an UPDATE entry.
func (s *TransactionService) Update(userID, id uint, patch TransactionPatch) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := findOwned(tx, userID, id, &t, ErrTransactionNotFound); err != nil {
			return err
		}
		before := t.Snapshot()

		if patch.Amount != nil {
			t.Amount = *patch.Amount
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Date != nil {
			t.Date = *patch.Date
		}
		if patch.Type != nil {
			t.Type = *patch.Type
		}
		if patch.CategoryID != nil {
			t.CategoryID = patch.CategoryID
		}
		if err := validateTransaction(tx, userID, &t); err != nil {
			return err
		}
		if err := tx.Omit("Category").Save(&t).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionUpdate, models.EntityTransaction, &t.ID, before, t.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes one of the user's transactions, recording a DELETE entry.
func (s *TransactionService) Delete(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var t models.Transaction
		if err := findOwned(tx, userID, id, &t, ErrTransactionNotFound); err != nil {
			return err
		}
		if err := tx.Delete(&t).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionDelete, models.EntityTransaction, &t.ID, t.Snapshot(), nil)
	})
}

// restoreTx recreates a deleted transaction from its snapshot under a new id.
// A category that no longer belongs to the user is dropped from the restored row.
func (s *TransactionService) restoreTx(tx *gorm.DB, userID uint, snap models.TransactionSnapshot) (*models.Transaction, error) {
	t := &models.Transaction{UserID: userID}
	t.Apply(snap)
	if t.CategoryID != nil {
		var cat models.Category
		if err := findOwned(tx, userID, *t.CategoryID, &cat, ErrCategoryNotFound); err != nil {
			if !errors.Is(err, ErrCategoryNotFound) {
				return nil, err
			}
			logger.Ledger(userID).WithField("category_id", *t.CategoryID).Warn("restoring transaction without its deleted category")
			t.CategoryID = nil
		}
	}
	if err := validateTransactionFields(t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotUndoable, err)
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// revertTx overwrites a live transaction with old. When expected is set the
// live row must still match it.
func (s *TransactionService) revertTx(tx *gorm.DB, userID, id uint, old models.TransactionSnapshot, expected *models.TransactionSnapshot) (*models.Transaction, error) {
	var t models.Transaction
	if err := findOwned(tx, userID, id, &t, ErrTransactionNotFound); err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, fmt.Errorf("%w: transaction %d no longer exists", ErrUndoConflict, id)
		}
		return nil, err
	}
	if expected != nil && !sameTransaction(t.Snapshot(), *expected) {
		return nil, fmt.Errorf("%w: transaction %d changed since this action", ErrUndoConflict, id)
	}
	t.Apply(old)
	if err := validateTransaction(tx, userID, &t); err != nil {
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			return nil, fmt.Errorf("%w: category %d no longer exists", ErrUndoConflict, *t.CategoryID)
		case errors.Is(err, ErrCategoryTypeMismatch):
			return nil, fmt.Errorf("%w: category %d no longer accepts %s transactions", ErrUndoConflict, *t.CategoryID, t.Type)
		case errors.Is(err, ledger.ErrValidation):
			return nil, fmt.Errorf("%w: %v", ErrNotUndoable, err)
		}
		return nil, err
	}
	if err := tx.Omit("Category").Save(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func validateTransaction(tx *gorm.DB, userID uint, t *models.Transaction) error {
	if err := validateTransactionFields(t); err != nil {
		return err
	}
	if t.CategoryID == nil {
		return nil
	}
	var cat models.Category
	if err := findOwned(tx, userID, *t.CategoryID, &cat, ErrCategoryNotFound); err != nil {
		return err
	}
	if !cat.Accepts(t.Type) {
		return ErrCategoryTypeMismatch
	}
	return nil
}

func validateTransactionFields(t *models.Transaction) error {
	if !t.Type.Valid() {
		return invalid("type must be income or expense")
	}
	if t.Amount <= 0 {
		return invalid("amount must be positive")
	}
	if _, err := time.Parse(dateLayout, t.Date); err != nil {
		return invalid("date must be YYYY-MM-DD")
	}
	return nil
}

func sameTransaction(a, b models.TransactionSnapshot) bool {
	return sameAmount(a.Amount, b.Amount) &&
		a.Description == b.Description &&
		a.Date == b.Date &&
		a.Type == b.Type &&
		sameID(a.CategoryID, b.CategoryID)
}

// sameAmount compares money values at cent precision.
func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// findOwned loads the row with id owned by userID into dest, translating a
// missing row into notFound.
func findOwned(tx *gorm.DB, userID, id uint, dest any, notFound error) error {
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		return err
	}
	return nil
}
