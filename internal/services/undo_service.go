package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/metrics"
	"github.com/finlog/backend/internal/models"
)

var (
	// ErrNotUndoable means the record's kind pair or payload cannot be reversed.
	ErrNotUndoable = errors.New("action cannot be undone")
	// ErrUndoConflict means the live entity no longer matches what the record describes.
	ErrUndoConflict = errors.New("undo conflict")
)

// UndoResult is the outcome of a successful undo.
type UndoResult struct {
	Record   models.ActionRecord `json:"record"`
	Restored any                 `json:"restored,omitempty"`
}

// UndoService reverses recorded actions. Each undo applies the inverse
// mutation and consumes the record in a single database transaction.
type UndoService struct {
	db           *gorm.DB
	history      *HistoryService
	transactions *TransactionService
	categories   *CategoryService
	goals        *GoalService
	budgets      *BudgetService
	limits       *CategoryLimitService
	strict       bool
	notifier     Notifier
}

// UndoDeps groups the entity services the undo engine writes through.
type UndoDeps struct {
	History      *HistoryService
	Transactions *TransactionService
	Categories   *CategoryService
	Goals        *GoalService
	Budgets      *BudgetService
	Limits       *CategoryLimitService
}

// NewUndoService returns an UndoService. With strict set, reverting an
// update requires the live entity to still equal the record's after-state.
func NewUndoService(db *gorm.DB, deps UndoDeps, strict bool, notifier Notifier) *UndoService {
	return &UndoService{
		db:           db,
		history:      deps.History,
		transactions: deps.Transactions,
		categories:   deps.Categories,
		goals:        deps.Goals,
		budgets:      deps.Budgets,
		limits:       deps.Limits,
		strict:       strict,
		notifier:     notifier,
	}
}

// Undo reverses record id for userID. On success the record is gone; on any
// failure nothing changes.
func (s *UndoService) Undo(userID, id uint) (*UndoResult, error) {
	var result UndoResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rec models.ActionRecord
		if err := findOwned(tx, userID, id, &rec, ErrActionNotFound); err != nil {
			return err
		}

		plan, err := s.planUndo(&rec)
		if err != nil {
			return err
		}
		restored, err := plan.apply(tx, userID)
		if err != nil {
			return err
		}

		res := tx.Where("id = ? AND user_id = ?", rec.ID, userID).Delete(&models.ActionRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrActionNotFound
		}

		result = UndoResult{Record: rec, Restored: restored}
		return nil
	})

	log := logger.Ledger(userID).WithField("record_id", id)
	if err != nil {
		metrics.IncUndo(undoOutcome(err))
		log.WithError(err).Info("undo rejected")
		return nil, err
	}

	metrics.IncUndo("ok")
	log.WithFields(map[string]interface{}{
		"action_type": result.Record.ActionType,
		"entity_type": result.Record.EntityType,
	}).Info("action undone")
	if s.notifier != nil {
		s.notifier.Notify("Finlog: action undone",
			fmt.Sprintf("User %d undid %s on %s (record %d)", userID, result.Record.ActionType, result.Record.EntityType, result.Record.ID))
	}
	return &result, nil
}

func undoOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotUndoable):
		return "not_undoable"
	case errors.Is(err, ErrUndoConflict):
		return "conflict"
	default:
		return "error"
	}
}

// undoPlan is the inverse mutation for one record.
type undoPlan interface {
	apply(tx *gorm.DB, userID uint) (any, error)
}

type undoKey struct {
	entity models.EntityKind
	action models.ActionKind
}

// planUndo decodes rec into the inverse mutation for its (entity, action) pair.
func (s *UndoService) planUndo(rec *models.ActionRecord) (undoPlan, error) {
	// Limit changes have been filed against Category, Goal and Budget; the
	// category is what they change.
	if rec.ActionType == models.ActionSetCategoryLimit {
		return s.planLimitUndo(rec)
	}

	key := undoKey{rec.EntityType, rec.ActionType}
	switch key {
	case undoKey{models.EntityTransaction, models.ActionDelete}:
		old, err := decodeOld[models.TransactionSnapshot](rec)
		if err != nil {
			return nil, err
		}
		return transactionRestore{svc: s.transactions, old: old}, nil

	case undoKey{models.EntityTransaction, models.ActionUpdate}:
		id, old, expected, err := decodeUpdate[models.TransactionSnapshot](rec, s.strict)
		if err != nil {
			return nil, err
		}
		return transactionRevert{svc: s.transactions, id: id, old: old, expected: expected}, nil

	case undoKey{models.EntityCategory, models.ActionDelete}:
		old, err := decodeOld[models.CategorySnapshot](rec)
		if err != nil {
			return nil, err
		}
		return categoryRestore{svc: s.categories, old: old}, nil

	case undoKey{models.EntityCategory, models.ActionUpdate}:
		id, old, expected, err := decodeUpdate[models.CategorySnapshot](rec, s.strict)
		if err != nil {
			return nil, err
		}
		return categoryRevert{svc: s.categories, id: id, old: old, expected: expected}, nil

	case undoKey{models.EntityGoal, models.ActionDelete}:
		old, err := decodeOld[models.GoalSnapshot](rec)
		if err != nil {
			return nil, err
		}
		return goalRestore{svc: s.goals, old: old}, nil

	case undoKey{models.EntityGoal, models.ActionUpdate}:
		id, old, expected, err := decodeUpdate[models.GoalSnapshot](rec, s.strict)
		if err != nil {
			return nil, err
		}
		return goalRevert{svc: s.goals, id: id, old: old, expected: expected}, nil

	case undoKey{models.EntityBudget, models.ActionUpdateBudget}:
		old, err := decodeOld[models.BudgetSnapshot](rec)
		if err != nil {
			return nil, err
		}
		var expected *models.BudgetSnapshot
		if s.strict {
			after, err := decodeNew[models.BudgetSnapshot](rec)
			if err != nil {
				return nil, err
			}
			expected = &after
		}
		return budgetRevert{svc: s.budgets, old: old, expected: expected}, nil
	}

	return nil, fmt.Errorf("%w: %s on %s", ErrNotUndoable, rec.ActionType, rec.EntityType)
}

func (s *UndoService) planLimitUndo(rec *models.ActionRecord) (undoPlan, error) {
	if !rec.HasOldData() {
		return nil, fmt.Errorf("%w: record %d has no previous state", ErrNotUndoable, rec.ID)
	}
	old, err := decodeLimit(rec.OldData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotUndoable, err)
	}
	if rec.EntityID != nil {
		old.CategoryID = *rec.EntityID
	}
	if old.CategoryID == 0 {
		return nil, fmt.Errorf("%w: record %d names no category", ErrNotUndoable, rec.ID)
	}

	var expected *models.CategoryLimitSnapshot
	if s.strict {
		if !rec.HasNewData() {
			return nil, fmt.Errorf("%w: record %d has no resulting state", ErrNotUndoable, rec.ID)
		}
		after, err := decodeLimit(rec.NewData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotUndoable, err)
		}
		expected = &after
	}
	return categoryLimitRevert{svc: s.limits, old: old, expected: expected}, nil
}

// decodeLimit reads a limit snapshot; a bare number is taken as limit_amount.
func decodeLimit(raw datatypes.JSON) (models.CategoryLimitSnapshot, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		var amount float64
		if err := json.Unmarshal(trimmed, &amount); err != nil {
			return models.CategoryLimitSnapshot{}, fmt.Errorf("decode limit: %w", err)
		}
		return models.CategoryLimitSnapshot{LimitAmount: &amount}, nil
	}
	return decodeSnapshot[models.CategoryLimitSnapshot](raw)
}

func decodeOld[T any](rec *models.ActionRecord) (T, error) {
	var zero T
	if !rec.HasOldData() {
		return zero, fmt.Errorf("%w: record %d has no previous state", ErrNotUndoable, rec.ID)
	}
	v, err := decodeSnapshot[T](rec.OldData)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNotUndoable, err)
	}
	return v, nil
}

func decodeNew[T any](rec *models.ActionRecord) (T, error) {
	var zero T
	if !rec.HasNewData() {
		return zero, fmt.Errorf("%w: record %d has no resulting state", ErrNotUndoable, rec.ID)
	}
	v, err := decodeSnapshot[T](rec.NewData)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNotUndoable, err)
	}
	return v, nil
}

// decodeUpdate extracts the target id, the state to restore and, when strict,
// the state the live row must still hold.
func decodeUpdate[T any](rec *models.ActionRecord, strict bool) (uint, T, *T, error) {
	var zero T
	if rec.EntityID == nil {
		return 0, zero, nil, fmt.Errorf("%w: record %d has no entity id", ErrNotUndoable, rec.ID)
	}
	old, err := decodeOld[T](rec)
	if err != nil {
		return 0, zero, nil, err
	}
	if !strict {
		return *rec.EntityID, old, nil, nil
	}
	after, err := decodeNew[T](rec)
	if err != nil {
		return 0, zero, nil, err
	}
	return *rec.EntityID, old, &after, nil
}

type transactionRestore struct {
	svc *TransactionService
	old models.TransactionSnapshot
}

func (p transactionRestore) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.restoreTx(tx, userID, p.old)
}

type transactionRevert struct {
	svc      *TransactionService
	id       uint
	old      models.TransactionSnapshot
	expected *models.TransactionSnapshot
}

func (p transactionRevert) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.revertTx(tx, userID, p.id, p.old, p.expected)
}

type categoryRestore struct {
	svc *CategoryService
	old models.CategorySnapshot
}

func (p categoryRestore) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.restoreTx(tx, userID, p.old)
}

type categoryRevert struct {
	svc      *CategoryService
	id       uint
	old      models.CategorySnapshot
	expected *models.CategorySnapshot
}

func (p categoryRevert) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.revertTx(tx, userID, p.id, p.old, p.expected)
}

type categoryLimitRevert struct {
	svc      *CategoryLimitService
	old      models.CategoryLimitSnapshot
	expected *models.CategoryLimitSnapshot
}

func (p categoryLimitRevert) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.revertTx(tx, userID, p.old, p.expected)
}

type goalRestore struct {
	svc *GoalService
	old models.GoalSnapshot
}

func (p goalRestore) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.restoreTx(tx, userID, p.old)
}

type goalRevert struct {
	svc      *GoalService
	id       uint
	old      models.GoalSnapshot
	expected *models.GoalSnapshot
}

func (p goalRevert) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.revertTx(tx, userID, p.id, p.old, p.expected)
}

type budgetRevert struct {
	svc      *BudgetService
	old      models.BudgetSnapshot
	expected *models.BudgetSnapshot
}

func (p budgetRevert) apply(tx *gorm.DB, userID uint) (any, error) {
	return p.svc.revertTx(tx, userID, p.old, p.expected)
}
