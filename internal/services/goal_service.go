package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/finlog/backend/internal/models"
)

var ErrGoalNotFound = fmt.Errorf("goal %w", ErrNotFound)

// GoalInput carries the fields of a new goal.
type GoalInput struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	Deadline      string  `json:"deadline"`
}

// GoalPatch carries the fields to change; nil means unchanged.
type GoalPatch struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	TargetAmount  *float64 `json:"target_amount"`
	CurrentAmount *float64 `json:"current_amount"`
	Deadline      *string  `json:"deadline"`
}

// GoalService persists savings goals and records every mutation.
type GoalService struct {
	db      *gorm.DB
	history *HistoryService
}

// NewGoalService returns a GoalService.
func NewGoalService(db *gorm.DB, history *HistoryService) *GoalService {
	return &GoalService{db: db, history: history}
}

// List returns the user's goals, nearest deadline first.
func (s *GoalService) List(userID uint) ([]models.Goal, error) {
	goals := []models.Goal{}
	if err := s.db.Where("user_id = ?", userID).Order("deadline asc").Order("id asc").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// Create stores a goal, recording an ADD entry.
func (s *GoalService) Create(userID uint, in GoalInput) (*models.Goal, error) {
	g := &models.Goal{
		UserID:        userID,
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		TargetAmount:  in.TargetAmount,
		CurrentAmount: in.CurrentAmount,
		Deadline:      in.Deadline,
	}
	g.RefreshCompleted()
	if err := validateGoal(g); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionAdd, models.EntityGoal, &g.ID, nil, g.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Update applies patch to one of the user's goals, recording an UPDATE entry.
func (s *GoalService) Update(userID, id uint, patch GoalPatch) (*models.Goal, error) {
	return s.mutate(userID, id, func(g *models.Goal) error {
		if patch.Title != nil {
			g.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			g.Description = *patch.Description
		}
		if patch.TargetAmount != nil {
			g.TargetAmount = *patch.TargetAmount
		}
		if patch.CurrentAmount != nil {
			g.CurrentAmount = *patch.CurrentAmount
		}
		if patch.Deadline != nil {
			g.Deadline = *patch.Deadline
		}
		return nil
	})
}

// AddMoney adds amount to a goal's savings, recording an UPDATE entry.
func (s *GoalService) AddMoney(userID, id uint, amount float64) (*models.Goal, error) {
	if amount <= 0 {
		return nil, invalid("amount must be positive")
	}
	return s.mutate(userID, id, func(g *models.Goal) error {
		g.CurrentAmount += amount
		return nil
	})
}

func (s *GoalService) mutate(userID, id uint, change func(*models.Goal) error) (*models.Goal, error) {
	var g models.Goal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := findOwned(tx, userID, id, &g, ErrGoalNotFound); err != nil {
			return err
		}
		before := g.Snapshot()
		if err := change(&g); err != nil {
			return err
		}
		g.RefreshCompleted()
		if err := validateGoal(&g); err != nil {
			return err
		}
		if err := tx.Save(&g).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionUpdate, models.EntityGoal, &g.ID, before, g.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Delete removes one of the user's goals, recording a DELETE entry.
func (s *GoalService) Delete(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var g models.Goal
		if err := findOwned(tx, userID, id, &g, ErrGoalNotFound); err != nil {
			return err
		}
		if err := tx.Delete(&g).Error; err != nil {
			return err
		}
		return s.history.recordSnapshots(tx, userID, models.ActionDelete, models.EntityGoal, &g.ID, g.Snapshot(), nil)
	})
}

// restoreTx recreates a deleted goal under a new id.
func (s *GoalService) restoreTx(tx *gorm.DB, userID uint, snap models.GoalSnapshot) (*models.Goal, error) {
	g := &models.Goal{UserID: userID}
	g.Apply(snap)
	if err := validateGoal(g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotUndoable, err)
	}
	if err := tx.Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

// revertTx overwrites a live goal with old, checking expected when set.
func (s *GoalService) revertTx(tx *gorm.DB, userID, id uint, old models.GoalSnapshot, expected *models.GoalSnapshot) (*models.Goal, error) {
	var g models.Goal
	if err := findOwned(tx, userID, id, &g, ErrGoalNotFound); err != nil {
		if errors.Is(err, ErrGoalNotFound) {
			return nil, fmt.Errorf("%w: goal %d no longer exists", ErrUndoConflict, id)
		}
		return nil, err
	}
	if expected != nil && !sameGoal(g.Snapshot(), *expected) {
		return nil, fmt.Errorf("%w: goal %d changed since this action", ErrUndoConflict, id)
	}
	g.Apply(old)
	if err := tx.Save(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func validateGoal(g *models.Goal) error {
	if g.Title == "" {
		return invalid("goal title is required")
	}
	if g.TargetAmount <= 0 {
		return invalid("target amount must be positive")
	}
	if g.CurrentAmount < 0 {
		return invalid("current amount cannot be negative")
	}
	if _, err := time.Parse(dateLayout, g.Deadline); err != nil {
		return invalid("deadline must be YYYY-MM-DD")
	}
	return nil
}

func sameGoal(a, b models.GoalSnapshot) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		sameAmount(a.TargetAmount, b.TargetAmount) &&
		sameAmount(a.CurrentAmount, b.CurrentAmount) &&
		a.Deadline == b.Deadline &&
		a.Completed == b.Completed
}
