package models

import "time"

// Goal is a savings target with a deadline.
type Goal struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"-" gorm:"index;not null"`
	Title         string    `json:"title" gorm:"size:255;not null"`
	Description   string    `json:"description" gorm:"type:text"`
	TargetAmount  float64   `json:"target_amount" gorm:"type:decimal(12,2);not null"`
	CurrentAmount float64   `json:"current_amount" gorm:"type:decimal(12,2);not null;default:0"`
	Deadline      string    `json:"deadline" gorm:"size:10;not null"` // YYYY-MM-DD
	Completed     bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GoalSnapshot is the part of a Goal captured in ledger entries.
type GoalSnapshot struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
	Deadline      string  `json:"deadline"`
	Completed     bool    `json:"completed"`
}

// Snapshot captures the tracked fields.
func (g *Goal) Snapshot() GoalSnapshot {
	return GoalSnapshot{
		Title:         g.Title,
		Description:   g.Description,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Deadline:      g.Deadline,
		Completed:     g.Completed,
	}
}

// Apply overwrites the tracked fields with s.
func (g *Goal) Apply(s GoalSnapshot) {
	g.Title = s.Title
	g.Description = s.Description
	g.TargetAmount = s.TargetAmount
	g.CurrentAmount = s.CurrentAmount
	g.Deadline = s.Deadline
	g.Completed = s.Completed
}

// RefreshCompleted derives Completed from the saved and target amounts.
func (g *Goal) RefreshCompleted() {
	g.Completed = g.TargetAmount > 0 && g.CurrentAmount >= g.TargetAmount
}
