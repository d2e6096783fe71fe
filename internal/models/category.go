package models

import "time"

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#FFFFFF"

// Category groups transactions; income categories only accept income lines.
type Category struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"-" gorm:"index;not null"`
	Name         string    `json:"name" gorm:"size:128;not null"`
	Color        string    `json:"color" gorm:"size:16;not null;default:'#FFFFFF'"`
	IsTypeIncome bool      `json:"is_type_income" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CategorySnapshot is the part of a Category captured in ledger entries.
type CategorySnapshot struct {
	Name         string `json:"name"`
	Color        string `json:"color"`
	IsTypeIncome bool   `json:"is_type_income"`
}

// Snapshot captures the tracked fields.
func (c *Category) Snapshot() CategorySnapshot {
	return CategorySnapshot{Name: c.Name, Color: c.Color, IsTypeIncome: c.IsTypeIncome}
}

// Apply overwrites the tracked fields with s.
func (c *Category) Apply(s CategorySnapshot) {
	c.Name = s.Name
	c.Color = s.Color
	c.IsTypeIncome = s.IsTypeIncome
}

// Accepts reports whether a transaction of type t may be filed under c.
func (c *Category) Accepts(t TransactionType) bool {
	if c.IsTypeIncome {
		return t == TransactionIncome
	}
	return t == TransactionExpense
}
