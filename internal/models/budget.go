package models

import "time"

// Budget is the single monthly spending budget a user may set.
type Budget struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"uniqueIndex;not null"`
	Amount    float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BudgetSnapshot is the part of a Budget captured in ledger entries.
type BudgetSnapshot struct {
	Amount float64 `json:"amount"`
}

// CategoryLimit caps spending within one category.
type CategoryLimit struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	UserID      uint      `json:"-" gorm:"uniqueIndex:idx_limit_user_category;not null"`
	CategoryID  uint      `json:"category_id" gorm:"uniqueIndex:idx_limit_user_category;not null"`
	LimitAmount float64   `json:"limit_amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryLimitSnapshot records a category's limit; a nil LimitAmount means
// the category had no limit at that point.
type CategoryLimitSnapshot struct {
	CategoryID  uint     `json:"category_id"`
	LimitAmount *float64 `json:"limit_amount"`
}
