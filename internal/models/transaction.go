package models

import "time"

// TransactionType separates money coming in from money going out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is income or expense.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Transaction is a single income or expense line.
type Transaction struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"-" gorm:"index;not null"`
	Amount      float64         `json:"amount" gorm:"type:decimal(12,2);not null"`
	Description string          `json:"description" gorm:"type:text"`
	Date        string          `json:"date" gorm:"size:10;index;not null"` // YYYY-MM-DD
	Type        TransactionType `json:"type" gorm:"size:16;not null"`
	CategoryID  *uint           `json:"category_id" gorm:"index"`
	Category    *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TransactionSnapshot is the part of a Transaction captured in ledger entries.
type TransactionSnapshot struct {
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Type        TransactionType `json:"type"`
	CategoryID  *uint           `json:"category_id"`
}

// Snapshot captures the tracked fields.
func (t *Transaction) Snapshot() TransactionSnapshot {
	return TransactionSnapshot{
		Amount:      t.Amount,
		Description: t.Description,
		Date:        t.Date,
		Type:        t.Type,
		CategoryID:  t.CategoryID,
	}
}

// Apply overwrites the tracked fields with s.
func (t *Transaction) Apply(s TransactionSnapshot) {
	t.Amount = s.Amount
	t.Description = s.Description
	t.Date = s.Date
	t.Type = s.Type
	t.CategoryID = s.CategoryID
}
