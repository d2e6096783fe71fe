package models

import (
	"bytes"
	"time"

	"gorm.io/datatypes"
)

// ActionKind is the closed set of mutations the history ledger records.
type ActionKind string

const (
	ActionAdd              ActionKind = "ADD"
	ActionUpdate           ActionKind = "UPDATE"
	ActionDelete           ActionKind = "DELETE"
	ActionUpdateBudget     ActionKind = "UPDATE_BUDGET"
	ActionSetCategoryLimit ActionKind = "SET_CATEGORY_LIMIT"
)

// ActionKinds lists every valid ActionKind in display order.
var ActionKinds = []ActionKind{ActionAdd, ActionUpdate, ActionDelete, ActionUpdateBudget, ActionSetCategoryLimit}

// Valid reports whether k belongs to the closed set.
func (k ActionKind) Valid() bool {
	for _, v := range ActionKinds {
		if v == k {
			return true
		}
	}
	return false
}

// NeedsOldData reports whether records of this kind must carry a before-state.
func (k ActionKind) NeedsOldData() bool { return k != ActionAdd }

// NeedsNewData reports whether records of this kind must carry an after-state.
func (k ActionKind) NeedsNewData() bool { return k != ActionDelete }

// EntityKind is the closed set of domain objects tracked by the ledger.
type EntityKind string

const (
	EntityTransaction EntityKind = "Transaction"
	EntityCategory    EntityKind = "Category"
	EntityBudget      EntityKind = "Budget"
	EntityGoal        EntityKind = "Goal"
)

// EntityKinds lists every valid EntityKind.
var EntityKinds = []EntityKind{EntityTransaction, EntityCategory, EntityBudget, EntityGoal}

// Valid reports whether k belongs to the closed set.
func (k EntityKind) Valid() bool {
	for _, v := range EntityKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ActionRecord is one immutable ledger entry. Rows are only ever inserted,
// and deleted when the recorded mutation is undone.
type ActionRecord struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UserID     uint           `json:"-" gorm:"index:idx_history_user_time;not null"`
	ActionType ActionKind     `json:"action_type" gorm:"size:32;index;not null"`
	EntityType EntityKind     `json:"entity_type" gorm:"size:32;index;not null"`
	EntityID   *uint          `json:"entity_id"`
	OldData    datatypes.JSON `json:"old_data"`
	NewData    datatypes.JSON `json:"new_data"`
	Timestamp  time.Time      `json:"timestamp" gorm:"column:created_at;index:idx_history_user_time;not null;default:CURRENT_TIMESTAMP"`
}

// TableName keeps the table name used by the web client's schema.
func (ActionRecord) TableName() string {
	return "history_actions"
}

// HasOldData reports whether a before-state snapshot is present.
func (r *ActionRecord) HasOldData() bool { return !IsAbsentJSON(r.OldData) }

// HasNewData reports whether an after-state snapshot is present.
func (r *ActionRecord) HasNewData() bool { return !IsAbsentJSON(r.NewData) }

// IsAbsentJSON treats empty payloads and a literal JSON null as absent.
func IsAbsentJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
