package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/logger"
	"github.com/finlog/backend/internal/metrics"
	"github.com/finlog/backend/internal/models"
)

var (
	ErrActionNotFound = fmt.Errorf("action %w", ErrNotFound)
)

// RecordInput describes one mutation to append to the ledger. Snapshots are
// opaque JSON; a nil or literal null payload counts as absent.
type RecordInput struct {
	ActionKind models.ActionKind `json:"action_type"`
	EntityKind models.EntityKind `json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	OldData    json.RawMessage   `json:"old_data"`
	NewData    json.RawMessage   `json:"new_data"`
}

// RetentionPolicy bounds ledger growth. Zero values disable a bound.
type RetentionPolicy struct {
	MaxAge            time.Duration
	MaxRecordsPerUser int
}

// HistoryService records, lists and prunes action-history entries.
type HistoryService struct {
	db        *gorm.DB
	loc       *time.Location
	retention RetentionPolicy
	now       func() time.Time
}

// NewHistoryService returns a HistoryService; loc drives calendar date ranges.
func NewHistoryService(db *gorm.DB, loc *time.Location, retention RetentionPolicy) *HistoryService {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryService{db: db, loc: loc, retention: retention, now: time.Now}
}

// Now returns the service clock in the configured location.
func (s *HistoryService) Now() time.Time {
	return s.now().In(s.loc)
}

// Location returns the time zone used for calendar ranges.
func (s *HistoryService) Location() *time.Location {
	return s.loc
}

// Record validates in and appends it to the user's ledger.
func (s *HistoryService) Record(userID uint, in RecordInput) (*models.ActionRecord, error) {
	return s.RecordTx(s.db, userID, in)
}

// RecordTx appends inside the caller's transaction so the entry commits or
// rolls back together with the mutation it describes.
func (s *HistoryService) RecordTx(tx *gorm.DB, userID uint, in RecordInput) (*models.ActionRecord, error) {
	if err := validateRecordInput(in); err != nil {
		return nil, err
	}

	rec := &models.ActionRecord{
		UserID:     userID,
		ActionType: in.ActionKind,
		EntityType: in.EntityKind,
		EntityID:   in.EntityID,
		Timestamp:  s.now().UTC().Truncate(time.Microsecond),
	}
	if !models.IsAbsentJSON(in.OldData) {
		rec.OldData = datatypes.JSON(in.OldData)
	}
	if !models.IsAbsentJSON(in.NewData) {
		rec.NewData = datatypes.JSON(in.NewData)
	}

	if err := tx.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("append history record: %w", err)
	}

	metrics.IncRecord(string(rec.ActionType), string(rec.EntityType))
	logger.Ledger(userID).WithFields(map[string]interface{}{
		"record_id":   rec.ID,
		"action_type": rec.ActionType,
		"entity_type": rec.EntityType,
	}).Debug("history record appended")

	return rec, nil
}

// recordSnapshots is the typed path used by entity services.
func (s *HistoryService) recordSnapshots(tx *gorm.DB, userID uint, action models.ActionKind, entity models.EntityKind, entityID *uint, oldData, newData any) error {
	oldJSON, err := encodeSnapshot(oldData)
	if err != nil {
		return err
	}
	newJSON, err := encodeSnapshot(newData)
	if err != nil {
		return err
	}
	_, err = s.RecordTx(tx, userID, RecordInput{
		ActionKind: action,
		EntityKind: entity,
		EntityID:   entityID,
		OldData:    json.RawMessage(oldJSON),
		NewData:    json.RawMessage(newJSON),
	})
	return err
}

func validateRecordInput(in RecordInput) error {
	if !in.ActionKind.Valid() {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidActionKind, in.ActionKind)
	}
	if !in.EntityKind.Valid() {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidEntityKind, in.EntityKind)
	}
	if in.EntityID == nil && in.EntityKind != models.EntityBudget {
		return invalid("entity_id is required for %s", in.EntityKind)
	}

	hasOld := !models.IsAbsentJSON(in.OldData)
	hasNew := !models.IsAbsentJSON(in.NewData)
	if hasOld && !json.Valid(in.OldData) {
		return invalid("old_data is not valid JSON")
	}
	if hasNew && !json.Valid(in.NewData) {
		return invalid("new_data is not valid JSON")
	}
	if hasOld != in.ActionKind.NeedsOldData() {
		if hasOld {
			return invalid("old_data must be absent for %s", in.ActionKind)
		}
		return invalid("old_data is required for %s", in.ActionKind)
	}
	if hasNew != in.ActionKind.NeedsNewData() {
		if hasNew {
			return invalid("new_data must be absent for %s", in.ActionKind)
		}
		return invalid("new_data is required for %s", in.ActionKind)
	}
	return nil
}

// Get returns one record owned by userID.
func (s *HistoryService) Get(userID, id uint) (*models.ActionRecord, error) {
	var rec models.ActionRecord
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// List returns the user's records matching f, newest first with ties broken
// by descending id. An invalid filter fails before any query is issued.
func (s *HistoryService) List(userID uint, f ledger.Filter) ([]models.ActionRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	q := s.db.Model(&models.ActionRecord{}).Where("user_id = ?", userID)
	if f.ActionKind != "" {
		q = q.Where("action_type = ?", f.ActionKind)
	}
	if f.EntityKind != "" {
		q = q.Where("entity_type = ?", f.EntityKind)
	}
	if from, to, ok := f.Window(s.Now()); ok {
		q = q.Where("created_at >= ? AND created_at <= ?", from.UTC(), to.UTC())
	}

	records := []models.ActionRecord{}
	if err := q.Order("created_at desc").Order("id desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Prune applies the retention policy across all users and returns the number
// of records removed.
func (s *HistoryService) Prune() (int64, error) {
	var removed int64

	if s.retention.MaxAge > 0 {
		cutoff := s.now().UTC().Add(-s.retention.MaxAge)
		res := s.db.Where("created_at < ?", cutoff).Delete(&models.ActionRecord{})
		if res.Error != nil {
			return removed, fmt.Errorf("prune by age: %w", res.Error)
		}
		removed += res.RowsAffected
	}

	if limit := s.retention.MaxRecordsPerUser; limit > 0 {
		var userIDs []uint
		if err := s.db.Model(&models.ActionRecord{}).
			Group("user_id").
			Having("COUNT(*) > ?", limit).
			Pluck("user_id", &userIDs).Error; err != nil {
			return removed, fmt.Errorf("find users over quota: %w", err)
		}
		for _, uid := range userIDs {
			var keep []uint
			if err := s.db.Model(&models.ActionRecord{}).
				Where("user_id = ?", uid).
				Order("created_at desc").Order("id desc").
				Limit(limit).
				Pluck("id", &keep).Error; err != nil {
				return removed, fmt.Errorf("select records to keep: %w", err)
			}
			res := s.db.Where("user_id = ? AND id NOT IN ?", uid, keep).Delete(&models.ActionRecord{})
			if res.Error != nil {
				return removed, fmt.Errorf("prune by count: %w", res.Error)
			}
			removed += res.RowsAffected
		}
	}

	metrics.AddPruned(removed)
	if removed > 0 {
		logger.Log().WithField("removed", removed).Info("pruned history records")
	}
	return removed, nil
}
