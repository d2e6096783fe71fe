package historyclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/models"
	"github.com/finlog/backend/internal/services"
)

var storeNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	records   []models.ActionRecord
	nextID    uint
	recordErr error
	undoErr   error
	// observed is set from inside Record to check the staged state.
	observed func()
	// afterRecord runs once the server side has stored the record.
	afterRecord func()
	// afterList runs once List has taken its snapshot.
	afterList func()
}

func (f *fakeAPI) List(context.Context, ledger.Filter) ([]models.ActionRecord, error) {
	out := append([]models.ActionRecord(nil), f.records...)
	if hook := f.afterList; hook != nil {
		f.afterList = nil
		hook()
	}
	return out, nil
}

func (f *fakeAPI) Record(_ context.Context, in services.RecordInput) (*models.ActionRecord, error) {
	if f.observed != nil {
		f.observed()
	}
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.nextID++
	rec := models.ActionRecord{
		ID:         f.nextID,
		ActionType: in.ActionKind,
		EntityType: in.EntityKind,
		EntityID:   in.EntityID,
		Timestamp:  storeNow,
	}
	f.records = append(f.records, rec)
	if hook := f.afterRecord; hook != nil {
		f.afterRecord = nil
		hook()
	}
	return &rec, nil
}

func (f *fakeAPI) Undo(_ context.Context, id uint) (*UndoResponse, error) {
	if f.undoErr != nil {
		return nil, f.undoErr
	}
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i:i], f.records[i+1:]...)
			break
		}
	}
	return &UndoResponse{Success: true, Message: "Action undone", RestoredEntity: json.RawMessage(`{}`)}, nil
}

func seededStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	s := NewStore(api)
	s.now = func() time.Time { return storeNow }
	require.True(t, s.Stale())
	require.NoError(t, s.Refresh(context.Background()))
	require.False(t, s.Stale())
	return s
}

func seedRecords() []models.ActionRecord {
	id := uint(1)
	return []models.ActionRecord{
		{ID: 1, ActionType: models.ActionAdd, EntityType: models.EntityTransaction, EntityID: &id, Timestamp: storeNow.AddDate(0, 0, -40)},
		{ID: 2, ActionType: models.ActionUpdate, EntityType: models.EntityGoal, EntityID: &id, Timestamp: storeNow.Add(-time.Hour)},
		{ID: 3, ActionType: models.ActionUpdateBudget, EntityType: models.EntityBudget, Timestamp: storeNow.Add(-2 * time.Hour)},
	}
}

func addInput() services.RecordInput {
	id := uint(5)
	return services.RecordInput{
		ActionKind: models.ActionAdd,
		EntityKind: models.EntityCategory,
		EntityID:   &id,
		NewData:    json.RawMessage(`{"name":"Food"}`),
	}
}

func ids(records []models.ActionRecord) []uint {
	out := make([]uint, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_VisibleDerivesFromFilter(t *testing.T) {
	s := seededStore(t, &fakeAPI{records: seedRecords(), nextID: 3})

	assert.Equal(t, []uint{2, 3, 1}, ids(s.Visible()))

	require.NoError(t, s.SetFilter(ledger.Filter{DateRange: ledger.RangeDay}))
	assert.Equal(t, []uint{2, 3}, ids(s.Visible()))

	require.NoError(t, s.SetFilter(ledger.Filter{DateRange: ledger.RangeMonth, EntityKind: models.EntityBudget}))
	assert.Equal(t, []uint{3}, ids(s.Visible()))

	require.NoError(t, s.SetFilter(ledger.Filter{}))
	assert.Equal(t, []uint{2, 3, 1}, ids(s.Visible()), "clearing the filter restores the full list")
}

func TestStore_SetFilterRejectsInvalid(t *testing.T) {
	s := seededStore(t, &fakeAPI{records: seedRecords(), nextID: 3})
	require.NoError(t, s.SetFilter(ledger.Filter{EntityKind: models.EntityGoal}))

	err := s.SetFilter(ledger.Filter{DateRange: ledger.RangeCustom})
	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, models.EntityGoal, s.Filter().EntityKind)
	assert.Equal(t, []uint{2}, ids(s.Visible()))
}

func TestStore_RecordCommitsOnlyOnSuccess(t *testing.T) {
	api := &fakeAPI{records: seedRecords(), nextID: 3}
	s := seededStore(t, api)

	api.observed = func() {
		assert.True(t, s.Pending())
		assert.Len(t, s.Visible(), 3, "staged record is not visible")
	}
	rec, err := s.Record(context.Background(), addInput())
	require.NoError(t, err)
	assert.False(t, s.Pending())
	assert.Equal(t, []uint{rec.ID, 2, 3, 1}, ids(s.Visible()))
}

func TestStore_RecordFailureDiscards(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantStale bool
	}{
		{"server rejected", &APIError{Status: http.StatusBadRequest, Message: "entity_id is required"}, false},
		{"transport failure", errors.New("connection reset by peer"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{records: seedRecords(), nextID: 3}
			s := seededStore(t, api)
			api.recordErr = tc.err

			_, err := s.Record(context.Background(), addInput())
			require.Error(t, err)
			assert.False(t, s.Pending())
			assert.Equal(t, []uint{2, 3, 1}, ids(s.Visible()))
			assert.Equal(t, tc.wantStale, s.Stale())
		})
	}
}

func TestStore_RejectsConcurrentAppend(t *testing.T) {
	api := &fakeAPI{records: seedRecords(), nextID: 3}
	s := seededStore(t, api)

	var nestedErr error
	api.observed = func() {
		api.observed = nil
		_, nestedErr = s.Record(context.Background(), addInput())
	}
	_, err := s.Record(context.Background(), addInput())
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrPendingAppend)
}

func TestStore_Undo(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantIDs   []uint
		wantStale bool
	}{
		{"confirmed", nil, []uint{3, 1}, false},
		{"already gone", &APIError{Status: http.StatusNotFound, Message: "action not found"}, []uint{3, 1}, false},
		{"conflict", &APIError{Status: http.StatusBadRequest, Message: "undo conflict"}, []uint{2, 3, 1}, false},
		{"transport failure", errors.New("timeout"), []uint{2, 3, 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{records: seedRecords(), nextID: 3, undoErr: tc.err}
			s := seededStore(t, api)

			_, err := s.Undo(context.Background(), 2)
			if tc.err != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantIDs, ids(s.Visible()))
			assert.Equal(t, tc.wantStale, s.Stale())
		})
	}
}

func TestStore_RefreshKeepsAppendCommittedDuringFetch(t *testing.T) {
	api := &fakeAPI{records: seedRecords(), nextID: 3}
	s := seededStore(t, api)

	var committed *models.ActionRecord
	api.afterList = func() {
		rec, err := s.Record(context.Background(), addInput())
		require.NoError(t, err)
		committed = rec
	}
	require.NoError(t, s.Refresh(context.Background()))
	require.NotNil(t, committed)
	assert.Equal(t, []uint{committed.ID, 2, 3, 1}, ids(s.Visible()))
}

func TestStore_RefreshHonoursUndoDuringFetch(t *testing.T) {
	api := &fakeAPI{records: seedRecords(), nextID: 3}
	s := seededStore(t, api)

	api.afterList = func() {
		_, err := s.Undo(context.Background(), 2)
		require.NoError(t, err)
	}
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, []uint{3, 1}, ids(s.Visible()))

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, []uint{3, 1}, ids(s.Visible()))
}

func TestStore_AppendNotDuplicatedByConcurrentRefresh(t *testing.T) {
	api := &fakeAPI{records: seedRecords(), nextID: 3}
	s := seededStore(t, api)

	api.afterRecord = func() {
		require.NoError(t, s.Refresh(context.Background()))
	}
	rec, err := s.Record(context.Background(), addInput())
	require.NoError(t, err)
	assert.Equal(t, []uint{rec.ID, 2, 3, 1}, ids(s.Visible()))
}
