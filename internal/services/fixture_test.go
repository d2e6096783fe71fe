package services

import (
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/finlog/backend/internal/testdb"
)

// Thursday afternoon
var fixedNow = time.Date(2026, time.October, 15, 14, 30, 0, 0, time.UTC)

type ledgerFixture struct {
	db           *gorm.DB
	clock        *testClock
	history      *HistoryService
	transactions *TransactionService
	categories   *CategoryService
	goals        *GoalService
	budgets      *BudgetService
	limits       *CategoryLimitService
	undo         *UndoService
	notes        *recordingNotifier
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func newLedgerFixture(t *testing.T, strict bool) *ledgerFixture {
	t.Helper()
	db := testdb.Open(t)
	clock := &testClock{now: fixedNow}

	history := NewHistoryService(db, time.UTC, RetentionPolicy{})
	history.now = clock.Now

	f := &ledgerFixture{
		db:           db,
		clock:        clock,
		history:      history,
		transactions: NewTransactionService(db, history),
		categories:   NewCategoryService(db, history),
		goals:        NewGoalService(db, history),
		budgets:      NewBudgetService(db, history),
		limits:       NewCategoryLimitService(db, history),
		notes:        &recordingNotifier{},
	}
	f.undo = NewUndoService(db, UndoDeps{
		History:      history,
		Transactions: f.transactions,
		Categories:   f.categories,
		Goals:        f.goals,
		Budgets:      f.budgets,
		Limits:       f.limits,
	}, strict, f.notes)
	return f
}

func ptr[T any](v T) *T { return &v }
