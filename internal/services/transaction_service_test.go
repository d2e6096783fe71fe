package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/models"
)

func TestTransactionService_CreateValidation(t *testing.T) {
	f := newLedgerFixture(t, true)
	income, err := f.categories.Create(1, CategoryInput{Name: "Salary", IsTypeIncome: true})
	require.NoError(t, err)
	foreign, err := f.categories.Create(2, CategoryInput{Name: "Theirs"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      TransactionInput
		wantErr error
	}{
		{"ok", TransactionInput{Amount: 10, Date: "2026-10-01", Type: models.TransactionExpense}, nil},
		{"default date", TransactionInput{Amount: 10, Type: models.TransactionIncome}, nil},
		{"zero amount", TransactionInput{Amount: 0, Date: "2026-10-01", Type: models.TransactionExpense}, ledger.ErrValidation},
		{"bad type", TransactionInput{Amount: 1, Date: "2026-10-01", Type: "gift"}, ledger.ErrValidation},
		{"bad date", TransactionInput{Amount: 1, Date: "01/10/2026", Type: models.TransactionExpense}, ledger.ErrValidation},
		{"type mismatch", TransactionInput{Amount: 1, Date: "2026-10-01", Type: models.TransactionExpense, CategoryID: &income.ID}, ErrCategoryTypeMismatch},
		{"other user's category", TransactionInput{Amount: 1, Date: "2026-10-01", Type: models.TransactionExpense, CategoryID: &foreign.ID}, ErrCategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := f.transactions.Create(1, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, tx.ID)
		})
	}

	txs, _, err := f.transactions.List(1, TransactionQuery{Type: models.TransactionIncome})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "2026-10-15", txs[0].Date)
}

func TestTransactionService_MutationsAreRecorded(t *testing.T) {
	f := newLedgerFixture(t, true)
	tx, err := f.transactions.Create(1, TransactionInput{Amount: 20, Description: "Book", Date: "2026-10-10", Type: models.TransactionExpense})
	require.NoError(t, err)
	_, err = f.transactions.Update(1, tx.ID, TransactionPatch{Amount: ptr(25.0)})
	require.NoError(t, err)
	require.NoError(t, f.transactions.Delete(1, tx.ID))

	records, err := f.history.List(1, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.ActionDelete, records[0].ActionType)
	assert.Equal(t, models.ActionUpdate, records[1].ActionType)
	assert.Equal(t, models.ActionAdd, records[2].ActionType)
	for _, r := range records {
		require.NotNil(t, r.EntityID)
		assert.Equal(t, tx.ID, *r.EntityID)
		assert.Equal(t, models.EntityTransaction, r.EntityType)
	}
	assert.JSONEq(t, `{"amount":20,"description":"Book","date":"2026-10-10","type":"expense","category_id":null}`, string(records[1].OldData))
	assert.JSONEq(t, `{"amount":25,"description":"Book","date":"2026-10-10","type":"expense","category_id":null}`, string(records[1].NewData))

	assert.ErrorIs(t, f.transactions.Delete(1, tx.ID), ErrTransactionNotFound)
}

func TestTransactionService_FailedUpdateRecordsNothing(t *testing.T) {
	f := newLedgerFixture(t, true)
	tx, err := f.transactions.Create(1, TransactionInput{Amount: 20, Date: "2026-10-10", Type: models.TransactionExpense})
	require.NoError(t, err)

	_, err = f.transactions.Update(1, tx.ID, TransactionPatch{Amount: ptr(-3.0)})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.transactions.Update(2, tx.ID, TransactionPatch{Amount: ptr(3.0)})
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Equal(t, int64(1), recordCount(f, 1))
}

func TestTransactionService_ListFilters(t *testing.T) {
	f := newLedgerFixture(t, true)
	food, err := f.categories.Create(1, CategoryInput{Name: "Food"})
	require.NoError(t, err)
	mk := func(amount float64, desc, date string, typ models.TransactionType, cat *uint) {
		_, err := f.transactions.Create(1, TransactionInput{Amount: amount, Description: desc, Date: date, Type: typ, CategoryID: cat})
		require.NoError(t, err)
	}
	mk(10, "Pizza night", "2026-10-15", models.TransactionExpense, &food.ID)
	mk(5, "Coffee", "2026-10-13", models.TransactionExpense, &food.ID)
	mk(2000, "Salary", "2026-10-01", models.TransactionIncome, nil)
	mk(40, "Shoes", "2026-09-20", models.TransactionExpense, nil)

	tests := []struct {
		name  string
		q     TransactionQuery
		want  []string
		total int64
	}{
		{"all newest first", TransactionQuery{}, []string{"Pizza night", "Coffee", "Salary", "Shoes"}, 4},
		{"this week", TransactionQuery{Range: ledger.Filter{DateRange: ledger.RangeWeek}}, []string{"Pizza night", "Coffee"}, 2},
		{"this month", TransactionQuery{Range: ledger.Filter{DateRange: ledger.RangeMonth}}, []string{"Pizza night", "Coffee", "Salary"}, 3},
		{"category", TransactionQuery{CategoryID: &food.ID}, []string{"Pizza night", "Coffee"}, 2},
		{"income", TransactionQuery{Type: models.TransactionIncome}, []string{"Salary"}, 1},
		{"search is case insensitive", TransactionQuery{Search: "PIZZA"}, []string{"Pizza night"}, 1},
		{"second page", TransactionQuery{Page: 2, Limit: 3}, []string{"Shoes"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, total, err := f.transactions.List(1, tt.q)
			require.NoError(t, err)
			got := make([]string, 0, len(txs))
			for _, tx := range txs {
				got = append(got, tx.Description)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, total)
		})
	}

	_, _, err = f.transactions.List(1, TransactionQuery{Range: ledger.Filter{DateRange: "fortnight"}})
	assert.ErrorIs(t, err, ledger.ErrInvalidDateRange)
}

func TestCategoryService_DeleteDetachesTransactionsAndLimit(t *testing.T) {
	f := newLedgerFixture(t, true)
	cat, err := f.categories.Create(1, CategoryInput{Name: "Fun"})
	require.NoError(t, err)
	tx, err := f.transactions.Create(1, TransactionInput{Amount: 9, Date: "2026-10-10", Type: models.TransactionExpense, CategoryID: &cat.ID})
	require.NoError(t, err)
	_, err = f.limits.Set(1, cat.ID, 50)
	require.NoError(t, err)

	require.NoError(t, f.categories.Delete(1, cat.ID))

	var reloaded models.Transaction
	require.NoError(t, f.db.First(&reloaded, tx.ID).Error)
	assert.Nil(t, reloaded.CategoryID)
	limits, err := f.limits.List(1)
	require.NoError(t, err)
	assert.Empty(t, limits)

	_, err = f.categories.Get(1, cat.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCategoryService_Validation(t *testing.T) {
	f := newLedgerFixture(t, true)
	_, err := f.categories.Create(1, CategoryInput{Name: "  "})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.categories.Create(1, CategoryInput{Name: "Ok", Color: "red"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	c, err := f.categories.Create(1, CategoryInput{Name: "Ok"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCategoryColor, c.Color)
	_, err = f.categories.Update(1, c.ID, CategoryPatch{Color: ptr("#GGGGGG")})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = f.limits.Set(1, c.ID+50, 10)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	_, err = f.limits.Set(1, c.ID, -1)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestGoalService_AddMoneyCompletesGoal(t *testing.T) {
	f := newLedgerFixture(t, true)
	g, err := f.goals.Create(1, GoalInput{Title: "Laptop", TargetAmount: 1200, CurrentAmount: 200, Deadline: "2027-03-01"})
	require.NoError(t, err)
	assert.False(t, g.Completed)

	g, err = f.goals.AddMoney(1, g.ID, 1000)
	require.NoError(t, err)
	assert.True(t, g.Completed)
	assert.Equal(t, 1200.0, g.CurrentAmount)

	_, err = f.goals.AddMoney(1, g.ID, 0)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.goals.AddMoney(2, g.ID, 5)
	assert.ErrorIs(t, err, ErrGoalNotFound)
	_, err = f.goals.Create(1, GoalInput{Title: "No deadline", TargetAmount: 5})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestBudgetService_SetRejectsNegative(t *testing.T) {
	f := newLedgerFixture(t, true)
	_, err := f.budgets.Get(1)
	assert.ErrorIs(t, err, ErrBudgetNotFound)

	_, err = f.budgets.Set(1, -5)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Zero(t, recordCount(f, 1))
}
