package ledger_test

import (
	"context"
	"testing"
	"time"

	"ledger-engine/internal/domain"
	"ledger-engine/internal/ledger"
	"ledger-engine/internal/ledger/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatementGenerator(t *testing.T) (*ledger.StatementGenerator, *mocks.MockAccountStore, *mocks.MockTransactionLog) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	accounts := mocks.NewMockAccountStore(ctrl)
	txlog := mocks.NewMockTransactionLog(ctrl)
	return ledger.NewStatementGenerator(accounts, txlog), accounts, txlog
}

func completedDeposit(to uuid.UUID, amount string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          uuid.New(),
		Number:      "txn-" + uuid.NewString(),
		ToAccountID: &to,
		Amount:      dec(amount),
		Type:        domain.TransactionTypeDeposit,
		Status:      domain.TransactionStatusCompleted,
		CreatedAt:   at,
	}
}

func completedWithdrawal(from uuid.UUID, amount string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:            uuid.New(),
		Number:        "txn-" + uuid.NewString(),
		FromAccountID: &from,
		Amount:        dec(amount),
		Type:          domain.TransactionTypeWithdrawal,
		Status:        domain.TransactionStatusCompleted,
		CreatedAt:     at,
	}
}

func TestStatementSingleDeposit(t *testing.T) {
	gen, accounts, txlog := newStatementGenerator(t)

	acc := testAccount(t, "USD", "100.00")
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

	accounts.EXPECT().Get(gomock.Any(), acc.ID).Return(acc, nil)
	txlog.EXPECT().ListForAccount(gomock.Any(), acc.ID, start, gomock.Any()).Return(
		[]domain.Transaction{
			completedDeposit(acc.ID, "100.00", start.Add(24*time.Hour)),
		}, nil)

	st, err := gen.Generate(context.Background(), acc.ID, start, end)
	require.NoError(t, err)

	assert.Equal(t, acc.Number, st.AccountNumber)
	assert.True(t, st.OpeningBalance.IsZero(), "opening = current balance minus the deposit")
	assert.True(t, st.ClosingBalance.Equal(dec("100.00")))
	assert.True(t, st.TotalDeposits.Equal(dec("100.00")))
	assert.True(t, st.TotalWithdrawals.IsZero())
	assert.Len(t, st.Transactions, 1)
}

func TestStatementBacksOutLaterActivity(t *testing.T) {
	gen, accounts, txlog := newStatementGenerator(t)

	acc := testAccount(t, "USD", "150.00")
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

	accounts.EXPECT().Get(gomock.Any(), acc.ID).Return(acc, nil)
	txlog.EXPECT().ListForAccount(gomock.Any(), acc.ID, start, gomock.Any()).Return(
		[]domain.Transaction{
			completedDeposit(acc.ID, "100.00", start.Add(24*time.Hour)),
			// Landed after the requested range; must not appear in it but
			// must be backed out of the opening balance derivation.
			completedDeposit(acc.ID, "50.00", end.Add(24*time.Hour)),
		}, nil)

	st, err := gen.Generate(context.Background(), acc.ID, start, end)
	require.NoError(t, err)

	assert.True(t, st.OpeningBalance.IsZero())
	assert.True(t, st.ClosingBalance.Equal(dec("100.00")))
	assert.Len(t, st.Transactions, 1)
}

func TestStatementMixedActivity(t *testing.T) {
	gen, accounts, txlog := newStatementGenerator(t)

	acc := testAccount(t, "USD", "70.00")
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	pendingTx := completedDeposit(acc.ID, "999.00", start.Add(time.Hour))
	pendingTx.Status = domain.TransactionStatusPending
	failedTx := completedWithdrawal(acc.ID, "999.00", start.Add(2*time.Hour))
	failedTx.Status = domain.TransactionStatusFailed

	accounts.EXPECT().Get(gomock.Any(), acc.ID).Return(acc, nil)
	txlog.EXPECT().ListForAccount(gomock.Any(), acc.ID, start, gomock.Any()).Return(
		[]domain.Transaction{
			completedDeposit(acc.ID, "100.00", start.Add(3*time.Hour)),
			pendingTx,
			failedTx,
			completedWithdrawal(acc.ID, "40.00", start.Add(4*time.Hour)),
			completedDeposit(acc.ID, "10.00", start.Add(5*time.Hour)),
		}, nil)

	st, err := gen.Generate(context.Background(), acc.ID, start, end)
	require.NoError(t, err)

	// Opening 0 + 100 - 40 + 10 = 70 = current balance; the non-completed
	// rows contribute nothing anywhere.
	assert.True(t, st.OpeningBalance.IsZero())
	assert.True(t, st.ClosingBalance.Equal(dec("70.00")))
	assert.True(t, st.TotalDeposits.Equal(dec("110.00")))
	assert.True(t, st.TotalWithdrawals.Equal(dec("40.00")))
	assert.Len(t, st.Transactions, 3)
}

func TestStatementQuietRange(t *testing.T) {
	gen, accounts, txlog := newStatementGenerator(t)

	acc := testAccount(t, "USD", "42.00")
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	accounts.EXPECT().Get(gomock.Any(), acc.ID).Return(acc, nil)
	txlog.EXPECT().ListForAccount(gomock.Any(), acc.ID, start, gomock.Any()).
		Return(nil, nil)

	st, err := gen.Generate(context.Background(), acc.ID, start, end)
	require.NoError(t, err)

	assert.True(t, st.OpeningBalance.Equal(acc.Balance))
	assert.True(t, st.ClosingBalance.Equal(acc.Balance))
	assert.Empty(t, st.Transactions)
}

func TestStatementInvertedRange(t *testing.T) {
	gen, _, _ := newStatementGenerator(t)

	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	start := end.Add(time.Hour)

	_, err := gen.Generate(context.Background(), uuid.New(), start, end)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
