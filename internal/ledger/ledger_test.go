package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
)

const (
	w1 = "W1"
	m1 = "M1"
)

func buy(id, plan string, qty uint64, price string) domain.Fill {
	return domain.Fill{
		ID: id, PlanID: plan, Wallet: w1, Mint: m1,
		Direction: domain.Buy, Quantity: qty, Price: decimal.RequireFromString(price),
	}
}

func sell(id, plan string, qty uint64, price string) domain.Fill {
	f := buy(id, plan, qty, price)
	f.Direction = domain.Sell
	return f
}

func fixedNow() time.Time { return time.Unix(1700000000, 0) }

func TestOnConfirmed_BuyCreatesPosition(t *testing.T) {
	l := New(Options{Now: fixedNow})

	pos, err := l.OnConfirmed(buy("a1", "p1", 1000, "0.03"))
	require.NoError(t, err)

	assert.True(t, pos.IsOpen())
	assert.Equal(t, uint64(1000), pos.Quantity)
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.RequireFromString("0.03")))
	assert.Equal(t, uint64(30), pos.CostBasis)
	assert.Equal(t, "p1", pos.OpenedBy)
	assert.Equal(t, fixedNow(), pos.OpenedAt)
	assert.True(t, l.HasOpen(w1, m1))
}

func TestOnConfirmed_SecondBuyFromOtherPlanConflicts(t *testing.T) {
	l := New(Options{})

	_, err := l.OnConfirmed(buy("a1", "p1", 1000, "1"))
	require.NoError(t, err)

	pos, err := l.OnConfirmed(buy("a2", "p2", 500, "2"))
	require.ErrorIs(t, err, domain.ErrLedgerConflict)
	assert.Equal(t, uint64(1000), pos.Quantity, "rejected fill must not change the position")
}

func TestOnConfirmed_WeightedAverageRoundTrip(t *testing.T) {
	l := New(Options{AllowPyramiding: true})

	_, err := l.OnConfirmed(buy("a1", "p1", 300, "2"))
	require.NoError(t, err)
	pos, err := l.OnConfirmed(buy("a2", "p2", 100, "6"))
	require.NoError(t, err)

	// (300*2 + 100*6) / 400 = 3
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromInt(3)), "got %s", pos.AvgEntryPrice)
	assert.Equal(t, uint64(400), pos.Quantity)
	assert.Equal(t, uint64(1200), pos.CostBasis)
}

func TestOnConfirmed_WeightedAverageNonIntegral(t *testing.T) {
	l := New(Options{AllowPyramiding: true})

	_, err := l.OnConfirmed(buy("a1", "p1", 3, "1"))
	require.NoError(t, err)
	pos, err := l.OnConfirmed(buy("a2", "p2", 7, "2"))
	require.NoError(t, err)

	want := decimal.NewFromInt(3*1 + 7*2).Div(decimal.NewFromInt(10))
	assert.True(t, pos.AvgEntryPrice.Sub(want).Abs().LessThan(decimal.New(1, -12)))
}

func TestOnConfirmed_DuplicateFillSuppressed(t *testing.T) {
	var changes int
	l := New(Options{OnChange: func(domain.Position) { changes++ }})

	fill := buy("a1", "p1", 1000, "1")
	_, err := l.OnConfirmed(fill)
	require.NoError(t, err)

	pos, err := l.OnConfirmed(fill)
	require.ErrorIs(t, err, domain.ErrDuplicateFill)
	assert.Equal(t, uint64(1000), pos.Quantity)
	assert.Equal(t, 1, pos.Fills)
	assert.Equal(t, 1, changes)
}

func TestOnConfirmed_SellRealizesAndCloses(t *testing.T) {
	l := New(Options{})

	_, err := l.OnConfirmed(buy("a1", "p1", 1000, "2"))
	require.NoError(t, err)

	pos, err := l.OnConfirmed(sell("a2", "p2", 400, "3"))
	require.NoError(t, err)
	assert.Equal(t, uint64(600), pos.Quantity)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(400)))
	assert.True(t, pos.IsOpen())

	pos, err = l.OnConfirmed(sell("a3", "p3", 600, "1"))
	require.NoError(t, err)
	assert.Equal(t, domain.PositionClosed, pos.Status)
	assert.Equal(t, uint64(0), pos.Quantity)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(400-600)))
	assert.False(t, l.HasOpen(w1, m1))

	// closed positions are kept
	got, ok := l.Get(w1, m1)
	require.True(t, ok)
	assert.Equal(t, 3, got.Fills)
}

func TestOnConfirmed_ReopenAfterClose(t *testing.T) {
	l := New(Options{})

	_, err := l.OnConfirmed(buy("a1", "p1", 10, "1"))
	require.NoError(t, err)
	_, err = l.OnConfirmed(sell("a2", "p2", 10, "2"))
	require.NoError(t, err)

	pos, err := l.OnConfirmed(buy("a3", "p3", 5, "4"))
	require.NoError(t, err)
	assert.True(t, pos.IsOpen())
	assert.Equal(t, "p3", pos.OpenedBy)
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromInt(4)))
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(10)), "realized P&L carries across reopen")
}

func TestOnConfirmed_SellConflicts(t *testing.T) {
	l := New(Options{})

	_, err := l.OnConfirmed(sell("a1", "p1", 10, "1"))
	assert.ErrorIs(t, err, domain.ErrLedgerConflict, "sell without position")

	_, err = l.OnConfirmed(buy("a2", "p2", 10, "1"))
	require.NoError(t, err)

	_, err = l.OnConfirmed(sell("a3", "p3", 11, "1"))
	assert.ErrorIs(t, err, domain.ErrLedgerConflict, "oversell")

	// rejected fill IDs may be retried
	_, err = l.OnConfirmed(sell("a3", "p3", 10, "1"))
	assert.NoError(t, err)
}

func TestOnConfirmed_ConcurrentFillsSerialized(t *testing.T) {
	l := New(Options{AllowPyramiding: true})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := buy("", "p", 10, "1")
			f.ID = string(rune('A' + i))
			_, _ = l.OnConfirmed(f)
		}(i)
	}
	wg.Wait()

	pos, ok := l.Get(w1, m1)
	require.True(t, ok)
	assert.Equal(t, uint64(500), pos.Quantity)
	assert.Equal(t, 50, pos.Fills)
}

func TestPositionsAndRestore(t *testing.T) {
	l := New(Options{})
	l.Restore([]domain.Position{
		{Wallet: "W2", Mint: "A", Quantity: 5, Status: domain.PositionOpen, Fills: 1},
		{Wallet: "W1", Mint: "B", Quantity: 0, Status: domain.PositionClosed, Fills: 2},
	})

	all := l.Positions()
	require.Len(t, all, 2)
	assert.Equal(t, "W1", all[0].Wallet)

	open := l.Open()
	require.Len(t, open, 1)
	assert.Equal(t, "W2", open[0].Wallet)

	_, ok := l.Get("W9", "A")
	assert.False(t, ok)
}
