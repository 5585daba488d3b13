package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eguzmanz/dexdash/internal/domain"
)

func sampleState() domain.PortfolioState {
	return domain.PortfolioState{
		Balances: map[string]decimal.Decimal{
			"usdt":     decimal.NewFromInt(5000),
			"ethereum": decimal.NewFromFloat(1.2),
		},
		Trades: []domain.Trade{
			{
				ID:        "t-1",
				Pair:      "ETH/USDT",
				Side:      domain.TradeSideBuy,
				Amount:    decimal.NewFromFloat(0.5),
				Price:     decimal.NewFromInt(3500),
				TotalCost: decimal.NewFromInt(1750),
				Fee:       decimal.NewFromFloat(5.25),
				Status:    domain.TradeStatusCompleted,
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			},
		},
		Summary: domain.PortfolioSummary{
			UserID:        1,
			TotalInvested: decimal.NewFromInt(10000),
			TotalValue:    decimal.NewFromInt(10350),
		},
	}
}

func TestStateStoreRoundTrip(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	want := sampleState()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)

	assert.True(t, got.Balances["usdt"].Equal(want.Balances["usdt"]))
	assert.True(t, got.Balances["ethereum"].Equal(want.Balances["ethereum"]))
	require.Len(t, got.Trades, 1)
	assert.Equal(t, "t-1", got.Trades[0].ID)
	assert.True(t, got.Trades[0].Fee.Equal(want.Trades[0].Fee))
	assert.True(t, got.Summary.TotalInvested.Equal(want.Summary.TotalInvested))
}

func TestStateStoreLoadMissing(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStateStoreSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStateStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	first := sampleState()
	require.NoError(t, store.Save(ctx, first))

	second := first.Clone()
	second.Balances["usdt"] = decimal.NewFromInt(9000)
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Balances["usdt"].Equal(decimal.NewFromInt(9000)))

	// No temp files should survive a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stateFileName, filepath.Base(entries[0].Name()))
}

func TestStateStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStateStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0o644))

	_, err = store.Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
