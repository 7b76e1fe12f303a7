package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.db")
	j, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	return j, path
}

func TestJournalRoundTrip(t *testing.T) {
	j, path := openTemp(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	in := []model.Trade{
		{ID: "a", Symbol: "BTC", Side: model.SideBuy, Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.1"), CreatedAt: at},
		{ID: "b", Symbol: "SHIB", Side: model.SideBuy, Price: decimal.RequireFromString("0.0001"), Quantity: decimal.RequireFromString("1000000"), CreatedAt: at.Add(time.Second)},
		{ID: "c", Symbol: "BTC", Side: model.SideSell, Price: decimal.RequireFromString("52000.25"), Quantity: decimal.RequireFromString("0.05"), CreatedAt: at.Add(2 * time.Second)},
	}
	for _, tr := range in {
		require.NoError(t, j.Append(ctx, tr))
	}
	require.NoError(t, j.Ping(ctx))
	require.NoError(t, j.Close())

	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	out, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.Equal(t, in[i].Symbol, out[i].Symbol)
		assert.Equal(t, in[i].Side, out[i].Side)
		assert.True(t, in[i].Price.Equal(out[i].Price), out[i].Price.String())
		assert.True(t, in[i].Quantity.Equal(out[i].Quantity))
		assert.True(t, in[i].CreatedAt.Equal(out[i].CreatedAt))
	}
}

func TestJournalRejectsDuplicateID(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()
	ctx := context.Background()

	tr := model.Trade{ID: "dup", Symbol: "ETH", Side: model.SideBuy, Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1), CreatedAt: time.Now()}
	require.NoError(t, j.Append(ctx, tr))
	assert.Error(t, j.Append(ctx, tr))

	out, err := j.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestJournalEmptyLoad(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()
	out, err := j.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}
