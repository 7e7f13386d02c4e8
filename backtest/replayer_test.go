package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/engine"
	"github.com/teletha/cointoss-sub007/internal/execution"
	"github.com/teletha/cointoss-sub007/internal/storage"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ms(d time.Duration) int64 { return t0.Add(d).UnixMilli() }

func openStore(t *testing.T) *storage.EventStore {
	t.Helper()
	store, err := storage.NewEventStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func recordSession(t *testing.T, store *storage.EventStore) {
	t.Helper()
	lines := []string{
		fmt.Sprintf(`{"type":"book","symbol":"BTC_JPY","full":true,"asks":[[101,1]],"bids":[[99,1]],"mills":%d}`, ms(0)),
		``,
		`{"type":"heartbeat"}`,
		fmt.Sprintf(`{"type":"execution","symbol":"BTC_JPY","side":"SELL","price":"100","size":"1","mills":%d}`, ms(time.Second)),
		fmt.Sprintf(`{"type":"execution","symbol":"BTC_JPY","side":"SELL","price":"99","size":"2","mills":%d}`, ms(2*time.Second)),
		fmt.Sprintf(`{"type":"execution","symbol":"BTC_JPY","side":"BUY","price":"102","size":"1","mills":%d}`, ms(3*time.Second)),
	}
	im, err := NewImporter(context.Background(), store, domain.DefaultMarketSetting())
	require.NoError(t, err)
	require.NoError(t, im.JSONLines(context.Background(), strings.NewReader(strings.Join(lines, "\n"))))
	require.Equal(t, 4, im.Total())
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(domain.DefaultMarketSetting())
	require.NoError(t, err)
	return eng
}

func TestReplayWithScheduledMaker(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	recordSession(t, store)

	eng := newEngine(t)
	svc := execution.NewVerifier(eng.Simulator(), eng.Locker())

	r := NewReplayer(store)
	r.Schedule(ScheduledOrder{At: t0.Add(500 * time.Millisecond), Side: domain.Buy, Size: dec("2"), Price: dec("100")})

	rep, err := r.Run(ctx, eng, svc)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), rep.Stats.Events)
	assert.Equal(t, uint64(3), rep.Stats.Executions)
	assert.Equal(t, uint64(1), rep.Stats.BookDiffs)
	assert.Equal(t, uint64(2), rep.Stats.Synthetic)

	require.Len(t, rep.Orders, 1)
	assert.Equal(t, domain.Completed, rep.Orders[0].State)
	require.Len(t, rep.Fills, 2)
	for _, f := range rep.Fills {
		assert.Equal(t, domain.Buy, f.Side)
		assert.Equal(t, "100", f.Price.String())
	}

	assert.Equal(t, "2", rep.Position.Size.String())
	assert.Equal(t, "100", rep.Position.AvgEntryPrice.String())
	assert.Equal(t, "102", rep.LastPrice.String())
	assert.Equal(t, "4", rep.UnrealizedPnL.String())
	assert.Equal(t, "BTC_JPY", rep.Symbol)
	assert.True(t, rep.VirtualTime.Equal(t0.Add(3*time.Second)))
	assert.Equal(t, uint64(5), eng.NextSeq())
}

func TestReplayPaperTaker(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	recordSession(t, store)

	eng := newEngine(t)
	svc := execution.NewPaper(execution.NewMock(eng.Setting()), eng.Pair(), eng.Simulator(), eng.Locker(), nil)

	r := NewReplayer(store)
	r.Schedule(
		ScheduledOrder{At: t0.Add(1500 * time.Millisecond), Side: domain.Buy, Size: dec("1")},
		ScheduledOrder{At: t0.Add(500 * time.Millisecond), Side: domain.Buy, Size: dec("2"), Price: dec("100")},
	)

	rep, err := r.Run(ctx, eng, svc)
	require.NoError(t, err)

	require.Len(t, rep.Fills, 3)
	assert.Equal(t, "101", rep.Fills[0].Price.String())
	assert.Equal(t, "3", rep.Position.Size.String())
	assert.Len(t, rep.Orders, 2)
}

func TestReplayLeftoverAndRejectedOrders(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	recordSession(t, store)

	eng := newEngine(t)
	svc := execution.NewVerifier(eng.Simulator(), eng.Locker())

	r := NewReplayer(store)
	r.Schedule(
		ScheduledOrder{At: t0.Add(time.Hour), Side: domain.Sell, Size: dec("1"), Price: dec("150")},
		ScheduledOrder{At: t0, Side: domain.Sell, Size: decimal.Zero, Price: dec("150")},
	)

	rep, err := r.Run(ctx, eng, svc)
	require.NoError(t, err)

	require.Len(t, rep.Rejected, 1)
	require.Len(t, rep.Orders, 1)
	assert.Equal(t, domain.Active, rep.Orders[0].State)
	assert.Empty(t, rep.Fills)
	assert.True(t, rep.VirtualTime.Equal(t0.Add(time.Hour)))
}

func TestReplayResumesAfterRecovery(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	recordSession(t, store)

	eng := newEngine(t)
	rep, err := NewReplayer(store).Run(ctx, eng, execution.NewVerifier(eng.Simulator(), eng.Locker()))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rep.Stats.Events)

	// nothing left to replay from the engine's position
	rep, err = NewReplayer(store).Run(ctx, eng, execution.NewVerifier(eng.Simulator(), eng.Locker()))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rep.Stats.Events)
}

func TestImportCandles(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	recordSession(t, store)

	csv := "mills,open,high,low,close,volume\n" +
		fmt.Sprintf("%d,100,110,90,105,4\n", ms(time.Minute)) +
		fmt.Sprintf("%d,105,106,104,105,0\n", ms(2*time.Minute))

	im, err := NewImporter(ctx, store, domain.DefaultMarketSetting())
	require.NoError(t, err)
	require.NoError(t, im.Candles(ctx, strings.NewReader(csv), time.Minute))
	assert.Equal(t, 4, im.Total())

	last, err := store.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), last)

	err = im.Candles(ctx, strings.NewReader("1,2,3\n"), time.Minute)
	assert.Error(t, err)
	err = im.Candles(ctx, strings.NewReader("x,1,1,1,1,1\n1,a,1,1,1,1\n"), time.Minute)
	assert.Error(t, err)
}

func TestImportRejectsMalformedLine(t *testing.T) {
	store := openStore(t)
	im, err := NewImporter(context.Background(), store, domain.DefaultMarketSetting())
	require.NoError(t, err)

	err = im.JSONLines(context.Background(), strings.NewReader("{\"type\":\"heartbeat\"}\n{\"type\":\"trade\"}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yaml")
	doc := `
- at: 2024-03-01T09:00:05Z
  side: BUY
  size: "0.5"
  price: "100"
- at: 2024-03-01T09:00:01Z
  side: sell
  size: 1
  condition: IOC
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	orders, err := LoadSchedule(path)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, domain.Buy, orders[0].Side)
	assert.Equal(t, "0.5", orders[0].Size.String())
	assert.True(t, orders[0].At.Equal(t0.Add(5*time.Second)))
	assert.Equal(t, domain.Sell, orders[1].Side)
	assert.True(t, orders[1].Price.IsZero())
	assert.Equal(t, domain.ImmediateOrCancel, orders[1].Condition)

	r := NewReplayer(nil)
	r.Schedule(orders...)
	assert.Equal(t, domain.Sell, r.schedule[0].Side)

	_, err = LoadSchedule(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
