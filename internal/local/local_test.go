package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/session"
	"github.com/atmx/daybook/internal/summary"
)

func newTestState(t *testing.T) (*State, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "daybook.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st, path
}

func TestThemeDefaultsToLight(t *testing.T) {
	t.Parallel()

	st, _ := newTestState(t)
	theme, err := st.Theme(context.Background(), "local")
	assert.NoError(t, err)
	assert.Equal(t, model.ThemeLight, theme)
}

func TestThemeRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := newTestState(t)

	assert.NoError(t, st.SetTheme(ctx, "local", model.ThemeDark))
	theme, err := st.Theme(ctx, "local")
	assert.NoError(t, err)
	assert.Equal(t, model.ThemeDark, theme)

	assert.Error(t, st.SetTheme(ctx, "local", model.Theme("blue")))

	// Other users are unaffected.
	other, err := st.Theme(ctx, "someone-else")
	assert.NoError(t, err)
	assert.Equal(t, model.ThemeLight, other)
}

func TestSummariesRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, path := newTestState(t)

	empty, err := st.Summaries(ctx, "local")
	assert.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	snap := summary.NewStore(summary.Build("2025-08-01", decimal.NewFromInt(1000), []model.Trade{{
		Seq: 1, Stake: decimal.NewFromInt(50), Payout: decimal.RequireFromString("0.92"),
		Result: model.Win, PnL: decimal.NewFromInt(46), Balance: decimal.NewFromInt(1046),
	}}, decimal.NewFromInt(50), decimal.RequireFromString("0.92")))
	require.NoError(t, st.SaveSummaries(ctx, "local", snap))
	require.NoError(t, st.Close())

	// Reopen from disk.
	st2, err := Open(path)
	require.NoError(t, err)
	defer st2.Close()

	got, err := st2.Summaries(ctx, "local")
	require.NoError(t, err)
	day, ok := got.Get("2025-08-01")
	require.True(t, ok)
	assert.True(t, day.EndBalance.Equal(decimal.NewFromInt(1046)))
	assert.Len(t, day.TradesLog, 1)
	assert.Equal(t, model.Win, day.TradesLog[0].Result)
}

func TestCorruptSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := newTestState(t)

	require.NoError(t, st.Put(ctx, "local", KeySummaries, "{not json"))
	_, err := st.Summaries(ctx, "local")
	assert.Error(t, err)
}

func TestOpenDayAutosave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := newTestState(t)

	_, ok, err := st.OpenDay(ctx, "local")
	assert.NoError(t, err)
	assert.False(t, ok)

	sess := session.New(session.Config{
		InitialBalance: decimal.NewFromInt(1000),
		TargetMode:     model.TargetAmount,
		DailyTarget:    decimal.NewFromInt(50),
		Payout:         "92",
		TradingDate:    "2025-08-01",
	})
	sess.RecordOutcome(model.Win, "50")
	require.NoError(t, st.SaveOpenDay(ctx, "local", sess.Export()))

	od, ok, err := st.OpenDay(ctx, "local")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, od.Trades, 1)
	assert.Equal(t, "2025-08-01", od.Config.TradingDate)

	require.NoError(t, st.Remove(ctx, "local", KeyOpenDay))
	_, ok, _ = st.OpenDay(ctx, "local")
	assert.False(t, ok)
}

func TestUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, _ := newTestState(t)

	require.NoError(t, st.SetTheme(ctx, "b", model.ThemeDark))
	require.NoError(t, st.SetTheme(ctx, "a", model.ThemeDark))
	require.NoError(t, st.SaveSummaries(ctx, "a", summary.Store{}))

	ids, err := st.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
