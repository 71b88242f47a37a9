package desk_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/atmx/daybook/internal/account"
	"github.com/atmx/daybook/internal/cloudsync"
	"github.com/atmx/daybook/internal/desk"
	"github.com/atmx/daybook/internal/local"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/session"
	"github.com/atmx/daybook/internal/store"
	"github.com/atmx/daybook/internal/summary"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func defaults() session.Config {
	return session.Config{
		InitialBalance:      d(1000),
		TargetMode:          model.TargetAmount,
		DailyTarget:         d(50),
		TargetPercent:       "3",
		Payout:              "92",
		LockAfterTarget:     true,
		CarryOver:           true,
		RecalcForwardOnSave: true,
	}
}

type testEnv struct {
	router chi.Router
	local  *local.State
	remote *store.MemoryStore
	sync   *cloudsync.Debouncer
	acc    *account.Service
}

func openLocal(t *testing.T, path string) *local.State {
	t.Helper()
	ls, err := local.Open(path)
	if err != nil {
		t.Fatalf("open local state: %v", err)
	}
	t.Cleanup(func() { ls.Close() })
	return ls
}

// newTestEnv wires a desk service over a temp SQLite file, an in-memory
// remote store and a fast debouncer.
func newTestEnv(t *testing.T, ls *local.State, remote *store.MemoryStore) *testEnv {
	t.Helper()
	if ls == nil {
		ls = openLocal(t, filepath.Join(t.TempDir(), "daybook.db"))
	}
	if remote == nil {
		remote = store.NewMemoryStore()
	}
	sy := cloudsync.NewDebouncer(remote, 5*time.Millisecond, nil)
	acc := account.NewService(remote, bcrypt.MinCost)
	svc := desk.NewService(ls, sy, acc, nil, defaults())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		svc.Routes(r, false)
	})
	return &testEnv{router: r, local: ls, remote: remote, sync: sy, acc: acc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, w.Code, w.Body.String())
	}
}

func (e *testEnv) startDay(t *testing.T, date string) {
	t.Helper()
	w := e.do(t, "PUT", "/api/v1/session/config", map[string]any{"trading_date": date}, "")
	expectCode(t, w, http.StatusOK)
}

func (e *testEnv) trade(t *testing.T, result, stake string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, "POST", "/api/v1/session/trades", desk.TradeRequest{Result: model.Result(result), Stake: stake}, "")
}

// --- Session flow ---

func TestRecordTrade_UsesSuggestion(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.startDay(t, "2024-01-01")

	w := env.trade(t, "win", "")
	expectCode(t, w, http.StatusOK)

	resp := decode[desk.TradeResponse](t, w)
	// remaining 50 / 0.92 = 54.35
	if !resp.Trade.Stake.Equal(d(54.35)) {
		t.Errorf("expected suggested stake 54.35, got %s", resp.Trade.Stake)
	}
	if !resp.Trade.PnL.Equal(d(50)) {
		t.Errorf("expected pnl 50.00, got %s", resp.Trade.PnL)
	}
	if !resp.Session.SuggestedStake.IsZero() {
		t.Errorf("target reached with lock: expected suggestion 0, got %s", resp.Session.SuggestedStake)
	}
}

func TestRecordTrade_RejectedStake(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for _, stake := range []string{"-5", "0", "abc"} {
		w := env.trade(t, "loss", stake)
		expectCode(t, w, http.StatusUnprocessableEntity)
		snap := decode[session.Snapshot](t, w)
		if len(snap.Trades) != 0 {
			t.Errorf("stake %q: expected no trades, got %d", stake, len(snap.Trades))
		}
	}
}

func TestRecordTrade_InvalidResult(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	w := env.trade(t, "draw", "10")
	expectCode(t, w, http.StatusBadRequest)
}

func TestConfigure_Validation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, "PUT", "/api/v1/session/config", map[string]any{"target_mode": "ratio"}, "")
	expectCode(t, w, http.StatusBadRequest)

	w = env.do(t, "PUT", "/api/v1/session/config", map[string]any{"trading_date": "2024-13-01"}, "")
	expectCode(t, w, http.StatusBadRequest)

	w = env.do(t, "PUT", "/api/v1/session/config", map[string]any{
		"target_mode":     "percent",
		"target_percent":  "5%",
		"initial_balance": "2000",
	}, "")
	expectCode(t, w, http.StatusOK)
	snap := decode[session.Snapshot](t, w)
	if !snap.TargetAmount.Equal(d(100)) {
		t.Errorf("expected target 100 (5%% of 2000), got %s", snap.TargetAmount)
	}
	if !snap.Config.CarryOver {
		t.Error("omitted fields should keep their value")
	}
}

func TestResetAndHardReset(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, "PUT", "/api/v1/session/config", map[string]any{"initial_balance": "500", "trading_date": "2024-03-04"}, "")
	env.trade(t, "loss", "10")

	w := env.do(t, "POST", "/api/v1/session/reset", nil, "")
	expectCode(t, w, http.StatusOK)
	snap := decode[session.Snapshot](t, w)
	if len(snap.Trades) != 0 || !snap.StartBalance.Equal(d(500)) {
		t.Errorf("reset: trades=%d start=%s", len(snap.Trades), snap.StartBalance)
	}

	env.trade(t, "loss", "10")
	w = env.do(t, "POST", "/api/v1/session/hard-reset", nil, "")
	expectCode(t, w, http.StatusOK)
	snap = decode[session.Snapshot](t, w)
	if len(snap.Trades) != 0 || !snap.StartBalance.Equal(d(1000)) {
		t.Errorf("hard reset: trades=%d start=%s", len(snap.Trades), snap.StartBalance)
	}
	if snap.Config.TradingDate != "2024-03-04" {
		t.Errorf("hard reset should keep the trading date, got %s", snap.Config.TradingDate)
	}
}

// TestCloseAndEdit walks through closing two days, reopening the first and
// checking the second is re-chained from the new closing balance.
func TestCloseAndEdit(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.startDay(t, "2024-01-01")

	expectCode(t, env.trade(t, "win", "50"), http.StatusOK)
	w := env.do(t, "POST", "/api/v1/session/close", nil, "")
	expectCode(t, w, http.StatusOK)
	saved := decode[desk.SaveResponse](t, w)
	if !saved.Summary.EndBalance.Equal(d(1046)) {
		t.Fatalf("day 1 end: expected 1046, got %s", saved.Summary.EndBalance)
	}
	if saved.Session.Config.TradingDate != "2024-01-02" || !saved.Session.StartBalance.Equal(d(1046)) {
		t.Fatalf("expected carry-over into 2024-01-02 at 1046, got %s at %s",
			saved.Session.Config.TradingDate, saved.Session.StartBalance)
	}

	expectCode(t, env.trade(t, "win", "10"), http.StatusOK)
	expectCode(t, env.do(t, "POST", "/api/v1/session/close", nil, ""), http.StatusOK)

	w = env.do(t, "POST", "/api/v1/summaries/2024-01-01/edit", nil, "")
	expectCode(t, w, http.StatusOK)
	snap := decode[session.Snapshot](t, w)
	if snap.Mode.Kind != session.EditingDay || len(snap.Trades) != 1 {
		t.Fatalf("expected editing mode with 1 trade, got %+v", snap.Mode)
	}

	expectCode(t, env.trade(t, "loss", "50"), http.StatusOK)
	w = env.do(t, "POST", "/api/v1/session/save", desk.SaveRequest{Advance: false}, "")
	expectCode(t, w, http.StatusOK)
	saved = decode[desk.SaveResponse](t, w)
	if !saved.Summary.EndBalance.Equal(d(996)) {
		t.Errorf("day 1 end after edit: expected 996, got %s", saved.Summary.EndBalance)
	}
	if saved.Rewritten != 1 {
		t.Errorf("expected 1 day rewritten, got %d", saved.Rewritten)
	}

	w = env.do(t, "GET", "/api/v1/summaries/2024-01-02", nil, "")
	expectCode(t, w, http.StatusOK)
	day2 := decode[model.DaySummary](t, w)
	if !day2.StartBalance.Equal(d(996)) || !day2.EndBalance.Equal(d(1005.2)) {
		t.Errorf("day 2: expected 996 -> 1005.20, got %s -> %s", day2.StartBalance, day2.EndBalance)
	}
	if !day2.PnL.Equal(d(9.2)) {
		t.Errorf("day 2 pnl must not change, got %s", day2.PnL)
	}
}

// --- Summaries ---

func seedDays(t *testing.T, env *testEnv) {
	t.Helper()
	env.startDay(t, "2024-01-30")
	env.trade(t, "win", "100")
	env.do(t, "POST", "/api/v1/session/close", nil, "")
	env.trade(t, "loss", "20")
	env.do(t, "POST", "/api/v1/session/close", nil, "")
	env.trade(t, "loss", "10")
	env.do(t, "POST", "/api/v1/session/close", nil, "")
}

func TestListSummaries(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	seedDays(t, env)

	w := env.do(t, "GET", "/api/v1/summaries", nil, "")
	expectCode(t, w, http.StatusOK)
	all := decode[desk.SummariesResponse](t, w)
	if len(all.Days) != 3 || all.From != "2024-01-30" || all.To != "2024-02-01" {
		t.Fatalf("all: %d days %s..%s", len(all.Days), all.From, all.To)
	}
	if !all.Totals.PnL.Equal(d(62)) || all.Totals.Trades != 3 || all.Totals.Wins != 1 {
		t.Errorf("totals: %+v", all.Totals)
	}

	// Trading date is now 2024-02-02, so the month preset covers February only.
	w = env.do(t, "GET", "/api/v1/summaries?filter=month", nil, "")
	expectCode(t, w, http.StatusOK)
	month := decode[desk.SummariesResponse](t, w)
	if len(month.Days) != 1 || month.Days[0].Date != "2024-02-01" {
		t.Errorf("month: %+v", month.Days)
	}

	w = env.do(t, "GET", "/api/v1/summaries?from=2024-01-31&to=2024-01-31", nil, "")
	expectCode(t, w, http.StatusOK)
	one := decode[desk.SummariesResponse](t, w)
	if len(one.Days) != 1 || one.Days[0].Date != "2024-01-31" {
		t.Errorf("explicit range: %+v", one.Days)
	}

	expectCode(t, env.do(t, "GET", "/api/v1/summaries?filter=year", nil, ""), http.StatusBadRequest)
	expectCode(t, env.do(t, "GET", "/api/v1/summaries?from=yesterday", nil, ""), http.StatusBadRequest)
}

func TestGetSummary_DetailsMode(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	seedDays(t, env)

	expectCode(t, env.do(t, "GET", "/api/v1/summaries/2024-05-05", nil, ""), http.StatusNotFound)
	expectCode(t, env.do(t, "GET", "/api/v1/summaries/not-a-date", nil, ""), http.StatusBadRequest)

	expectCode(t, env.do(t, "GET", "/api/v1/summaries/2024-01-31", nil, ""), http.StatusOK)
	snap := decode[session.Snapshot](t, env.do(t, "GET", "/api/v1/session", nil, ""))
	if snap.Mode.Kind != session.ViewingDetails || snap.Mode.Date != "2024-01-31" {
		t.Errorf("expected viewing 2024-01-31, got %+v", snap.Mode)
	}

	w := env.do(t, "POST", "/api/v1/details/close", nil, "")
	expectCode(t, w, http.StatusOK)
	if snap := decode[session.Snapshot](t, w); snap.Mode.Kind != session.Idle {
		t.Errorf("expected idle after closing details, got %+v", snap.Mode)
	}
}

func TestDeleteAndRecalc(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	seedDays(t, env)

	expectCode(t, env.do(t, "DELETE", "/api/v1/summaries/2024-01-31", nil, ""), http.StatusNoContent)
	expectCode(t, env.do(t, "DELETE", "/api/v1/summaries/2024-01-31", nil, ""), http.StatusNotFound)

	// Deleting does not re-chain: Feb 1 still starts at the old balance.
	feb := decode[model.DaySummary](t, env.do(t, "GET", "/api/v1/summaries/2024-02-01", nil, ""))
	if !feb.StartBalance.Equal(d(1072)) {
		t.Fatalf("expected untouched start 1072, got %s", feb.StartBalance)
	}

	w := env.do(t, "POST", "/api/v1/summaries/2024-01-30/recalc", nil, "")
	expectCode(t, w, http.StatusOK)
	if n := decode[map[string]int](t, w)["rewritten"]; n != 1 {
		t.Errorf("expected 1 rewritten day, got %d", n)
	}

	feb = decode[model.DaySummary](t, env.do(t, "GET", "/api/v1/summaries/2024-02-01", nil, ""))
	if !feb.StartBalance.Equal(d(1092)) || !feb.EndBalance.Equal(d(1082)) {
		t.Errorf("expected 1092 -> 1082, got %s -> %s", feb.StartBalance, feb.EndBalance)
	}

	expectCode(t, env.do(t, "POST", "/api/v1/summaries/2024-07-01/recalc", nil, ""), http.StatusNotFound)
}

// --- Views ---

func TestCalendar(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	seedDays(t, env)

	w := env.do(t, "GET", "/api/v1/calendar/2024/2", nil, "")
	expectCode(t, w, http.StatusOK)
	cal := decode[desk.CalendarResponse](t, w)

	if len(cal.Cells) != 42 {
		t.Fatalf("expected 42 cells, got %d", len(cal.Cells))
	}
	// Feb 1 2024 is a Thursday; the grid starts on Monday Jan 29.
	if cal.Cells[0].ISO != "2024-01-29" || cal.Cells[0].InMonth {
		t.Errorf("first cell: %+v", cal.Cells[0])
	}
	jan30 := cal.Cells[1]
	if !jan30.Saved || jan30.PnL == nil || !jan30.PnL.Equal(d(92)) {
		t.Errorf("jan 30 cell: %+v", jan30)
	}
	feb1 := cal.Cells[3]
	if !feb1.InMonth || !feb1.Saved || !feb1.PnL.Equal(d(-10)) {
		t.Errorf("feb 1 cell: %+v", feb1)
	}
	if cal.Cells[4].Saved {
		t.Error("feb 2 should not be saved")
	}
	if cal.Prev != "2024/01" || cal.Next != "2024/03" {
		t.Errorf("navigation: prev=%s next=%s", cal.Prev, cal.Next)
	}
	if cal.Totals.Days != 1 {
		t.Errorf("month totals should cover February only, got %d days", cal.Totals.Days)
	}

	expectCode(t, env.do(t, "GET", "/api/v1/calendar/2024/13", nil, ""), http.StatusBadRequest)
	expectCode(t, env.do(t, "GET", "/api/v1/calendar/x/1", nil, ""), http.StatusBadRequest)
}

func TestSeries(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	seedDays(t, env)

	w := env.do(t, "GET", "/api/v1/series", nil, "")
	expectCode(t, w, http.StatusOK)
	s := decode[desk.SeriesResponse](t, w)
	if len(s.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(s.Points))
	}
	if s.Points[0].Date != "01-30" || !s.Points[2].EndBalance.Equal(d(1062)) {
		t.Errorf("points: %+v", s.Points)
	}
}

// --- Preferences ---

func TestTheme(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	got := decode[map[string]string](t, env.do(t, "GET", "/api/v1/preferences/theme", nil, ""))
	if got["theme"] != "light" {
		t.Errorf("default theme: %q", got["theme"])
	}

	expectCode(t, env.do(t, "PUT", "/api/v1/preferences/theme", map[string]string{"theme": "dark"}, ""), http.StatusOK)
	got = decode[map[string]string](t, env.do(t, "GET", "/api/v1/preferences/theme", nil, ""))
	if got["theme"] != "dark" {
		t.Errorf("stored theme: %q", got["theme"])
	}

	expectCode(t, env.do(t, "PUT", "/api/v1/preferences/theme", map[string]string{"theme": "blue"}, ""), http.StatusBadRequest)
}

// --- Persistence ---

func TestWorkspace_RestoredFromLocalState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daybook.db")
	ls := openLocal(t, path)

	first := newTestEnv(t, ls, nil)
	first.startDay(t, "2024-06-03")
	expectCode(t, first.trade(t, "loss", "25"), http.StatusOK)

	// A fresh service over the same file sees the autosaved open day.
	second := newTestEnv(t, ls, nil)
	snap := decode[session.Snapshot](t, second.do(t, "GET", "/api/v1/session", nil, ""))
	if len(snap.Trades) != 1 || !snap.Balance.Equal(d(975)) {
		t.Errorf("expected restored trade and balance 975, got %d trades at %s", len(snap.Trades), snap.Balance)
	}
	if snap.Config.TradingDate != "2024-06-03" {
		t.Errorf("expected trading date 2024-06-03, got %s", snap.Config.TradingDate)
	}
}

func TestWorkspace_RemoteSnapshotWins(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemoryStore()
	day := model.DaySummary{
		Date:         "2023-12-29",
		StartBalance: d(800),
		EndBalance:   d(820),
		PnL:          d(20),
		Trades:       1,
		Wins:         1,
		WinRate:      d(100),
	}
	if err := remote.SaveSummaries(ctx, account.AnonymousUser, summary.NewStore(day)); err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t, nil, remote)
	w := env.do(t, "GET", "/api/v1/summaries", nil, "")
	expectCode(t, w, http.StatusOK)
	resp := decode[desk.SummariesResponse](t, w)
	if len(resp.Days) != 1 || resp.Days[0].Date != "2023-12-29" {
		t.Fatalf("expected remote day, got %+v", resp.Days)
	}

	// The remote snapshot is mirrored into local state.
	mirrored, err := env.local.Summaries(ctx, account.AnonymousUser)
	if err != nil {
		t.Fatal(err)
	}
	if !mirrored.Has("2023-12-29") {
		t.Error("remote snapshot was not written locally")
	}
}

func TestSave_SyncedToRemote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)
	env.startDay(t, "2024-04-01")
	env.trade(t, "win", "10")
	expectCode(t, env.do(t, "POST", "/api/v1/session/close", nil, ""), http.StatusOK)

	env.sync.Flush(ctx)

	snap, err := env.remote.LoadSummaries(ctx, account.AnonymousUser)
	if err != nil {
		t.Fatalf("remote snapshot: %v", err)
	}
	if !snap.Has("2024-04-01") {
		t.Error("saved day not synced")
	}

	status := decode[map[string]string](t, env.do(t, "GET", "/api/v1/sync/status", nil, ""))
	if status["status"] != string(model.SyncSaved) {
		t.Errorf("expected saved status, got %q", status["status"])
	}
}

// gatedSyncer holds Load for one user until release is closed.
type gatedSyncer struct {
	*cloudsync.Debouncer
	user    string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedSyncer) Load(ctx context.Context, userID string) (summary.Store, bool, error) {
	if userID == g.user {
		g.once.Do(func() { close(g.started) })
		<-g.release
	}
	return g.Debouncer.Load(ctx, userID)
}

// flakySyncer fails the first Load and delegates afterwards.
type flakySyncer struct {
	*cloudsync.Debouncer
	mu    sync.Mutex
	calls int
}

func (f *flakySyncer) Load(ctx context.Context, userID string) (summary.Store, bool, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		return summary.Store{}, false, errors.New("remote unavailable")
	}
	return f.Debouncer.Load(ctx, userID)
}

func newRouter(ls *local.State, sy desk.Syncer, acc *account.Service) chi.Router {
	svc := desk.NewService(ls, sy, acc, nil, defaults())
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		svc.Routes(r, false)
	})
	return r
}

func TestWorkspace_SlowRemoteLoadIsolated(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemoryStore()
	acc := account.NewService(remote, bcrypt.MinCost)
	if _, err := acc.Create(ctx, account.NewUser{Email: "alice@x.io", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	alice, err := acc.SignIn(ctx, "alice@x.io", "pw")
	if err != nil {
		t.Fatal(err)
	}

	gate := &gatedSyncer{
		Debouncer: cloudsync.NewDebouncer(remote, 5*time.Millisecond, nil),
		user:      alice.UserID,
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	env := &testEnv{
		router: newRouter(openLocal(t, filepath.Join(t.TempDir(), "daybook.db")), gate, acc),
		remote: remote,
	}

	aliceDone := make(chan int, 1)
	go func() {
		aliceDone <- env.do(t, "GET", "/api/v1/session", nil, alice.Token).Code
	}()

	select {
	case <-gate.started:
	case <-time.After(2 * time.Second):
		t.Fatal("alice's remote load never started")
	}

	// The anonymous user is served while alice's load is still blocked.
	otherDone := make(chan int, 1)
	go func() {
		otherDone <- env.do(t, "GET", "/api/v1/session", nil, "").Code
	}()
	select {
	case code := <-otherDone:
		if code != http.StatusOK {
			t.Errorf("expected 200 for other user, got %d", code)
		}
	case <-time.After(time.Second):
		close(gate.release)
		t.Fatal("other user blocked behind alice's remote load")
	}

	close(gate.release)
	select {
	case code := <-aliceDone:
		if code != http.StatusOK {
			t.Errorf("expected 200 for alice, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alice's request never finished")
	}
}

func TestWorkspace_RemoteLoadRetriedAfterFailure(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemoryStore()
	day := model.DaySummary{Date: "2024-02-05", StartBalance: d(900), EndBalance: d(930), PnL: d(30), Trades: 1, Wins: 1, WinRate: d(100)}
	if err := remote.SaveSummaries(ctx, account.AnonymousUser, summary.NewStore(day)); err != nil {
		t.Fatal(err)
	}

	sy := &flakySyncer{Debouncer: cloudsync.NewDebouncer(remote, 5*time.Millisecond, nil)}
	env := &testEnv{
		router: newRouter(openLocal(t, filepath.Join(t.TempDir(), "daybook.db")), sy, account.NewService(remote, bcrypt.MinCost)),
		remote: remote,
	}

	first := decode[desk.SummariesResponse](t, env.do(t, "GET", "/api/v1/summaries", nil, ""))
	if len(first.Days) != 0 {
		t.Fatalf("expected local-only view after failed load, got %+v", first.Days)
	}

	second := decode[desk.SummariesResponse](t, env.do(t, "GET", "/api/v1/summaries", nil, ""))
	if len(second.Days) != 1 || second.Days[0].Date != "2024-02-05" {
		t.Fatalf("expected remote day once load succeeds, got %+v", second.Days)
	}
}

// --- Accounts ---

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, "POST", "/api/v1/auth/signup", desk.CredentialsRequest{Email: "ana@x.io", Password: "pw"}, "")
	expectCode(t, w, http.StatusCreated)
	expectCode(t, env.do(t, "POST", "/api/v1/auth/signup", desk.CredentialsRequest{Email: "ana@x.io", Password: "pw"}, ""), http.StatusBadRequest)

	expectCode(t, env.do(t, "POST", "/api/v1/auth/signin", desk.CredentialsRequest{Email: "ana@x.io", Password: "no"}, ""), http.StatusUnauthorized)
	w = env.do(t, "POST", "/api/v1/auth/signin", desk.CredentialsRequest{Email: "ana@x.io", Password: "pw"}, "")
	expectCode(t, w, http.StatusOK)
	token := decode[map[string]string](t, w)["token"]

	// Authenticated users get their own workspace.
	env.do(t, "PUT", "/api/v1/session/config", map[string]any{"trading_date": "2024-01-01"}, token)
	env.do(t, "POST", "/api/v1/session/trades", desk.TradeRequest{Result: model.Win, Stake: "10"}, token)
	anon := decode[session.Snapshot](t, env.do(t, "GET", "/api/v1/session", nil, ""))
	if len(anon.Trades) != 0 {
		t.Error("anonymous workspace should be separate")
	}

	expectCode(t, env.do(t, "POST", "/api/v1/auth/signout", nil, token), http.StatusNoContent)
	expectCode(t, env.do(t, "GET", "/api/v1/session", nil, token), http.StatusUnauthorized)
}

func TestCreateUser_AdminOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil)

	if err := env.acc.Bootstrap(ctx, "root@x.io", "pw"); err != nil {
		t.Fatal(err)
	}
	env.acc.Create(ctx, account.NewUser{Email: "joe@x.io", Password: "pw"})
	adminSess, _ := env.acc.SignIn(ctx, "root@x.io", "pw")
	joeSess, _ := env.acc.SignIn(ctx, "joe@x.io", "pw")

	newUser := account.NewUser{Email: "new@x.io", Password: "pw", Name: "New"}

	tests := []struct {
		name  string
		token string
		body  account.NewUser
		code  int
	}{
		{"missing token", "", newUser, http.StatusUnauthorized},
		{"invalid token", "bogus", newUser, http.StatusUnauthorized},
		{"not admin", joeSess.Token, newUser, http.StatusForbidden},
		{"missing password", adminSess.Token, account.NewUser{Email: "x@x.io"}, http.StatusBadRequest},
		{"created", adminSess.Token, newUser, http.StatusOK},
		{"duplicate", adminSess.Token, newUser, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/admin/users", tt.body, tt.token)
			expectCode(t, w, tt.code)
			if tt.code == http.StatusOK {
				resp := decode[map[string]any](t, w)
				if resp["ok"] != true || resp["user_id"] == "" {
					t.Errorf("unexpected response %v", resp)
				}
			}
		})
	}

	expectCode(t, env.do(t, "GET", "/api/v1/admin/users", nil, adminSess.Token), http.StatusMethodNotAllowed)
}
