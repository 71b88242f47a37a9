// Package session is the explicit state machine around the open trading day.
//
// A Session owns the trading configuration, the open ledger and a Mode
// (Idle, EditingDay, ViewingDetails). It never holds the summary store:
// operations that change days take a summary.Store and return a new one,
// leaving persistence to the caller.
package session

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/calendar"
	"github.com/atmx/daybook/internal/ledger"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/money"
	"github.com/atmx/daybook/internal/summary"
)

// ModeKind enumerates the session modes.
type ModeKind string

const (
	Idle           ModeKind = "idle"
	EditingDay     ModeKind = "editing"
	ViewingDetails ModeKind = "viewing"
)

// Mode is the current mode and, for editing/viewing, the day it refers to.
type Mode struct {
	Kind ModeKind `json:"kind"`
	Date string   `json:"date,omitempty"`
}

// Config is the user-editable trading setup. Percent fields keep the raw
// user input and are parsed with money.ParsePercent when used.
type Config struct {
	InitialBalance      decimal.Decimal  `json:"initial_balance" yaml:"initial_balance"`
	TargetMode          model.TargetMode `json:"target_mode" yaml:"target_mode"`
	DailyTarget         decimal.Decimal  `json:"daily_target" yaml:"daily_target"`
	TargetPercent       string           `json:"target_percent" yaml:"target_percent"`
	Payout              string           `json:"payout" yaml:"payout"`
	LockAfterTarget     bool             `json:"lock_after_target" yaml:"lock_after_target"`
	CarryOver           bool             `json:"carry_over" yaml:"carry_over"`
	RecalcForwardOnSave bool             `json:"recalc_forward_on_save" yaml:"recalc_forward_on_save"`
	TradingDate         string           `json:"trading_date" yaml:"-"`
}

// PayoutRate is the parsed payout fraction.
func (c Config) PayoutRate() decimal.Decimal {
	return money.ParsePercent(c.Payout)
}

// Target returns the unresolved target configuration.
func (c Config) Target() model.TargetConfig {
	return model.TargetConfig{
		Mode:    c.TargetMode,
		Amount:  c.DailyTarget,
		Percent: money.ParsePercent(c.TargetPercent),
	}
}

// TargetAmount resolves the daily target against the initial balance.
func (c Config) TargetAmount() decimal.Decimal {
	return c.Target().Resolve(c.InitialBalance)
}

func (c Config) params() ledger.Params {
	return ledger.Params{
		TargetAmount:    c.TargetAmount(),
		Payout:          c.PayoutRate(),
		LockAfterTarget: c.LockAfterTarget,
	}
}

// Session is the open trading day of one user. It is not safe for
// concurrent use; callers serialise access.
type Session struct {
	cfg    Config
	ledger *ledger.Ledger
	mode   Mode
}

// New opens an idle session with an empty ledger.
func New(cfg Config) *Session {
	return &Session{
		cfg:    cfg,
		ledger: ledger.New(cfg.InitialBalance, cfg.params()),
		mode:   Mode{Kind: Idle},
	}
}

// Config returns the current configuration.
func (s *Session) Config() Config { return s.cfg }

// Mode returns the current mode.
func (s *Session) Mode() Mode { return s.mode }

// Configure replaces the configuration. Recorded trades are kept; the new
// start balance and advisor inputs apply from the next trade on.
func (s *Session) Configure(cfg Config) {
	s.cfg = cfg
	s.ledger.SetStartBalance(cfg.InitialBalance)
	s.ledger.SetParams(cfg.params())
}

// RecordOutcome appends a trade. stakeInput is the optional custom stake
// field: blank uses the advisor's suggestion, anything unparseable or not
// positive rejects the trade.
func (s *Session) RecordOutcome(result model.Result, stakeInput string) (model.Trade, bool) {
	var override decimal.NullDecimal
	if in := strings.TrimSpace(stakeInput); in != "" {
		v, ok := money.ParseAmount(in)
		if !ok {
			return model.Trade{}, false
		}
		override = decimal.NewNullDecimal(v)
	}
	return s.ledger.RecordOutcome(result, override)
}

// ResetDay discards the open day's trades.
func (s *Session) ResetDay() {
	s.ledger.Reset()
}

// HardReset discards the trades and restores the trading setup from
// defaults. The trading date and the carry-over/recalc toggles are kept.
func (s *Session) HardReset(defaults Config) {
	cfg := s.cfg
	cfg.InitialBalance = defaults.InitialBalance
	cfg.DailyTarget = defaults.DailyTarget
	cfg.TargetMode = defaults.TargetMode
	cfg.TargetPercent = defaults.TargetPercent
	cfg.Payout = defaults.Payout
	cfg.LockAfterTarget = defaults.LockAfterTarget
	s.ledger.Reset()
	s.Configure(cfg)
}

// SaveResult is the outcome of saving the open day.
type SaveResult struct {
	Store     summary.Store
	Summary   model.DaySummary
	Rewritten int // later days re-chained by forward recalculation
}

// Save closes the open ledger into a summary for the trading date and
// upserts it into store, re-chaining later days when RecalcForwardOnSave is
// set. The ledger is cleared and the session returns to Idle. With advance
// the trading date moves to the next day and, when CarryOver is set, the
// closing balance becomes the next initial balance.
func (s *Session) Save(store summary.Store, advance bool) SaveResult {
	date := s.cfg.TradingDate
	sum := summary.FromLedger(date, s.ledger)

	next := store.Upsert(sum)
	rewritten := 0
	if s.cfg.RecalcForwardOnSave {
		next, rewritten = summary.RecalcForward(next, date)
	}

	s.ledger.Reset()
	s.mode = Mode{Kind: Idle}

	if advance {
		cfg := s.cfg
		if cfg.CarryOver {
			cfg.InitialBalance = sum.EndBalance
		}
		cfg.TradingDate = calendar.AddDays(date, 1)
		s.Configure(cfg)
	}

	return SaveResult{Store: next, Summary: sum, Rewritten: rewritten}
}

// Close saves the open day and advances to the next one.
func (s *Session) Close(store summary.Store) SaveResult {
	return s.Save(store, true)
}

// Seed is what a saved day contributes when reopened for editing.
type Seed struct {
	Date         string
	StartBalance decimal.Decimal
	Trades       []model.Trade
}

// OpenForEditing looks up date in store and returns the ledger seed for it.
// It reports false when the day does not exist.
func OpenForEditing(date string, store summary.Store) (Seed, bool) {
	sum, ok := store.Get(date)
	if !ok {
		return Seed{}, false
	}
	return Seed{Date: date, StartBalance: sum.StartBalance, Trades: sum.TradesLog}, true
}

// Reopen loads a saved day into the session for editing. Unsaved trades of
// the previous open day are discarded.
func (s *Session) Reopen(seed Seed) {
	cfg := s.cfg
	cfg.TradingDate = seed.Date
	cfg.InitialBalance = seed.StartBalance
	s.Configure(cfg)
	s.ledger.Seed(seed.Trades)
	s.mode = Mode{Kind: EditingDay, Date: seed.Date}
}

// Edit reopens date from store. It reports false, leaving the session
// untouched, when the day does not exist.
func (s *Session) Edit(date string, store summary.Store) bool {
	seed, ok := OpenForEditing(date, store)
	if !ok {
		return false
	}
	s.Reopen(seed)
	return true
}

// ViewDetails enters ViewingDetails for an existing day.
func (s *Session) ViewDetails(date string, store summary.Store) (model.DaySummary, bool) {
	sum, ok := store.Get(date)
	if !ok {
		return model.DaySummary{}, false
	}
	s.mode = Mode{Kind: ViewingDetails, Date: date}
	return sum, true
}

// CloseDetails leaves ViewingDetails.
func (s *Session) CloseDetails() {
	if s.mode.Kind == ViewingDetails {
		s.mode = Mode{Kind: Idle}
	}
}

// Delete removes date from store. Later days keep their balances; callers
// that want them re-chained run summary.RecalcForward explicitly.
func (s *Session) Delete(store summary.Store, date string) summary.Store {
	if s.mode.Date == date {
		s.mode = Mode{Kind: Idle}
	}
	return store.Delete(date)
}

// Snapshot is a read-only view of the open day.
type Snapshot struct {
	Config          Config          `json:"config"`
	Mode            Mode            `json:"mode"`
	StartBalance    decimal.Decimal `json:"start_balance"`
	Balance         decimal.Decimal `json:"balance"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	DayPercent      decimal.Decimal `json:"day_percent"`
	Trades          []model.Trade   `json:"trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         decimal.Decimal `json:"win_rate"`
	Payout          decimal.Decimal `json:"payout"`
	TargetAmount    decimal.Decimal `json:"target_amount"`
	RemainingTarget decimal.Decimal `json:"remaining_target"`
	SuggestedStake  decimal.Decimal `json:"suggested_stake"`
	CycleLoss       decimal.Decimal `json:"cycle_loss"`
}

// Snapshot returns the current view of the open day.
func (s *Session) Snapshot() Snapshot {
	l := s.ledger
	realized := l.RealizedPnL()
	return Snapshot{
		Config:          s.cfg,
		Mode:            s.mode,
		StartBalance:    l.StartBalance(),
		Balance:         l.CurrentBalance(),
		RealizedPnL:     realized,
		DayPercent:      money.Percent(realized, s.cfg.InitialBalance),
		Trades:          l.Trades(),
		Wins:            l.Wins(),
		Losses:          l.Losses(),
		WinRate:         money.Percent(decimal.NewFromInt(int64(l.Wins())), decimal.NewFromInt(int64(l.Len()))),
		Payout:          l.Params().Payout,
		TargetAmount:    l.Params().TargetAmount,
		RemainingTarget: l.RemainingTarget(),
		SuggestedStake:  l.SuggestedStake(),
		CycleLoss:       l.CycleLossStreak(),
	}
}

// OpenDay is the serialisable open-day state used for crash-recovery
// autosaves.
type OpenDay struct {
	Config Config        `json:"config"`
	Mode   Mode          `json:"mode"`
	Trades []model.Trade `json:"trades"`
}

// Export captures the open day.
func (s *Session) Export() OpenDay {
	return OpenDay{Config: s.cfg, Mode: s.mode, Trades: s.ledger.Trades()}
}

// Restore rebuilds a session from an autosave.
func Restore(od OpenDay) *Session {
	s := New(od.Config)
	s.ledger.Seed(od.Trades)
	if od.Mode.Kind != "" {
		s.mode = od.Mode
	}
	return s
}
