// Package model defines the core domain types shared across the daybook.
// All monetary values use shopspring/decimal, never float64.
//
// JSON field names of Trade and DaySummary follow the persisted snapshot
// format, so stored snapshots round-trip unchanged.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Result is the outcome of a single binary trade.
type Result string

const (
	Win  Result = "win"
	Loss Result = "loss"
)

// Valid reports whether r is win or loss.
func (r Result) Valid() bool {
	return r == Win || r == Loss
}

// Trade is one recorded outcome within the open trading day.
// Trades are never modified once appended.
type Trade struct {
	Seq     int             `json:"id"`      // 1-based position within the day
	Stake   decimal.Decimal `json:"stake"`   // 2dp
	Payout  decimal.Decimal `json:"payout"`  // payout rate captured at trade time
	Result  Result          `json:"result"`
	PnL     decimal.Decimal `json:"pnl"`     // +stake*payout or -stake, 2dp
	Balance decimal.Decimal `json:"balance"` // running balance after this trade, 2dp
}

// DaySummary is the closed-out record for one calendar date.
// PnL and TradesLog are fixed once saved; StartBalance and EndBalance move
// when an earlier day is edited.
type DaySummary struct {
	Date         string          `json:"date"`
	StartBalance decimal.Decimal `json:"startBalance"`
	EndBalance   decimal.Decimal `json:"endBalance"`
	PnL          decimal.Decimal `json:"pnl"`
	Trades       int             `json:"trades"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	WinRate      decimal.Decimal `json:"winRate"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Payout       decimal.Decimal `json:"payout"`
	TradesLog    []Trade         `json:"tradesLog"`
}

// Clone returns a copy that shares no slice memory with s.
func (s DaySummary) Clone() DaySummary {
	c := s
	if s.TradesLog != nil {
		c.TradesLog = make([]Trade, len(s.TradesLog))
		copy(c.TradesLog, s.TradesLog)
	}
	return c
}

// TargetMode selects how the daily target is expressed.
type TargetMode string

const (
	TargetAmount  TargetMode = "amount"  // absolute currency amount
	TargetPercent TargetMode = "percent" // fraction of the day's initial balance
)

// TargetConfig is the daily profit goal before it is resolved for a day.
type TargetConfig struct {
	Mode    TargetMode      `json:"mode" yaml:"mode"`
	Amount  decimal.Decimal `json:"amount" yaml:"amount"`
	Percent decimal.Decimal `json:"percent" yaml:"percent"` // fraction, 0.03 = 3%
}

// Resolve returns the absolute target for a day starting at initialBalance.
func (c TargetConfig) Resolve(initialBalance decimal.Decimal) decimal.Decimal {
	if c.Mode == TargetPercent {
		return initialBalance.Mul(c.Percent)
	}
	return c.Amount
}

// Profile is the public side of an account.
type Profile struct {
	ID      string `json:"id" db:"id"`
	Email   string `json:"email" db:"email"`
	Name    string `json:"name" db:"name"`
	IsAdmin bool   `json:"is_admin" db:"is_admin"`
}

// User is an account with credentials.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Session is an issued bearer token.
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SyncStatus is the outward-facing state of remote persistence.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncLoading SyncStatus = "loading"
	SyncSaving  SyncStatus = "saving"
	SyncSaved   SyncStatus = "saved"
	SyncError   SyncStatus = "error"
)

// Theme is the stored UI theme preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Valid reports whether t is dark or light.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}
