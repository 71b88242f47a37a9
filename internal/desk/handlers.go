package desk

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/daybook/internal/account"
	"github.com/atmx/daybook/internal/calendar"
	"github.com/atmx/daybook/internal/metrics"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/session"
	"github.com/atmx/daybook/internal/summary"
)

// --- Request/Response types ---

// ConfigRequest is the JSON body for PUT /session/config. Omitted fields
// keep their current value.
type ConfigRequest struct {
	InitialBalance      *decimal.Decimal  `json:"initial_balance"`
	TargetMode          *model.TargetMode `json:"target_mode"`
	DailyTarget         *decimal.Decimal  `json:"daily_target"`
	TargetPercent       *string           `json:"target_percent"`
	Payout              *string           `json:"payout"`
	LockAfterTarget     *bool             `json:"lock_after_target"`
	CarryOver           *bool             `json:"carry_over"`
	RecalcForwardOnSave *bool             `json:"recalc_forward_on_save"`
	TradingDate         *string           `json:"trading_date"`
}

// TradeRequest is the JSON body for POST /session/trades.
type TradeRequest struct {
	Result model.Result `json:"result"`
	Stake  string       `json:"stake"` // optional custom stake; blank uses the suggestion
}

// TradeResponse is returned from POST /session/trades.
type TradeResponse struct {
	Trade   model.Trade      `json:"trade"`
	Session session.Snapshot `json:"session"`
}

// SaveRequest is the JSON body for POST /session/save.
type SaveRequest struct {
	Advance bool `json:"advance"`
}

// SaveResponse is returned when a day is saved or closed.
type SaveResponse struct {
	Summary   model.DaySummary `json:"summary"`
	Rewritten int              `json:"rewritten"`
	Session   session.Snapshot `json:"session"`
}

// SummariesResponse is returned from GET /summaries.
type SummariesResponse struct {
	From   string             `json:"from"`
	To     string             `json:"to"`
	Days   []model.DaySummary `json:"days"`
	Totals summary.Totals     `json:"totals"`
}

// DayCell is a calendar cell joined with the saved day, if any.
type DayCell struct {
	calendar.Cell
	Saved  bool             `json:"saved"`
	PnL    *decimal.Decimal `json:"pnl,omitempty"`
	Trades int              `json:"trades,omitempty"`
}

// CalendarResponse is returned from GET /calendar/{year}/{month}.
type CalendarResponse struct {
	Year   int            `json:"year"`
	Month  int            `json:"month"`
	Prev   string         `json:"prev"` // YYYY/MM
	Next   string         `json:"next"`
	Cells  []DayCell      `json:"cells"`
	Totals summary.Totals `json:"totals"`
}

// SeriesResponse is returned from GET /series.
type SeriesResponse struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Points []summary.Point `json:"points"`
	Totals summary.Totals  `json:"totals"`
}

// --- Session handlers ---

// GetSession handles GET /api/v1/session
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(w, r, func(ws *workspace) {
		writeJSON(w, http.StatusOK, ws.sess.Snapshot())
	})
}

// Configure handles PUT /api/v1/session/config
func (s *Service) Configure(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetMode != nil && *req.TargetMode != model.TargetAmount && *req.TargetMode != model.TargetPercent {
		writeError(w, "target_mode must be amount or percent", http.StatusBadRequest)
		return
	}
	if req.TradingDate != nil && !calendar.Valid(*req.TradingDate) {
		writeError(w, "trading_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	s.withWorkspace(w, r, func(ws *workspace) {
		ws.sess.Configure(req.apply(ws.sess.Config()))
		s.persistOpenDay(r.Context(), ws)
		writeJSON(w, http.StatusOK, ws.sess.Snapshot())
	})
}

func (req ConfigRequest) apply(cfg session.Config) session.Config {
	if req.InitialBalance != nil {
		cfg.InitialBalance = *req.InitialBalance
	}
	if req.TargetMode != nil {
		cfg.TargetMode = *req.TargetMode
	}
	if req.DailyTarget != nil {
		cfg.DailyTarget = *req.DailyTarget
	}
	if req.TargetPercent != nil {
		cfg.TargetPercent = *req.TargetPercent
	}
	if req.Payout != nil {
		cfg.Payout = *req.Payout
	}
	if req.LockAfterTarget != nil {
		cfg.LockAfterTarget = *req.LockAfterTarget
	}
	if req.CarryOver != nil {
		cfg.CarryOver = *req.CarryOver
	}
	if req.RecalcForwardOnSave != nil {
		cfg.RecalcForwardOnSave = *req.RecalcForwardOnSave
	}
	if req.TradingDate != nil {
		cfg.TradingDate = *req.TradingDate
	}
	return cfg
}

// RecordTrade handles POST /api/v1/session/trades
// A stake that is unparseable or not positive leaves the day unchanged and
// returns 422 with the current snapshot.
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Result.Valid() {
		writeError(w, "result must be win or loss", http.StatusBadRequest)
		return
	}

	s.withWorkspace(w, r, func(ws *workspace) {
		trade, ok := ws.sess.RecordOutcome(req.Result, req.Stake)
		if !ok {
			metrics.TradeRejections.Inc()
			writeJSON(w, http.StatusUnprocessableEntity, ws.sess.Snapshot())
			return
		}
		metrics.TradesTotal.WithLabelValues(string(req.Result)).Inc()
		s.persistOpenDay(r.Context(), ws)

		slog.Info("trade recorded",
			"user", ws.userID,
			"seq", trade.Seq,
			"result", trade.Result,
			"stake", trade.Stake.String(),
			"pnl", trade.PnL.String(),
			"balance", trade.Balance.String(),
		)
		writeJSON(w, http.StatusOK, TradeResponse{Trade: trade, Session: ws.sess.Snapshot()})
	})
}

// ResetDay handles POST /api/v1/session/reset
func (s *Service) ResetDay(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(w, r, func(ws *workspace) {
		ws.sess.ResetDay()
		s.persistOpenDay(r.Context(), ws)
		writeJSON(w, http.StatusOK, ws.sess.Snapshot())
	})
}

// HardReset handles POST /api/v1/session/hard-reset
func (s *Service) HardReset(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(w, r, func(ws *workspace) {
		ws.sess.HardReset(s.defaults)
		s.persistOpenDay(r.Context(), ws)
		writeJSON(w, http.StatusOK, ws.sess.Snapshot())
	})
}

// SaveDay handles POST /api/v1/session/save
func (s *Service) SaveDay(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.save(w, r, req.Advance)
}

// CloseDay handles POST /api/v1/session/close
func (s *Service) CloseDay(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, true)
}

func (s *Service) save(w http.ResponseWriter, r *http.Request, advance bool) {
	s.withWorkspace(w, r, func(ws *workspace) {
		recalc := ws.sess.Config().RecalcForwardOnSave
		res := ws.sess.Save(ws.days, advance)
		s.commit(r.Context(), ws, res.Store, res.Summary.Date)

		metrics.DaysSaved.WithLabelValues(strconv.FormatBool(advance)).Inc()
		if recalc {
			metrics.RecalcRewritten.Observe(float64(res.Rewritten))
		}
		slog.Info("day saved",
			"user", ws.userID,
			"date", res.Summary.Date,
			"trades", res.Summary.Trades,
			"pnl", res.Summary.PnL.String(),
			"end_balance", res.Summary.EndBalance.String(),
			"rewritten", res.Rewritten,
			"advance", advance,
		)
		writeJSON(w, http.StatusOK, SaveResponse{
			Summary:   res.Summary,
			Rewritten: res.Rewritten,
			Session:   ws.sess.Snapshot(),
		})
	})
}

// --- Summary handlers ---

// ListSummaries handles GET /api/v1/summaries
// ?filter=all|week|month picks a preset anchored on the trading date;
// explicit from/to override either bound.
func (s *Service) ListSummaries(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(w, r, func(ws *workspace) {
		from, to, ok := bounds(r, ws)
		if !ok {
			writeError(w, "invalid range", http.StatusBadRequest)
			return
		}
		days := ws.days.Range(from, to)
		if days == nil {
			days = []model.DaySummary{}
		}
		writeJSON(w, http.StatusOK, SummariesResponse{
			From:   from,
			To:     to,
			Days:   days,
			Totals: ws.days.Totals(from, to),
		})
	})
}

// bounds resolves the filter/from/to query parameters.
func bounds(r *http.Request, ws *workspace) (from, to string, ok bool) {
	q := r.URL.Query()
	f := summary.Filter(q.Get("filter"))
	switch f {
	case "":
		f = summary.FilterAll
	case summary.FilterAll, summary.FilterWeek, summary.FilterMonth:
	default:
		return "", "", false
	}
	from, to = ws.days.Bounds(f, ws.sess.Config().TradingDate)
	if v := q.Get("from"); v != "" {
		if !calendar.Valid(v) {
			return "", "", false
		}
		from = v
	}
	if v := q.Get("to"); v != "" {
		if !calendar.Valid(v) {
			return "", "", false
		}
		to = v
	}
	return from, to, true
}

// dateParam validates the {date} URL parameter.
func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if !calendar.Valid(date) {
		writeError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}
	return date, true
}

// GetSummary handles GET /api/v1/summaries/{date}
// Opens the day's details.
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	s.withWorkspace(w, r, func(ws *workspace) {
		sum, ok := ws.sess.ViewDetails(date, ws.days)
		if !ok {
			writeError(w, "day not found", http.StatusNotFound)
			return
		}
		s.persistOpenDay(r.Context(), ws)
		writeJSON(w, http.StatusOK, sum)
	})
}

// CloseDetails handles POST /api/v1/details/close
func (s *Service) CloseDetails(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(w, r, func(ws *workspace) {
		ws.sess.CloseDetails()
		s.persistOpenDay(r.Context(), ws)
		writeJSON(w, http.StatusOK, ws.sess.Snapshot())
	})
}

// EditSummary handles POST /api/v1/summaries/{date}/edit
// Reopens a saved day into the session; unsaved trades are discarded.
func (s *Service) EditSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	s.withWorkspace(w, r, func(ws *workspace) {
		if !ws.sess.Edit(date, ws.days) {
			writeError(w, "day not found", http.StatusNotFound)
			return
		}
		s.persistOpenDay(r.Context(), ws)
		slog.Info("day reopened", "user", ws.userID, "date", date)
		writeJSON(w, http.StatusOK, ws.sess.Snapshot())
	})
}

// DeleteSummary handles DELETE /api/v1/summaries/{date}
// Later days keep their balances.
func (s *Service) DeleteSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	s.withWorkspace(w, r, func(ws *workspace) {
		if !ws.days.Has(date) {
			writeError(w, "day not found", http.StatusNotFound)
			return
		}
		s.commit(r.Context(), ws, ws.sess.Delete(ws.days, date), date)
		metrics.DaysDeleted.Inc()
		slog.Info("day deleted", "user", ws.userID, "date", date)
		w.WriteHeader(http.StatusNoContent)
	})
}

// RecalcSummary handles POST /api/v1/summaries/{date}/recalc
// Re-chains every day after date from its closing balance.
func (s *Service) RecalcSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	s.withWorkspace(w, r, func(ws *workspace) {
		if !ws.days.Has(date) {
			writeError(w, "day not found", http.StatusNotFound)
			return
		}
		next, n := summary.RecalcForward(ws.days, date)
		s.commit(r.Context(), ws, next, date)
		metrics.RecalcRewritten.Observe(float64(n))
		slog.Info("recalculated forward", "user", ws.userID, "from", date, "rewritten", n)
		writeJSON(w, http.StatusOK, map[string]int{"rewritten": n})
	})
}

// --- Views ---

// Calendar handles GET /api/v1/calendar/{year}/{month}
func (s *Service) Calendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, "invalid year", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, "invalid month", http.StatusBadRequest)
		return
	}

	s.withWorkspace(w, r, func(ws *workspace) {
		grid := calendar.MonthGrid(year, time.Month(month))
		cells := make([]DayCell, 0, len(grid))
		for _, c := range grid {
			dc := DayCell{Cell: c}
			if day, ok := ws.days.Get(c.ISO); ok {
				pnl := day.PnL
				dc.Saved = true
				dc.PnL = &pnl
				dc.Trades = day.Trades
			}
			cells = append(cells, dc)
		}

		py, pm := calendar.ShiftMonth(year, time.Month(month), -1)
		ny, nm := calendar.ShiftMonth(year, time.Month(month), 1)
		from, to := calendar.MonthRange(monthISO(year, month))
		writeJSON(w, http.StatusOK, CalendarResponse{
			Year:   year,
			Month:  month,
			Prev:   monthPath(py, pm),
			Next:   monthPath(ny, nm),
			Cells:  cells,
			Totals: ws.days.Totals(from, to),
		})
	})
}

func monthISO(year, month int) string {
	return calendar.Format(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
}

func monthPath(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006/01")
}

// Series handles GET /api/v1/series
func (s *Service) Series(w http.ResponseWriter, r *http.Request) {
	s.withWorkspace(w, r, func(ws *workspace) {
		from, to, ok := bounds(r, ws)
		if !ok {
			writeError(w, "invalid range", http.StatusBadRequest)
			return
		}
		points := ws.days.Series(from, to)
		if points == nil {
			points = []summary.Point{}
		}
		writeJSON(w, http.StatusOK, SeriesResponse{
			From:   from,
			To:     to,
			Points: points,
			Totals: ws.days.Totals(from, to),
		})
	})
}

// --- Preferences and sync ---

// GetTheme handles GET /api/v1/preferences/theme
func (s *Service) GetTheme(w http.ResponseWriter, r *http.Request) {
	userID, _ := account.UserID(r.Context())
	t, err := s.local.Theme(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to read theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.Theme{"theme": t})
}

// SetTheme handles PUT /api/v1/preferences/theme
func (s *Service) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme model.Theme `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Theme.Valid() {
		writeError(w, "theme must be dark or light", http.StatusBadRequest)
		return
	}

	userID, _ := account.UserID(r.Context())
	if err := s.local.SetTheme(r.Context(), userID, req.Theme); err != nil {
		writeError(w, "failed to store theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.Theme{"theme": req.Theme})
}

// SyncStatus handles GET /api/v1/sync/status
func (s *Service) SyncStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := account.UserID(r.Context())
	status := model.SyncIdle
	if s.sync != nil {
		status = s.sync.Status(userID)
	}
	writeJSON(w, http.StatusOK, map[string]model.SyncStatus{"status": status})
}
