// Package api is the HTTP boundary over the service facade. It is kept
// deliberately thin: handlers marshal service results and map the
// unconfigured-vendor state to 503.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradecoach/internal/coach"
	"tradecoach/internal/journal"
	"tradecoach/internal/model"
	"tradecoach/internal/service"
)

// StatsProvider derives behavioral counters for the evaluation context.
// *journal.Journal satisfies it.
type StatsProvider interface {
	StatsFor(ctx context.Context, t time.Time) (journal.DailyStats, error)
}

// History lists recorded decisions for review. *journal.Journal satisfies it.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.DecisionRecord, error)
}

// Deps are the handlers' collaborators. Everything but Service is
// optional; missing ones disable or degrade the coaching endpoints.
type Deps struct {
	Service *service.Service
	Coach   *coach.Engine
	Breadth model.BreadthSource
	Journal model.DecisionJournal
	Stats   StatsProvider
	History History
}

// NewRouter builds the HTTP mux.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	h := &handlers{d}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/quote/", h.configured(h.quote))
	mux.HandleFunc("/api/v1/aggregates/", h.configured(h.aggregates))
	mux.HandleFunc("/api/v1/levels/", h.configured(h.levels))
	mux.HandleFunc("/api/v1/mtf/", h.configured(h.mtf))
	mux.HandleFunc("/api/v1/ltp/", h.configured(h.ltp))
	mux.HandleFunc("/api/v1/fvg/", h.configured(h.fvgs))
	mux.HandleFunc("/api/v1/snapshot/", h.configured(h.snapshot))
	mux.HandleFunc("/api/v1/options/", h.configured(h.options))
	mux.HandleFunc("/api/v1/market-status", h.configured(h.marketStatus))
	mux.HandleFunc("/api/v1/evaluate", h.evaluate)
	mux.HandleFunc("/api/v1/evaluate/outcome", h.outcome)
	mux.HandleFunc("/api/v1/journal", h.journalRecent)
	mux.HandleFunc("/api/v1/warnings", h.warnings)

	return mux
}

type handlers struct {
	Deps
}

// configured wraps data handlers with the unconfigured-vendor gate: a
// missing API key is a service state, not an error, and surfaces as 503.
func (h *handlers) configured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.Service.IsConfigured() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "market data service not configured",
			})
			return
		}
		next(w, r)
	}
}

func (h *handlers) quote(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r.URL.Path)
	if sym == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol required"})
		return
	}
	q := h.Service.GetQuote(r.Context(), sym)
	if q == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handlers) aggregates(w http.ResponseWriter, r *http.Request) {
	sym := symbolParam(r.URL.Path)
	if sym == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "symbol required"})
		return
	}
	timespan := r.URL.Query().Get("timespan")
	if timespan == "" {
		timespan = "minute"
	}
	multiplier := queryInt(r, "multiplier", 5)
	limit := queryInt(r, "limit", 60)

	from, to, hasRange := queryRange(r)
	var bars []model.Bar
	if hasRange {
		bars = h.Service.GetHistoricalBars(r.Context(), sym, from, to, timespan, multiplier)
	} else {
		bars = h.Service.GetAggregates(r.Context(), sym, timespan, multiplier, limit)
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	writeJSON(w, http.StatusOK, bars)
}

func (h *handlers) levels(w http.ResponseWriter, r *http.Request) {
	levels := h.Service.GetKeyLevels(r.Context(), symbolParam(r.URL.Path))
	if levels == nil {
		levels = []model.KeyLevel{}
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *handlers) mtf(w http.ResponseWriter, r *http.Request) {
	mtf := h.Service.GetMTFAnalysis(r.Context(), symbolParam(r.URL.Path))
	if mtf == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "insufficient data"})
		return
	}
	writeJSON(w, http.StatusOK, mtf)
}

func (h *handlers) ltp(w http.ResponseWriter, r *http.Request) {
	ltp := h.Service.GetLTPAnalysis(r.Context(), symbolParam(r.URL.Path))
	if ltp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "insufficient data"})
		return
	}
	writeJSON(w, http.StatusOK, ltp)
}

func (h *handlers) fvgs(w http.ResponseWriter, r *http.Request) {
	minGap := queryFloat(r, "minGapPercent", 0)
	a := h.Service.GetFVGAnalysis(r.Context(), symbolParam(r.URL.Path), minGap)
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.Service.GetSnapshot(r.Context(), symbolParam(r.URL.Path))
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) options(w http.ResponseWriter, r *http.Request) {
	chain := h.Service.GetOptionsChain(r.Context(), symbolParam(r.URL.Path))
	writeJSON(w, http.StatusOK, chain)
}

func (h *handlers) marketStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": h.Service.GetMarketStatus(r.Context()),
	})
}

// EvaluateRequest is the trade-evaluation payload. Behavioral context not
// derivable from the journal comes from the caller.
type EvaluateRequest struct {
	Intent          model.TradeIntent `json:"intent"`
	MentalCapital   int               `json:"mentalCapital"`
	KnownWeaknesses []string          `json:"knownWeaknesses"`
}

// EvaluateResponse is the verdict plus the journal id of the recorded
// decision, for attaching an outcome later.
type EvaluateResponse struct {
	model.InterventionResult
	DecisionID string `json:"decisionId,omitempty"`
}

func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	if h.Coach == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "coaching not configured"})
		return
	}
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Intent.Symbol == "" || req.Intent.Direction == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "intent symbol and direction required"})
		return
	}

	ictx := &coach.InterventionContext{
		Intent:          req.Intent,
		MentalCapital:   req.MentalCapital,
		KnownWeaknesses: req.KnownWeaknesses,
	}
	if h.Breadth != nil {
		if mb, ok := h.Breadth.Latest(r.Context()); ok {
			ictx.Breadth = mb
		}
		ictx.Events = h.Breadth.TodayEvents(r.Context())
	}
	if h.Stats != nil {
		if stats, err := h.Stats.StatsFor(r.Context(), time.Now()); err == nil {
			ictx.DailyTradeCount = stats.TradeCount
			ictx.ConsecutiveLosses = stats.ConsecutiveLosses
			ictx.DailyLossPct = stats.LossPct
		}
	}

	result := h.Coach.Evaluate(ictx)
	resp := EvaluateResponse{InterventionResult: result}
	if h.Journal != nil {
		// Recording failure never blocks the decision response; the caller
		// just gets no id to attach an outcome to.
		if id, err := h.Journal.Record(r.Context(), req.Intent, result); err == nil {
			resp.DecisionID = id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// OutcomeRequest attaches a realized P&L to a recorded decision.
type OutcomeRequest struct {
	DecisionID string  `json:"decisionId"`
	PnL        float64 `json:"pnl"`
	PnLPct     float64 `json:"pnlPct"`
}

// outcome closes the coaching loop: recorded outcomes drive the
// journal-derived loss counters on subsequent evaluations.
func (h *handlers) outcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	if h.Journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal not configured"})
		return
	}
	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DecisionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decisionId required"})
		return
	}
	if err := h.Journal.RecordOutcome(r.Context(), req.DecisionID, req.PnL, req.PnLPct, time.Now()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "outcome not recorded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *handlers) journalRecent(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal not configured"})
		return
	}
	recs, err := h.History.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
		return
	}
	if recs == nil {
		recs = []journal.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handlers) warnings(w http.ResponseWriter, r *http.Request) {
	ws := []model.ProactiveWarning{}
	if h.Breadth != nil {
		if got := h.Breadth.Warnings(r.Context()); got != nil {
			ws = got
		}
	}
	writeJSON(w, http.StatusOK, ws)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// symbolParam pulls the uppercased symbol from /api/v1/<op>/<symbol>
// paths. Empty means the route was hit without a symbol.
func symbolParam(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[3] == "" {
		return ""
	}
	return strings.ToUpper(parts[3])
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func queryFloat(r *http.Request, name string, def float64) float64 {
	if v := r.URL.Query().Get(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func queryRange(r *http.Request) (from, to time.Time, ok bool) {
	f := r.URL.Query().Get("from")
	t := r.URL.Query().Get("to")
	if f == "" || t == "" {
		return time.Time{}, time.Time{}, false
	}
	from, errF := time.Parse("2006-01-02", f)
	to, errT := time.Parse("2006-01-02", t)
	if errF != nil || errT != nil {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
