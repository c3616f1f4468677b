package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/log/level"

	"github.com/piwi3910/PressQuote/internal/costing"
	"github.com/piwi3910/PressQuote/internal/engine"
	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates/fallback"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type quotesResponse struct {
	Breakdowns []costing.Breakdown `json:"breakdowns"`
}

type layoutRequest struct {
	Paper    model.PaperSize `json:"paper"`
	Job      model.JobSize   `json:"job"`
	Rotation model.Rotation  `json:"rotation"`
}

type compareRequest struct {
	Job      model.JobSize           `json:"job"`
	Rotation model.Rotation          `json:"rotation"`
	Papers   []engine.PaperCandidate `json:"papers,omitempty"` // empty means the standard sizes
}

type compareResponse struct {
	Results []engine.ComparisonResult `json:"results"`
}

// overrideRequest edits one line item of a breakdown the client already holds.
// Reset restores the computed amount instead of setting Amount.
type overrideRequest struct {
	Breakdown costing.Breakdown `json:"breakdown"`
	Item      string            `json:"item"`
	Amount    float64           `json:"amount"`
	Reset     bool              `json:"reset"`
}

// settingsResponse is the pricing configuration plus the finishing sizes
// that have built-in default rates.
type settingsResponse struct {
	Pricing     model.Settings `json:"pricing"`
	FinishSizes []string       `json:"finish_sizes"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Uptime: time.Since(s.startTime).Round(time.Second).String()}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			resp.Status, resp.Error = "unavailable", err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{Pricing: s.calc.Settings(), FinishSizes: fallback.FinishSizes()})
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var req model.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.metrics.quotes.WithLabelValues(outcomeInvalid).Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	breakdowns, err := s.calc.CalculateQuotes(r.Context(), req)
	s.metrics.quoteTime.Observe(time.Since(start).Seconds())

	var verr *costing.ValidationError
	switch {
	case err == nil:
		s.metrics.quotes.WithLabelValues(outcomeOK).Inc()
		s.metrics.breakdowns.Add(float64(len(breakdowns)))
		writeJSON(w, http.StatusOK, quotesResponse{Breakdowns: breakdowns})
	case errors.As(err, &verr):
		s.metrics.quotes.WithLabelValues(outcomeInvalid).Inc()
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, costing.ErrPlacementInfeasible):
		s.metrics.quotes.WithLabelValues(outcomeInfeasible).Inc()
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Field: costing.FieldPlacement})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.metrics.quotes.WithLabelValues(outcomeError).Inc()
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.metrics.quotes.WithLabelValues(outcomeError).Inc()
		level.Error(s.logger).Log("msg", "quote failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to calculate quote"})
	}
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, engine.ComputeLayoutWith(req.Paper, req.Job, req.Rotation))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !req.Job.Defined() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "job width and height are required", Field: costing.FieldDimensions})
		return
	}
	papers := req.Papers
	if len(papers) == 0 {
		papers = engine.StandardPapers()
	}
	writeJSON(w, http.StatusOK, compareResponse{Results: engine.ComparePapers(req.Job, req.Rotation, papers)})
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	b := req.Breakdown.Clone()
	if err := b.Check(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: "breakdown"})
		return
	}
	action := "override"
	var err error
	if req.Reset {
		action = "reset"
		err = b.Reset(req.Item)
	} else {
		err = b.Override(req.Item, req.Amount)
	}
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, costing.ErrUnknownItem) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Field: req.Item})
		return
	}

	s.metrics.overrides.WithLabelValues(req.Item, action).Inc()
	writeJSON(w, http.StatusOK, b)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
