package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PressQuote/internal/costing"
	"github.com/piwi3910/PressQuote/internal/engine"
	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/rates"
)

const quoteBody = `{
	"job": {"id": "job1", "name": "flyer", "size": {"width": 9, "height": 12}, "colors": 4},
	"paper": {"type": "art card", "grammage_gsm": 260, "supplier": "acme", "size": {"width": 25, "height": 36}, "cuts_per_sheet": 1},
	"finishing": {},
	"quantities": [1000, 5000]
}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	provider := rates.NewStaticProvider().
		SetPaper(rates.PaperKey{Type: "art card", GrammageGSM: 260, Supplier: "acme"}, 30).
		SetPlate(model.PlateLarge, 600).
		SetInk(model.PlateLarge, model.InkNormal, rates.Rate{CostPerSheet: 0.25, MinimumCost: 500})
	calc := costing.NewCalculator(provider, model.DefaultSettings(), nil)
	return New(":0", calc, nil, opts...)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestQuotes_OK(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodPost, "/api/v1/quotes", quoteBody)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	resp := decode[quotesResponse](t, rr)
	require.Len(t, resp.Breakdowns, 2)
	assert.Equal(t, 1000, resp.Breakdowns[0].Quantity)
	assert.Equal(t, 5000, resp.Breakdowns[1].Quantity)
	assert.Equal(t, 4258.71, resp.Breakdowns[0].BaseCost)
	assert.Equal(t, costing.StateComputed, resp.Breakdowns[0].State)
}

func TestQuotes_ValidationError(t *testing.T) {
	s := newTestServer(t)
	body := strings.Replace(quoteBody, `"supplier": "acme"`, `"supplier": ""`, 1)
	rr := do(t, s, http.MethodPost, "/api/v1/quotes", body)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decode[errorResponse](t, rr)
	assert.Equal(t, costing.FieldSupplier, resp.Field)
	assert.NotEmpty(t, resp.Error)
}

func TestQuotes_Infeasible(t *testing.T) {
	s := newTestServer(t)
	body := strings.Replace(quoteBody, `"size": {"width": 9, "height": 12}`, `"size": {"width": 200, "height": 200}`, 1)
	rr := do(t, s, http.MethodPost, "/api/v1/quotes", body)

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, costing.FieldPlacement, decode[errorResponse](t, rr).Field)
}

func TestQuotes_BadBody(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/v1/quotes", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/api/v1/quotes", `{"jobs": {}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown fields are rejected")
}

func TestLayout(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/v1/layout",
		`{"paper": {"width": 25, "height": 36}, "job": {"width": 9, "height": 12}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	auto := decode[model.PlacementResult](t, rr)
	assert.Equal(t, 50, auto.PiecesPerSheet)
	assert.True(t, auto.Rotated)

	rr = do(t, s, http.MethodPost, "/api/v1/layout",
		`{"paper": {"width": 25, "height": 36}, "job": {"width": 9, "height": 12}, "rotation": "portrait"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	portrait := decode[model.PlacementResult](t, rr)
	assert.False(t, portrait.Rotated)
	assert.LessOrEqual(t, portrait.PiecesPerSheet, auto.PiecesPerSheet)

	rr = do(t, s, http.MethodPost, "/api/v1/layout",
		`{"paper": {"width": 25, "height": 36}, "job": {"width": 9, "height": 12}, "rotation": "sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompare(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/v1/layout/compare", `{"job": {"width": 9, "height": 12}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[compareResponse](t, rr)
	require.Len(t, resp.Results, len(engine.StandardPapers()))
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Placement.PiecesPerSheet, resp.Results[i].Placement.PiecesPerSheet)
	}

	rr = do(t, s, http.MethodPost, "/api/v1/layout/compare",
		`{"job": {"width": 9, "height": 12}, "papers": [{"name": "tiny", "size": {"width": 2, "height": 2}}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = decode[compareResponse](t, rr)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "tiny", resp.Results[0].Candidate.Name)
	assert.False(t, resp.Results[0].Placement.Fits())

	rr = do(t, s, http.MethodPost, "/api/v1/layout/compare", `{"job": {"width": 0, "height": 12}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func quoteBreakdown(t *testing.T, s *Server) costing.Breakdown {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/api/v1/quotes", quoteBody)
	require.Equal(t, http.StatusOK, rr.Code)
	return decode[quotesResponse](t, rr).Breakdowns[0]
}

func overrideBody(t *testing.T, req overrideRequest) string {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return string(data)
}

func TestOverride_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	b := quoteBreakdown(t, s)

	rr := do(t, s, http.MethodPost, "/api/v1/breakdowns/override",
		overrideBody(t, overrideRequest{Breakdown: b, Item: costing.ItemPlates, Amount: 1800}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	edited := decode[costing.Breakdown](t, rr)

	assert.Equal(t, costing.StateEdited, edited.State)
	assert.Equal(t, 3658.71, edited.BaseCost)
	assert.Equal(t, edited.BaseCost+edited.Profit, edited.TotalCost)
	plates, ok := edited.Item(costing.ItemPlates)
	require.True(t, ok)
	assert.Equal(t, 2400.0, plates.OriginalAmount)

	rr = do(t, s, http.MethodPost, "/api/v1/breakdowns/override",
		overrideBody(t, overrideRequest{Breakdown: edited, Item: costing.ItemPlates, Reset: true}))
	require.Equal(t, http.StatusOK, rr.Code)
	reset := decode[costing.Breakdown](t, rr)
	assert.Equal(t, costing.StateComputed, reset.State)
	assert.Equal(t, b.TotalCost, reset.TotalCost)
}

func tamper(b costing.Breakdown, edit func(*costing.Breakdown)) costing.Breakdown {
	c := b.Clone()
	edit(&c)
	return c
}

func TestOverride_Errors(t *testing.T) {
	s := newTestServer(t)
	b := quoteBreakdown(t, s)

	tests := []struct {
		name string
		req  overrideRequest
		want int
	}{
		{"unknown item", overrideRequest{Breakdown: b, Item: "lamination", Amount: 1}, http.StatusNotFound},
		{"not editable", overrideRequest{Breakdown: b, Item: costing.ItemCoating, Amount: 1}, http.StatusUnprocessableEntity},
		{"negative", overrideRequest{Breakdown: b, Item: costing.ItemInk, Amount: -5}, http.StatusUnprocessableEntity},
		{"negative item sent", overrideRequest{Breakdown: tamper(b, func(c *costing.Breakdown) { c.LineItems[0].Amount = -900 }), Item: costing.ItemInk, Amount: 5}, http.StatusUnprocessableEntity},
		{"margin out of range", overrideRequest{Breakdown: tamper(b, func(c *costing.Breakdown) { c.ProfitMargin = 3 }), Item: costing.ItemInk, Reset: true}, http.StatusUnprocessableEntity},
		{"zero quantity", overrideRequest{Breakdown: tamper(b, func(c *costing.Breakdown) { c.Quantity = 0 }), Item: costing.ItemInk, Reset: true}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/api/v1/breakdowns/override", overrideBody(t, tt.req))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rr).Status)

	down := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("database is locked") }))
	rr = do(t, down, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "database is locked", decode[healthResponse](t, rr).Error)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[settingsResponse](t, rr)
	assert.Equal(t, model.DefaultSettings(), got.Pricing)
	assert.Equal(t, []string{"small", "medium", "large"}, got.FinishSizes)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/quotes", quoteBody)
	do(t, s, http.MethodPost, "/api/v1/quotes", strings.Replace(quoteBody, `"colors": 4`, `"colors": 0`, 1))

	rr := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, `pressquote_quotes_total{outcome="ok"} 1`)
	assert.Contains(t, body, `pressquote_quotes_total{outcome="invalid"} 1`)
	assert.Contains(t, body, `pressquote_quotes_total{outcome="infeasible"} 0`)
	assert.Contains(t, body, `pressquote_breakdowns_total 2`)
	assert.Contains(t, body, "pressquote_quote_duration_seconds_count 2")
	assert.Contains(t, body, `pressquote_http_requests_total{code="200",method="POST",route="/api/v1/quotes"} 1`)
	assert.Contains(t, body, `pressquote_http_requests_total{code="422",method="POST",route="/api/v1/quotes"} 1`)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStartAndShutdown(t *testing.T) {
	provider := rates.NewStaticProvider()
	s := New("127.0.0.1:0", costing.NewCalculator(provider, model.DefaultSettings(), nil), nil)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	// Give ListenAndServe a moment to bind before shutting it down.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":0", newTestServer(t).Addr())
}
