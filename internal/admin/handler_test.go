// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/jobs"
	"github.com/auramanager/aura-api/internal/payment"
	"github.com/auramanager/aura-api/internal/subscription"
)

type stubSubscriptions struct {
	rows []subscription.TierSummary
	err  error
}

func (s stubSubscriptions) SummaryByTier(context.Context) ([]subscription.TierSummary, error) {
	return s.rows, s.err
}

type stubRevenue struct {
	rows []payment.RevenueRow
}

func (s stubRevenue) RevenueSummary(context.Context) ([]payment.RevenueRow, error) {
	return s.rows, nil
}

type stubJobs struct {
	ran []string
}

func (s *stubJobs) Jobs() []jobs.Status {
	return []jobs.Status{{Name: "purge_refresh_tokens", Schedule: "@daily"}}
}

func (s *stubJobs) Trigger(name string) (int64, error) {
	if name != "purge_refresh_tokens" {
		return 0, core.NotFoundError("job")
	}
	s.ran = append(s.ran, name)
	return 12, nil
}

func passthrough(next http.Handler) http.Handler { return next }

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r, passthrough, passthrough)
	return r
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestBillingSummary(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Subscriptions: stubSubscriptions{rows: []subscription.TierSummary{
			{Tier: "creator", Active: 4},
			{Tier: "pro", Active: 2},
		}},
		Revenue: stubRevenue{rows: []payment.RevenueRow{
			{Provider: "card", Currency: "USD", Payments: 3, AmountCents: 2997},
		}},
	})

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/billing", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got BillingSummaryResponse
	decodeData(t, rec, &got)
	assert.Equal(t, 6, got.ActiveSubscriptions)
	assert.Len(t, got.Subscriptions, 2)
	require.Len(t, got.Revenue, 1)
	assert.Equal(t, "29.97 USD", got.Revenue[0].Amount)
}

func TestBillingSummaryError(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Subscriptions: stubSubscriptions{err: errors.New("connection reset")},
	})

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/billing", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestJobs(t *testing.T) {
	runner := &stubJobs{}
	router := newRouter(NewHandler(HandlerConfig{Jobs: runner}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []jobs.Status
	decodeData(t, rec, &listed)
	require.Len(t, listed, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/jobs/purge_refresh_tokens/run", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run JobRunResponse
	decodeData(t, rec, &run)
	assert.Equal(t, int64(12), run.Affected)
	assert.Equal(t, []string{"purge_refresh_tokens"}, runner.ran)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/jobs/nope/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemStatsReportsUnhealthyPing(t *testing.T) {
	h := NewHandler(HandlerConfig{
		DBPing:    func(context.Context) error { return errors.New("down") },
		RedisPing: func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got SystemStatsResponse
	decodeData(t, rec, &got)
	assert.False(t, got.Database.Healthy)
	assert.True(t, got.Redis.Healthy)
	assert.NotEmpty(t, got.Runtime.GoVersion)
}
