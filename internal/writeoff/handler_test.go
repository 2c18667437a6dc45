package writeoff

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/view"
)

func newHandlerFixture(t *testing.T, repo *mockRepository) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, nil, logger, 1000)
	return NewHandler(logger, svc, templates)
}

func handlerServe(h *Handler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestShowRendersPage(t *testing.T) {
	repo := &mockRepository{rows: []Row{
		{DocID: 1, DocNumber: "INV-900001", DocType: "invoice", TradeDate: time.Now(), CustomerName: "Lakeside", Amount: 42.17},
	}}
	h := newHandlerFixture(t, repo)

	rec := handlerServe(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Write-Off Transactions")
	assert.Contains(t, rec.Body.String(), "INV-900001")
}

func TestShowLoadData(t *testing.T) {
	repo := &mockRepository{rows: []Row{
		{DocID: 1, DocNumber: "INV-900001", DocType: "invoice", TradeDate: time.Now(), CustomerName: "Lakeside", Amount: 42.17},
		{DocID: 2, DocNumber: "CM-900003", DocType: "creditmemo", TradeDate: time.Now(), CustomerName: "Cedar Ridge", Amount: -58.25},
	}}
	h := newHandlerFixture(t, repo)

	rec := handlerServe(h, "/?loadData=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.EqualValues(t, 2, resp["summaryTotal"])
	assert.EqualValues(t, 2, resp["summaryTotalLines"])
	assert.InDelta(t, -16.08, resp["summaryTotalAmount"].(float64), 0.001)
	body, _ := resp["tableBodyHtml"].(string)
	assert.Contains(t, body, "INV-900001")
	assert.Contains(t, body, "CM-900003")
}

func TestShowHonorsAsOfParameter(t *testing.T) {
	repo := &mockRepository{}
	h := newHandlerFixture(t, repo)

	rec := handlerServe(h, "/?loadData=true&asOf=2026-03-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, repo.listCalls)
}

func TestExportCSVEndpoint(t *testing.T) {
	repo := &mockRepository{rows: []Row{
		{DocID: 1, DocNumber: "INV-900001", DocType: "invoice", TradeDate: time.Now(), CustomerName: "Lakeside", Amount: 42.17},
	}}
	h := newHandlerFixture(t, repo)

	rec := handlerServe(h, "/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "write-offs.csv")
	assert.Contains(t, rec.Body.String(), "INV-900001")
}

func TestExportExcelEndpoint(t *testing.T) {
	repo := &mockRepository{rows: []Row{
		{DocID: 1, DocNumber: "INV-900001", DocType: "invoice", TradeDate: time.Now(), CustomerName: "Lakeside", Amount: 42.17},
	}}
	h := newHandlerFixture(t, repo)

	rec := handlerServe(h, "/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}
