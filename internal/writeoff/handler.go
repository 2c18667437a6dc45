package writeoff

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/httpx"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/view"
)

// Handler manages write-off list endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	builds    singleflight.Group
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine) *Handler {
	return &Handler{logger: logger, service: service, templates: templates}
}

// MountRoutes registers write-off list routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Get("/export.csv", h.exportCSV)
	r.Get("/export.xlsx", h.exportExcel)
}

// loadDataResponse is the JSON envelope behind ?loadData=true.
type loadDataResponse struct {
	Success            bool    `json:"success"`
	SummaryTotal       int     `json:"summaryTotal"`
	SummaryTotalLines  int     `json:"summaryTotalLines"`
	SummaryTotalAmount float64 `json:"summaryTotalAmount"`
	Truncated          bool    `json:"truncated"`
	TableBodyHTML      string  `json:"tableBodyHtml"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	asOf := h.asOf(r)

	if r.URL.Query().Get("loadData") != "true" {
		report := h.buildReport(r.Context(), asOf)
		data := view.TemplateData{
			Title:       "Write-Off Transactions",
			CurrentPath: r.URL.Path,
			Data: map[string]any{
				"Report": report,
				"AsOf":   asOf,
			},
		}
		if err := h.templates.Render(w, "pages/writeoff_list.html", data); err != nil {
			h.logger.Error("render write-off list", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	report := h.buildReport(r.Context(), asOf)
	body, err := h.templates.RenderString("partials/writeoff_rows.html", map[string]any{"Report": report})
	if err != nil {
		h.logger.Error("render write-off rows", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, map[string]any{"success": false, "message": "Could not render the report table."})
		return
	}

	httpx.JSON(w, http.StatusOK, loadDataResponse{
		Success:            true,
		SummaryTotal:       report.Totals.RowCount,
		SummaryTotalLines:  len(report.Rows),
		SummaryTotalAmount: report.Totals.NetTotal,
		Truncated:          report.Truncated,
		TableBodyHTML:      body,
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	report := h.buildReport(r.Context(), h.asOf(r))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="write-offs.csv"`)
	if err := WriteCSV(w, report); err != nil {
		h.logger.Error("export write-off csv", slog.Any("error", err))
	}
}

func (h *Handler) exportExcel(w http.ResponseWriter, r *http.Request) {
	report := h.buildReport(r.Context(), h.asOf(r))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="write-offs.xlsx"`)
	if err := WriteExcel(w, report); err != nil {
		h.logger.Error("export write-off excel", slog.Any("error", err))
	}
}

// buildReport collapses concurrent identical builds into one. The
// build runs detached from the first caller's context: cancelling that
// request must not degrade the report every collapsed waiter receives.
func (h *Handler) buildReport(ctx context.Context, asOf time.Time) Report {
	key := fmt.Sprintf("report:%s", asOf.Format("2006-01-02"))
	buildCtx := context.WithoutCancel(ctx)
	result, _, _ := h.builds.Do(key, func() (interface{}, error) {
		return h.service.Report(buildCtx, asOf), nil
	})
	return result.(Report)
}

// asOf parses the optional as-of date query parameter, defaulting to
// today.
func (h *Handler) asOf(r *http.Request) time.Time {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		return time.Now()
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Now()
	}
	return asOf
}
