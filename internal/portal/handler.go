package portal

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/httpx"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/view"
)

// Handler manages portal endpoints.
type Handler struct {
	logger          *slog.Logger
	service         *Service
	templates       *view.Engine
	validate        *validator.Validate
	governanceUnits int
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, governanceUnits int) *Handler {
	return &Handler{
		logger:          logger,
		service:         service,
		templates:       templates,
		validate:        validator.New(),
		governanceUnits: governanceUnits,
	}
}

// MountRoutes registers portal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/", h.action)
}

// loadDataResponse is the JSON envelope behind ?loadData=true.
type loadDataResponse struct {
	Success            bool    `json:"success"`
	SummaryTotal       int     `json:"summaryTotal"`
	SummaryTotalLines  int     `json:"summaryTotalLines"`
	SummaryTotalAmount float64 `json:"summaryTotalAmount"`
	QueuedTotal        int     `json:"queuedTotal"`
	QueuedTotalAmount  float64 `json:"queuedTotalAmount"`
	TableBodyHTML      string  `json:"tableBodyHtml"`
}

// show serves the page shell, or the data payload when loadData=true.
// The shell renders instantly; the browser fetches the data afterward.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("loadData") != "true" {
		data := view.TemplateData{Title: "Service Write-Off Portal", CurrentPath: r.URL.Path}
		if err := h.templates.Render(w, "pages/portal.html", data); err != nil {
			h.logger.Error("render portal", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	ctx := r.Context()
	orders := h.service.UnbilledOrders(ctx)
	summary := h.service.Summarize(ctx)

	body, err := h.templates.RenderString("partials/portal_rows.html", map[string]any{"Orders": orders})
	if err != nil {
		h.logger.Error("render portal rows", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, map[string]any{"success": false, "message": "Could not render the order table."})
		return
	}

	httpx.JSON(w, http.StatusOK, loadDataResponse{
		Success:            true,
		SummaryTotal:       summary.OrderCount,
		SummaryTotalLines:  summary.LineCount,
		SummaryTotalAmount: summary.TotalAmount,
		QueuedTotal:        summary.QueuedCount,
		QueuedTotalAmount:  summary.QueuedAmount,
		TableBodyHTML:      body,
	})
}

// action handles both single-item and bulk POSTs; the presence of
// bulkAction selects the bulk path.
func (h *Handler) action(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSON(w, http.StatusOK, ActionResult{Success: false, Message: "Malformed request body."})
		return
	}

	budget := erp.NewBudget(h.governanceUnits)

	if bulkAction := r.PostFormValue("bulkAction"); bulkAction != "" {
		ids, err := parseIDList(r.PostFormValue("selectedSOIds"))
		if err != nil {
			httpx.JSON(w, http.StatusOK, BulkResult{Success: false, Message: "selectedSOIds must be a comma-separated list of ids.", ProcessedIDs: []int64{}, FailedIDs: []int64{}})
			return
		}
		result := h.service.DispatchBulk(r.Context(), bulkAction, ids, budget)
		httpx.JSON(w, http.StatusOK, result)
		return
	}

	soID, _ := strconv.ParseInt(r.PostFormValue("soId"), 10, 64)
	req := ActionRequest{
		Action:       r.PostFormValue("action"),
		SOID:         soID,
		Note:         r.PostFormValue("note"),
		FollowUpDate: r.PostFormValue("followUpDate"),
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.JSON(w, http.StatusOK, ActionResult{Success: false, Message: "Missing or invalid parameters."})
		return
	}

	result := h.service.Dispatch(r.Context(), req, budget)
	httpx.JSON(w, http.StatusOK, result)
}

// parseIDList parses the comma-separated id list the portal page
// submits for bulk actions.
func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
