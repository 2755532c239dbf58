package report

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/pos-backend/internal/platform/httpx"
)

// Handler exposes report HTTP endpoints.
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/dashboard", h.dashboard)
		r.Get("/sales", h.salesReport)
		r.Get("/sales.csv", h.salesCSV)
		r.Get("/inventory", h.inventory)
		r.Get("/inventory.csv", h.inventoryCSV)
		r.Get("/low-stock", h.lowStock) // ?threshold=&store_id=
	})
}

func parseFilter(r *http.Request) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if f.StoreID, err = httpx.OptionalID(r, "store_id"); err != nil {
		return f, err
	}
	if f.From, err = httpx.OptionalTime(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = httpx.OptionalTime(r, "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	d, err := h.service.Dashboard(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, d)
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	rows, err := h.service.SalesReport(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, rows)
}

func (h *Handler) salesCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	rows, err := h.service.SalesReport(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writeCSVHeaders(w, "sales_report.csv")
	if err := WriteSalesCSV(w, rows); err != nil {
		// headers are already sent
		h.logger.Error("write sales csv", zap.Error(err))
	}
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.OptionalID(r, "store_id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	items, err := h.service.InventoryReport(r.Context(), storeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, items)
}

func (h *Handler) inventoryCSV(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.OptionalID(r, "store_id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	items, err := h.service.InventoryReport(r.Context(), storeID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	writeCSVHeaders(w, "inventory_report.csv")
	if err := WriteInventoryCSV(w, items); err != nil {
		h.logger.Error("write inventory csv", zap.Error(err))
	}
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.OptionalID(r, "store_id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	threshold, err := httpx.OptionalInt(r, "threshold", h.service.DefaultThreshold())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	items, err := h.service.LowStock(r.Context(), storeID, threshold)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, items)
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
}
