package sale

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/pos-backend/internal/platform/httpx"
)

// IdempotencyHeader lets clients retry a sale without recording it twice.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes sale HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Post("/", h.recordSale)
		r.Get("/", h.listSales) // ?store_id=&product_id=&from=&to=
		r.Get("/{id}", h.getSale)
		r.Delete("/{id}", h.deleteSale)
	})
}

func (h *Handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	sale, err := h.service.RecordSale(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, sale)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	sales, err := h.service.ListSales(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, sales)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.service.DeleteSale(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFilter(r *http.Request) (ListFilter, error) {
	var (
		f   ListFilter
		err error
	)
	if f.StoreID, err = httpx.OptionalID(r, "store_id"); err != nil {
		return f, err
	}
	if f.ProductID, err = httpx.OptionalID(r, "product_id"); err != nil {
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
