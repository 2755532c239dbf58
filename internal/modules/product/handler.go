package product

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/pos-backend/internal/platform/httpx"
)

// Handler exposes product HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.createProduct)
		r.Get("/", h.listProducts) // ?store_id=&barcode=&name=
		r.Get("/{id}", h.getProduct)
		r.Patch("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
		r.Post("/{id}/restock", h.restock)
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	storeID, err := httpx.OptionalID(r, "store_id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	q := r.URL.Query()
	products, err := h.service.ListProducts(r.Context(), ListFilter{
		StoreID: storeID,
		Barcode: q.Get("barcode"),
		Name:    q.Get("name"),
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, products)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req UpdateProductRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req RestockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.service.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}
