package store

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/pos-backend/internal/modules/auth"
	"github.com/georgemunganga/pos-backend/internal/platform/httpx"
)

// Handler exposes store HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stores", func(r chi.Router) {
		r.Post("/", h.createStore)
		r.Get("/", h.listStores) // ?owner_id=...
		r.Get("/{id}", h.getStore)
		r.Patch("/{id}", h.updateStore)
		r.Delete("/{id}", h.deleteStore)
	})
}

func (h *Handler) createStore(w http.ResponseWriter, r *http.Request) {
	var req CreateStoreRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.OwnerID == "" {
		req.OwnerID, _ = auth.UserID(r.Context())
	}
	st, err := h.service.CreateStore(r.Context(), req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, st)
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	st, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, st)
}

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, stores)
}

func (h *Handler) updateStore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req UpdateStoreRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	st, err := h.service.UpdateStore(r.Context(), id, req)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Respond(w, http.StatusOK, st)
}

func (h *Handler) deleteStore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.service.DeleteStore(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
