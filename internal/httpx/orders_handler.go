package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shoplite/orders-api/internal/orders"
)

type OrdersHandler struct {
	Service *orders.Service
	Auth    *Auth
	Log     *slog.Logger
}

type createOrderReq struct {
	ID       string `json:"id"` // product id
	Quantity int    `json:"quantity"`
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

type amendQuantityReq struct {
	ProductID   string `json:"productId"`
	NewQuantity int    `json:"newQuantity"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Middleware)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.list)
			r.Post("/", h.create)
			r.Get("/{orderId}", h.get)
			r.Patch("/status/{orderId}", h.updateStatus)
			r.Patch("/cq/{orderId}", h.amendQuantity)
			r.Patch("/cancel/{orderId}", h.cancel)
			r.Delete("/{orderId}", h.delete)
		})
	})
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *OrdersHandler) fail(w http.ResponseWriter, err error) {
	code := errorStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.Log.Error("orders request failed", "err", err)
		msg = "internal server error"
	}
	writeJSON(w, code, map[string]string{"message": msg})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrProductNotInOrder):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrAlreadyCancelled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := h.Service.List(ctx, caller)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(views),
		"orders": views,
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.Service.Create(ctx, caller, req.ID, req.Quantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created",
		"result":  view,
	})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Service.Get(ctx, caller, chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateStatus(ctx, caller, chi.URLParam(r, "orderId"), req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Order status updated successfully",
		"updatedOrder": o,
	})
}

func (h *OrdersHandler) amendQuantity(w http.ResponseWriter, r *http.Request) {
	var req amendQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.AmendQuantity(ctx, caller, chi.URLParam(r, "orderId"), req.ProductID, req.NewQuantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Product quantity updated successfully",
		"updatedOrder": o,
	})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	// body is optional; an empty or missing reason falls back to the default
	_ = json.NewDecoder(r.Body).Decode(&req)

	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.Cancel(ctx, caller, chi.URLParam(r, "orderId"), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully",
		"order":   o,
	})
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.Delete(ctx, caller, chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order deleted and product quantity updated",
		"order":   o,
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.Products.List(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
