package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cartkv/cartkv/internal/cart"
	"github.com/cartkv/cartkv/internal/catalog"
	"github.com/cartkv/cartkv/pkg/kv"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	carts  CartService
	logger *zap.SugaredLogger
}

func NewHandler(carts CartService, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		carts:  carts,
		logger: logger,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Ping(r.Context()); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Registry queries

func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.carts.GetAllCartIDs(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CartIDsResponse{CartIDs: ids})
}

func (h *Handler) ListUnpaidCarts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.carts.FindUnpaidCarts(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CartIDsResponse{CartIDs: ids})
}

func (h *Handler) ListLargeCarts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.carts.CartsWithMoreThanFiveItems(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CartIDsResponse{CartIDs: ids})
}

func (h *Handler) ListUserCarts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.carts.GetCartsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CartIDsResponse{CartIDs: ids})
}

func (h *Handler) CountCartsWithProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	count, err := h.carts.CountCartsWithProduct(r.Context(), productID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ProductCountResponse{ProductID: productID, Count: count})
}

// Single cart

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var products []catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&products); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "body must be a JSON array of products")
		return
	}

	if err := h.carts.CreateCart(r.Context(), userID, products); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CartCreatedResponse{CartID: cart.CartKey(userID)})
}

func (h *Handler) GetCartTotal(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	total, err := h.carts.CalculateCartTotal(r.Context(), cartID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CartTotalResponse{CartID: cartID, Total: total})
}

func (h *Handler) GetPaid(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	paid, err := h.carts.IsPaid(r.Context(), cartID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PaidResponse{CartID: cartID, Paid: paid})
}

func (h *Handler) SetPaid(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	var req PaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Paid == nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", `body must be {"paid": true|false}`)
		return
	}

	if err := h.carts.MarkPaid(r.Context(), cartID, *req.Paid); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PaidResponse{CartID: cartID, Paid: *req.Paid})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.ClearCart(r.Context(), chi.URLParam(r, "cartID")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetLineEntry(w http.ResponseWriter, r *http.Request) {
	line, err := h.carts.GetLineEntry(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, line)
}

func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveProduct(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IncrementProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.IncrementProduct(r.Context(), chi.URLParam(r, "cartID"), chi.URLParam(r, "productID")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reports

func (h *Handler) GetMaxTotal(w http.ResponseWriter, r *http.Request) {
	result, err := h.carts.FindCartWithMaxTotal(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetTopProduct(w http.ResponseWriter, r *http.Request) {
	result, err := h.carts.GetMostFrequentProduct(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	h.writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// writeStoreError maps accessor and store failures onto HTTP statuses
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidProduct):
		h.writeError(w, http.StatusBadRequest, "INVALID_PRODUCT", err.Error())
	case errors.Is(err, cart.ErrLineNotFound), errors.Is(err, cart.ErrCartNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, cart.ErrMalformedLine):
		h.writeError(w, http.StatusUnprocessableEntity, "MALFORMED_LINE", err.Error())
	case errors.Is(err, kv.ErrBackendUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
