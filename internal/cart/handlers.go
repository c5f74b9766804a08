package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/storefrontlab/storefront-api/internal/common"
	"github.com/storefrontlab/storefront-api/internal/obs"
)

// Handler wires cart operations to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type updateQtyPayload struct {
	Qty int `json:"qty" validate:"min=0"`
}

type promoPayload struct {
	Code string `json:"code" validate:"required,max=64"`
}

type quotePayload struct {
	Member    bool   `json:"member"`
	PromoCode string `json:"promoCode" validate:"max=64"`
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cart, err := h.Svc.Store.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, cart)
}

// Get handles GET /api/v1/carts/{id}. The member query flag selects
// member pricing for the summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Summary(r.Context(), chi.URLParam(r, "id"), memberFlag(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), payload.ProductID, payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// UpdateItem handles PUT /api/v1/carts/{id}/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateQtyPayload
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.UpdateQty(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"), payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// ApplyPromo handles POST /api/v1/carts/{id}/promo.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var payload promoPayload
	if !h.decode(w, r, &payload) {
		return
	}
	view, err := h.Svc.ApplyPromo(r.Context(), chi.URLParam(r, "id"), payload.Code, memberFlag(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// RemovePromo handles DELETE /api/v1/carts/{id}/promo.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.RemovePromo(r.Context(), chi.URLParam(r, "id"), memberFlag(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// Quote handles POST /api/v1/carts/{id}/quote: a stateless pricing
// preview with caller-supplied member and promo inputs.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var payload quotePayload
	if !h.decode(w, r, &payload) {
		return
	}
	summary, err := h.Svc.Quote(r.Context(), chi.URLParam(r, "id"), payload.Member, payload.PromoCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if obs.QuotesTotal != nil {
		caller := "guest"
		if payload.Member {
			caller = "member"
		}
		promo := "none"
		if summary.Promo != nil {
			promo = "invalid"
			if summary.Promo.Valid {
				promo = "valid"
			}
		}
		obs.QuotesTotal.WithLabelValues(caller, promo).Inc()
	}
	common.JSONData(w, http.StatusOK, summary)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", validationDetails(err))
			return false
		}
	}
	return true
}

func validationDetails(err error) any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func memberFlag(r *http.Request) bool {
	member, _ := strconv.ParseBool(r.URL.Query().Get("member"))
	return member
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
