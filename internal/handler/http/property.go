package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Psycaptr/rBNB/internal/domain"
	"github.com/Psycaptr/rBNB/internal/service"
	apperrors "github.com/Psycaptr/rBNB/pkg/errors"
	"github.com/Psycaptr/rBNB/pkg/httputil"
	"github.com/Psycaptr/rBNB/pkg/validator"
)

// PropertyHandler handles HTTP requests for property endpoints.
type PropertyHandler struct {
	service *service.PropertyService
	logger  *slog.Logger
}

// NewPropertyHandler creates a new property HTTP handler.
func NewPropertyHandler(svc *service.PropertyService, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreatePropertyRequest is the JSON request body for creating a property.
// The owner comes from the URL, never from the body.
type CreatePropertyRequest struct {
	Name          string         `json:"name" validate:"required,min=1,max=200"`
	Description   string         `json:"description" validate:"max=5000"`
	Address       string         `json:"address" validate:"max=500"`
	City          string         `json:"city" validate:"max=100"`
	PricePerNight int64          `json:"pricePerNight" validate:"gte=0"`
	Capacity      int            `json:"capacity" validate:"gte=0"`
	IsListed      bool           `json:"isListed"`
	Extra         map[string]any `json:"extra"`
}

// SetListedRequest is the JSON request body for changing visibility.
type SetListedRequest struct {
	IsListed *bool `json:"isListed" validate:"required"`
}

// RatePropertyRequest is the JSON request body for submitting a rating.
type RatePropertyRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// --- Handlers ---

// CreateProperty handles POST /api/v1/users/{userId}/properties
func (h *PropertyHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	property := &domain.Property{
		Name:          req.Name,
		Description:   req.Description,
		Address:       req.Address,
		City:          req.City,
		PricePerNight: req.PricePerNight,
		Capacity:      req.Capacity,
		IsListed:      req.IsListed,
		Extra:         req.Extra,
	}

	created, err := h.service.Create(r.Context(), property, ownerID)
	if err != nil {
		// A failed owner link still commits the property. Return it in the
		// partial-failure body so the caller knows what was stored.
		var appErr *apperrors.AppError
		if created != nil && errors.As(err, &appErr) && errors.Is(err, apperrors.ErrPartialFailure) {
			httputil.WriteJSON(w, appErr.Status, httputil.Response{
				Data:  created,
				Error: &httputil.ErrorResponse{Code: appErr.Code, Message: appErr.Message},
			})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: created})
}

// ListOwnerProperties handles GET /api/v1/users/{userId}/properties
// An owner with zero properties gets 204, not an empty list.
func (h *PropertyHandler) ListOwnerProperties(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")

	properties, err := h.service.ListByOwner(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if len(properties) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: properties})
}

// CountOwnerProperties handles GET /api/v1/users/{userId}/properties/count
func (h *PropertyHandler) CountOwnerProperties(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "userId")

	count, err := h.service.CountByOwner(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"count": count}})
}

// ListAvailableProperties handles GET /api/v1/properties?requester={id}
// Every listed property is returned except the requester's own.
func (h *PropertyHandler) ListAvailableProperties(w http.ResponseWriter, r *http.Request) {
	requesterID := r.URL.Query().Get("requester")

	properties, err := h.service.ListAvailable(r.Context(), requesterID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: properties})
}

// GetProperty handles GET /api/v1/properties/{id}
func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	property, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: property})
}

// DeleteProperty handles DELETE /api/v1/properties/{id}
func (h *PropertyHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// SetListed handles PUT /api/v1/properties/{id}/listed
func (h *PropertyHandler) SetListed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SetListedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.SetListed(r.Context(), id, *req.IsListed); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"id": id, "isListed": *req.IsListed}})
}

// GetListed handles GET /api/v1/properties/{id}/listed
// A property that does not exist reads as not listed.
func (h *PropertyHandler) GetListed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	listed, err := h.service.IsListed(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"id": id, "isListed": listed}})
}

// UpdateProperty handles PATCH /api/v1/properties/{id}
// The body is a free-form field/value document. Identifier, owner, and
// rating fields are rejected.
func (h *PropertyHandler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := h.service.UpdateFields(r.Context(), id, fields); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "updated"}})
}

// RateProperty handles POST /api/v1/properties/{id}/ratings
func (h *PropertyHandler) RateProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	rating, err := h.service.Rate(r.Context(), id, req.Rating)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"id": id, "rating": rating}})
}
