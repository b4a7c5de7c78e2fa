package webhooks

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Handler manages webhook endpoint routes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers webhook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listEndpoints)
	r.Post("/", h.registerEndpoint)
	r.Delete("/{endpointID}", h.disableEndpoint)
}

type registerEndpointRequest struct {
	OrganizationID string   `json:"organizationId" validate:"required"`
	URL            string   `json:"url" validate:"required,url"`
	EventTypes     []string `json:"eventTypes"`
}

type endpointResponse struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	URL            string   `json:"url"`
	EventTypes     []string `json:"eventTypes"`
	Status         string   `json:"status"`
	CreatedAt      string   `json:"createdAt"`
	// Secret is only populated on registration.
	Secret string `json:"secret,omitempty"`
}

func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organizationId")
	if organizationID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organizationId query parameter is required")
		return
	}
	list, err := h.service.List(r.Context(), organizationID)
	if err != nil {
		h.respondError(w, "list webhook endpoints", err)
		return
	}
	out := make([]endpointResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEndpointResponse(e, false))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) registerEndpoint(w http.ResponseWriter, r *http.Request) {
	var req registerEndpointRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Register(r.Context(), req.OrganizationID, req.URL, req.EventTypes)
	if err != nil {
		if errors.Is(err, ErrInvalidURL) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.respondError(w, "register webhook endpoint", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEndpointResponse(created, true))
}

func (h *Handler) disableEndpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Disable(r.Context(), chi.URLParam(r, "endpointID")); err != nil {
		h.respondError(w, "disable webhook endpoint", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toEndpointResponse(e Endpoint, withSecret bool) endpointResponse {
	out := endpointResponse{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		URL:            e.URL,
		EventTypes:     e.EventTypes,
		Status:         string(e.Status),
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if withSecret {
		out.Secret = e.Secret
	}
	return out
}
