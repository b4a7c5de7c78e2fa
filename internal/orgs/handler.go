package orgs

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Handler manages organization endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOrganizations)
	r.Post("/", h.createOrganization)
	r.Get("/{orgID}", h.getOrganization)
	r.Delete("/{orgID}", h.archiveOrganization)
	r.Get("/{orgID}/applications", h.listApplications)
	r.Post("/{orgID}/applications", h.createApplication)
}

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type createApplicationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type organizationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type applicationResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	CreatedAt      string `json:"createdAt"`
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListOrganizations(r.Context())
	if err != nil {
		h.respondError(w, "list organizations", err)
		return
	}
	out := make([]organizationResponse, 0, len(list))
	for _, org := range list {
		out = append(out, toOrganizationResponse(org))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	org, err := h.service.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		h.respondError(w, "create organization", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrganizationResponse(org))
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.GetOrganization(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.respondError(w, "get organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrganizationResponse(org))
}

func (h *Handler) archiveOrganization(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ArchiveOrganization(r.Context(), chi.URLParam(r, "orgID")); err != nil {
		h.respondError(w, "archive organization", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListApplications(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		h.respondError(w, "list applications", err)
		return
	}
	out := make([]applicationResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toApplicationResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.CreateApplication(r.Context(), chi.URLParam(r, "orgID"), req.Name)
	if err != nil {
		h.respondError(w, "create application", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toApplicationResponse(a))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toOrganizationResponse(org Organization) organizationResponse {
	return organizationResponse{
		ID:        org.ID,
		Name:      org.Name,
		Status:    string(org.Status),
		CreatedAt: org.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toApplicationResponse(a Application) applicationResponse {
	return applicationResponse{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		Name:           a.Name,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
