package assignments

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/roles"
)

// Handler manages direct role assignment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAssignments)
	r.Post("/", h.createAssignment)
	r.Delete("/{assignmentID}", h.revokeAssignment)
}

type createAssignmentRequest struct {
	UserID        string `json:"userId" validate:"required"`
	ApplicationID string `json:"applicationId" validate:"required"`
	Environment   string `json:"environment" validate:"required"`
	RoleID        string `json:"roleId" validate:"required"`
}

type assignmentResponse struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	ApplicationID string   `json:"applicationId"`
	Environment   string   `json:"environment"`
	RoleID        string   `json:"roleId"`
	RoleName      string   `json:"roleName"`
	Permissions   []string `json:"permissions"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"createdAt"`
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, applicationID := q.Get("userId"), q.Get("applicationId")
	if userID == "" || applicationID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId and applicationId query parameters are required")
		return
	}
	list, err := h.service.ListByUser(r.Context(), userID, applicationID)
	if err != nil {
		h.respondError(w, "list assignments", err)
		return
	}
	out := make([]assignmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAssignmentResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.Assign(r.Context(), req.UserID, req.ApplicationID, req.Environment, req.RoleID)
	if err != nil {
		h.respondError(w, "create assignment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssignmentResponse(a))
}

func (h *Handler) revokeAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Revoke(r.Context(), chi.URLParam(r, "assignmentID")); err != nil {
		h.respondError(w, "revoke assignment", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, roles.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownEnvironment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toAssignmentResponse(a Assignment) assignmentResponse {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	return assignmentResponse{
		ID:            a.ID,
		UserID:        a.UserID,
		ApplicationID: a.ApplicationID,
		Environment:   string(a.Environment),
		RoleID:        a.RoleID,
		RoleName:      a.RoleName,
		Permissions:   perms,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
