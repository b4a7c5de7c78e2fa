package groups

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

// Handler manages group endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listGroups)
	r.Post("/", h.createGroup)
	r.Get("/{groupID}", h.getGroup)
	r.Delete("/{groupID}", h.deleteGroup)
	r.Get("/{groupID}/members", h.listMembers)
	r.Post("/{groupID}/members", h.addMember)
	r.Delete("/{groupID}/members/{userID}", h.removeMember)
	r.Put("/{groupID}/role", h.assignRole)
	r.Delete("/{groupID}/role", h.removeRole)
}

type createGroupRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Name          string `json:"name" validate:"required,min=1,max=120"`
	Description   string `json:"description" validate:"max=500"`
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type assignRoleRequest struct {
	Environment string `json:"environment" validate:"required"`
	RoleID      string `json:"roleId" validate:"required"`
}

type groupResponse struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

type membershipResponse struct {
	ID            string `json:"id"`
	GroupID       string `json:"groupId"`
	UserID        string `json:"userId"`
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

type groupRoleResponse struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"groupId"`
	Environment string   `json:"environment"`
	RoleID      string   `json:"roleId"`
	RoleName    string   `json:"roleName"`
	Permissions []string `json:"permissions"`
	Status      string   `json:"status"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	applicationID := r.URL.Query().Get("applicationId")
	if applicationID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "applicationId query parameter is required")
		return
	}
	list, err := h.service.ListGroups(r.Context(), applicationID)
	if err != nil {
		h.respondError(w, "list groups", err)
		return
	}
	out := make([]groupResponse, 0, len(list))
	for _, g := range list {
		out = append(out, toGroupResponse(g))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	g, err := h.service.CreateGroup(r.Context(), req.ApplicationID, req.Name, req.Description)
	if err != nil {
		h.respondError(w, "create group", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGroupResponse(g))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		h.respondError(w, "get group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(g))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGroup(r.Context(), chi.URLParam(r, "groupID")); err != nil {
		h.respondError(w, "delete group", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMembers(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		h.respondError(w, "list members", err)
		return
	}
	out := make([]membershipResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMembershipResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.AddMember(r.Context(), chi.URLParam(r, "groupID"), req.UserID)
	if err != nil {
		h.respondError(w, "add member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMembershipResponse(m))
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "groupID"), chi.URLParam(r, "userID")); err != nil {
		h.respondError(w, "remove member", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	assigned, err := h.service.AssignRole(r.Context(), chi.URLParam(r, "groupID"), req.Environment, req.RoleID)
	if err != nil {
		h.respondError(w, "assign group role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupRoleResponse(assigned))
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	environment := r.URL.Query().Get("environment")
	if environment == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "environment query parameter is required")
		return
	}
	if err := h.service.RemoveRole(r.Context(), chi.URLParam(r, "groupID"), environment); err != nil {
		h.respondError(w, "remove group role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, roles.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateMember):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrGroupDeleted):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnknownEnvironment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toGroupResponse(g Group) groupResponse {
	return groupResponse{
		ID:            g.ID,
		ApplicationID: g.ApplicationID,
		Name:          g.Name,
		Description:   g.Description,
		Status:        string(g.Status),
		CreatedAt:     g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toMembershipResponse(m Membership) membershipResponse {
	return membershipResponse{
		ID:            m.ID,
		GroupID:       m.GroupID,
		UserID:        m.UserID,
		ApplicationID: m.ApplicationID,
		Status:        string(m.Status),
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toGroupRoleResponse(a GroupRole) groupRoleResponse {
	perms := a.Permissions
	if perms == nil {
		perms = []string{}
	}
	return groupRoleResponse{
		ID:          a.ID,
		GroupID:     a.GroupID,
		Environment: string(a.Environment),
		RoleID:      a.RoleID,
		RoleName:    a.RoleName,
		Permissions: perms,
		Status:      string(a.Status),
	}
}
