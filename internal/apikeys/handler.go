package apikeys

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Handler manages API key endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers API key routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listKeys)
	r.Post("/", h.issueKey)
	r.Post("/{keyID}/rotate", h.rotateKey)
	r.Delete("/{keyID}", h.revokeKey)
	r.Post("/verify", h.verifyToken)
}

type issueKeyRequest struct {
	OrganizationID string `json:"organizationId" validate:"required"`
	Name           string `json:"name" validate:"required,min=1,max=120"`
}

type verifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type keyResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	Prefix         string `json:"prefix"`
	Version        int    `json:"version"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

type issuedKeyResponse struct {
	keyResponse
	// Token is returned once and never stored in plaintext.
	Token string `json:"token"`
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organizationId")
	if organizationID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organizationId query parameter is required")
		return
	}
	list, err := h.service.List(r.Context(), organizationID)
	if err != nil {
		h.respondError(w, "list api keys", err)
		return
	}
	out := make([]keyResponse, 0, len(list))
	for _, k := range list {
		out = append(out, toKeyResponse(k))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) issueKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issued, err := h.service.Issue(r.Context(), req.OrganizationID, req.Name)
	if err != nil {
		h.respondError(w, "issue api key", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issuedKeyResponse{keyResponse: toKeyResponse(issued.Key), Token: issued.Token})
}

func (h *Handler) rotateKey(w http.ResponseWriter, r *http.Request) {
	issued, err := h.service.Rotate(r.Context(), chi.URLParam(r, "keyID"))
	if err != nil {
		h.respondError(w, "rotate api key", err)
		return
	}
	httpx.JSON(w, http.StatusOK, issuedKeyResponse{keyResponse: toKeyResponse(issued.Key), Token: issued.Token})
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Revoke(r.Context(), chi.URLParam(r, "keyID")); err != nil {
		h.respondError(w, "revoke api key", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	key, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token rejected")
			return
		}
		h.respondError(w, "verify api key", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toKeyResponse(key))
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

func toKeyResponse(k Key) keyResponse {
	return keyResponse{
		ID:             k.ID,
		OrganizationID: k.OrganizationID,
		Name:           k.Name,
		Prefix:         k.Prefix,
		Version:        k.Version,
		Status:         string(k.Status),
		CreatedAt:      k.CreatedAt.UTC().Format(time.RFC3339),
	}
}
