package permissions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

// Recorder counts resolution outcomes for observability.
type Recorder interface {
	RecordResolution(environment, outcome string)
}

// Handler exposes the resolution endpoint.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	recorder Recorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, recorder Recorder) *Handler {
	return &Handler{logger: logger, resolver: resolver, recorder: recorder}
}

// MountRoutes registers resolution routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/resolve", h.resolve)
}

// resolveEnvelope is the stable wire contract consumed by API clients.
type resolveEnvelope struct {
	Success      bool                    `json:"success"`
	Item         *EffectivePermissionSet `json:"item,omitempty"`
	ErrorCode    string                  `json:"errorCode,omitempty"`
	ErrorMessage string                  `json:"errorMessage,omitempty"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	applicationID := q.Get("applicationId")
	env := Environment(q.Get("environment"))

	set, err := h.resolver.Resolve(r.Context(), userID, applicationID, env)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.record(env, "invalid")
			httpx.JSON(w, http.StatusBadRequest, resolveEnvelope{
				Success:      false,
				ErrorCode:    verr.Code,
				ErrorMessage: verr.Message,
			})
			return
		}
		h.record(env, "error")
		h.logger.Error("resolve permissions", slog.String("userId", userID), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, resolveEnvelope{
			Success:      false,
			ErrorCode:    CodeDataAccess,
			ErrorMessage: "permission resolution failed",
		})
		return
	}

	h.record(env, "ok")
	httpx.JSON(w, http.StatusOK, resolveEnvelope{Success: true, Item: &set})
}

func (h *Handler) record(env Environment, outcome string) {
	if h.recorder != nil {
		h.recorder.RecordResolution(string(env), outcome)
	}
}
