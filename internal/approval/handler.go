package approval

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler wires HTTP endpoints for approval flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers approval routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.Get("/documents/{documentID}", h.get)
		r.Post("/documents/{documentID}/start", h.start)
		r.Post("/actions/{actionID}/approve", h.approve)
		r.Post("/actions/{actionID}/reject", h.reject)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotApprover):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrFlowTerminal), errors.Is(err, ErrActionNotPending),
		errors.Is(err, ErrStepNotActive):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrActionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoTemplates):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not Configured", err.Error())
	default:
		h.logger.Error("approval request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	documentID, err := idParam(r, "documentID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	req, err := h.service.Get(r.Context(), documentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	documentID, err := idParam(r, "documentID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	req, err := h.service.StartFlow(r.Context(), documentID, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actionID, err := idParam(r, "actionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid action id")
		return
	}
	req, err := h.service.Approve(r.Context(), actionID, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

type rejectRequest struct {
	Reason *string `json:"reason,omitempty"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actionID, err := idParam(r, "actionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid action id")
		return
	}
	var body rejectRequest
	if err := httpx.DecodeJSON(r, &body); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	req, err := h.service.Reject(r.Context(), actionID, shared.UserIDFromContext(r.Context()), body.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}
