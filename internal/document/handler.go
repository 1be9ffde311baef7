package document

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/jobs"
)

// Handler wires HTTP endpoints for sales document editing.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	jobs     *jobs.Client
	validate *validator.Validate
}

// NewHandler constructs a Handler instance. The jobs client may be nil.
func NewHandler(logger *slog.Logger, service *Service, jobsClient *jobs.Client) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		jobs:     jobsClient,
		validate: validator.New(),
	}
}

// Repricing shifts fixed-amount discounts relative to the limit maxima, so the
// approval flags are re-checked out of band.
func (h *Handler) enqueueRescan(r *http.Request, documentID int64) {
	if h.jobs == nil {
		return
	}
	if _, err := h.jobs.EnqueueApprovalRescan(r.Context(), jobs.ApprovalRescanPayload{DocumentID: documentID}); err != nil {
		h.logger.Warn("enqueue approval rescan", slog.Int64("documentId", documentID), slog.Any("error", err))
	}
}

// MountRoutes registers document routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.bulkCreate)
		r.Get("/{id}", h.get)
		r.Get("/{id}/detail", h.getDetail)
		r.Post("/{id}/lines", h.saveLines)
		r.Post("/{id}/bundles", h.addBundle)
		r.Post("/{id}/lines/{lineID}/quantity", h.setMainQuantity)
		r.Delete("/{id}/lines/{lineID}", h.deleteLine)
		r.Delete("/{id}/groups/{key}", h.deleteGroup)
		r.Post("/{id}/currency", h.changeCurrency)
		r.Put("/{id}/rates", h.upsertRate)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, shared.ErrReadonlyDocument), errors.Is(err, ErrRateInUse):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrRelatedLineLocked):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Derived Line", err.Error())
	default:
		h.logger.Error("document request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListDocumentsRequest{Limit: 50}

	q := r.URL.Query()
	if v := q.Get("kind"); v != "" {
		kind := Kind(v)
		if !kind.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown document kind")
			return
		}
		req.Kind = &kind
	}
	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer_id")
			return
		}
		req.CustomerID = &id
	}
	if v := q.Get("status"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid status")
			return
		}
		req.Status = &status
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.DateTo = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Offset = n
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	docs, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	page := 1
	if req.Limit > 0 {
		page = req.Offset/req.Limit + 1
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"documents":  docs,
		"total":      total,
		"pagination": shared.NewPagination(page, req.Limit, total),
	})
}

func (h *Handler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.BulkCreate(r.Context(), req, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) getDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	detail, err := h.service.GetDetail(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

type saveLinesRequest struct {
	Creates []CreateLineDTO `json:"creates" validate:"dive"`
	Updates []UpdateLineDTO `json:"updates" validate:"dive"`
}

func (h *Handler) saveLines(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	var req saveLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.SaveLines(r.Context(), id, req.Creates, req.Updates)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

type addBundleRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required"`
}

func (h *Handler) addBundle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	var req addBundleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.AddBundle(r.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

type setQuantityRequest struct {
	Quantity float64 `json:"quantity" validate:"required"`
}

func (h *Handler) setMainQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	lineID, err := idParam(r, "lineID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}
	var req setQuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}

	doc, err := h.service.SetMainQuantity(r.Context(), id, lineID, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) deleteLine(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	lineID, err := idParam(r, "lineID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}

	if err := h.service.DeleteLine(r.Context(), id, lineID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	key := chi.URLParam(r, "key")
	if key == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid group key")
		return
	}

	if err := h.service.DeleteGroup(r.Context(), id, key); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changeCurrencyRequest struct {
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) changeCurrency(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	var req changeCurrencyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.ChangeCurrency(r.Context(), id, req.Currency)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.enqueueRescan(r, id)
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) upsertRate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return
	}
	var req RateDTO
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	doc, err := h.service.UpsertRate(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.enqueueRescan(r, id)
	httpx.JSON(w, http.StatusOK, doc)
}
