package proposals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nutonspeed/beauty-precision-platform/internal/tenancy"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

// Handler exposes the proposal workflow over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new proposals handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts the proposal endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{proposalID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/send", h.Send)
		r.Post("/accept", h.Accept)
		r.Post("/reject", h.Reject)
		r.Post("/view", h.RecordView)
	})
	return r
}

// Create handles POST /sales/proposals
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var input CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		respondError(w, NewValidationError("invalid request body"))
		return
	}

	p, err := h.service.Create(r.Context(), scope, &input)
	if err != nil {
		h.respondServiceError(w, r, "create proposal", err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// Get handles GET /sales/proposals/{proposalID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "proposalID"))
	if err != nil {
		h.respondServiceError(w, r, "get proposal", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// List handles GET /sales/proposals
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	filter := ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	result, err := h.service.List(r.Context(), scope, filter)
	if err != nil {
		h.respondServiceError(w, r, "list proposals", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Update handles PATCH /sales/proposals/{proposalID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var patch UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		respondError(w, NewValidationError("invalid request body"))
		return
	}

	p, err := h.service.Update(r.Context(), scope, chi.URLParam(r, "proposalID"), &patch)
	if err != nil {
		h.respondServiceError(w, r, "update proposal", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Send handles POST /sales/proposals/{proposalID}/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	p, err := h.service.Send(r.Context(), scope, chi.URLParam(r, "proposalID"))
	if err != nil {
		h.respondServiceError(w, r, "send proposal", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Accept handles POST /sales/proposals/{proposalID}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	p, err := h.service.Accept(r.Context(), scope, chi.URLParam(r, "proposalID"))
	if err != nil {
		h.respondServiceError(w, r, "accept proposal", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /sales/proposals/{proposalID}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	// The body is optional; an empty reason gets a default downstream.
	var req rejectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	p, err := h.service.Reject(r.Context(), scope, chi.URLParam(r, "proposalID"), req.Reason)
	if err != nil {
		h.respondServiceError(w, r, "reject proposal", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// RecordView handles POST /sales/proposals/{proposalID}/view
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	p, err := h.service.RecordView(r.Context(), scope, chi.URLParam(r, "proposalID"))
	if err != nil {
		h.respondServiceError(w, r, "record proposal view", err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /sales/proposals/{proposalID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), scope, chi.URLParam(r, "proposalID")); err != nil {
		h.respondServiceError(w, r, "delete proposal", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (Scope, bool) {
	actorID, ok := tenancy.ActorIDFromContext(r.Context())
	if !ok {
		respondError(w, NewValidationError("missing actor context"))
		return Scope{}, false
	}
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	return Scope{ActorID: actorID, ClinicID: clinicID}, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var typed *Error
	if errors.As(err, &typed) {
		if typed.Code == CodeDependency {
			h.logger.Error("failed to "+action, "error", err, "path", r.URL.Path)
		}
		respondError(w, typed)
		return
	}
	h.logger.Error("failed to "+action, "error", err, "path", r.URL.Path)
	respondError(w, NewDependencyError("internal error", err))
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err *Error) {
	respondJSON(w, err.HTTPStatus(), map[string]any{
		"error": err.Message,
		"code":  string(err.Code),
	})
}
