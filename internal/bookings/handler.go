package bookings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nutonspeed/beauty-precision-platform/internal/proposals"
	"github.com/nutonspeed/beauty-precision-platform/internal/tenancy"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

// Handler exposes proposal-to-booking conversion over HTTP.
type Handler struct {
	converter *Converter
	logger    *logging.Logger
}

func NewHandler(converter *Converter, logger *logging.Logger) *Handler {
	return &Handler{converter: converter, logger: logger}
}

// Book handles POST /sales/proposals/{proposalID}/book
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	actorID, ok := tenancy.ActorIDFromContext(r.Context())
	if !ok {
		h.respondError(w, proposals.NewValidationError("missing actor context"))
		return
	}
	clinicID, _ := tenancy.ClinicIDFromContext(r.Context())
	scope := proposals.Scope{ActorID: actorID, ClinicID: clinicID}

	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		h.respondError(w, proposals.NewValidationError("invalid request body"))
		return
	}

	booking, err := h.converter.Book(r.Context(), scope, chi.URLParam(r, "proposalID"), input)
	if err != nil {
		var typed *proposals.Error
		if errors.As(err, &typed) {
			if typed.Code == proposals.CodeDependency {
				h.logger.Error("failed to convert proposal", "error", err, "path", r.URL.Path)
			}
			h.respondError(w, typed)
			return
		}
		h.logger.Error("failed to convert proposal", "error", err, "path", r.URL.Path)
		h.respondError(w, proposals.NewDependencyError("internal error", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(booking)
}

func (h *Handler) respondError(w http.ResponseWriter, err *proposals.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  string(err.Code),
	})
}
