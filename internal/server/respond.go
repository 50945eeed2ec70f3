package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tournevent/parcelgate/internal/checkout"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/europarcel"
	"go.uber.org/zap"
)

// envelope is the response shape the checkout script expects.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type failure struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Data: failure{Message: message}})
}

// writeError maps service errors to failure responses. Anything unexpected is
// logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *checkout.ValidationError
	var courierErr *shipping.CourierError
	switch {
	case errors.Is(err, checkout.ErrInvalidToken):
		writeFailure(w, http.StatusForbidden, checkout.ErrInvalidToken.Error())
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, envelope{Data: failure{Message: "invalid request", Fields: verr.Fields}})
	case errors.Is(err, checkout.ErrInvalidRequest):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shipping.ErrInstanceNotFound):
		writeFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shipping.ErrInstanceUnusable), errors.Is(err, europarcel.ErrServiceNotConfigured):
		writeFailure(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &courierErr):
		s.logger.Ctx(r.Context()).Error("Courier request failed", zap.Error(err))
		writeFailure(w, http.StatusBadGateway, "courier request failed")
	default:
		s.logger.Ctx(r.Context()).Error("Request failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}
