package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// errMalformed marks request bodies and parameters that cannot be decoded.
var errMalformed = errors.New("malformed request")

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Prompt any               `json:"prompt,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps usecase errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformed):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrValidation),
		errors.Is(err, report.ErrInvalidSort),
		errors.Is(err, report.ErrInvalidFilter),
		errors.Is(err, report.ErrInvalidConsequence),
		errors.Is(err, report.ErrInvalidLikelihood),
		errors.Is(err, report.ErrInvalidSubject),
		errors.Is(err, report.ErrInvalidStatus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, report.ErrObservationNotFound),
		errors.Is(err, report.ErrActionPlanNotFound),
		errors.Is(err, report.ErrReferenceNotFound),
		errors.Is(err, report.ErrUserNotFound),
		errors.Is(err, ports.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, report.ErrConfirmationRequired),
		errors.Is(err, report.ErrEditInProgress):
		return http.StatusConflict
	case errors.Is(err, report.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, report.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ..., "fields": ...}. Server errors are
// logged and their text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var fields report.FieldErrors
	if errors.As(err, &fields) {
		body.Error = report.ErrValidation.Error()
		body.Fields = fields.Fields()
	}

	if status == http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func idParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.Wrapf(errMalformed, "invalid %s %q", name, raw)
	}
	return id, nil
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}
