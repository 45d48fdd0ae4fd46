package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"foodgram/internal/auth"
	"foodgram/internal/core"
	applog "foodgram/internal/log"
	"foodgram/internal/services"
)

const maxBodyBytes = 15 << 20

type detail struct {
	Detail string `json:"detail"`
}

type errorsBody struct {
	Errors string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
	}
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, detail{Detail: msg})
}

// writeError maps service errors to statuses. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ve.Fields)
	case errors.Is(err, core.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, core.ErrForbidden):
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, core.ErrSelfFollow):
		writeJSON(w, http.StatusBadRequest, errorsBody{Errors: "You cannot subscribe to yourself."})
	case errors.Is(err, core.ErrAlreadyExists):
		writeJSON(w, http.StatusBadRequest, errorsBody{Errors: "Already added."})
	case errors.Is(err, core.ErrInvalidCredentials):
		writeDetail(w, http.StatusUnauthorized, "Unable to log in with provided credentials.")
	case errors.Is(err, auth.ErrInvalidToken):
		writeDetail(w, http.StatusUnauthorized, "Invalid token.")
	case errors.Is(err, services.ErrExportUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, "Shopping list export is not configured.")
	case errors.Is(err, errBadJSON):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", "")
		if p, ok := auth.FromContext(r.Context()); ok {
			fields.WithUser(p.User.ID)
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method, fields)
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}

var errBadJSON = errors.New("JSON parse error")

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}
