package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	openapierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/runtime/middleware/header"
	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusauth"
)

// For request validation routines
var formats strfmt.Registry

func init() {
	formats = strfmt.NewFormats()
}

const maxBodySize = 16 * 1024

type errorResponse struct {
	Error string `json:"error"`
	TxnID string `json:"txnId,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return errors.Errorf("expected JSON request, got %s", value)
		}
	}

	reader := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decoding request body")
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}

	return nil
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, status int, d interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

func sendError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	sendJSONResponse(w, r, status, errorResponse{Error: msg, TxnID: logging.TxnID(r.Context())})
}

// statusFromError maps the bridge's errors to an HTTP status
func statusFromError(err error) int {
	var validation openapierrors.Error
	var auth *ondusauth.AuthError

	switch {
	case errors.Is(err, monitor.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, monitor.ErrApplianceNotFound), errors.Is(err, ondusapi.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &auth), errors.Is(err, ondusapi.ErrRequestFailed):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func sendAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	if status >= 500 {
		logging.Logger(r.Context()).WithError(err).Error("handling request")
	} else {
		logging.Logger(r.Context()).WithError(err).Warn("handling request")
	}

	sendError(w, r, status, err.Error())
}
