package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/notifications"
)

type healthResponse struct {
	Location string        `json:"location"`
	State    monitor.State `json:"state"`
	Error    string        `json:"error,omitempty"`
}

// NewHealthHandler reports the location state: 200 when ready, 503
// otherwise
func NewHealthHandler(l *monitor.Location) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, err := l.State()

		resp := healthResponse{Location: l.Name(), State: state}
		if err != nil {
			resp.Error = err.Error()
		}

		status := http.StatusOK
		if state != monitor.StateReady {
			status = http.StatusServiceUnavailable
		}

		sendJSONResponse(w, r, status, resp)
	})
}

type resolutionResponse struct {
	CategoryCode int `json:"categoryCode"`
	TypeCode     int `json:"typeCode"`
	notifications.Resolution
}

// NewNotificationHandler looks up /notifications/{category}/{type} in the
// catalog
func NewNotificationHandler(c *notifications.Catalog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		category, err := strconv.Atoi(vars["category"])
		if err != nil {
			sendError(w, r, http.StatusBadRequest, "category must be a number")
			return
		}
		typ, err := strconv.Atoi(vars["type"])
		if err != nil {
			sendError(w, r, http.StatusBadRequest, "type must be a number")
			return
		}

		sendJSONResponse(w, r, http.StatusOK, resolutionResponse{
			CategoryCode: category,
			TypeCode:     typ,
			Resolution:   c.Resolve(category, typ),
		})
	})
}
