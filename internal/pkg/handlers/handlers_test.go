package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/notifications"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusauth"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondustest"
)

type countingSink struct {
	reports []*monitor.Report
}

func (s *countingSink) Publish(ctx context.Context, report *monitor.Report) error {
	s.reports = append(s.reports, report)
	return nil
}

func (s *countingSink) Close() error { return nil }

type fixture struct {
	srv      *ondustest.Server
	location *monitor.Location
	sink     *countingSink
	router   *mux.Router
}

func newFixture(t *testing.T, connect bool) *fixture {
	srv := ondustest.NewServer()
	auth := ondusauth.NewAuthenticator().WithBaseURL(srv.URL).WithHTTPClient(srv.Client()).WithTimeout(5 * time.Second)
	l := monitor.NewLocation(ondustest.LocationName, auth)
	if connect {
		require.NoError(t, l.Connect(context.Background(), srv.Username, srv.Password))
	}

	s := &countingSink{}
	ah := NewApplianceHandler(monitor.NewPoller(l, nil), s, 24*time.Hour, ondusapi.GroupByHour)

	r := mux.NewRouter()
	r.Handle("/healthz", NewHealthHandler(l)).Methods(http.MethodGet)
	r.Handle("/rooms/{room}/appliances/{appliance}", ah.Report()).Methods(http.MethodGet)
	r.Handle("/rooms/{room}/appliances/{appliance}/command", ah.Command()).Methods(http.MethodPost)
	r.Handle("/notifications/{category}/{type}", NewNotificationHandler(notifications.DefaultCatalog())).Methods(http.MethodGet)

	return &fixture{srv: srv, location: l, sink: s, router: r}
}

func (f *fixture) close() {
	f.location.Close()
	f.srv.Close()
}

func (f *fixture) do(method string, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func appliancePath(room, appliance string) string {
	return "/rooms/" + url.PathEscape(room) + "/appliances/" + url.PathEscape(appliance)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	defer f.close()

	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"location":"Home","state":"unauthenticated"}`, rec.Body.String())

	require.NoError(t, f.location.Connect(context.Background(), f.srv.Username, f.srv.Password))
	rec = f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"location":"Home","state":"ready"}`, rec.Body.String())
}

func TestReport(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	rec := f.do(http.MethodGet, appliancePath(ondustest.RoomName, ondustest.GuardName)+"?from=2021-03-05T00:00:00Z&to=2021-03-06T00:00:00Z&groupBy=day", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report monitor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, ondustest.GuardName, report.Appliance)
	require.NotNil(t, report.Statistics)
	assert.Len(t, f.sink.reports, 1)

	reqs := f.srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID) + "/data/aggregated")
	require.Len(t, reqs, 1)
	q, _ := url.ParseQuery(reqs[0].Query)
	assert.Equal(t, "2021-03-05T00:00:00.000Z", q.Get("from"))
	assert.Equal(t, "day", q.Get("groupBy"))
}

func TestReportDefaultWindow(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	rec := f.do(http.MethodGet, appliancePath(ondustest.RoomName, ondustest.SenseName), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	reqs := f.srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.SenseID) + "/data/aggregated")
	require.Len(t, reqs, 1)
	q, _ := url.ParseQuery(reqs[0].Query)
	assert.Equal(t, "hour", q.Get("groupBy"))
	assert.NotEmpty(t, q.Get("from"))
	assert.NotEmpty(t, q.Get("to"))
}

func TestReportErrors(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown appliance", appliancePath(ondustest.RoomName, "Dishwasher"), http.StatusNotFound},
		{"bad groupBy", appliancePath(ondustest.RoomName, ondustest.GuardName) + "?groupBy=minute", http.StatusBadRequest},
		{"bad from", appliancePath(ondustest.RoomName, ondustest.GuardName) + "?from=yesterday", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestReportNotReady(t *testing.T) {
	f := newFixture(t, false)
	defer f.close()

	rec := f.do(http.MethodGet, appliancePath(ondustest.RoomName, ondustest.GuardName), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportUpstreamFailure(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	delete(f.srv.Responses, ondustest.ApplianceIdentityPath(ondustest.GuardID)+"/status")

	rec := f.do(http.MethodGet, appliancePath(ondustest.RoomName, ondustest.GuardName), "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCommand(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	rec := f.do(http.MethodPost, appliancePath(ondustest.RoomName, ondustest.GuardName)+"/command", `{"valveOpen": false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	posts := f.srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID) + "/command")
	require.NotEmpty(t, posts)
	assert.Equal(t, http.MethodPost, posts[0].Method)
	assert.JSONEq(t, `{"type":103,"command":{"valve_open":false}}`, string(posts[0].Body))
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `valve=open`, http.StatusBadRequest},
		{"unknown field", `{"open": true}`, http.StatusBadRequest},
		{"empty command", `{}`, http.StatusBadRequest},
		{"two objects", `{"valveOpen": true}{"valveOpen": false}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, appliancePath(ondustest.RoomName, ondustest.GuardName)+"/command", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Empty(t, f.srv.RequestsTo(ondustest.APIPath+ondustest.ApplianceIdentityPath(ondustest.GuardID)+"/command"))
}

func TestCommandToSense(t *testing.T) {
	f := newFixture(t, true)
	defer f.close()

	rec := f.do(http.MethodPost, appliancePath(ondustest.RoomName, ondustest.SenseName)+"/command", `{"valveOpen": false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Empty(t, f.srv.RequestsTo(ondustest.APIPath+ondustest.ApplianceIdentityPath(ondustest.SenseID)+"/command"))
	assert.Empty(t, f.sink.reports)
}

func TestNotificationLookup(t *testing.T) {
	f := newFixture(t, false)
	defer f.close()

	rec := f.do(http.MethodGet, "/notifications/30/430", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alarm", body["severity"])
	assert.Equal(t, true, body["shutoff"])
	assert.Equal(t, 430.0, body["typeCode"])

	rec = f.do(http.MethodGet, "/notifications/999/999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unknown", body["category"])
	assert.Equal(t, "Unknown notification category: 999 type: 999", body["message"])

	rec = f.do(http.MethodGet, "/notifications/x/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
