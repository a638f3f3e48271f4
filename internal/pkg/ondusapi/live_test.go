package ondusapi

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondustest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T) (*ondustest.Server, Ondus) {
	srv := ondustest.NewServer()
	token := srv.Authorize()

	api := NewLiveClient(srv.URL).
		WithHTTPClient(srv.Client()).
		WithTimeout(5 * time.Second).
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	return srv, api
}

var guard = ApplianceIdentity{
	LocationID:  ondustest.LocationID,
	RoomID:      ondustest.RoomID,
	ApplianceID: ondustest.GuardID,
}

func TestLivePaths(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	base := ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID)

	tests := []struct {
		name string
		call func() error
		path string
	}{
		{"dashboard", func() error { _, err := api.Dashboard(); return err }, ondustest.APIPath + "/dashboard"},
		{"locations", func() error { _, err := api.Locations(); return err }, ondustest.APIPath + "/locations"},
		{"rooms", func() error { _, err := api.Rooms("1234"); return err }, ondustest.APIPath + "/locations/1234/rooms"},
		{"appliances", func() error { _, err := api.Appliances("1234", "5678"); return err }, ondustest.APIPath + "/locations/1234/rooms/5678/appliances"},
		{"info", func() error { _, err := api.ApplianceInfo(guard); return err }, base},
		{"status", func() error { _, err := api.ApplianceStatus(guard); return err }, base + "/status"},
		{"details", func() error { _, err := api.ApplianceDetails(guard); return err }, base + "/details"},
		{"notifications", func() error { _, err := api.ApplianceNotifications(guard); return err }, base + "/notifications"},
		{"notification", func() error { _, err := api.ApplianceNotification(guard, ondustest.NotificationID); return err }, base + "/notifications/" + ondustest.NotificationID},
		{"command", func() error { _, err := api.ApplianceCommand(guard); return err }, base + "/command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())

			reqs := srv.RequestsTo(tt.path)
			require.NotEmpty(t, reqs)
			last := reqs[len(reqs)-1]
			assert.Equal(t, "GET", last.Method)
			assert.Equal(t, "Bearer a1", last.Header.Get("Authorization"))
			assert.Equal(t, "application/json", last.Header.Get("Accept"))
		})
	}
}

func TestApplianceDataQuery(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	from := time.Date(2021, 3, 5, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	to := from.Add(2 * time.Hour)

	resp, err := api.ApplianceData(guard, DataQuery{From: from, To: to, GroupBy: GroupByHour})
	require.NoError(t, err)

	reqs := srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID) + "/data/aggregated")
	require.Len(t, reqs, 1)

	q, err := url.ParseQuery(reqs[0].Query)
	require.NoError(t, err)
	assert.Equal(t, "2021-03-05T09:00:00.000Z", q.Get("from"))
	assert.Equal(t, "2021-03-05T11:00:00.000Z", q.Get("to"))
	assert.Equal(t, "hour", q.Get("groupBy"))

	data, err := ParseApplianceData(resp)
	require.NoError(t, err)
	assert.Equal(t, ondustest.GuardID, data.ApplianceID)
	assert.Len(t, data.Data.Measurement, 2)
	assert.Len(t, data.Data.Withdrawals, 3)
}

func TestApplianceDataQueryOmitsZeroValues(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	_, err := api.ApplianceData(guard, DataQuery{})
	require.NoError(t, err)

	reqs := srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID) + "/data/aggregated")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Query)
}

func TestApplianceDataBadGroupBy(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	_, err := api.ApplianceData(guard, DataQuery{GroupBy: "fortnight"})
	require.Error(t, err)
	assert.Empty(t, srv.Requests())
}

func TestApplianceRawData(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	from := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := api.ApplianceRawData(guard, from, from.AddDate(0, 0, 4))
	require.NoError(t, err)

	reqs := srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID) + "/data")
	require.Len(t, reqs, 1)
	q, _ := url.ParseQuery(reqs[0].Query)
	assert.Equal(t, "2021-03-01", q.Get("from"))
	assert.Equal(t, "2021-03-05", q.Get("to"))
}

func TestSetApplianceCommand(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	resp, err := api.SetApplianceCommand(guard, NewValveCommand(false))
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	reqs := srv.RequestsTo(ondustest.APIPath + ondustest.ApplianceIdentityPath(ondustest.GuardID) + "/command")
	require.Len(t, reqs, 1)
	assert.Equal(t, "POST", reqs[0].Method)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	assert.JSONEq(t, `{"type":103,"command":{"valve_open":false}}`, string(reqs[0].Body))
}

func TestSetApplianceCommandRejectsInvalid(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	_, err := api.SetApplianceCommand(guard, CommandRequest{ApplianceType: ApplianceTypeSense})
	require.Error(t, err)
	assert.Empty(t, srv.Requests())
}

func TestNoTokenSourceFailsFast(t *testing.T) {
	srv := ondustest.NewServer()
	defer srv.Close()

	api := NewLiveClient(srv.URL).WithHTTPClient(srv.Client())
	_, err := api.Dashboard()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Empty(t, srv.Requests())
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("not logged in")
}

func TestTokenSourceErrorFailsFast(t *testing.T) {
	srv := ondustest.NewServer()
	defer srv.Close()

	api := NewLiveClient(srv.URL).WithHTTPClient(srv.Client()).WithTokenSource(failingTokenSource{})
	_, err := api.ApplianceStatus(guard)
	require.Error(t, err)

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 0, re.StatusCode)
	assert.Equal(t, "GET", re.Method)
	assert.Empty(t, srv.Requests())
}

func TestRequestErrorStatus(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	missing := guard
	missing.ApplianceID = "nope"
	resp, err := api.ApplianceInfo(missing)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 404, re.StatusCode)
	assert.Contains(t, re.Error(), "HTTP status 404")
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.False(t, IsUnauthorized(err))
}

func TestUnauthorized(t *testing.T) {
	srv := ondustest.NewServer()
	defer srv.Close()
	srv.Authorize()

	api := NewLiveClient(srv.URL).
		WithHTTPClient(srv.Client()).
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "stale"}))

	_, err := api.Dashboard()
	assert.True(t, IsUnauthorized(err))
}

func TestContextCancelled(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := api.WithContext(ctx).Dashboard()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestCopyOnWrite(t *testing.T) {
	base := NewLiveClient("https://example.com/")
	withTimeout := base.WithTimeout(time.Second)

	assert.Equal(t, time.Duration(0), base.timeout)
	assert.Equal(t, time.Second, withTimeout.(*Live).timeout)
	assert.Equal(t, "https://example.com/v3/iot", base.apiURL)
}

func TestParsers(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	resp, err := api.ApplianceInfo(guard)
	require.NoError(t, err)
	infos, err := ParseInfo(resp)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, ondustest.GuardName, infos[0].Name)
	assert.Equal(t, ApplianceTypeSenseGuard, infos[0].Type)
	assert.Equal(t, "SG-1", infos[0].SerialNumber)
	assert.Contains(t, string(infos[0].Raw), "installation_date")

	resp, err = api.ApplianceStatus(guard)
	require.NoError(t, err)
	status, err := ParseStatus(resp)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"update_available": 0.0, "connection": 1.0, "wifi_quality": 0.0}, status)

	resp, err = api.ApplianceNotifications(guard)
	require.NoError(t, err)
	ns, err := ParseNotifications(resp)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, 30, ns[0].Category)
	assert.Equal(t, 430, ns[0].Type)

	resp, err = api.ApplianceCommand(guard)
	require.NoError(t, err)
	cmd, err := ParseCommand(resp)
	require.NoError(t, err)
	var c map[string]interface{}
	require.NoError(t, json.Unmarshal(cmd.Command, &c))
	assert.Equal(t, true, c["valve_open"])
}

func TestResolveApplianceIdentity(t *testing.T) {
	srv, api := newTestClient(t)
	defer srv.Close()

	id, err := ResolveApplianceIdentity(api, ondustest.LocationName, ondustest.RoomName, ondustest.SenseName)
	require.NoError(t, err)
	assert.Equal(t, ApplianceIdentity{LocationID: "1234", RoomID: "5678", ApplianceID: ondustest.SenseID}, id)
	assert.NoError(t, id.Validate(strfmt.Default))

	_, err = ResolveApplianceIdentity(api, ondustest.LocationName, ondustest.RoomName, "Dishwasher")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = ResolveApplianceIdentity(api, "Office", ondustest.RoomName, ondustest.SenseName)
	assert.True(t, errors.Is(err, ErrNotFound))
}
