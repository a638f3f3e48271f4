package ondusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/transport"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://idp2-apigw.cloud.grohe.com"

	// APIPath is the root of the REST API below the base URL
	APIPath = "/v3/iot"
)

type Live struct {
	apiURL     string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	timeout    time.Duration
	ctx        context.Context
}

// NewLiveClient returns a client for the API below baseURL, eg.
// DefaultBaseURL.  It needs a token source before any call can succeed.
func NewLiveClient(baseURL string) *Live {
	return &Live{
		apiURL:     strings.TrimSuffix(baseURL, "/") + APIPath,
		httpClient: http.DefaultClient,
		ctx:        context.Background(),
	}
}

func (c *Live) WithTokenSource(ts oauth2.TokenSource) Ondus {
	nc := *c
	nc.tokens = ts
	return &nc
}

func (c *Live) WithHTTPClient(client *http.Client) Ondus {
	nc := *c
	nc.httpClient = client
	return &nc
}

func (c *Live) WithTimeout(d time.Duration) Ondus {
	nc := *c
	nc.timeout = d
	return &nc
}

func (c *Live) WithContext(ctx context.Context) Ondus {
	nc := *c
	nc.ctx = ctx
	return &nc
}

func (c *Live) MakeContext() (context.Context, context.CancelFunc) {
	var ctx = c.ctx
	var cancel context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	return ctx, cancel
}

func (c *Live) applianceURL(id ApplianceIdentity) string {
	return c.apiURL + "/locations/" + url.PathEscape(id.LocationID) +
		"/rooms/" + url.PathEscape(id.RoomID) +
		"/appliances/" + url.PathEscape(id.ApplianceID)
}

func (c *Live) do(method string, u string, body interface{}) (*transport.Response, error) {
	reqErr := func(err error) error {
		return &RequestError{Method: method, URL: u, Err: err}
	}

	// No token means the session is not logged in: fail before touching
	// the network
	if c.tokens == nil {
		return nil, reqErr(errors.New("no token source"))
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, reqErr(err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, reqErr(errors.Wrap(err, "encoding request body"))
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := c.MakeContext()
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, reqErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	logging.Logger(c.ctx).Debugf("ondus request: %s %s", method, u)

	resp, err := transport.Do(c.httpClient, req)
	if err != nil {
		return nil, reqErr(err)
	}

	if resp.StatusCode >= 400 {
		return resp, &RequestError{Method: method, URL: u, StatusCode: resp.StatusCode, Body: resp.Body}
	}

	return resp, nil
}

func (c *Live) get(u string) (*transport.Response, error) {
	return c.do(http.MethodGet, u, nil)
}

func (c *Live) post(u string, body interface{}) (*transport.Response, error) {
	return c.do(http.MethodPost, u, body)
}

func (c *Live) Dashboard() (*transport.Response, error) {
	return c.get(c.apiURL + "/dashboard")
}

func (c *Live) Locations() (*transport.Response, error) {
	return c.get(c.apiURL + "/locations")
}

func (c *Live) Rooms(locationID string) (*transport.Response, error) {
	return c.get(c.apiURL + "/locations/" + url.PathEscape(locationID) + "/rooms")
}

func (c *Live) Appliances(locationID string, roomID string) (*transport.Response, error) {
	return c.get(c.apiURL + "/locations/" + url.PathEscape(locationID) + "/rooms/" + url.PathEscape(roomID) + "/appliances")
}

func (c *Live) ApplianceInfo(id ApplianceIdentity) (*transport.Response, error) {
	return c.get(c.applianceURL(id))
}

func (c *Live) ApplianceStatus(id ApplianceIdentity) (*transport.Response, error) {
	return c.get(c.applianceURL(id) + "/status")
}

func (c *Live) ApplianceDetails(id ApplianceIdentity) (*transport.Response, error) {
	return c.get(c.applianceURL(id) + "/details")
}

func (c *Live) ApplianceNotifications(id ApplianceIdentity) (*transport.Response, error) {
	return c.get(c.applianceURL(id) + "/notifications")
}

func (c *Live) ApplianceNotification(id ApplianceIdentity, notificationID string) (*transport.Response, error) {
	return c.get(c.applianceURL(id) + "/notifications/" + url.PathEscape(notificationID))
}

func (c *Live) ApplianceCommand(id ApplianceIdentity) (*transport.Response, error) {
	return c.get(c.applianceURL(id) + "/command")
}

func (c *Live) SetApplianceCommand(id ApplianceIdentity, command CommandRequest) (*transport.Response, error) {
	if err := command.Validate(strfmt.Default); err != nil {
		return nil, errors.Wrapf(err, "invalid command for appliance %s", id)
	}

	logging.Logger(c.ctx).Debugf("sending command to %s: %s", id, command.Command)

	return c.post(c.applianceURL(id)+"/command", command)
}

// ApplianceData fetches server-side aggregated data.  From and To are sent
// as UTC date-times with millisecond precision.
func (c *Live) ApplianceData(id ApplianceIdentity, query DataQuery) (*transport.Response, error) {
	if err := query.GroupBy.Validate(strfmt.Default); err != nil {
		return nil, errors.Wrap(err, "invalid data query")
	}

	params := url.Values{}
	if !query.From.IsZero() {
		params.Set("from", strfmt.DateTime(query.From.UTC()).String())
	}
	if !query.To.IsZero() {
		params.Set("to", strfmt.DateTime(query.To.UTC()).String())
	}
	if query.GroupBy != GroupByNone {
		params.Set("groupBy", string(query.GroupBy))
	}

	u := c.applianceURL(id) + "/data/aggregated"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	return c.get(u)
}

// ApplianceRawData fetches daily data for the days from..to, the older form
// of the data endpoint
func (c *Live) ApplianceRawData(id ApplianceIdentity, from time.Time, to time.Time) (*transport.Response, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", strfmt.Date(from).String())
	}
	if !to.IsZero() {
		params.Set("to", strfmt.Date(to).String())
	}

	u := c.applianceURL(id) + "/data"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	return c.get(u)
}
