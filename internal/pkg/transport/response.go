package transport

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/go-openapi/runtime/middleware/header"
	"github.com/pkg/errors"

	"github.com/jake-scott/ondus-bridge/version"
)

// 4MB is far more than any Ondus response; aggregated data for a year of
// hourly buckets is a few hundred kB
const maxBodySize = 4 * 1024 * 1024

var ErrResponseTooLarge = errors.New("response body too large")

// Response is the envelope returned for every request made to the Ondus
// cloud.  The body is read in full and the connection released before the
// envelope is handed back, so callers never deal with open readers.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Location returns the Location header, or an empty string
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// IsSuccess is true for 2xx responses
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the server labelled the body as JSON.  A missing
// Content-Type is treated as JSON as the Ondus API is not consistent about
// sending one.
func (r *Response) IsJSON() bool {
	if r.Header.Get("Content-Type") == "" {
		return true
	}

	value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
	return value == "application/json"
}

// JSON decodes the body into dst
func (r *Response) JSON(dst interface{}) error {
	if !r.IsJSON() {
		return errors.Errorf("expected JSON response from %s, got %s", r.URL, r.Header.Get("Content-Type"))
	}

	if len(r.Body) == 0 {
		return errors.Errorf("empty response body from %s", r.URL)
	}

	if err := json.Unmarshal(r.Body, dst); err != nil {
		return errors.Wrapf(err, "decoding response from %s", r.URL)
	}

	return nil
}

// Raw returns the body as raw JSON, validating that it is well formed
func (r *Response) Raw() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := r.JSON(&raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// Do executes req and captures the result in a Response.  Status codes are
// not interpreted, that is up to the caller.
func Do(client *http.Client, req *http.Request) (*Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	if len(body) > maxBodySize {
		return nil, errors.Wrapf(ErrResponseTooLarge, "%s %s: more than %d bytes", req.Method, req.URL, maxBodySize)
	}

	return &Response{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Body:       body,
	}, nil
}

// NoRedirects returns a copy of client that hands back redirect responses
// instead of following them
func NoRedirects(client *http.Client) *http.Client {
	nc := *client
	nc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &nc
}
