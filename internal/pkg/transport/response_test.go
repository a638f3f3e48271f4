package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/ondus-bridge/version"
)

func TestDoCapturesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "AWSALB", Value: "abc"})
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"hello":"world"}`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/x", nil)
	require.NoError(t, err)

	resp, err := Do(srv.Client(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
	assert.True(t, resp.IsJSON())
	assert.Equal(t, srv.URL+"/x", resp.URL)
	require.Len(t, resp.Cookies, 1)
	assert.Equal(t, "AWSALB", resp.Cookies[0].Name)

	var body map[string]string
	require.NoError(t, resp.JSON(&body))
	assert.Equal(t, "world", body["hello"])
}

func TestJSONRejectsHTML(t *testing.T) {
	resp := &Response{
		URL:    "https://example/login",
		Header: http.Header{"Content-Type": []string{"text/html"}},
		Body:   []byte("<html></html>"),
	}

	var v interface{}
	assert.Error(t, resp.JSON(&v))
	assert.False(t, resp.IsJSON())
}

func TestJSONEmptyBody(t *testing.T) {
	resp := &Response{URL: "https://example/x", Header: http.Header{}}

	_, err := resp.Raw()
	assert.Error(t, err)
}

func TestNoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			w.Header().Set("Location", "ondus://somewhere/else")
			w.WriteHeader(http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/start", nil)
	require.NoError(t, err)

	resp, err := Do(NoRedirects(srv.Client()), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "ondus://somewhere/else", resp.Location())
}

func TestDoSetsUserAgent(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = Do(srv.Client(), req)
	require.NoError(t, err)

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/1.0")
	_, err = Do(srv.Client(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{version.UserAgent(), "custom/1.0"}, agents)
}

func TestDoRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/big" {
			w.Write(bytes.Repeat([]byte(" "), maxBodySize+1))
			return
		}
		w.Write(bytes.Repeat([]byte(" "), maxBodySize))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/big", nil)
	require.NoError(t, err)
	_, err = Do(srv.Client(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponseTooLarge))

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/limit", nil)
	require.NoError(t, err)
	resp, err := Do(srv.Client(), req)
	require.NoError(t, err)
	assert.Len(t, resp.Body, maxBodySize)
}
