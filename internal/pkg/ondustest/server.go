// Package ondustest provides an in-process imitation of the Ondus cloud for
// tests: the HTML login page, the credential form, the token exchange, the
// refresh endpoint and the appliance REST API.
package ondustest

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

const (
	LoginPath        = "/v3/iot/oidc/login"
	TokenPath        = "/v3/iot/oidc/token"
	RefreshPath      = "/v3/iot/oidc/refresh"
	AuthenticatePath = "/v1/sso/auth/realms/idm-apigw/login-actions/authenticate"
	APIPath          = "/v3/iot"

	SessionCookie = "AUTH_SESSION_ID"
	SessionValue  = "session-1.idp"

	LocationID     = "1234"
	RoomID         = "5678"
	GuardID        = "guard-0001"
	SenseID        = "sense-0001"
	LocationName   = "Home"
	RoomName       = "Basement"
	GuardName      = "Main valve"
	SenseName      = "Floor sensor"
	NotificationID = "note-0001"
)

// RecordedRequest is a request seen by the server
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Server is a fake Ondus cloud.  Exported fields may be changed by a test
// before the requests they affect are made.
type Server struct {
	*httptest.Server

	Username         string
	Password         string
	AccessToken      string
	ExpiresIn        int
	RefreshToken     string
	RefreshExpiresIn int

	// Answer to a successful refresh
	RefreshedAccessToken  string
	RefreshedExpiresIn    int
	RefreshedRefreshToken string

	// LoginStatus, when set, is returned by the login page instead of the form
	LoginStatus int
	// LoginPage, when set, replaces the login form HTML
	LoginPage string
	// AlreadyLoggedIn makes the login page redirect straight to the token URL
	AlreadyLoggedIn bool
	// OmitLocation makes the credential POST answer without a Location header
	OmitLocation bool
	// FailTokenExchange makes the token URL answer without tokens
	FailTokenExchange bool
	// OmitExpiresIn makes the token URL answer without expires_in
	OmitExpiresIn bool
	// FailRefresh makes the refresh endpoint answer with an error
	FailRefresh bool

	Dashboard string
	// Responses maps an API path below /v3/iot to a JSON body
	Responses map[string]string

	mu           sync.Mutex
	currentToken string
	requests     []RecordedRequest
	refreshes    int
}

// NewServer starts a TLS server with one location holding a Sense Guard and
// a Sense.  Use Client() for an http.Client that trusts it.
func NewServer() *Server {
	s := &Server{
		Username:             "user@example.com",
		Password:             "s3cr3t&pass",
		AccessToken:          "a1",
		ExpiresIn:            3600,
		RefreshToken:         "r1",
		RefreshExpiresIn:     15552000,
		RefreshedAccessToken: "a2",
		RefreshedExpiresIn:   900,
		Dashboard:            defaultDashboard,
		Responses:            defaultResponses(),
	}

	r := mux.NewRouter()
	r.HandleFunc(LoginPath, s.handleLogin).Methods(http.MethodGet)
	r.HandleFunc(AuthenticatePath, s.handleAuthenticate).Methods(http.MethodPost)
	r.HandleFunc(TokenPath, s.handleToken).Methods(http.MethodGet)
	r.HandleFunc(RefreshPath, s.handleRefresh).Methods(http.MethodPost)
	r.PathPrefix(APIPath + "/").HandlerFunc(s.handleAPI)

	s.Server = httptest.NewTLSServer(s.record(r))
	return s
}

// ApplianceIdentityPath is the API path of an appliance in the default dashboard
func ApplianceIdentityPath(applianceID string) string {
	return "/locations/" + LocationID + "/rooms/" + RoomID + "/appliances/" + applianceID
}

// Requests returns the requests seen so far
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the requests seen for path
func (s *Server) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Refreshes returns the number of successful refreshes
func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// CurrentToken is the access token the API currently accepts
func (s *Server) CurrentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentToken
}

// Authorize makes the API accept AccessToken without a login and returns it
func (s *Server) Authorize() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentToken = s.AccessToken
	return s.currentToken
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		r.Body = ioutil.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) hasSessionCookie(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value == SessionValue
}

func (s *Server) tokenURL(scheme string) string {
	return scheme + "://" + s.Listener.Addr().String() + TokenPath + "?state=st-1&session_state=ss-1&code=c-1"
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "AWSALB", Value: "alb-1", Path: "/"})

	if s.LoginStatus != 0 {
		w.WriteHeader(s.LoginStatus)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: SessionValue, Path: "/"})

	if s.AlreadyLoggedIn {
		w.Header().Set("Location", s.tokenURL("https"))
		w.WriteHeader(http.StatusFound)
		return
	}

	page := s.LoginPage
	if page == "" {
		action := s.URL + AuthenticatePath + "?session_code=sc-1&amp;execution=ex-1&amp;client_id=iot&amp;tab_id=tab-1"
		page = fmt.Sprintf(loginPageTemplate, action)
	}

	w.Header().Set("Content-Type", "text/html;charset=utf-8")
	w.Write([]byte(page))
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	validForm := q.Get("session_code") == "sc-1" && q.Get("client_id") == "iot" && q.Get("tab_id") == "tab-1"

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	ok := validForm && s.hasSessionCookie(r) &&
		r.PostForm.Get("username") == s.Username &&
		r.PostForm.Get("password") == s.Password

	if !ok || s.OmitLocation {
		// Keycloak re-renders the form with an error message
		w.Header().Set("Content-Type", "text/html;charset=utf-8")
		w.Write([]byte(fmt.Sprintf(loginPageTemplate, s.URL+AuthenticatePath)))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "KEYCLOAK_IDENTITY", Value: "kc-1", Path: "/"})
	w.Header().Set("Location", s.tokenURL("ondus"))
	w.WriteHeader(http.StatusFound)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if !s.hasSessionCookie(r) || r.URL.Query().Get("code") != "c-1" {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}

	if s.FailTokenExchange {
		s.writeJSON(w, http.StatusOK, map[string]string{"token_type": "bearer"})
		return
	}

	s.mu.Lock()
	s.currentToken = s.AccessToken
	s.mu.Unlock()

	body := map[string]interface{}{
		"access_token":       s.AccessToken,
		"expires_in":         s.ExpiresIn,
		"refresh_token":      s.RefreshToken,
		"refresh_expires_in": s.RefreshExpiresIn,
		"token_type":         "bearer",
		"id_token":           "id-1",
		"scope":              "openid",
	}
	if s.OmitExpiresIn {
		delete(body, "expires_in")
	}

	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	if s.FailRefresh || req.RefreshToken != s.RefreshToken {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	s.mu.Lock()
	s.currentToken = s.RefreshedAccessToken
	s.refreshes++
	s.mu.Unlock()

	body := map[string]interface{}{
		"access_token": s.RefreshedAccessToken,
		"expires_in":   s.RefreshedExpiresIn,
	}
	if s.RefreshedRefreshToken != "" {
		body["refresh_token"] = s.RefreshedRefreshToken
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	token := s.currentToken
	s.mu.Unlock()

	if token == "" || r.Header.Get("Authorization") != "Bearer "+token {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, APIPath)

	var body string
	var ok bool
	if path == "/dashboard" {
		body, ok = s.Dashboard, s.Dashboard != ""
	} else {
		body, ok = s.Responses[path]
	}

	if !ok {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		s.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

const loginPageTemplate = `<!DOCTYPE html>
<html>
<head><title>Log in to GROHE</title></head>
<body>
  <div id="kc-form-wrapper">
    <form id="kc-form-login" onsubmit="login.disabled = true; return true;" action="%s" method="post">
      <input tabindex="1" id="username" name="username" type="text" autofocus autocomplete="off" />
      <input tabindex="2" id="password" name="password" type="password" autocomplete="off" />
      <input tabindex="4" name="login" id="kc-login" type="submit" value="Log in"/>
    </form>
  </div>
</body>
</html>
`
