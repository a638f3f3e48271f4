// Package ondusauth logs in to the Ondus cloud and keeps the resulting
// session's tokens fresh.
//
// The vendor offers no client-credentials grant: a session is obtained by
// scraping the Keycloak login page, posting the user's credentials to its
// form and trading the redirect for a token pair.  The access token is then
// refreshed in the background at half its lifetime until the session is torn
// down.
package ondusauth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
)

const (
	LoginPath   = "/v3/iot/oidc/login"
	RefreshPath = "/v3/iot/oidc/refresh"
)

// Authenticator holds the settings used to create sessions.  It is a value
// type: the With* methods return modified copies.
type Authenticator struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewAuthenticator() Authenticator {
	return Authenticator{
		baseURL:    ondusapi.DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
}

func (a Authenticator) WithBaseURL(baseURL string) Authenticator {
	a.baseURL = strings.TrimSuffix(baseURL, "/")
	return a
}

func (a Authenticator) WithHTTPClient(client *http.Client) Authenticator {
	a.httpClient = client
	return a
}

// WithTimeout bounds each request of the handshake, each refresh and each
// API call made through Session.API
func (a Authenticator) WithTimeout(d time.Duration) Authenticator {
	a.timeout = d
	return a
}

func (a Authenticator) BaseURL() string {
	return a.baseURL
}

// NewSession returns an unauthenticated session
func (a Authenticator) NewSession(ctx context.Context) *Session {
	if ctx == nil {
		ctx = context.Background()
	}

	return &Session{
		auth: a,
		ctx:  ctx,
	}
}

// Login runs the handshake for username and starts the refresh task of the
// new session.  Call Teardown on the session when done with it.
func (a Authenticator) Login(ctx context.Context, username string, password string) (*Session, error) {
	s := a.NewSession(ctx)
	if err := s.Authenticate(ctx, username, password); err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}

func (a Authenticator) makeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}

	return context.WithCancel(ctx)
}
