package ondusauth

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"golang.org/x/oauth2"
)

// handshake is the scratch state carried between the login steps
type handshake struct {
	actionURL string
	cookies   []*http.Cookie
	tokenURL  string
}

// Session owns one user's tokens.  All methods are safe for concurrent use.
type Session struct {
	auth Authenticator
	ctx  context.Context

	mu                    sync.RWMutex
	hs                    handshake
	accessToken           string
	accessTokenExpiresIn  int
	refreshToken          string
	refreshTokenExpiresIn int
	issued                time.Time
	onRefreshError        func(error)

	// serialises refreshes
	refreshMu sync.Mutex

	taskMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate tokens when stringified
//
func (s *Session) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fmt.Sprintf("BaseURL [%s]  accessToken [%s]  expiresIn [%d]  issued [%s]  refreshToken [%s]  refreshExpiresIn [%d]",
		s.auth.baseURL, hashOf(s.accessToken), s.accessTokenExpiresIn, s.issued,
		hashOf(s.refreshToken), s.refreshTokenExpiresIn)
}

// Authenticated is true while the session holds an access token
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresIn is the lifetime of the access token as announced by the server
func (s *Session) ExpiresIn() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.accessTokenExpiresIn) * time.Second
}

func (s *Session) RefreshExpiresIn() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.refreshTokenExpiresIn) * time.Second
}

// Token implements oauth2.TokenSource.  The token is not checked for
// expiry: the server is the judge of that.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.accessToken == "" {
		return nil, ErrUnauthenticated
	}

	return &oauth2.Token{
		AccessToken: s.accessToken,
		TokenType:   "Bearer",
		Expiry:      s.issued.Add(time.Duration(s.accessTokenExpiresIn) * time.Second),
	}, nil
}

// OnRefreshError registers fn to be called when the background refresh
// fails.  fn runs on a goroutine of its own, so it may call Teardown or
// log in again.
func (s *Session) OnRefreshError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefreshError = fn
}

// API returns an Ondus API client that authenticates with this session
func (s *Session) API() ondusapi.Ondus {
	return ondusapi.NewLiveClient(s.auth.baseURL).
		WithHTTPClient(s.auth.httpClient).
		WithTimeout(s.auth.timeout).
		WithContext(s.ctx).
		WithTokenSource(s)
}

// Teardown stops the refresh task and forgets the access token.  In-flight
// requests are not aborted.  It is safe to call more than once.
func (s *Session) Teardown() {
	s.stop()

	s.mu.Lock()
	s.accessToken = ""
	s.accessTokenExpiresIn = 0
	s.mu.Unlock()
}
