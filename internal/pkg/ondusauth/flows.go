package ondusauth

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/transport"
	"github.com/pkg/errors"
)

var actionRE = regexp.MustCompile(`action="([^"]*)"`)

// extractActionURL finds the target of the login form, decoding the HTML
// entities Keycloak puts in the query string
func extractActionURL(page string) (string, bool) {
	m := actionRE.FindStringSubmatch(page)
	if m == nil {
		return "", false
	}

	return html.UnescapeString(m[1]), true
}

// The app registers ondus:// as its redirect scheme; the token endpoint
// itself is plain https
func rewriteTokenURL(location string) string {
	if strings.HasPrefix(location, "ondus://") {
		return "https://" + strings.TrimPrefix(location, "ondus://")
	}

	return location
}

func resolveReference(base string, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return b.ResolveReference(r).String()
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        *int   `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

// Authenticate runs the login handshake.  On failure the session is left
// as it was; on success its tokens are replaced.  It does not start the
// refresh task.
func (s *Session) Authenticate(ctx context.Context, username string, password string) error {
	ctxLogger := logging.Logger(ctx)

	hs, err := s.fetchLoginPage(ctx)
	if err != nil {
		return err
	}

	if hs.tokenURL == "" {
		if hs.tokenURL, err = s.submitCredentials(ctx, hs, username, password); err != nil {
			return err
		}
	}

	tokens, err := s.exchangeCode(ctx, hs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.hs = hs
	s.accessToken = tokens.AccessToken
	s.accessTokenExpiresIn = *tokens.ExpiresIn
	s.refreshToken = tokens.RefreshToken
	s.refreshTokenExpiresIn = tokens.RefreshExpiresIn
	s.issued = time.Now()
	s.mu.Unlock()

	ctxLogger.Infof("logged in to Ondus as %s, token valid for %ds", username, *tokens.ExpiresIn)
	ctxLogger.Debugf("session: %s", s)

	return nil
}

// Step 1: fetch the login page for its form action and session cookies
func (s *Session) fetchLoginPage(ctx context.Context) (handshake, error) {
	ctxLogger := logging.Logger(ctx)
	loginURL := s.auth.baseURL + LoginPath

	ctx, cancel := s.auth.makeContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return handshake{}, &AuthError{Kind: KindLoginPageUnreachable, URL: loginURL, Err: err}
	}

	ctxLogger.Debugf("fetching Ondus login page %s", loginURL)

	resp, err := transport.Do(transport.NoRedirects(s.auth.httpClient), req)
	if err != nil {
		return handshake{}, &AuthError{Kind: KindLoginPageUnreachable, URL: loginURL, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		action, ok := extractActionURL(resp.Text())
		if !ok {
			return handshake{}, &AuthError{Kind: KindActionURLNotFound, URL: loginURL, StatusCode: resp.StatusCode}
		}

		return handshake{
			actionURL: resolveReference(loginURL, action),
			cookies:   resp.Cookies,
		}, nil

	case http.StatusFound:
		// The identity provider still knows us and sends us straight to
		// the token URL.  Never observed against the live service.
		location := resp.Location()
		if location == "" {
			return handshake{}, &AuthError{Kind: KindLoginPageUnreachable, URL: loginURL, StatusCode: resp.StatusCode,
				Err: errors.New("redirect without location")}
		}

		ctxLogger.Debug("login page redirected, skipping credentials")
		return handshake{
			cookies:  resp.Cookies,
			tokenURL: rewriteTokenURL(resolveReference(loginURL, location)),
		}, nil
	}

	return handshake{}, &AuthError{Kind: KindLoginPageUnreachable, URL: loginURL, StatusCode: resp.StatusCode}
}

// Step 2: post the credentials to the form action.  The token URL comes
// back in the Location header of the answer.
func (s *Session) submitCredentials(ctx context.Context, hs handshake, username string, password string) (string, error) {
	ctx, cancel := s.auth.makeContext(ctx)
	defer cancel()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hs.actionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Kind: KindCredentialsRejected, URL: hs.actionURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range hs.cookies {
		req.AddCookie(c)
	}

	logging.Logger(ctx).Debugf("posting credentials for %s", username)

	resp, err := transport.Do(transport.NoRedirects(s.auth.httpClient), req)
	if err != nil {
		return "", &AuthError{Kind: KindCredentialsRejected, URL: hs.actionURL, Err: err}
	}

	location := resp.Location()
	if location == "" {
		return "", &AuthError{Kind: KindCredentialsRejected, URL: hs.actionURL, StatusCode: resp.StatusCode}
	}

	return rewriteTokenURL(location), nil
}

// Step 3: trade the token URL for an access and refresh token
func (s *Session) exchangeCode(ctx context.Context, hs handshake) (*tokenResponse, error) {
	ctx, cancel := s.auth.makeContext(ctx)
	defer cancel()

	fail := func(status int, err error) (*tokenResponse, error) {
		return nil, &AuthError{Kind: KindTokenExchangeFailed, URL: hs.tokenURL, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.tokenURL, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	for _, c := range hs.cookies {
		req.AddCookie(c)
	}

	resp, err := transport.Do(s.auth.httpClient, req)
	if err != nil {
		return fail(0, err)
	}

	if !resp.IsSuccess() {
		return fail(resp.StatusCode, nil)
	}

	var tokens tokenResponse
	if err := resp.JSON(&tokens); err != nil {
		return fail(resp.StatusCode, err)
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return fail(resp.StatusCode, errors.New("response lacks access_token or refresh_token"))
	}
	if tokens.ExpiresIn == nil || *tokens.ExpiresIn <= 0 {
		return fail(resp.StatusCode, errors.New("response lacks a positive expires_in"))
	}

	return &tokens, nil
}

// Refresh replaces the access token using the refresh token.  The refresh
// token itself is kept.  On failure the current access token is left in
// place.
func (s *Session) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	refreshURL := s.auth.baseURL + RefreshPath
	fail := func(status int, err error) error {
		return &AuthError{Kind: KindRefreshFailed, URL: refreshURL, StatusCode: status, Err: err}
	}

	refreshToken := s.RefreshToken()
	if refreshToken == "" {
		return fail(0, ErrUnauthenticated)
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return fail(0, err)
	}

	ctx, cancel := s.auth.makeContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, bytes.NewReader(body))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := transport.Do(s.auth.httpClient, req)
	if err != nil {
		return fail(0, err)
	}

	if !resp.IsSuccess() {
		return fail(resp.StatusCode, errors.New(resp.Text()))
	}

	var tokens tokenResponse
	if err := resp.JSON(&tokens); err != nil {
		return fail(resp.StatusCode, err)
	}

	if tokens.AccessToken == "" || tokens.ExpiresIn == nil || *tokens.ExpiresIn <= 0 {
		return fail(resp.StatusCode, errors.New("response lacks access_token or expires_in"))
	}

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.accessTokenExpiresIn = *tokens.ExpiresIn
	s.issued = time.Now()
	s.mu.Unlock()

	logging.Logger(ctx).Debugf("refreshed Ondus access token, valid for %ds", *tokens.ExpiresIn)

	return nil
}
