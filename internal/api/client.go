// Package api talks to the drops catalog server: login, catalog
// fetch and release download URLs. Redirects are never followed; a
// redirect on an authenticated endpoint means the session expired.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"dropsclient/internal/catalog"
)

const requestTimeout = 5 * time.Second

var (
	ErrBadCredentials = errors.New("bad credentials")
	ErrNotFound       = errors.New("not found")
	ErrUnreachable    = errors.New("host unreachable")
	ErrNeedRelogin    = errors.New("session expired, login required")
)

// APIError is returned for unexpected server status codes.
type APIError struct {
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected api status code: %d", e.Status)
}

// Platform returns the identifier the server expects for this OS.
func Platform() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "mac"
	default:
		return "linux"
	}
}

// newClient builds an HTTP client that reports redirects to the
// caller instead of following them.
func newClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Login authenticates with basic auth and returns the session
// credential in cookie-pair form ("id=...") ready to be attached to
// subsequent requests.
func Login(ctx context.Context, baseURL, username, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/login", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(username, password)

	resp, err := newClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to cookie parsing
	case http.StatusUnauthorized:
		return "", ErrBadCredentials
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", &APIError{Status: resp.StatusCode}
	}

	for _, c := range resp.Cookies() {
		if c.Name == "id" {
			return "id=" + c.Value, nil
		}
	}
	return "", fmt.Errorf("login response carried no session cookie")
}

// FetchGames retrieves the catalog for this platform. A redirect
// response means the session is gone and maps to ErrNeedRelogin.
func FetchGames(ctx context.Context, baseURL, sessionToken string) (catalog.GamesResponse, error) {
	endpoint := fmt.Sprintf("%s/games?platform=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(Platform()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return catalog.GamesResponse{}, err
	}
	req.Header.Set("Cookie", sessionToken)

	resp, err := newClient().Do(req)
	if err != nil {
		return catalog.GamesResponse{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return catalog.GamesResponse{}, ErrNeedRelogin
	case resp.StatusCode == http.StatusUnauthorized:
		return catalog.GamesResponse{}, ErrBadCredentials
	case resp.StatusCode == http.StatusNotFound:
		return catalog.GamesResponse{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return catalog.GamesResponse{}, &APIError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return catalog.GamesResponse{}, fmt.Errorf("failed to read games response: %w", err)
	}

	var result catalog.GamesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return catalog.GamesResponse{}, fmt.Errorf("failed to parse games response: %w", err)
	}
	return result, nil
}

// ReleaseURL composes the download endpoint for one release.
func ReleaseURL(baseURL, gameNameID, channelName, version string) string {
	return fmt.Sprintf("%s/releases/%s/%s/%s/%s",
		strings.TrimRight(baseURL, "/"), gameNameID, Platform(), channelName, version)
}

// CanReachHost probes whether the server answers at all. Any HTTP
// response counts as reachable.
func CanReachHost(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := newClient().Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
