// Package account implements the account pool: selection, credential
// refresh, and the process-wide manager the dispatcher talks to.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/awsl-project/antigravity-relay/internal/logging"
)

const (
	oauthTokenURL     = "https://oauth2.googleapis.com/token"
	oauthClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	oauthClientSecret = "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"
	tokenExpiryBuffer = 60 * time.Second
)

var log = logging.New("Credentials")

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// Credentials caches access tokens and discovered project ids per account
// email, refreshing through Google's OAuth token endpoint on miss/expiry.
// Refreshes for the same email are de-duplicated via singleflight so a burst
// of requests against one cold account doesn't thundering-herd the token
// endpoint.
type Credentials struct {
	httpClient *http.Client

	mu      sync.RWMutex
	tokens  map[string]cachedToken
	project map[string]string

	group singleflight.Group
}

func NewCredentials() *Credentials {
	return &Credentials{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     make(map[string]cachedToken),
		project:    make(map[string]string),
	}
}

// GetTokenForAccount returns a valid access token for email, refreshing via
// Google's OAuth endpoint on cache miss or expiry.
func (c *Credentials) GetTokenForAccount(ctx context.Context, email, refreshToken string) (string, error) {
	c.mu.RLock()
	tok, ok := c.tokens[email]
	c.mu.RUnlock()
	if ok && time.Now().Before(tok.expiresAt) {
		return tok.accessToken, nil
	}

	v, err, _ := c.group.Do(email, func() (interface{}, error) {
		accessToken, expiresIn, rerr := refreshGoogleToken(ctx, c.httpClient, refreshToken)
		if rerr != nil {
			return "", rerr
		}
		c.mu.Lock()
		c.tokens[email] = cachedToken{
			accessToken: accessToken,
			expiresAt:   time.Now().Add(time.Duration(expiresIn)*time.Second - tokenExpiryBuffer),
		}
		c.mu.Unlock()
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetProjectForAccount returns the cached project id for email, or discovers
// it via discover when absent.
func (c *Credentials) GetProjectForAccount(ctx context.Context, email string, discover func(ctx context.Context) (string, error)) (string, error) {
	c.mu.RLock()
	p, ok := c.project[email]
	c.mu.RUnlock()
	if ok && p != "" {
		return p, nil
	}
	p, err := discover(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.project[email] = p
	c.mu.Unlock()
	return p, nil
}

// ClearTokenCache invalidates the cached token for email, or every entry when
// email == "".
func (c *Credentials) ClearTokenCache(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if email == "" {
		c.tokens = make(map[string]cachedToken)
		return
	}
	delete(c.tokens, email)
}

// ClearProjectCache invalidates the cached project id for email, or every
// entry when email == "".
func (c *Credentials) ClearProjectCache(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if email == "" {
		c.project = make(map[string]string)
		return
	}
	delete(c.project, email)
}

func refreshGoogleToken(ctx context.Context, client *http.Client, refreshToken string) (string, int, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", oauthClientID)
	data.Set("client_secret", oauthClientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", oauthTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Warnf("token refresh failed: %s", string(body))
		return "", 0, fmt.Errorf("token refresh failed: %s", string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		IDToken     string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, err
	}
	if result.IDToken != "" {
		if email, err := emailFromIDToken(result.IDToken); err == nil {
			log.Debugf("refreshed token for %s", email)
		}
	}
	return result.AccessToken, result.ExpiresIn, nil
}

// emailFromIDToken reads the account email out of the id_token Google's
// token endpoint returns alongside the access token, without a network round
// trip. The token's signature isn't re-verified here: it arrived over the
// same TLS connection as the access token it accompanies.
func emailFromIDToken(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return "", err
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("id_token missing email claim")
	}
	return email, nil
}
