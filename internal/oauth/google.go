// Package oauth talks to Google's authorization server.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/dtroode/gcal-connect/internal/model"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultTokenLifetime = time.Hour
	defaultRevokeURL     = "https://oauth2.googleapis.com/revoke"
)

// Scopes requested on the consent screen.
var Scopes = []string{
	calendar.CalendarScope,
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
	oauth2v2.UserinfoEmailScope,
	oauth2v2.UserinfoProfileScope,
}

// Credentials identify the OAuth client registered with Google.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

var _ model.OAuthProvider = (*Google)(nil)

// Google implements model.OAuthProvider for Google accounts.
type Google struct {
	config     *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	apiOptions []option.ClientOption
	revokeURL  string
}

// Option configures Google.
type Option func(*Google)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(g *Google) { g.config.Endpoint = endpoint }
}

// WithAPIEndpoint overrides the base URL of the userinfo API.
func WithAPIEndpoint(endpoint string) Option {
	return func(g *Google) { g.apiOptions = append(g.apiOptions, option.WithEndpoint(endpoint)) }
}

// WithRevokeURL overrides the token revocation endpoint.
func WithRevokeURL(revokeURL string) Option {
	return func(g *Google) { g.revokeURL = revokeURL }
}

// WithTimeout bounds every outbound call.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Google) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithRateLimit caps outbound calls per second. Zero disables the limit.
func WithRateLimit(perSecond int) Option {
	return func(g *Google) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// WithHTTPClient sets the transport used for every call.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Google) { g.httpClient = client }
}

// NewGoogle creates the adapter for the given client credentials.
func NewGoogle(creds Credentials, opts ...Option) *Google {
	g := &Google{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		revokeURL:  defaultRevokeURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AuthCodeURL builds the consent URL. Offline access with forced consent makes
// Google issue a refresh token even on reconnect.
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (g *Google) Exchange(ctx context.Context, code string) (model.ProviderToken, error) {
	ctx, cancel, err := g.prepare(ctx)
	if err != nil {
		return model.ProviderToken{}, err
	}
	defer cancel()

	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return model.ProviderToken{}, fmt.Errorf("failed to exchange code: %w", classify(err, model.ErrProviderRejected))
	}

	return toProviderToken(tok, ""), nil
}

// Refresh obtains a new access token. The returned refresh token is set only
// when Google rotated it.
func (g *Google) Refresh(ctx context.Context, refreshToken string) (model.ProviderToken, error) {
	ctx, cancel, err := g.prepare(ctx)
	if err != nil {
		return model.ProviderToken{}, err
	}
	defer cancel()

	tok, err := g.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return model.ProviderToken{}, fmt.Errorf("failed to refresh token: %w", classify(err, model.ErrRefreshRevoked))
	}

	return toProviderToken(tok, refreshToken), nil
}

// FetchEmail returns the email address of the account behind accessToken.
func (g *Google) FetchEmail(ctx context.Context, accessToken string) (string, error) {
	ctx, cancel, err := g.prepare(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, g.apiOptions...)

	svc, err := oauth2v2.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch user info: %w", classifyAPI(err))
	}
	if info.Email == "" {
		return "", fmt.Errorf("failed to fetch user info: %w: no email in profile", model.ErrProviderRejected)
	}

	return info.Email, nil
}

// Revoke invalidates token at Google.
func (g *Google) Revoke(ctx context.Context, token string) error {
	ctx, cancel, err := g.prepare(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("failed to revoke token: %w: status %d", model.ErrProviderUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("failed to revoke token: %w: status %d", model.ErrProviderRejected, resp.StatusCode)
	}
}

func (g *Google) prepare(ctx context.Context) (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("%w: rate limit: %v", model.ErrProviderUnavailable, err)
		}
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient), cancel, nil
}

func toProviderToken(tok *oauth2.Token, previousRefresh string) model.ProviderToken {
	pt := model.ProviderToken{
		AccessToken: tok.AccessToken,
		Expiry:      tok.Expiry,
	}
	if tok.RefreshToken != previousRefresh {
		pt.RefreshToken = tok.RefreshToken
	}
	if pt.Expiry.IsZero() {
		pt.Expiry = time.Now().Add(defaultTokenLifetime)
	}
	return pt
}

// classify maps token endpoint failures to model errors. invalidGrant is
// returned for the invalid_grant error code.
func classify(err error, invalidGrant error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", model.ErrProviderUnavailable, re.Response.StatusCode)
		}
		if re.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %s", invalidGrant, re.ErrorDescription)
		}
		return fmt.Errorf("%w: %s", model.ErrProviderRejected, re.ErrorCode)
	}
	return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
}

func classifyAPI(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code < http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", model.ErrProviderRejected, apiErr.Code)
	}
	return fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
}
