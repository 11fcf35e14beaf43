package api

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/pixiscript/dashboard/auth"
	"github.com/pixiscript/dashboard/auth/identity"
	"github.com/pixiscript/dashboard/auth/state"
	"github.com/pixiscript/dashboard/lib/logger"
)

// identityClient speaks the login/refresh endpoints of the backend and
// provides the session core with fresh credential records.
type identityClient struct {
	client *resty.Client
	clock  clockwork.Clock
	log    log.FieldLogger
}

func newIdentityClient(baseURL string, clock clockwork.Clock) *identityClient {
	return &identityClient{
		client: makeBackendClient(baseURL).SetHeader("Content-Type", "application/json"),
		clock:  clock,
		log:    logger.Standard(),
	}
}

// Login implements identity.Authenticator.
func (c *identityClient) Login(ctx context.Context, email, password string) (*state.Credentials, error) {
	var result loginResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&result).
		Post("login")
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if resp.IsError() || result.Data.AccessToken == "" {
		return nil, trace.AccessDenied("login failed: %s", responseMessage(resp))
	}

	c.log.WithField("email", email).Info("Login succeeded")
	return c.credentials(result.Data.AccessToken, result.Data.RefreshToken, result.Data.ExpiresAt), nil
}

// Refresh implements identity.Refresher. The returned record may carry
// an empty refresh token when the backend chose not to rotate it.
func (c *identityClient) Refresh(ctx context.Context, refreshToken string) (*state.Credentials, error) {
	var result refreshResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&result).
		Post("refresh-token")
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if resp.IsError() || result.Data.AccessToken == "" {
		return nil, trace.AccessDenied("token refresh failed: %s", responseMessage(resp))
	}

	return c.credentials(result.Data.AccessToken, result.Data.RefreshToken, result.Data.ExpiresAt), nil
}

// Logout revokes the session on the backend.
func (c *identityClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+accessToken).
		Post("logout")
	if err != nil {
		return trace.Wrap(err)
	}
	if resp.IsError() {
		return trace.Errorf("logout failed: %s", responseMessage(resp))
	}
	return nil
}

// Register creates a new user account.
func (c *identityClient) Register(ctx context.Context, name, email, password string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name, "email": email, "password": password}).
		Post("register")
	if err != nil {
		return trace.Wrap(err)
	}
	if resp.IsError() {
		return trace.Errorf("registration failed: %s", responseMessage(resp))
	}
	return nil
}

func (c *identityClient) credentials(accessToken, refreshToken, expiresAt string) *state.Credentials {
	return &state.Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IssuedAt:     c.clock.Now(),
		ExpiresAt:    auth.ComputeExpiry(expiresAt, auth.DefaultFallbackWindow, c.clock),
	}
}

func responseMessage(resp *resty.Response) string {
	if message := gjson.GetBytes(resp.Body(), "message").String(); message != "" {
		return message
	}
	return fmt.Sprintf("status %d", resp.StatusCode())
}

var _ identity.Backend = (*identityClient)(nil)
