package api

import (
	"context"
	"os"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/pixiscript/dashboard/auth"
	"github.com/pixiscript/dashboard/auth/state"
	"github.com/pixiscript/dashboard/lib/logger"
)

// ClientConfig stores client settings.
type ClientConfig struct {
	// BaseURL of the backend API, e.g. "http://localhost:8000/api".
	BaseURL string
	// StateFile, when set, persists the session across restarts.
	StateFile string
	// Clock overrides the time source, mainly for tests.
	Clock clockwork.Clock
}

// CheckAndSetDefaults checks the config and fills in the defaults.
func (c *ClientConfig) CheckAndSetDefaults() error {
	if c.BaseURL == "" {
		return trace.BadParameter("missing required value BaseURL")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Client is the surface the dashboard layer talks to. It owns the
// session token provider and routes every outbound call through the
// authenticated request executor, resolving a usable access token
// first.
type Client struct {
	exec    *Executor
	idp     *identityClient
	session *auth.SessionTokenProvider
	log     log.FieldLogger
}

// NewClient returns a client for the backend API at conf.BaseURL.
func NewClient(conf ClientConfig) (*Client, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	var store state.Store
	if conf.StateFile != "" {
		var err error
		store, err = state.NewFileStore(conf.StateFile)
		if err != nil {
			return nil, trace.Wrap(err)
		}
	}

	idp := newIdentityClient(conf.BaseURL, conf.Clock)
	session, err := auth.NewSessionTokenProvider(auth.SessionTokenProviderConfig{
		Refresher: idp,
		Store:     store,
		Clock:     conf.Clock,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &Client{
		exec:    NewExecutor(conf.BaseURL),
		idp:     idp,
		session: session,
		log:     logger.Standard(),
	}, nil
}

// Login authenticates against the backend and starts the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	creds, err := c.idp.Login(ctx, email, password)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(c.session.StartSession(ctx, creds))
}

// Register creates a new user account on the backend. It does not
// start a session.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	return trace.Wrap(c.idp.Register(ctx, name, email, password))
}

// RestoreSession reinstalls a session persisted by a previous run.
func (c *Client) RestoreSession(ctx context.Context) error {
	return trace.Wrap(c.session.RestoreSession(ctx))
}

// Logout revokes the session on the backend (best effort) and tears
// down the local session state.
func (c *Client) Logout(ctx context.Context) error {
	token, err := c.session.GetAccessToken(ctx)
	if err == nil {
		if err := c.idp.Logout(ctx, token); err != nil {
			c.log.WithError(err).Warning("Backend logout failed")
		}
	}
	c.session.EndSession(ctx)
	return nil
}

// OnSessionDead registers a callback fired once when the session
// reaches its terminal state and a new login is required.
func (c *Client) OnSessionDead(cb func(error)) {
	c.session.OnSessionDead(cb)
}

// Session exposes the underlying token provider.
func (c *Client) Session() *auth.SessionTokenProvider {
	return c.session
}

// Request resolves a usable access token, issues one request and
// decodes the JSON response into out. Out may be nil for endpoints
// whose response body is irrelevant.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.session.GetAccessToken(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	payload, err := c.exec.Do(ctx, method, path, body, token)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(decodeBody(payload, out))
}

// DownloadFile fetches a binary endpoint and writes the response body
// to filename.
func (c *Client) DownloadFile(ctx context.Context, path, filename string) error {
	token, err := c.session.GetAccessToken(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	blob, err := c.exec.DownloadBinary(ctx, path, token)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(os.WriteFile(filename, blob, 0644))
}

// Scripts returns the scripts service.
func (c *Client) Scripts() *ScriptsService {
	return &ScriptsService{client: c}
}

// Users returns the users service.
func (c *Client) Users() *UsersService {
	return &UsersService{client: c}
}
