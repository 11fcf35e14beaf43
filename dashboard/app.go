package main

import (
	"context"
	"time"

	"github.com/gravitational/trace"

	"github.com/pixiscript/dashboard/api"
	"github.com/pixiscript/dashboard/lib/logger"
)

// keepAliveInterval is how often the app revalidates the access token.
// The token provider's staleness buffer makes each check cheap while
// the token is far from expiry.
const keepAliveInterval = time.Minute

// App contains global application state: it keeps a backend session
// alive until it is stopped or the session dies.
type App struct {
	conf   Config
	client *api.Client
}

// NewApp creates the App with its backend client.
func NewApp(conf Config) (*App, error) {
	client, err := api.NewClient(api.ClientConfig{
		BaseURL:   conf.Backend.URL,
		StateFile: conf.Session.StateFile,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &App{conf: conf, client: client}, nil
}

// Client returns the backend API client.
func (a *App) Client() *api.Client {
	return a.client
}

// Run establishes the session and keeps it alive until the context is
// cancelled or the session dies.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The backend field travels with the context into every client
	// call below.
	ctx, log := logger.WithField(ctx, "backend", a.conf.Backend.URL)

	a.client.OnSessionDead(func(err error) {
		log.WithError(err).Error("Session is dead, shutting down")
		cancel()
	})

	if err := a.establishSession(ctx); err != nil {
		return trace.Wrap(err)
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := a.client.Session().GetAccessToken(ctx); err != nil {
				// The session-dead callback handles shutdown; anything
				// else is transient and retried on the next tick.
				log.WithError(err).Warning("Keep-alive token check failed")
			}
		}
	}
}

func (a *App) establishSession(ctx context.Context) error {
	log := logger.Get(ctx)

	err := a.client.RestoreSession(ctx)
	if err == nil {
		if _, err := a.client.Session().GetAccessToken(ctx); err == nil {
			log.Info("Restored persisted session")
			return nil
		}
		log.Warning("Persisted session is unusable, logging in again")
	} else if !trace.IsNotFound(err) {
		log.WithError(err).Warning("Failed to restore persisted session, logging in again")
	}

	return trace.Wrap(a.client.Login(ctx, a.conf.Session.Email, a.conf.Session.Password))
}
