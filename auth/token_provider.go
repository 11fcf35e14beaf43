package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pixiscript/dashboard/auth/identity"
	"github.com/pixiscript/dashboard/auth/state"
	"github.com/pixiscript/dashboard/lib/logger"
)

// defaultStaleBuffer is subtracted from the recorded expiry so the
// token is refreshed before the backend actually starts rejecting it.
const defaultStaleBuffer = 2 * time.Minute

// refreshTimeout bounds one refresh-token exchange. The exchange runs
// detached from the caller's context, so it needs its own deadline.
const refreshTimeout = 10 * time.Second

// ErrSessionDead is returned once the session reached its terminal
// state. Only a brand-new login recovers from it; callers are expected
// to force a sign-out when they observe it.
var ErrSessionDead = trace.AccessDenied("session is dead: re-authentication required")

// IsSessionDead reports whether err indicates the terminal session
// state.
func IsSessionDead(err error) bool {
	return errors.Is(err, ErrSessionDead)
}

// SessionTokenProviderConfig stores the dependencies of a
// SessionTokenProvider.
type SessionTokenProviderConfig struct {
	// Refresher exchanges refresh tokens with the identity backend.
	Refresher identity.Refresher
	// Store persists the credential record across restarts. Optional.
	Store state.Store
	// Clock is the time source. Defaults to the real clock.
	Clock clockwork.Clock
	// StaleBuffer overrides the proactive-refresh margin.
	StaleBuffer time.Duration
	// FallbackWindow overrides the expiry fallback window used for
	// refreshed credentials.
	FallbackWindow time.Duration
	// Log overrides the logger.
	Log log.FieldLogger
}

// CheckAndSetDefaults checks the config and fills in the defaults.
func (c *SessionTokenProviderConfig) CheckAndSetDefaults() error {
	if c.Refresher == nil {
		return trace.BadParameter("missing required parameter Refresher")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.StaleBuffer == 0 {
		c.StaleBuffer = defaultStaleBuffer
	}
	if c.FallbackWindow == 0 {
		c.FallbackWindow = DefaultFallbackWindow
	}
	if c.Log == nil {
		c.Log = logger.Standard()
	}
	return nil
}

// SessionTokenProvider hands out a usable access token for a single
// authenticated session, transparently exchanging the refresh token
// when the cached access token is near expiry.
//
// The credential record is only ever replaced atomically, so a
// concurrent reader observes either the pre- or post-refresh record.
// Callers that hit the staleness window concurrently share one
// in-flight refresh and all observe its single outcome.
type SessionTokenProvider struct {
	refresher identity.Refresher
	store     state.Store
	clock     clockwork.Clock

	staleBuffer    time.Duration
	fallbackWindow time.Duration

	log log.FieldLogger

	group singleflight.Group

	lock       sync.RWMutex // protects the below fields
	creds      *state.Credentials
	generation uint64
	sessionID  string

	cbLock        sync.Mutex
	deadCallbacks []func(error)
	deadNotified  bool
}

// NewSessionTokenProvider returns an empty provider. A session is
// installed with StartSession or RestoreSession.
func NewSessionTokenProvider(conf SessionTokenProviderConfig) (*SessionTokenProvider, error) {
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &SessionTokenProvider{
		refresher:      conf.Refresher,
		store:          conf.Store,
		clock:          conf.Clock,
		staleBuffer:    conf.StaleBuffer,
		fallbackWindow: conf.FallbackWindow,
		log:            conf.Log,
	}, nil
}

// StartSession installs the credential record produced by a successful
// login. Any previous session is replaced; a refresh still in flight
// for it will have its result discarded.
func (p *SessionTokenProvider) StartSession(ctx context.Context, creds *state.Credentials) error {
	if creds == nil || creds.AccessToken == "" || creds.RefreshToken == "" {
		return trace.BadParameter("login did not produce a usable credential record")
	}

	p.lock.Lock()
	p.generation++
	p.sessionID = uuid.New().String()
	p.creds = creds
	sessionID := p.sessionID
	p.lock.Unlock()

	p.cbLock.Lock()
	p.deadNotified = false
	p.cbLock.Unlock()

	p.log.WithFields(log.Fields{
		"session_id":   sessionID,
		"access_token": truncateToken(creds.AccessToken),
		"expires_at":   creds.ExpiresAt,
	}).Info("Session started")

	if p.store != nil {
		if err := p.store.PutCredentials(ctx, creds); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

// RestoreSession reinstalls a credential record persisted by a
// previous run. The restored record goes through the same staleness
// checks as a freshly issued one on the next GetAccessToken call.
func (p *SessionTokenProvider) RestoreSession(ctx context.Context) error {
	if p.store == nil {
		return trace.NotFound("no credential store configured")
	}
	creds, err := p.store.GetCredentials(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(p.StartSession(ctx, creds))
}

// EndSession tears the session down and clears the persisted record.
func (p *SessionTokenProvider) EndSession(ctx context.Context) {
	p.lock.Lock()
	p.generation++
	p.creds = nil
	sessionID := p.sessionID
	p.sessionID = ""
	p.lock.Unlock()

	if p.store != nil {
		if err := p.store.ClearCredentials(ctx); err != nil {
			p.log.WithError(err).Warning("Failed to clear persisted credentials")
		}
	}
	if sessionID != "" {
		p.log.WithField("session_id", sessionID).Info("Session ended")
	}
}

// OnSessionDead registers a callback invoked once when the session
// reaches its terminal state. The hosting application uses this to
// force a sign-out.
func (p *SessionTokenProvider) OnSessionDead(cb func(error)) {
	p.cbLock.Lock()
	defer p.cbLock.Unlock()
	p.deadCallbacks = append(p.deadCallbacks, cb)
}

// Current returns a snapshot of the current credential record, or nil
// when no session is active.
func (p *SessionTokenProvider) Current() *state.Credentials {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.creds == nil {
		return nil
	}
	creds := *p.creds
	return &creds
}

// GetAccessToken resolves an access token that is safe to use right
// now. A record far from expiry is returned as is; a stale one is
// refreshed first. Once the session is dead every call fails with
// ErrSessionDead until a new session is started.
func (p *SessionTokenProvider) GetAccessToken(ctx context.Context) (string, error) {
	p.lock.RLock()
	creds := p.creds
	generation := p.generation
	p.lock.RUnlock()

	if creds == nil {
		return "", trace.NotFound("no active session")
	}
	if creds.Dead() {
		return "", trace.Wrap(ErrSessionDead)
	}
	if p.isFresh(creds) {
		return creds.AccessToken, nil
	}

	result, _, _ := p.group.Do("refresh", func() (interface{}, error) {
		return p.refresh(ctx, generation), nil
	})

	creds, ok := result.(*state.Credentials)
	if !ok || creds == nil {
		return "", trace.NotFound("no active session")
	}
	if creds.Dead() {
		return "", trace.Wrap(ErrSessionDead)
	}
	return creds.AccessToken, nil
}

func (p *SessionTokenProvider) isFresh(creds *state.Credentials) bool {
	return p.clock.Now().Before(creds.ExpiresAt.Add(-p.staleBuffer))
}

// refresh performs one refresh-token exchange and installs its
// outcome. It never fails: an unsuccessful exchange produces a record
// in the terminal state instead, so that every subsequent caller
// observes the failure, not just the one that triggered it.
func (p *SessionTokenProvider) refresh(ctx context.Context, generation uint64) *state.Credentials {
	p.lock.RLock()
	creds := p.creds
	current := p.generation
	sessionID := p.sessionID
	p.lock.RUnlock()

	if current != generation || creds == nil {
		// The session was replaced while this caller waited.
		return creds
	}
	// Another caller holding the flight slot may have refreshed
	// already.
	if creds.Dead() || p.isFresh(creds) {
		return creds
	}

	reqLog := p.log.WithFields(log.Fields{
		"session_id":    sessionID,
		"refresh_token": truncateToken(creds.RefreshToken),
	})
	reqLog.Debug("Access token is stale, exchanging refresh token")

	// The outcome of the exchange is shared by every caller waiting on
	// the flight, so the one caller holding the slot must not be able
	// to abort it. Detach from that caller and apply our own bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	newCreds, err := p.refresher.Refresh(ctx, creds.RefreshToken)
	switch {
	case err != nil:
		reqLog.WithError(err).Error("Token refresh failed, session is dead")
		newCreds = p.deadRecord(creds)
	case newCreds == nil || newCreds.AccessToken == "":
		reqLog.Error("Refresh response carried no access token, session is dead")
		newCreds = p.deadRecord(creds)
	default:
		if newCreds.RefreshToken == "" {
			// Rotation is optional: the backend may keep the old
			// refresh token valid and omit it from the response.
			newCreds.RefreshToken = creds.RefreshToken
		}
		if newCreds.IssuedAt.IsZero() {
			newCreds.IssuedAt = p.clock.Now()
		}
		reqLog.WithFields(log.Fields{
			"access_token": truncateToken(newCreds.AccessToken),
			"expires_at":   newCreds.ExpiresAt,
		}).Debug("Access token refreshed")
	}

	p.lock.Lock()
	if p.generation != generation {
		// The session was replaced while the exchange was in flight;
		// discard the result.
		current := p.creds
		p.lock.Unlock()
		reqLog.Debug("Discarding refresh result for a replaced session")
		return current
	}
	p.creds = newCreds
	p.lock.Unlock()

	if p.store != nil {
		if err := p.store.PutCredentials(ctx, newCreds); err != nil {
			reqLog.WithError(err).Warning("Failed to persist refreshed credentials")
		}
	}
	if newCreds.Dead() {
		p.notifySessionDead()
	}
	return newCreds
}

// deadRecord derives the terminal record from a failed refresh. The
// expiry is forced into the past so the staleness check fails even for
// a caller that skips the terminal-state check.
func (p *SessionTokenProvider) deadRecord(prev *state.Credentials) *state.Credentials {
	now := p.clock.Now()
	return &state.Credentials{
		AccessToken:   prev.AccessToken,
		RefreshToken:  prev.RefreshToken,
		IssuedAt:      now,
		ExpiresAt:     now.Add(-time.Minute),
		TerminalError: state.TerminalErrorRefreshFailed,
	}
}

func (p *SessionTokenProvider) notifySessionDead() {
	p.cbLock.Lock()
	if p.deadNotified {
		p.cbLock.Unlock()
		return
	}
	p.deadNotified = true
	callbacks := make([]func(error), len(p.deadCallbacks))
	copy(callbacks, p.deadCallbacks)
	p.cbLock.Unlock()

	for _, cb := range callbacks {
		cb(ErrSessionDead)
	}
}

// truncateToken keeps enough of a token to correlate log entries
// without recording usable secret material.
func truncateToken(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:10] + "..."
}
