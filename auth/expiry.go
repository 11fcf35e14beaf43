package auth

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pixiscript/dashboard/lib/logger"
)

// backendTimeLayout is the fixed expires_at format of the identity
// backend: space-separated, no timezone suffix, always UTC.
const backendTimeLayout = "2006-01-02 15:04:05"

// expirySafetyWindow guards against the backend handing out a token
// that is already expired or about to expire: anything inside the
// window would send the session into an immediate refresh loop.
const expirySafetyWindow = 30 * time.Second

// DefaultFallbackWindow is the validity window assumed when the
// backend reports an expiry that is unusable. It matches the access
// token lifetime the backend normally issues.
const DefaultFallbackWindow = 10 * time.Minute

// ComputeExpiry converts the backend's expires_at value into an
// absolute instant. When the reported instant is already past or
// within the safety window, the result is now+fallbackWindow instead
// and a warning is logged.
//
// A malformed value is a backend contract violation, not a runtime
// condition, and panics.
func ComputeExpiry(raw string, fallbackWindow time.Duration, clock clockwork.Clock) time.Time {
	t, err := time.Parse(backendTimeLayout, raw)
	if err != nil {
		logger.Standard().WithError(err).Panicf("Backend returned malformed expires_at value %q", raw)
	}

	now := clock.Now()
	if !t.After(now.Add(expirySafetyWindow)) {
		logger.Standard().Warningf(
			"Token expiry %q is in the past or less than %s away, substituting %s from now",
			raw, expirySafetyWindow, fallbackWindow,
		)
		return now.Add(fallbackWindow)
	}

	return t
}
