package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/authsdk"
	"github.com/aussiebroadwan/warden/pkg/httpx"
)

// Pinger is a dependency /readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// probe renders the shared part of both health responses.
type probe struct {
	start   time.Time
	version string
}

func (p probe) write(w http.ResponseWriter, status string, checks *authsdk.HealthChecks) {
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, code, authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(p.start).Round(time.Second).String(),
		Version: p.version,
		Checks:  checks,
	})
}

// LivezHandler answers 200 for as long as the process serves requests.
func LivezHandler(start time.Time, version string) http.HandlerFunc {
	p := probe{start: start, version: version}
	return func(w http.ResponseWriter, _ *http.Request) {
		p.write(w, "ok", nil)
	}
}

// ReadyzHandler checks sqlite, redis and that a signing key is available.
// The signer check rotates lazily, so a fresh deployment is ready once it
// can mint its first key.
func ReadyzHandler(start time.Time, version string, db, cache Pinger, keys *service.SigningKeyManager) http.HandlerFunc {
	p := probe{start: start, version: version}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		checks := &authsdk.HealthChecks{
			Database: outcome(db.Ping(ctx)),
			Cache:    outcome(cache.Ping(ctx)),
			Signer:   "unknown",
		}
		// Without the cache there is no active key to check.
		if checks.Cache == "ok" {
			_, err := keys.ActiveSigner(ctx)
			checks.Signer = outcome(err)
		}

		status := "ok"
		if checks.Database != "ok" || checks.Signer != "ok" {
			status = "degraded"
		}
		p.write(w, status, checks)
	}
}

func outcome(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
