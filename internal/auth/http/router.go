package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// Verifier authenticates bearer tokens on introspection.
	Verifier httpx.TokenVerifier

	// ServiceToken guards the internal endpoints. Empty disables them.
	ServiceToken string

	Database Pinger
	Cache    Pinger
	Metrics  *metrics.Metrics

	Keys   *service.SigningKeyManager
	Tokens *service.TokenIssuer
	Otp    *service.OtpEngine
	Login  *service.LoginOtpService
}

func NewRouter(buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerToken()
	r.registerLogin()
	r.registerInternal()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerToken() {
	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.Keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// POST /token/refresh - strict, per device so a shared NAT isn't starved
	r.Mux.Handle("POST /v1/token/refresh",
		httpx.Chain(&RefreshHandler{Tokens: r.Tokens},
			httpx.RateLimitByDevice(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/token/introspect",
		httpx.Chain(&IntrospectHandler{Verifier: r.Verifier},
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.AuthnMiddleware(r.Verifier),
		),
	)
}

func (r *Router) registerLogin() {
	h := &LoginOtpHandler{Login: r.Login}

	// Sends are strict by IP on top of the per-recipient OTP limits.
	r.Mux.Handle("POST /v1/login/otp/sms",
		httpx.Chain(http.HandlerFunc(h.HandleSms),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/login/otp/email",
		httpx.Chain(http.HandlerFunc(h.HandleEmail),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/login/otp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByDevice(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerInternal() {
	internal := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.ServiceTokenMiddleware(r.ServiceToken),
		)
	}

	sessions := &SessionsHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /v1/sessions", internal(http.HandlerFunc(sessions.HandleIssue)))
	r.Mux.Handle("DELETE /v1/sessions", internal(http.HandlerFunc(sessions.HandleRevoke)))

	identities := &IdentitiesHandler{Tokens: r.Tokens}
	r.Mux.Handle("PUT /v1/identities/{id}/status", internal(identities))

	otp := &OtpHandler{Otp: r.Otp, Tokens: r.Tokens}
	r.Mux.Handle("POST /v1/otp/sms", internal(http.HandlerFunc(otp.HandleSms)))
	r.Mux.Handle("POST /v1/otp/email", internal(http.HandlerFunc(otp.HandleEmail)))
	r.Mux.Handle("POST /v1/otp/verify", internal(http.HandlerFunc(otp.HandleVerify)))
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Database, r.Cache, r.Keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
