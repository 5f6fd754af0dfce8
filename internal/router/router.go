package router

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weblogd/weblogd/internal/middleware"
	"github.com/weblogd/weblogd/internal/middleware/metrics"
	rl "github.com/weblogd/weblogd/internal/ratelimiter"
	"github.com/weblogd/weblogd/internal/setup"
)

// New creates and configures the mux router with all the routes.
// IMPORTANT! ratelimiters set with .Use limit requests for all endpoints combined in that subrouter
func New(deps *setup.Dependencies) *mux.Router {
	r := mux.NewRouter()

	// The ban gate runs before everything else; banned callers see 404s.
	r.Use(middleware.IPBan(deps.BanList))

	r.Use(metrics.Middleware)

	// Enable gzip compression for all responses
	r.Use(handlers.CompressHandler)

	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	))

	// JSON API only, no scripts/styles needed
	csp := "default-src 'none'; frame-ancestors 'none'"
	r.Use(middleware.SecurityHeadersWithCSP(deps.Config.Public.SecureCookies, csp))

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	h := deps.Handler
	session := deps.Session

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", h.Health).Methods("GET")
	v1.HandleFunc("/ready", h.Ready).Methods("GET")

	// Registration. The optional identity feeds SSO pre-fill; account
	// creation is rate limited per IP and globally like any endpoint that
	// can trigger email sending.
	register := v1.NewRoute().Subrouter()
	register.Use(session.OptionalIdentity())
	register.Use(middleware.RateLimit(rl.New(1.0/10, 1, 1*time.Hour), middleware.GetIP))
	register.Use(middleware.GlobalRateLimit(rl.Rps100()))
	register.HandleFunc("/register", h.RegisterForm).Methods("GET")
	register.HandleFunc("/register", h.Register).Methods("POST")

	v1.HandleFunc("/register/activate", h.Activate).Methods("GET")

	// Login endpoint (separate rate limiting)
	login := v1.NewRoute().Subrouter()
	login.Use(middleware.RateLimit(rl.OnceInSecond(), middleware.GetIP))
	login.HandleFunc("/login", h.Login).Methods("POST")

	v1.HandleFunc("/logout", h.Logout).Methods("POST")

	// Comment submission, one per second per IP.
	comments := v1.NewRoute().Subrouter()
	comments.Use(middleware.RateLimit(rl.New(1, 1, 1*time.Hour), middleware.GetIP))
	comments.Use(middleware.GlobalRateLimit(rl.Rps100()))
	comments.HandleFunc("/{weblog}/entries/{entry}/comments", h.CreateComment).Methods("POST")

	// Avoid 404s for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
