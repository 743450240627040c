package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/logging"
	gatemiddleware "github.com/flowtrack/flowgate/cmd/flowgate/internal/middleware"
)

// RouterOptions controls the construction of the edge router.
type RouterOptions struct {
	Evaluator   *gatemiddleware.Evaluator // required
	APIPrefix   string                    // required; mounted ungated
	APIHandler  http.Handler              // backend proxy; nil answers 502
	PageHandler http.Handler              // SPA assets or upstream renderer; required
	Access      *access.Policy            // optional; enables /_gate/access
	Logger      *zap.Logger
	CORSOptions *cors.Options
	Middleware  []func(http.Handler) http.Handler
	// Instrument wraps the router in otelhttp.
	Instrument    bool
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the development CORS policy for the dashboard dev server.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the edge: health, gate endpoints, the ungated API
// prefix, and every other path behind the gate.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(gatemiddleware.CanonicalPath)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	health := opts.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/healthz", health)

	r.Route("/_gate", func(r chi.Router) {
		r.Get("/verdict", HandleVerdict(opts.Evaluator))
		r.Get("/access", HandleAccess(opts.Access))
	})

	api := opts.APIHandler
	if api == nil {
		logger.Warn("no api backend configured, api prefix answers 502")
		api = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		})
	}
	r.Mount(opts.APIPrefix, api)

	gated := gatemiddleware.Gate(opts.Evaluator)(opts.PageHandler)
	r.Handle("/*", gated)

	if opts.Instrument {
		return otelhttp.NewHandler(r, "flowgate")
	}
	return r
}
