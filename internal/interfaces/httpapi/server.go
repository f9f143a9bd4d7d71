// Package httpapi serves the portal's JSON API, the public object URLs and
// the metrics endpoint.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/infrastructure/auth"
	"safetyportal/internal/infrastructure/metrics"
	"safetyportal/internal/ports"
	"safetyportal/internal/usecase/pdfexport"
	"safetyportal/internal/usecase/refdata"
	"safetyportal/internal/usecase/reportedit"
	"safetyportal/internal/usecase/reportform"
	"safetyportal/internal/usecase/reporttable"
)

const defaultMaxUploadBytes = 10 << 20

// Deps are the collaborators the handlers call. Metrics may be nil.
type Deps struct {
	Users   ports.UserRepository
	Tokens  *auth.TokenService
	Storage ports.ObjectStorage
	Buckets ports.Buckets
	Metrics *metrics.Prometheus

	Submit  *reportform.Service
	Edit    *reportedit.Service
	Table   *reporttable.Controller
	Refdata *refdata.Service
	PDF     *pdfexport.Exporter

	AllowedOrigins []string
	MaxUploadBytes int64
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{deps: deps}
}

// Routes builds the router. The /api group requires a bearer token.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/storage/v1/object/public/{bucket}/*", s.publicObject)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/me", s.me)
		r.Get("/lookups", s.lookups)

		r.Route("/observations", func(r chi.Router) {
			r.Post("/", s.submitObservation)
			r.Get("/", s.listObservations)
			r.Get("/export.xlsx", s.exportXLSX)
			r.Get("/export.csv", s.exportCSV)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getObservation)
				r.Put("/", s.updateObservation)
				r.Delete("/", s.deleteObservation)
				r.Get("/pdf", s.observationPDF)

				r.Post("/action-plans", s.addActionPlan)
				r.Put("/action-plans/{planID}", s.editActionPlan)
				r.Delete("/action-plans/{planID}", s.deleteActionPlan)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", s.listUsers)
			r.Post("/users", s.saveUser)
			r.Put("/users/{id}", s.saveUser)
			r.Delete("/users/{id}", s.deleteUser)

			for _, kind := range refKinds {
				r.Post("/"+kind.path, s.saveReference(kind))
				r.Put("/"+kind.path+"/{id}", s.saveReference(kind))
				r.Delete("/"+kind.path+"/{id}", s.deleteReference(kind))
			}
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observe tags the request context for logging and records the request in
// the access log and metrics once the handler returns.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := logging.WithAttrs(
			logging.WithRequest(r.Context(), middleware.GetReqID(r.Context()), ""),
			slog.String("component", "interfaces.httpapi"),
		)
		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(started)
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveHTTP(route, r.Method, status, elapsed)
		}
		logging.Debug(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", elapsed),
		)
	})
}
