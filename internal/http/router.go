package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"placement/internal/app"
	"placement/internal/http/handlers"
	httpmw "placement/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

type RouterDependencies struct {
	DriveHandler   *handlers.DriveHandler
	StudentHandler *handlers.StudentHandler
	ConsentHandler *handlers.ConsentHandler
	AuthMiddleware *httpmw.AuthMiddleware
	Logger         *slog.Logger
	RequestTimeout time.Duration
	AllowedOrigins []string
	// Limiter bounds consent traffic per client address; nil disables it.
	Limiter         httpmw.Limiter
	ConsentIPLimit  int
	RateLimitWindow time.Duration
	// Health reports readiness; nil means always ready.
	Health func(r *http.Request) error
}

func NewRouter(deps RouterDependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(httpmw.RequestID, httpmw.Logging(logger), httpmw.Recover(logger), httpmw.Metrics, httpmw.Timeout(deps.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(req); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	staff := httpmw.RequireRole(app.RoleStaff, app.RolePR, app.RoleAdmin)
	applicant := httpmw.RequireRole(app.RoleStudent, app.RolePR)
	jsonBody := httpmw.BodyLimit(maxBodyBytes)

	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.Authenticate)

		r.Route("/job-drives", func(r chi.Router) {
			r.Use(jsonBody)
			d := deps.DriveHandler
			r.Get("/", d.List)
			r.With(staff).Post("/", d.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", d.Get)
				r.With(staff).Patch("/", d.Update)
				r.With(applicant).Post("/apply", d.Apply)
				r.With(applicant).Get("/eligibility", d.Eligibility)
				r.With(staff).Post("/rounds", d.AddRound)
				r.With(staff).Patch("/rounds/{round}/status", d.UpdateRoundStatus)
				r.With(staff).Post("/rounds/{round}/select-students", d.SelectStudents)
				r.With(staff).Get("/rounds/{round}/candidates", d.Candidates)
				r.With(staff).Post("/finalize-placement", d.Finalize)
				r.With(staff).Get("/placed-students/export", d.ExportPlaced)
			})
		})

		r.Route("/students/me", func(r chi.Router) {
			r.Use(jsonBody, applicant)
			r.Get("/", deps.StudentHandler.Get)
			r.Put("/", deps.StudentHandler.Update)
			r.Get("/applications", deps.DriveHandler.MyApplications)
		})

		r.Route("/placement-consent", func(r chi.Router) {
			r.Use(applicant, httpmw.RateLimit(deps.Limiter, consentIPKey, deps.ConsentIPLimit, deps.RateLimitWindow))
			// The consent form carries the signature upload and bounds its own body.
			r.Post("/consent", deps.ConsentHandler.Submit)
			r.With(jsonBody).Post("/verify-otp", deps.ConsentHandler.VerifyOTP)
			r.With(jsonBody).Post("/resend-otp", deps.ConsentHandler.ResendOTP)
			r.Get("/status", deps.ConsentHandler.Status)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", httpmw.RequestIDHeader},
		ExposedHeaders:   []string{httpmw.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func consentIPKey(r *http.Request) string {
	return "consent-ip:" + httpmw.ClientIP(r)
}
