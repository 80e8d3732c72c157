package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"wasteflow/internal/metrics"
	"wasteflow/internal/repo"
	"wasteflow/internal/stats"
	"wasteflow/internal/workflow"
	"wasteflow/internal/workflow/auth"
)

// Config for the HTTP API handler.
type Config struct {
	Engine      workflow.Engine
	Stats       stats.Service
	Guard       auth.Service
	BasePath    string
	Auth        AuthConfig
	CORSOrigins []string
	Metrics     *metrics.Metrics
	PromReg     *prometheus.Registry
}

// apiError is the wire error envelope. Every non-2xx response is
// {"error": "<message>"}.
type apiError struct {
	status  int
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Message: message}
}

// New returns an HTTP handler exposing the WasteFlow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors are the client's fault.
			status = http.StatusBadRequest
		}
		if len(errs) > 0 {
			parts := make([]string, 0, len(errs))
			for _, e := range errs {
				parts = append(parts, e.Error())
			}
			msg = msg + ": " + strings.Join(parts, "; ")
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	if cfg.Metrics != nil {
		router.Use(newMetricsMiddleware(cfg.Metrics))
	}
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("WasteFlow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerMetricsEndpoint(router, cfg.PromReg)
	registerHealth(group)
	registerMe(group, cfg.Guard)
	registerCitizen(group, cfg.Engine, cfg.Guard)
	registerWorker(group, cfg.Engine, cfg.Guard)
	registerAdminReports(group, cfg.Engine, cfg.Stats, cfg.Guard)
	registerAdminJobs(group, cfg.Engine, cfg.Guard)
	registerAdminMarketplace(group, cfg.Engine, cfg.Guard)
	registerAdminApplications(group, cfg.Engine, cfg.Guard)
	registerAdminEvents(group, cfg.Engine, cfg.Guard)
	registerAdminUsers(group, cfg.Engine, cfg.Guard)
	registerAdminStats(group, cfg.Stats, cfg.Guard)

	handler := http.Handler(router)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Api-Key"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	return handler, nil
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, err.Error())
	}
	var ve workflow.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, err.Error())
	}
	var ce workflow.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, err.Error())
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, err.Error())
	}
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// requirePermission authorizes before any mutation runs. JWT-borne
// permission claims are honored directly; API-key and legacy principals
// are resolved against the roles tables.
func requirePermission(ctx context.Context, guard auth.Service, perm string) (string, huma.StatusError) {
	principal, ok := principalFromContext(ctx)
	if !ok || principal.UserID == "" {
		return "", newAPIError(http.StatusUnauthorized, "authentication required")
	}
	if hasPermission(principal.Permissions, perm) {
		return principal.UserID, nil
	}
	if err := guard.Require(ctx, principal.UserID, perm); err != nil {
		return "", handleError(err)
	}
	return principal.UserID, nil
}

func newMetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.Request(r.Method, routePattern(r), strconv.Itoa(rec.status))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func registerMetricsEndpoint(r chi.Router, reg *prometheus.Registry) {
	if reg == nil {
		return
	}
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok || principal.UserID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "authentication required")
		}
		roles := principal.Roles
		perms := principal.Permissions
		if len(roles) == 0 {
			dbRoles, err := guard.Roles(ctx, principal.UserID)
			if err != nil {
				return nil, handleError(err)
			}
			roles = dbRoles
		}
		if len(perms) == 0 {
			dbPerms, err := guard.Permissions(ctx, principal.UserID)
			if err != nil {
				return nil, handleError(err)
			}
			perms = dbPerms
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{
			UserID:      principal.UserID,
			Roles:       roles,
			Permissions: perms,
			Source:      principal.Source,
		}}, nil
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>WasteFlow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: %q,
          dom_id: '#swagger-ui',
        });
      };
    </script>
  </body>
</html>`, specURL)
}
