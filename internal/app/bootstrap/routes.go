// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	authfeature "github.com/jmestre/hearth/internal/app/features/auth"
	contentfeature "github.com/jmestre/hearth/internal/app/features/content"
	groupsfeature "github.com/jmestre/hearth/internal/app/features/groups"
	healthfeature "github.com/jmestre/hearth/internal/app/features/health"
	inboxfeature "github.com/jmestre/hearth/internal/app/features/inbox"
	requestsfeature "github.com/jmestre/hearth/internal/app/features/requests"
	tasksfeature "github.com/jmestre/hearth/internal/app/features/tasks"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	// This makes the current user available to all handlers via
	// auth.CurrentUser(r).
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Accounts and sessions
	authHandler := authfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/auth", authfeature.Routes(authHandler))

	// Group lifecycle and membership
	groupsHandler := groupsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler))

	// Join requests
	requestsHandler := requestsfeature.NewHandler(deps.MongoClient, deps.MongoDatabase, services.Delivery, logger)
	r.Mount("/requests", requestsfeature.Routes(requestsHandler))

	// Events, news, and incident reports
	contentHandler := contentfeature.NewHandler(deps.MongoDatabase, services.Delivery, logger)
	r.Mount("/content", contentfeature.Routes(contentHandler))

	// Notification inbox, preferences, push tokens
	inboxHandler := inboxfeature.NewHandler(deps.MongoDatabase, services.Delivery, logger)
	r.Mount("/inbox", inboxfeature.Routes(inboxHandler))

	// Operational sweep triggers; not part of the member-facing API.
	tasksHandler := tasksfeature.NewHandler(services.Sweeper, services.Members, logger)
	r.Mount("/tasks", tasksfeature.Routes(tasksHandler))

	return r, nil
}
