// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for Hearth.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, reminder_cron, etc.
//   - Environment variables: HEARTH_MONGO_URI, HEARTH_REMINDER_CRON, etc.
//   - Command-line flags: --mongo_uri, --reminder_cron, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "hearth", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	{Name: "redis_uri", Default: "", Desc: "Redis URI for push delivery (blank disables push)"},

	{Name: "reminder_cron", Default: "0 7 * * *", Desc: "Cron spec for the daily event-reminder sweep"},
	{Name: "reconcile_cron", Default: "0 * * * *", Desc: "Cron spec for the membership consistency sweep"},

	{Name: "default_time_zone", Default: "UTC", Desc: "Time zone for groups that have not set one"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// CoreConfig comes from the shared WAFFLE layer; AppConfig is specific
// to this app and can be extended as the app grows.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, HEARTH_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "HEARTH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionDomain: appValues.String("session_domain"),

		RedisURI: appValues.String("redis_uri"),

		ReminderCron:  appValues.String("reminder_cron"),
		ReconcileCron: appValues.String("reconcile_cron"),

		DefaultTimeZone: appValues.String("default_time_zone"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(appCfg.ReminderCron); err != nil {
		return fmt.Errorf("invalid reminder_cron %q: %w", appCfg.ReminderCron, err)
	}
	if _, err := parser.Parse(appCfg.ReconcileCron); err != nil {
		return fmt.Errorf("invalid reconcile_cron %q: %w", appCfg.ReconcileCron, err)
	}

	if _, err := time.LoadLocation(appCfg.DefaultTimeZone); err != nil {
		return fmt.Errorf("invalid default_time_zone %q: %w", appCfg.DefaultTimeZone, err)
	}

	return nil
}
