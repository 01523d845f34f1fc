// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/jmestre/hearth/internal/app/engine/delivery"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	"github.com/jmestre/hearth/internal/app/engine/membership"
	"github.com/jmestre/hearth/internal/app/engine/reminder"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/app/system/tasks"
	"go.uber.org/zap"
)

// services holds the engine objects shared between the cron jobs, the
// HTTP handlers, and shutdown. Built once in Startup.
var services struct {
	Delivery *delivery.Adapter
	Members  *membership.Service
	Sweeper  *reminder.Sweeper
	Runner   *tasks.Runner
}

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// It builds the shared engine services and schedules the two periodic
// sweeps.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)
	groups := groupstore.New(deps.MongoDatabase)

	if deps.Redis != nil {
		services.Delivery = delivery.New(delivery.NewRedisPusher(deps.Redis), logger)
	} else {
		services.Delivery = delivery.New(nil, logger)
	}

	ib := inbox.New(users, services.Delivery, logger)
	services.Members = membership.New(users, groups, logger)

	zone, err := time.LoadLocation(appCfg.DefaultTimeZone)
	if err != nil {
		return err
	}
	services.Sweeper = reminder.New(users, groups, ib, time.Now, zone, logger)

	services.Runner = tasks.NewRunner(logger)
	if err := services.Runner.Register(tasks.Job{
		Name:    "reminder_sweep",
		Spec:    appCfg.ReminderCron,
		Timeout: 10 * time.Minute,
		Run:     services.Sweeper.Run,
	}); err != nil {
		return err
	}
	if err := services.Runner.Register(tasks.Job{
		Name:    "consistency_sweep",
		Spec:    appCfg.ReconcileCron,
		Timeout: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			report, err := services.Members.Reconcile(ctx)
			if report.RosterEntriesRemoved+report.RosterEntriesAdded+report.PointersCleared > 0 {
				logger.Info("consistency sweep repaired divergence",
					zap.Int("roster_removed", report.RosterEntriesRemoved),
					zap.Int("roster_added", report.RosterEntriesAdded),
					zap.Int("pointers_cleared", report.PointersCleared))
			}
			return err
		},
	}); err != nil {
		return err
	}
	services.Runner.Start()

	return nil
}
