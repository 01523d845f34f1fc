// internal/app/features/tasks/handler.go
package tasks

import (
	"time"

	"github.com/jmestre/hearth/internal/app/engine/membership"
	"github.com/jmestre/hearth/internal/app/engine/reminder"
	"go.uber.org/zap"
)

// Handler exposes the periodic sweeps as HTTP triggers so operators can
// run them on demand between scheduled runs. Both sweeps are idempotent,
// so an extra trigger is always safe.
type Handler struct {
	Sweeper *reminder.Sweeper
	Members *membership.Service
	Log     *zap.Logger
}

// NewHandler constructs a tasks Handler around already-built engine
// services, so the HTTP triggers and the cron jobs share the same code.
func NewHandler(sweeper *reminder.Sweeper, members *membership.Service, logger *zap.Logger) *Handler {
	return &Handler{Sweeper: sweeper, Members: members, Log: logger}
}

// sweepTimeout bounds a manually triggered sweep.
const sweepTimeout = 5 * time.Minute
