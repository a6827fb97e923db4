package jobs

import (
	"context"
	"log/slog"
	"time"

	"vodworks/internal/config"
	"vodworks/internal/metrics"
	"vodworks/internal/session"
	"vodworks/internal/workspace"
)

// RetentionStats captures what one cleanup pass removed.
type RetentionStats struct {
	WorkspacesRemoved int `json:"workspacesRemoved"`
	SessionsRemoved   int `json:"sessionsRemoved"`
}

// CleanupExpired removes workspaces older than the workspace max age
// and session records older than the session TTL. The two sweeps are
// independent and uncoordinated: a record can briefly outlive its
// workspace and vice versa, and both endpoints tolerate that.
func CleanupExpired(ctx context.Context, cfg *config.Config, store *session.Store, ws *workspace.Manager, logger *slog.Logger) RetentionStats {
	stats := RetentionStats{}

	wsMaxAge := time.Duration(cfg.Workspace.MaxAgeSeconds) * time.Second
	if n, err := ws.Sweep(wsMaxAge); err == nil {
		stats.WorkspacesRemoved = n
		if n > 0 {
			metrics.RecordRetentionWorkspaces(n)
		}
	} else {
		logger.Error("workspace_sweep_failed", "error", err)
	}

	if n, err := store.SweepExpired(ctx, store.TTL()); err == nil {
		stats.SessionsRemoved = n
		if n > 0 {
			metrics.RecordRetentionSessions(n)
		}
	} else {
		logger.Error("session_sweep_failed", "error", err)
	}

	if stats.WorkspacesRemoved > 0 || stats.SessionsRemoved > 0 {
		logger.Info("retention_cleanup",
			"workspaces_removed", stats.WorkspacesRemoved,
			"sessions_removed", stats.SessionsRemoved)
	}
	return stats
}
