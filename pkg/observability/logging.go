package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/argview/pkg/domain"
)

// LogHooks logs engine events at debug (applies) and info (gate, connection) level.
// Rejections are already logged by the engine and are not repeated here.
func LogHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnApply: func(ctx context.Context, e *domain.ApplyEvent) {
			logger.DebugContext(ctx, "message applied",
				"seq", e.Seq,
				"method", e.Method,
				"origin", e.Origin,
				"changed", e.Changed,
				"nodes", e.NodeCount,
				"duration", e.Duration,
			)
		},
		OnGate: func(ctx context.Context, e *domain.GateEvent) {
			logger.InfoContext(ctx, "gate changed",
				"status", e.Gate.Status,
				"connected", e.Gate.Connected,
				"continue_sent", e.Emitted,
			)
		},
		OnConnection: func(ctx context.Context, e *domain.ConnectionEvent) {
			logger.InfoContext(ctx, "connection event",
				"url", e.URL,
				"kind", e.Kind,
				"err", e.Err,
			)
		},
	}
}
