package mockremote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
)

// Player runs a script against one channel.
type Player struct {
	script *Script
	logger *slog.Logger
}

// NewPlayer creates a Player. A nil logger discards.
func NewPlayer(script *Script, logger *slog.Logger) *Player {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Player{script: script, logger: logger}
}

// Play sends every step in order. It returns when the script is done, ctx
// is cancelled or the channel fails.
func (p *Player) Play(ctx context.Context, ch ports.Channel) error {
	for i, step := range p.script.Steps {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		ev, err := step.event()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if err := ch.Emit(ctx, ev); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		p.logger.Debug("step sent", "script", p.script.Name, "step", i, "wait", step.Wait)

		if step.Wait {
			if err := p.awaitContinue(ctx, ch); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			p.logger.Info("continue received", "script", p.script.Name, "step", i)
		}
	}
	return nil
}

func (p *Player) awaitContinue(ctx context.Context, ch ports.Channel) error {
	for {
		ev, err := ch.Receive(ctx)
		if err != nil {
			return err
		}
		if ev.Name == domain.EventContinue {
			return nil
		}
		p.logger.Debug("ignoring event while paused", "event", ev.Name)
	}
}
