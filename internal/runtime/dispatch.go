package runtime

import (
	"context"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/tree"
)

// dispatch applies msg to the live tree. Must run inside the sequencer.
func (e *Engine) dispatch(ctx context.Context, op *operation, msg *domain.Message) error {
	switch msg.Method {
	case domain.MethodAdd:
		next, err := tree.AddChild(e.root, msg.Parent, msg.Child)
		if err != nil {
			return err
		}
		e.commit(ctx, next)
		op.changed = true

	case domain.MethodDelete:
		next, removed, err := tree.RemoveChild(e.root, msg.Parent, msg.ChildID)
		if err != nil {
			return err
		}
		if !removed {
			e.logger.Warn("delete ignored: child is not a direct child of parent",
				"run_id", e.runID,
				"parent", msg.Parent,
				"child", msg.ChildID,
			)
			return nil
		}
		e.commit(ctx, next)
		op.changed = true

	case domain.MethodCreate:
		next, err := tree.Replace(e.root, msg.Root)
		if err != nil {
			return err
		}
		e.commit(ctx, next)
		op.changed = true

	case domain.MethodWait:
		if e.flow.Wait() {
			e.commit(ctx, e.root)
			e.gateChanged(ctx, false)
			op.changed = true
		}

	default:
		e.logger.Debug("ignoring message with unknown method", "run_id", e.runID, "method", msg.Method)
	}
	return nil
}
