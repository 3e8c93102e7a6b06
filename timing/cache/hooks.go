package cache

import (
	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/trace"
)

// LogHook logs every access outcome at verbosity 2.
type LogHook struct {
	log logr.Logger
}

// NewLogHook creates a LogHook that writes to l.
func NewLogHook(l logr.Logger) *LogHook {
	return &LogHook{log: l}
}

// Func implements sim.Hook.
func (h *LogHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosAccess {
		return
	}

	rec, ok := ctx.Item.(trace.Record)
	if !ok {
		return
	}
	outcome, ok := ctx.Detail.(AccessOutcome)
	if !ok {
		return
	}

	h.log.V(2).Info("access",
		"kind", rec.Kind.String(),
		"addr", rec.Address,
		"set", outcome.Address.SetIndex,
		"tag", outcome.Address.Tag,
		"way", outcome.Way,
		"hit", outcome.Hit,
		"dirtyWriteback", outcome.DirtyWriteback)
}
