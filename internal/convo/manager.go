// Package convo implements conversation managers: components that observe
// a loop's working history through the hook registry and may rewrite it,
// most commonly to compact history that has grown past a model's context
// window.
package convo

import (
	"github.com/agentcore/runtime/internal/hooks"
)

// Manager is implemented by every conversation manager. It is a
// hooks.HookProvider so the agent loop can attach and detach it like any
// other hook, and additionally exposes state it needs preserved across a
// session restore (e.g. whether it already compacted once this turn).
type Manager interface {
	hooks.HookProvider
	GetState() map[string]any
	RestoreState(state map[string]any) error
}
