package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentcore/runtime/internal/agentstate"
	"github.com/agentcore/runtime/internal/hooks"
)

// StateStore is the subset of agentstate.State an AgentSync needs: a
// snapshot to persist on syncAgent, and a restore point to seed an agent
// that resumes a session it has a prior record in.
type StateStore interface {
	Dump() (map[string]any, error)
	Restore(snapshot map[string]any) error
}

// AgentSync is the session integration hook provider: it bridges an
// Agent's lifecycle events to a Store, so every invocation starts from
// (and leaves behind) durable session state rather than living only in
// the Agent's in-memory history.
//
// BeforeInvocation triggers initialize: the owning Session and Agent
// records are created if this is the first invocation, or the Agent's
// state is restored from its last persisted snapshot otherwise.
// MessageAdded triggers appendMessage (persist the new message) followed
// by syncAgent (persist the current agentstate.State snapshot), so a
// crash between messages never leaves the store referencing state that
// predates the history it claims to go with.
type AgentSync struct {
	store     Store
	sessionID string
	agentID   string
	state     StateStore

	initialized bool
}

// NewAgentSync returns a hooks.HookProvider that keeps sessionID/agentID
// in store synchronized with one Agent's invocation lifecycle. state is
// typically the *agentstate.State returned by the Agent's State() method.
func NewAgentSync(store Store, sessionID, agentID string, state *agentstate.State) *AgentSync {
	return &AgentSync{store: store, sessionID: sessionID, agentID: agentID, state: state}
}

// Hooks implements hooks.HookProvider.
func (a *AgentSync) Hooks() []hooks.HookRegistration {
	return []hooks.HookRegistration{
		{Event: hooks.EventBeforeInvocation, Callback: a.onBeforeInvocation},
		{Event: hooks.EventMessageAdded, Callback: a.onMessageAdded},
	}
}

// onBeforeInvocation implements initialize: ensure the Session exists,
// then either create a fresh Agent record or restore this Agent's state
// from the one already on file.
func (a *AgentSync) onBeforeInvocation(ctx context.Context, event hooks.Event) error {
	if a.initialized {
		return nil
	}

	now := time.Now()
	if _, err := a.store.ReadSession(ctx, a.sessionID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("sessions: initialize: reading session %q: %w", a.sessionID, err)
		}
		if err := a.store.CreateSession(ctx, &Session{ID: a.sessionID, CreatedAt: now, UpdatedAt: now}); err != nil {
			return fmt.Errorf("sessions: initialize: creating session %q: %w", a.sessionID, err)
		}
	}

	existing, err := a.store.ReadAgent(ctx, a.sessionID, a.agentID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := a.store.CreateAgent(ctx, &Agent{
			ID:        a.agentID,
			SessionID: a.sessionID,
			CreatedAt: now,
			UpdatedAt: now,
			State:     map[string]any{},
		}); err != nil {
			return fmt.Errorf("sessions: initialize: creating agent %q: %w", a.agentID, err)
		}
	case err != nil:
		return fmt.Errorf("sessions: initialize: reading agent %q: %w", a.agentID, err)
	default:
		if a.state != nil && len(existing.State) > 0 {
			if err := a.state.Restore(existing.State); err != nil {
				return fmt.Errorf("sessions: initialize: restoring agent %q state: %w", a.agentID, err)
			}
		}
	}

	a.initialized = true
	return nil
}

// onMessageAdded implements appendMessage followed by syncAgent.
func (a *AgentSync) onMessageAdded(ctx context.Context, event hooks.Event) error {
	ev, ok := event.(hooks.MessageAddedEvent)
	if !ok {
		return nil
	}

	if _, err := a.store.CreateMessage(ctx, a.sessionID, a.agentID, ev.Message); err != nil {
		return fmt.Errorf("sessions: appendMessage: %w", err)
	}

	return a.syncAgent(ctx)
}

// syncAgent persists the Agent's current state snapshot and bumps its
// UpdatedAt. A no-op if this AgentSync was built without a StateStore.
func (a *AgentSync) syncAgent(ctx context.Context) error {
	if a.state == nil {
		return nil
	}

	snapshot, err := a.state.Dump()
	if err != nil {
		return fmt.Errorf("sessions: syncAgent: dumping state: %w", err)
	}

	current, err := a.store.ReadAgent(ctx, a.sessionID, a.agentID)
	if err != nil {
		return fmt.Errorf("sessions: syncAgent: reading agent %q: %w", a.agentID, err)
	}
	current.State = snapshot
	current.UpdatedAt = time.Now()

	if err := a.store.UpdateAgent(ctx, current); err != nil {
		return fmt.Errorf("sessions: syncAgent: updating agent %q: %w", a.agentID, err)
	}
	return nil
}
