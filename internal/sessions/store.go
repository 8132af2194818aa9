// Package sessions implements the session repository contract: persistence
// for sessions, the agents within them, their message histories, and
// multi-agent groupings, backed by either the filesystem or Postgres.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

// ErrNotFound is returned when a lookup names a session, agent, message, or
// multi-agent record that does not exist.
var ErrNotFound = errors.New("sessions: not found")

// InvalidIdentifierError is returned when an identifier contains a path
// separator or parent-directory reference, since every backend maps
// identifiers onto a filesystem-safe or SQL-safe namespace.
type InvalidIdentifierError struct {
	Kind  string
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("sessions: invalid %s identifier %q", e.Kind, e.Value)
}

// ValidateIdentifier rejects empty identifiers and anything containing a
// path separator or "..", so no identifier can escape its namespaced
// directory or table scope.
func ValidateIdentifier(kind, id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return &InvalidIdentifierError{Kind: kind, Value: id}
	}
	return nil
}

// Session is a persisted conversation container; it owns zero or more
// Agents and MultiAgents.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any
}

// Agent is one agent's persisted identity and state snapshot within a
// Session. State mirrors agentstate.State.Dump/Restore, not the message
// history, which is stored separately and addressed by index.
type Agent struct {
	ID        string
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
	State     map[string]any
}

// MultiAgent groups several Agent records under one persisted identity,
// e.g. a supervisor and its delegates sharing a Session.
type MultiAgent struct {
	ID        string
	SessionID string
	AgentIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the full session repository contract: sessions, agents, their
// message histories (addressed by a monotone per-agent integer index,
// returned ascending by ListMessages), and multi-agent groupings. Every
// identifier parameter is validated with ValidateIdentifier before use.
// Updates must preserve CreatedAt from the previous record.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	ReadSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error

	CreateAgent(ctx context.Context, a *Agent) error
	ReadAgent(ctx context.Context, sessionID, agentID string) (*Agent, error)
	UpdateAgent(ctx context.Context, a *Agent) error

	CreateMessage(ctx context.Context, sessionID, agentID string, msg models.Message) (index int, err error)
	ReadMessage(ctx context.Context, sessionID, agentID string, index int) (models.Message, error)
	UpdateMessage(ctx context.Context, sessionID, agentID string, index int, msg models.Message) error
	ListMessages(ctx context.Context, sessionID, agentID string, limit, offset int) ([]models.Message, error)

	CreateMultiAgent(ctx context.Context, m *MultiAgent) error
	ReadMultiAgent(ctx context.Context, sessionID, id string) (*MultiAgent, error)
	UpdateMultiAgent(ctx context.Context, m *MultiAgent) error
}
