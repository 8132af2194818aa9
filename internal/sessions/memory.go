package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

// MemoryStore provides an in-memory Store implementation for testing and
// local runs. Message indices are assigned sequentially starting at 0,
// per (sessionID, agentID) pair.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	agents      map[string]*Agent // key: sessionID + "/" + agentID
	messages    map[string][]models.Message
	multiAgents map[string]*MultiAgent
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*Session),
		agents:      make(map[string]*Agent),
		messages:    make(map[string][]models.Message),
		multiAgents: make(map[string]*MultiAgent),
	}
}

func agentKey(sessionID, agentID string) string { return sessionID + "/" + agentID }

func (m *MemoryStore) CreateSession(ctx context.Context, s *Session) error {
	if err := ValidateIdentifier("session", s.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	clone := *s
	clone.Metadata = deepCloneMap(s.Metadata)
	clone.CreatedAt = now
	clone.UpdatedAt = now
	m.sessions[s.ID] = &clone
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

func (m *MemoryStore) ReadSession(ctx context.Context, id string) (*Session, error) {
	if err := ValidateIdentifier("session", id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s
	clone.Metadata = deepCloneMap(s.Metadata)
	return &clone, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	if err := ValidateIdentifier("session", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	prefix := id + "/"
	for k := range m.agents {
		if strings.HasPrefix(k, prefix) {
			delete(m.agents, k)
			delete(m.messages, k)
		}
	}
	return nil
}

func (m *MemoryStore) CreateAgent(ctx context.Context, a *Agent) error {
	if err := ValidateIdentifier("session", a.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", a.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	clone := *a
	clone.State = deepCloneMap(a.State)
	clone.CreatedAt = now
	clone.UpdatedAt = now
	m.agents[agentKey(a.SessionID, a.ID)] = &clone
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (m *MemoryStore) ReadAgent(ctx context.Context, sessionID, agentID string) (*Agent, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[agentKey(sessionID, agentID)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	clone.State = deepCloneMap(a.State)
	return &clone, nil
}

func (m *MemoryStore) UpdateAgent(ctx context.Context, a *Agent) error {
	if err := ValidateIdentifier("session", a.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", a.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agentKey(a.SessionID, a.ID)
	existing, ok := m.agents[key]
	if !ok {
		return ErrNotFound
	}
	clone := *a
	clone.State = deepCloneMap(a.State)
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	m.agents[key] = &clone
	return nil
}

func (m *MemoryStore) CreateMessage(ctx context.Context, sessionID, agentID string, msg models.Message) (int, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return 0, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agentKey(sessionID, agentID)
	index := len(m.messages[key])
	m.messages[key] = append(m.messages[key], msg)
	return index, nil
}

func (m *MemoryStore) ReadMessage(ctx context.Context, sessionID, agentID string, index int) (models.Message, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return models.Message{}, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return models.Message{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[agentKey(sessionID, agentID)]
	if index < 0 || index >= len(msgs) {
		return models.Message{}, ErrNotFound
	}
	return msgs[index], nil
}

func (m *MemoryStore) UpdateMessage(ctx context.Context, sessionID, agentID string, index int, msg models.Message) error {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agentKey(sessionID, agentID)
	msgs := m.messages[key]
	if index < 0 || index >= len(msgs) {
		return ErrNotFound
	}
	msgs[index] = msg
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, sessionID, agentID string, limit, offset int) ([]models.Message, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[agentKey(sessionID, agentID)]
	if offset < 0 {
		offset = 0
	}
	if offset > len(msgs) {
		return []models.Message{}, nil
	}
	end := len(msgs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.Message, end-offset)
	copy(out, msgs[offset:end])
	return out, nil
}

func (m *MemoryStore) CreateMultiAgent(ctx context.Context, ma *MultiAgent) error {
	if err := ValidateIdentifier("session", ma.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("multi_agent", ma.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	clone := *ma
	clone.AgentIDs = append([]string(nil), ma.AgentIDs...)
	clone.CreatedAt, clone.UpdatedAt = now, now
	m.multiAgents[agentKey(ma.SessionID, ma.ID)] = &clone
	ma.CreatedAt, ma.UpdatedAt = now, now
	return nil
}

func (m *MemoryStore) ReadMultiAgent(ctx context.Context, sessionID, id string) (*MultiAgent, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("multi_agent", id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ma, ok := m.multiAgents[agentKey(sessionID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *ma
	clone.AgentIDs = append([]string(nil), ma.AgentIDs...)
	return &clone, nil
}

func (m *MemoryStore) UpdateMultiAgent(ctx context.Context, ma *MultiAgent) error {
	if err := ValidateIdentifier("session", ma.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("multi_agent", ma.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agentKey(ma.SessionID, ma.ID)
	existing, ok := m.multiAgents[key]
	if !ok {
		return ErrNotFound
	}
	clone := *ma
	clone.AgentIDs = append([]string(nil), ma.AgentIDs...)
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now()
	m.multiAgents[key] = &clone
	return nil
}

// deepCloneMap creates a deep copy of a map[string]any to prevent shared references.
func deepCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = deepCloneValue(v)
	}
	return clone
}

// deepCloneValue recursively clones a value, handling nested maps and slices.
func deepCloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCloneMap(val)
	case []any:
		cloned := make([]any, len(val))
		for i, item := range val {
			cloned[i] = deepCloneValue(item)
		}
		return cloned
	case []string:
		cloned := make([]string, len(val))
		copy(cloned, val)
		return cloned
	default:
		return v
	}
}
