package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

// FileStore persists sessions, agents, and messages as one JSON file per
// record under root, in the exact layout
// session_<id>/agents/agent_<id>/messages/message_<N>.json. Every write goes
// through a temp-file-then-rename so a crash mid-write never leaves a
// partially-written record in place.
type FileStore struct {
	root string
}

// NewFileStore returns a FileStore rooted at dir, creating it if necessary.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessions: creating root %s: %w", dir, err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) sessionDir(id string) string { return filepath.Join(s.root, "session_"+id) }
func (s *FileStore) sessionFile(id string) string {
	return filepath.Join(s.sessionDir(id), "session.json")
}
func (s *FileStore) agentDir(sessionID, agentID string) string {
	return filepath.Join(s.sessionDir(sessionID), "agents", "agent_"+agentID)
}
func (s *FileStore) agentFile(sessionID, agentID string) string {
	return filepath.Join(s.agentDir(sessionID, agentID), "agent.json")
}
func (s *FileStore) messagesDir(sessionID, agentID string) string {
	return filepath.Join(s.agentDir(sessionID, agentID), "messages")
}
func (s *FileStore) messageFile(sessionID, agentID string, index int) string {
	return filepath.Join(s.messagesDir(sessionID, agentID), fmt.Sprintf("message_%d.json", index))
}
func (s *FileStore) multiAgentDir(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "multiagents")
}
func (s *FileStore) multiAgentFile(sessionID, id string) string {
	return filepath.Join(s.multiAgentDir(sessionID), "multiagent_"+id+".json")
}

// writeAtomic marshals v and writes it to path via a same-directory temp
// file followed by os.Rename, so concurrent readers never observe a
// half-written file.
func writeAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sessions: creating %s: %w", filepath.Dir(path), err)
	}
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("sessions: encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("sessions: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("sessions: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

func readFile(path string, v any) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("sessions: reading %s: %w", path, err)
	}
	return json.Unmarshal(buf, v)
}

func (s *FileStore) CreateSession(ctx context.Context, sess *Session) error {
	if err := ValidateIdentifier("session", sess.ID); err != nil {
		return err
	}
	now := time.Now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	return writeAtomic(s.sessionFile(sess.ID), sess)
}

func (s *FileStore) ReadSession(ctx context.Context, id string) (*Session, error) {
	if err := ValidateIdentifier("session", id); err != nil {
		return nil, err
	}
	var sess Session
	if err := readFile(s.sessionFile(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *FileStore) DeleteSession(ctx context.Context, id string) error {
	if err := ValidateIdentifier("session", id); err != nil {
		return err
	}
	if _, err := os.Stat(s.sessionFile(id)); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.RemoveAll(s.sessionDir(id))
}

func (s *FileStore) CreateAgent(ctx context.Context, a *Agent) error {
	if err := ValidateIdentifier("session", a.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", a.ID); err != nil {
		return err
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	return writeAtomic(s.agentFile(a.SessionID, a.ID), a)
}

func (s *FileStore) ReadAgent(ctx context.Context, sessionID, agentID string) (*Agent, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return nil, err
	}
	var a Agent
	if err := readFile(s.agentFile(sessionID, agentID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *FileStore) UpdateAgent(ctx context.Context, a *Agent) error {
	if err := ValidateIdentifier("session", a.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", a.ID); err != nil {
		return err
	}
	existing, err := s.ReadAgent(ctx, a.SessionID, a.ID)
	if err != nil {
		return err
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	return writeAtomic(s.agentFile(a.SessionID, a.ID), a)
}

func (s *FileStore) CreateMessage(ctx context.Context, sessionID, agentID string, msg models.Message) (int, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return 0, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return 0, err
	}
	index, err := s.nextMessageIndex(sessionID, agentID)
	if err != nil {
		return 0, err
	}
	if err := writeAtomic(s.messageFile(sessionID, agentID, index), msg); err != nil {
		return 0, err
	}
	return index, nil
}

func (s *FileStore) nextMessageIndex(sessionID, agentID string) (int, error) {
	entries, err := os.ReadDir(s.messagesDir(sessionID, agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("sessions: listing messages: %w", err)
	}
	return len(entries), nil
}

func (s *FileStore) ReadMessage(ctx context.Context, sessionID, agentID string, index int) (models.Message, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return models.Message{}, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	if err := readFile(s.messageFile(sessionID, agentID, index), &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *FileStore) UpdateMessage(ctx context.Context, sessionID, agentID string, index int, msg models.Message) error {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return err
	}
	path := s.messageFile(sessionID, agentID, index)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrNotFound
	}
	return writeAtomic(path, msg)
}

func (s *FileStore) ListMessages(ctx context.Context, sessionID, agentID string, limit, offset int) ([]models.Message, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return nil, err
	}
	n, err := s.nextMessageIndex(sessionID, agentID)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		return []models.Message{}, nil
	}
	end := n
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.Message, 0, end-offset)
	for i := offset; i < end; i++ {
		msg, err := s.ReadMessage(ctx, sessionID, agentID, i)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *FileStore) CreateMultiAgent(ctx context.Context, ma *MultiAgent) error {
	if err := ValidateIdentifier("session", ma.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("multi_agent", ma.ID); err != nil {
		return err
	}
	now := time.Now()
	ma.CreatedAt, ma.UpdatedAt = now, now
	return writeAtomic(s.multiAgentFile(ma.SessionID, ma.ID), ma)
}

func (s *FileStore) ReadMultiAgent(ctx context.Context, sessionID, id string) (*MultiAgent, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("multi_agent", id); err != nil {
		return nil, err
	}
	var ma MultiAgent
	if err := readFile(s.multiAgentFile(sessionID, id), &ma); err != nil {
		return nil, err
	}
	return &ma, nil
}

func (s *FileStore) UpdateMultiAgent(ctx context.Context, ma *MultiAgent) error {
	if err := ValidateIdentifier("session", ma.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("multi_agent", ma.ID); err != nil {
		return err
	}
	existing, err := s.ReadMultiAgent(ctx, ma.SessionID, ma.ID)
	if err != nil {
		return err
	}
	ma.CreatedAt = existing.CreatedAt
	ma.UpdatedAt = time.Now()
	return writeAtomic(s.multiAgentFile(ma.SessionID, ma.ID), ma)
}
