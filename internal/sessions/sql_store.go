package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/agentcore/runtime/pkg/models"
)

// SQLStore implements Store against a Postgres-wire-compatible database
// (CockroachDB or Postgres itself). Message reads and writes go through
// prepared statements since they sit on the hot path of every turn.
type SQLStore struct {
	db *sql.DB

	stmtCreateMessage *sql.Stmt
	stmtListMessages  *sql.Stmt
}

// SQLConfig holds connection parameters for NewSQLStore.
type SQLConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultSQLConfig returns configuration suitable for a local CockroachDB
// instance started with default flags.
func DefaultSQLConfig() *SQLConfig {
	return &SQLConfig{
		Host:            "localhost",
		Port:            26257,
		User:            "root",
		Database:        "agentcore",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewSQLStore opens a connection pool, pings it, creates the schema if
// missing, and prepares the hot-path statements.
func NewSQLStore(cfg *SQLConfig) (*SQLStore, error) {
	if cfg == nil {
		cfg = DefaultSQLConfig()
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		int(cfg.ConnectTimeout.Seconds()),
	)
	return newSQLStoreWithDSN(dsn, cfg)
}

// NewSQLStoreFromDSN opens a store from a raw connection string, used for
// managed Postgres/CockroachDB endpoints that hand out a single URL.
func NewSQLStoreFromDSN(dsn string, cfg *SQLConfig) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("sessions: dsn is required")
	}
	if cfg == nil {
		cfg = DefaultSQLConfig()
	}
	return newSQLStoreWithDSN(dsn, cfg)
}

func newSQLStoreWithDSN(dsn string, cfg *SQLConfig) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessions: opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: pinging database: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: creating schema: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: preparing statements: %w", err)
	}
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id         STRING PRIMARY KEY,
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS agents (
	session_id STRING NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	id         STRING NOT NULL,
	state      JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE TABLE IF NOT EXISTS messages (
	session_id STRING NOT NULL,
	agent_id   STRING NOT NULL,
	index      INT NOT NULL,
	payload    JSONB NOT NULL,
	PRIMARY KEY (session_id, agent_id, index),
	CONSTRAINT fk_agent FOREIGN KEY (session_id, agent_id) REFERENCES agents(session_id, id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS multi_agents (
	session_id STRING NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	id         STRING NOT NULL,
	agent_ids  JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE TABLE IF NOT EXISTS session_locks (
	session_id STRING PRIMARY KEY,
	owner_id   STRING NOT NULL,
	acquired_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

func createSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *SQLStore) prepareStatements() error {
	var err error
	s.stmtCreateMessage, err = s.db.Prepare(
		`INSERT INTO messages (session_id, agent_id, index, payload)
		 SELECT $1, $2, COALESCE(MAX(index), -1) + 1, $3 FROM messages WHERE session_id = $1 AND agent_id = $2
		 RETURNING index`)
	if err != nil {
		return err
	}
	s.stmtListMessages, err = s.db.Prepare(
		`SELECT payload FROM messages WHERE session_id = $1 AND agent_id = $2 ORDER BY index ASC LIMIT $3 OFFSET $4`)
	return err
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// DB exposes the underlying connection pool so callers can build other
// collaborators (e.g. DBLocker) that need to share it instead of opening a
// second pool against the same database.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) CreateSession(ctx context.Context, sess *Session) error {
	if err := ValidateIdentifier("session", sess.ID); err != nil {
		return err
	}
	meta, err := marshalOrEmptyObject(sess.Metadata)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, metadata, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		sess.ID, meta, now)
	if err != nil {
		return fmt.Errorf("sessions: creating session: %w", err)
	}
	sess.CreatedAt, sess.UpdatedAt = now, now
	return nil
}

func (s *SQLStore) ReadSession(ctx context.Context, id string) (*Session, error) {
	if err := ValidateIdentifier("session", id); err != nil {
		return nil, err
	}
	var sess Session
	var meta []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT id, metadata, created_at, updated_at FROM sessions WHERE id = $1`, id)
	if err := row.Scan(&sess.ID, &meta, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessions: reading session: %w", err)
	}
	if err := json.Unmarshal(meta, &sess.Metadata); err != nil {
		return nil, fmt.Errorf("sessions: decoding metadata: %w", err)
	}
	return &sess, nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, id string) error {
	if err := ValidateIdentifier("session", id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sessions: deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateAgent(ctx context.Context, a *Agent) error {
	if err := ValidateIdentifier("session", a.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", a.ID); err != nil {
		return err
	}
	state, err := marshalOrEmptyObject(a.State)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (session_id, id, state, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		a.SessionID, a.ID, state, now)
	if err != nil {
		return fmt.Errorf("sessions: creating agent: %w", err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (s *SQLStore) ReadAgent(ctx context.Context, sessionID, agentID string) (*Agent, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return nil, err
	}
	var a Agent
	var state []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, id, state, created_at, updated_at FROM agents WHERE session_id = $1 AND id = $2`,
		sessionID, agentID)
	if err := row.Scan(&a.SessionID, &a.ID, &state, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessions: reading agent: %w", err)
	}
	if err := json.Unmarshal(state, &a.State); err != nil {
		return nil, fmt.Errorf("sessions: decoding state: %w", err)
	}
	return &a, nil
}

func (s *SQLStore) UpdateAgent(ctx context.Context, a *Agent) error {
	if err := ValidateIdentifier("session", a.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", a.ID); err != nil {
		return err
	}
	state, err := marshalOrEmptyObject(a.State)
	if err != nil {
		return err
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET state = $3, updated_at = $4 WHERE session_id = $1 AND id = $2`,
		a.SessionID, a.ID, state, now)
	if err != nil {
		return fmt.Errorf("sessions: updating agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

func (s *SQLStore) CreateMessage(ctx context.Context, sessionID, agentID string, msg models.Message) (int, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return 0, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("sessions: encoding message: %w", err)
	}
	var index int
	if err := s.stmtCreateMessage.QueryRowContext(ctx, sessionID, agentID, payload).Scan(&index); err != nil {
		return 0, fmt.Errorf("sessions: creating message: %w", err)
	}
	return index, nil
}

func (s *SQLStore) ReadMessage(ctx context.Context, sessionID, agentID string, index int) (models.Message, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return models.Message{}, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return models.Message{}, err
	}
	var payload []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM messages WHERE session_id = $1 AND agent_id = $2 AND index = $3`,
		sessionID, agentID, index)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("sessions: reading message: %w", err)
	}
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.Message{}, fmt.Errorf("sessions: decoding message: %w", err)
	}
	return msg, nil
}

func (s *SQLStore) UpdateMessage(ctx context.Context, sessionID, agentID string, index int, msg models.Message) error {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sessions: encoding message: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET payload = $4 WHERE session_id = $1 AND agent_id = $2 AND index = $3`,
		sessionID, agentID, index, payload)
	if err != nil {
		return fmt.Errorf("sessions: updating message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListMessages(ctx context.Context, sessionID, agentID string, limit, offset int) ([]models.Message, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("agent", agentID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1 << 30
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.stmtListMessages.QueryContext(ctx, sessionID, agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sessions: listing messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sessions: scanning message: %w", err)
		}
		var msg models.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("sessions: decoding message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

func (s *SQLStore) CreateMultiAgent(ctx context.Context, ma *MultiAgent) error {
	if err := ValidateIdentifier("session", ma.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("multi_agent", ma.ID); err != nil {
		return err
	}
	ids, err := json.Marshal(ma.AgentIDs)
	if err != nil {
		return fmt.Errorf("sessions: encoding agent ids: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO multi_agents (session_id, id, agent_ids, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		ma.SessionID, ma.ID, ids, now)
	if err != nil {
		return fmt.Errorf("sessions: creating multi-agent: %w", err)
	}
	ma.CreatedAt, ma.UpdatedAt = now, now
	return nil
}

func (s *SQLStore) ReadMultiAgent(ctx context.Context, sessionID, id string) (*MultiAgent, error) {
	if err := ValidateIdentifier("session", sessionID); err != nil {
		return nil, err
	}
	if err := ValidateIdentifier("multi_agent", id); err != nil {
		return nil, err
	}
	var ma MultiAgent
	var ids []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, id, agent_ids, created_at, updated_at FROM multi_agents WHERE session_id = $1 AND id = $2`,
		sessionID, id)
	if err := row.Scan(&ma.SessionID, &ma.ID, &ids, &ma.CreatedAt, &ma.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessions: reading multi-agent: %w", err)
	}
	if err := json.Unmarshal(ids, &ma.AgentIDs); err != nil {
		return nil, fmt.Errorf("sessions: decoding agent ids: %w", err)
	}
	return &ma, nil
}

func (s *SQLStore) UpdateMultiAgent(ctx context.Context, ma *MultiAgent) error {
	if err := ValidateIdentifier("session", ma.SessionID); err != nil {
		return err
	}
	if err := ValidateIdentifier("multi_agent", ma.ID); err != nil {
		return err
	}
	ids, err := json.Marshal(ma.AgentIDs)
	if err != nil {
		return fmt.Errorf("sessions: encoding agent ids: %w", err)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE multi_agents SET agent_ids = $3, updated_at = $4 WHERE session_id = $1 AND id = $2`,
		ma.SessionID, ma.ID, ids, now)
	if err != nil {
		return fmt.Errorf("sessions: updating multi-agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	ma.UpdatedAt = now
	return nil
}

func marshalOrEmptyObject(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}
