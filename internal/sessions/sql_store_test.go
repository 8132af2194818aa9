package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/agentcore/runtime/pkg/models"
)

func newMockSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := &SQLStore{db: db}
	store.stmtCreateMessage, err = db.Prepare(
		`INSERT INTO messages (session_id, agent_id, index, payload)
		 SELECT $1, $2, COALESCE(MAX(index), -1) + 1, $3 FROM messages WHERE session_id = $1 AND agent_id = $2
		 RETURNING index`)
	if err != nil {
		t.Fatalf("preparing stmtCreateMessage: %v", err)
	}
	store.stmtListMessages, err = db.Prepare(
		`SELECT payload FROM messages WHERE session_id = $1 AND agent_id = $2 ORDER BY index ASC LIMIT $3 OFFSET $4`)
	if err != nil {
		t.Fatalf("preparing stmtListMessages: %v", err)
	}
	return store, mock
}

func TestSQLStoreCreateSession(t *testing.T) {
	store, mock := newMockSQLStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("s1", []byte("{}"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sess := &Session{ID: "s1"}
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreReadSessionNotFound(t *testing.T) {
	store, mock := newMockSQLStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, metadata, created_at, updated_at FROM sessions")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.ReadSession(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreCreateMessageReturnsIndex(t *testing.T) {
	store, mock := newMockSQLStore(t)
	msg := models.NewUserMessage(models.NewTextBlock("hi"))
	payload, _ := json.Marshal(msg)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs("s1", "a1", payload).
		WillReturnRows(sqlmock.NewRows([]string{"index"}).AddRow(3))

	idx, err := store.CreateMessage(context.Background(), "s1", "a1", msg)
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if idx != 3 {
		t.Fatalf("idx = %d, want 3", idx)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStoreListMessages(t *testing.T) {
	store, mock := newMockSQLStore(t)
	msg := models.NewAssistantMessage(models.NewTextBlock("hello"))
	payload, _ := json.Marshal(msg)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM messages")).
		WithArgs("s1", "a1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	out, err := store.ListMessages(context.Background(), "s1", "a1", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(out) != 1 || out[0].TextContent() != "hello" {
		t.Fatalf("ListMessages() = %+v", out)
	}
}

func TestSQLStoreRejectsInvalidIdentifiers(t *testing.T) {
	store, _ := newMockSQLStore(t)
	_, err := store.CreateMessage(context.Background(), "s/1", "a1", models.NewUserMessage(models.NewTextBlock("x")))
	var invalid *InvalidIdentifierError
	if e, ok := err.(*InvalidIdentifierError); ok {
		invalid = e
	}
	if invalid == nil {
		t.Fatalf("err = %v, want *InvalidIdentifierError", err)
	}
}

func TestSQLStoreUpdateAgentNotFound(t *testing.T) {
	store, mock := newMockSQLStore(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE agents")).
		WithArgs("s1", "a1", []byte("{}"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateAgent(context.Background(), &Agent{ID: "a1", SessionID: "s1"})
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
