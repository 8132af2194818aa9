package sessions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func TestFileStoreSessionAgentMessageLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.CreateSession(ctx, &Session{ID: "s1"}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "session_s1", "session.json")); err != nil {
		t.Fatalf("session.json not written: %v", err)
	}

	if err := store.CreateAgent(ctx, &Agent{ID: "a1", SessionID: "s1"}); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "session_s1", "agents", "agent_a1", "agent.json")); err != nil {
		t.Fatalf("agent.json not written: %v", err)
	}

	idx, err := store.CreateMessage(ctx, "s1", "a1", models.NewUserMessage(models.NewTextBlock("hi")))
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if idx != 0 {
		t.Fatalf("idx = %d, want 0", idx)
	}
	wantPath := filepath.Join(dir, "session_s1", "agents", "agent_a1", "messages", "message_0.json")
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("message_0.json not written: %v", err)
	}
	if _, err := os.Stat(wantPath + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind after atomic rename")
	}

	msg, err := store.ReadMessage(ctx, "s1", "a1", 0)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if msg.TextContent() != "hi" {
		t.Fatalf("ReadMessage() = %+v", msg)
	}
}

func TestFileStoreDeleteSessionRemovesAgentsAndMessages(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	_ = store.CreateSession(ctx, &Session{ID: "s1"})
	_ = store.CreateAgent(ctx, &Agent{ID: "a1", SessionID: "s1"})
	if _, err := store.CreateMessage(ctx, "s1", "a1", models.NewUserMessage(models.NewTextBlock("hi"))); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "session_s1")); !os.IsNotExist(err) {
		t.Fatalf("session directory still exists after delete")
	}
}

func TestFileStoreRejectsPathSeparatorIdentifiers(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	err := store.CreateSession(context.Background(), &Session{ID: "../escape"})
	var invalid *InvalidIdentifierError
	if !asInvalidIdentifier(err, &invalid) {
		t.Fatalf("err = %v, want *InvalidIdentifierError", err)
	}
}

func asInvalidIdentifier(err error, out **InvalidIdentifierError) bool {
	e, ok := err.(*InvalidIdentifierError)
	if !ok {
		return false
	}
	*out = e
	return true
}

func TestFileStoreListMessagesPagination(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()
	_ = store.CreateSession(ctx, &Session{ID: "s1"})
	for i := 0; i < 4; i++ {
		if _, err := store.CreateMessage(ctx, "s1", "a1", models.NewUserMessage(models.NewTextBlock("m"))); err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}
	}
	page, err := store.ListMessages(ctx, "s1", "a1", 2, 1)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
}
