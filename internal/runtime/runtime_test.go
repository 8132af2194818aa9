package runtime

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/loop"
	"github.com/agentcore/runtime/internal/tooling"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sessions.Backend = "memory"
	cfg.Model.DefaultModel = "claude-sonnet-4-5"
	cfg.Model.APIKey = "test-key"
	cfg.Convo.Enabled = true
	cfg.Convo.Ratio = 0.3
	cfg.Convo.PreserveRecentMessages = 4
	cfg.Observability.Logging.Level = "info"
	cfg.Observability.Logging.Format = "json"
	cfg.Observability.Tracing.ServiceName = "agentcore-runtime"
	return cfg
}

func TestNewBuildsMemoryBackedRuntime(t *testing.T) {
	rt, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Store() == nil {
		t.Fatal("expected a non-nil session store")
	}
	if rt.Locker() == nil {
		t.Fatal("expected a non-nil locker")
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

func TestNewAgentWiresHookProviders(t *testing.T) {
	rt, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(context.Background())

	tools, err := tooling.NewRegistry()
	if err != nil {
		t.Fatalf("tooling.NewRegistry: %v", err)
	}

	agent, err := rt.NewAgent("session-1", "agent-1", tools, loop.Config{SystemPrompt: "be helpful"})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	if agent == nil {
		t.Fatal("expected a non-nil agent")
	}
	if agent.State() == nil {
		t.Fatal("expected the agent to carry an agentstate.State")
	}
}

func TestBuildStoreRejectsUnknownBackend(t *testing.T) {
	_, err := buildStore(config.SessionsConfig{Backend: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}
