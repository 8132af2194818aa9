// Package runtime wires a loaded config.Config into a ready-to-use set of
// agent dependencies: the model adapter, session store, conversation
// manager, and observability recorder. It is the single place that turns
// configuration into the concrete collaborators internal/loop.Agent needs,
// mirroring how the rest of the stack is assembled once and handed
// per-invocation state afterward.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentcore/runtime/internal/compaction"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/convo"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/loop"
	"github.com/agentcore/runtime/internal/model"
	"github.com/agentcore/runtime/internal/observability"
	"github.com/agentcore/runtime/internal/sessions"
	"github.com/agentcore/runtime/internal/tooling"
)

// defaultEventBufferSize bounds the in-memory event recorder's retained
// event count before it evicts the oldest entries.
const defaultEventBufferSize = 10000

// Runtime holds the long-lived collaborators built from a config.Config:
// the session store, model adapter, and observability recorder are shared
// across every agent the process serves, while NewAgent builds the
// per-invocation pieces (hook registry, interrupt state, agentstate) each
// agent needs for itself.
type Runtime struct {
	cfg            *config.Config
	store          sessions.Store
	locker         sessions.Locker
	model          model.Model
	recorder       *observability.EventRecorder
	metrics        *observability.Metrics
	logger         *observability.Logger
	tracer         *observability.Tracer
	tracerShutdown func(context.Context) error
}

// New builds a Runtime from cfg: opens the configured session backend,
// constructs the Anthropic model adapter, and stands up the observability
// logger/recorder pair every agent built from this Runtime will share.
func New(cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runtime: config is required")
	}

	store, err := buildStore(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("runtime: building session store: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	eventStore := observability.NewMemoryEventStore(defaultEventBufferSize)
	recorder := observability.NewEventRecorder(eventStore, logger)
	metrics := observability.NewMetrics()

	m := model.NewAnthropicModel(model.AnthropicConfig{
		APIKey:       cfg.Model.APIKey,
		DefaultModel: cfg.Model.DefaultModel,
		BaseURL:      cfg.Model.BaseURL,
		Timeout:      cfg.Model.Timeout,
		MaxRetries:   cfg.Retry.MaxAttempts,
		RetryDelay:   cfg.Retry.InitialDelay,
	})

	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: cfg.Observability.Tracing.ServiceVersion,
		Environment:    cfg.Observability.Tracing.Environment,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableInsecure: cfg.Observability.Tracing.Insecure,
		Attributes:     cfg.Observability.Tracing.Attributes,
	})

	locker, err := buildLocker(cfg.Sessions, store)
	if err != nil {
		return nil, fmt.Errorf("runtime: building session locker: %w", err)
	}

	metrics.SessionStarted(cfg.Sessions.Backend)

	return &Runtime{
		cfg:            cfg,
		store:          store,
		locker:         locker,
		model:          m,
		recorder:       recorder,
		metrics:        metrics,
		logger:         logger,
		tracer:         tracer,
		tracerShutdown: shutdown,
	}, nil
}

// buildLocker picks a Locker matching the session store backend: a SQL
// store gets the lease-based DBLocker so multiple processes sharing the
// same database arbitrate correctly, while every other backend gets the
// in-process LocalLocker.
func buildLocker(cfg config.SessionsConfig, store sessions.Store) (sessions.Locker, error) {
	sqlStore, ok := store.(*sessions.SQLStore)
	if !ok {
		return sessions.NewLocalLocker(30 * time.Second), nil
	}
	lockerCfg := sessions.DefaultDBLockerConfig()
	lockerCfg.OwnerID = cfg.LockOwnerID
	return sessions.NewDBLocker(sqlStore.DB(), lockerCfg)
}

// Close shuts down the tracer's span exporter, flushing any buffered
// spans. Safe to call even when tracing was never enabled.
func (r *Runtime) Close(ctx context.Context) error {
	if r.metrics != nil {
		r.metrics.SessionEnded(r.cfg.Sessions.Backend)
	}
	if r.tracerShutdown == nil {
		return nil
	}
	return r.tracerShutdown(ctx)
}

func buildStore(cfg config.SessionsConfig) (sessions.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return sessions.NewMemoryStore(), nil
	case "file":
		return sessions.NewFileStore(cfg.FileRoot)
	case "sql":
		sqlCfg := &sessions.SQLConfig{
			Host:            cfg.SQL.Host,
			Port:            cfg.SQL.Port,
			User:            cfg.SQL.User,
			Password:        cfg.SQL.Password,
			Database:        cfg.SQL.Database,
			SSLMode:         cfg.SQL.SSLMode,
			MaxOpenConns:    cfg.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.SQL.MaxIdleConns,
			ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
			ConnectTimeout:  cfg.SQL.ConnectTimeout,
		}
		if cfg.SQL.DSN != "" {
			return sessions.NewSQLStoreFromDSN(cfg.SQL.DSN, sqlCfg)
		}
		return sessions.NewSQLStore(sqlCfg)
	default:
		return nil, fmt.Errorf("runtime: unknown sessions backend %q", cfg.Backend)
	}
}

// Store exposes the runtime's session repository, for callers that need
// to list or inspect sessions outside of an agent invocation.
func (r *Runtime) Store() sessions.Store { return r.store }

// NewAgent builds one Agent for (sessionID, agentID): a tool registry,
// a hook registry pre-wired with this Runtime's observability recorder
// and the session-integration hook provider (initialize/appendMessage/
// syncAgent), and, when summarization is enabled, the summarizing
// conversation manager. The Locker guarding sessionID must be acquired by
// the caller before invoking the returned Agent and released afterward;
// Runtime does not serialize concurrent agents over the same session
// itself.
func (r *Runtime) NewAgent(sessionID, agentID string, tools *tooling.Registry, loopCfg loop.Config) (*loop.Agent, error) {
	hookRegistry := hooks.NewRegistry(slog.Default())

	hookRegistry.AddHook(observability.NewRunRecorder(r.recorder, agentID).
		WithMetrics(r.metrics).
		WithTracer(r.tracer).
		WithModelName(r.cfg.Model.DefaultModel))

	agent := loop.New(agentID, r.model, tools, hookRegistry, loopCfg)

	sync := sessions.NewAgentSync(r.store, sessionID, agentID, agent.State())
	hookRegistry.AddHook(sync)

	if r.cfg.Convo.Enabled {
		summarizer := convo.DirectModelSummarizer(r.model)
		manager := convo.NewSummarizingConversationManager(summarizer,
			convo.WithRatio(r.cfg.Convo.Ratio),
			convo.WithPreserveRecentMessages(r.cfg.Convo.PreserveRecentMessages),
			convo.WithContextWindow(compaction.DefaultContextWindow),
			convo.WithLogger(slog.Default()),
			convo.WithMetrics(r.metrics),
		)
		hookRegistry.AddHook(manager)
	}

	return agent, nil
}

// Locker exposes the runtime's session lock so callers can serialize
// invocations against the same sessionID the way Agent.Invoke expects.
func (r *Runtime) Locker() sessions.Locker { return r.locker }
