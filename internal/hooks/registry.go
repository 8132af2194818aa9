package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Callback observes or mutates an event. It may return an *InterruptException
// to request that the current tool call suspend; any other non-nil error is
// treated as a hard failure of the invoking call.
type Callback func(ctx context.Context, event Event) error

// RemoveFunc detaches a previously added callback or provider.
type RemoveFunc func()

// InterruptException is returned by a callback (typically via the
// BeforeToolCallEvent.Interrupt helper) to request that the loop suspend and
// wait for external input before continuing the current tool call.
type InterruptException struct {
	Name   string
	Reason string
}

func (e *InterruptException) Error() string {
	return fmt.Sprintf("hooks: interrupt %q: %s", e.Name, e.Reason)
}

// HookRegistration pairs one callback with the event type it observes.
type HookRegistration struct {
	Event    EventType
	Callback Callback
}

// HookProvider bundles a set of related callbacks (e.g. a logging hook, an
// approval workflow) that are registered and removed together.
type HookProvider interface {
	Hooks() []HookRegistration
}

type callbackEntry struct {
	id EventType
	cb Callback
}

// Registry dispatches lifecycle events to registered callbacks. Callbacks
// for "before*" events run in registration order; callbacks for "after*"
// events run in reverse (LIFO) registration order, so the last observer to
// see a before-event is the first to see its matching after-event.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[EventType][]*callbackEntry
	providers map[HookProvider]RemoveFunc
	logger    *slog.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		callbacks: make(map[EventType][]*callbackEntry),
		providers: make(map[HookProvider]RemoveFunc),
		logger:    logger.With("component", "hooks"),
	}
}

// AddCallback registers a single callback for one event type and returns a
// function that detaches it.
func (r *Registry) AddCallback(eventType EventType, cb Callback) RemoveFunc {
	entry := &callbackEntry{id: eventType, cb: cb}

	r.mu.Lock()
	r.callbacks[eventType] = append(r.callbacks[eventType], entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.callbacks[eventType]
		for i, e := range list {
			if e == entry {
				r.callbacks[eventType] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// AddHook registers every callback a provider exposes, tracked as a unit so
// RemoveHook(provider) detaches all of them at once.
func (r *Registry) AddHook(p HookProvider) RemoveFunc {
	removers := make([]RemoveFunc, 0, len(p.Hooks()))
	for _, reg := range p.Hooks() {
		removers = append(removers, r.AddCallback(reg.Event, reg.Callback))
	}
	removeAll := func() {
		for _, rm := range removers {
			rm()
		}
	}

	r.mu.Lock()
	r.providers[p] = removeAll
	r.mu.Unlock()

	return removeAll
}

// RemoveHook detaches every callback previously added via AddHook for this
// provider. A no-op if the provider was never added.
func (r *Registry) RemoveHook(p HookProvider) {
	r.mu.Lock()
	rm, ok := r.providers[p]
	delete(r.providers, p)
	r.mu.Unlock()

	if ok {
		rm()
	}
}

func isAfterEvent(t EventType) bool {
	return strings.HasPrefix(string(t), "after")
}

// InvokeCallbacks dispatches event to every callback registered for its
// type. Before-events run oldest-registered first; after-events run
// newest-registered first. InterruptException values are caught and
// returned in interrupts rather than aborting dispatch; any other callback
// error aborts dispatch immediately. Two interrupts raised with the same
// name in a single dispatch is a hard error, since the caller would have no
// way to tell them apart when resuming.
func (r *Registry) InvokeCallbacks(ctx context.Context, event Event) (interrupts []*InterruptException, err error) {
	t := event.EventType()

	r.mu.RLock()
	entries := append([]*callbackEntry(nil), r.callbacks[t]...)
	r.mu.RUnlock()

	if isAfterEvent(t) {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		cbErr := r.callOne(ctx, entry.cb, event)
		if cbErr == nil {
			continue
		}
		var ix *InterruptException
		if asInterrupt(cbErr, &ix) {
			if seen[ix.Name] {
				return interrupts, fmt.Errorf("hooks: duplicate interrupt name %q raised during %s", ix.Name, t)
			}
			seen[ix.Name] = true
			interrupts = append(interrupts, ix)
			continue
		}
		return interrupts, cbErr
	}

	return interrupts, nil
}

func asInterrupt(err error, out **InterruptException) bool {
	ix, ok := err.(*InterruptException)
	if !ok {
		return false
	}
	*out = ix
	return true
}

func (r *Registry) callOne(ctx context.Context, cb Callback, event Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hooks: callback panic: %v", p)
		}
	}()
	return cb(ctx, event)
}
