package orchestrator

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CancelHook is invoked by the registry when cancellation is requested. It
// must be non-blocking and cooperative: it sets a flag the tool body polls,
// it does not itself stop the tool (§4.9).
type CancelHook func()

// ToolEntry is one in-flight tool execution tracked by the registry.
type ToolEntry struct {
	ID         string
	ToolName   string
	Metadata   map[string]interface{}
	StartedAt  time.Time
	Complete   bool
	cancelHook CancelHook
}

// ToolRegistry tracks in-flight tool executions so the Interruption Handler
// can cancel them cooperatively. It is owned by one Session — never a
// process-wide singleton (§9 redesign note) — so cross-session cancellation
// leakage is structurally impossible.
type ToolRegistry struct {
	mu        sync.Mutex
	entries   map[string]*ToolEntry
	order     []string // insertion order, for debug listing
	cancelled bool     // sticky: a tool registering after cancel_all must see it
	validate  *validator.Validate
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		entries:  make(map[string]*ToolEntry),
		validate: validator.New(),
	}
}

// Register creates a new entry and returns its opaque tool-id. If a
// cancel_all happened since the registry's last reset-for-new-turn, the
// returned hook has already effectively fired: the caller's first poll of
// its own cancellation flag (set by cancelHook) must observe cancellation
// (§5's "registered during a cancel_all must still observe cancellation on
// their first poll").
func (r *ToolRegistry) Register(toolName string, cancelHook CancelHook, metadata map[string]interface{}) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	r.entries[id] = &ToolEntry{
		ID:         id,
		ToolName:   toolName,
		Metadata:   metadata,
		StartedAt:  time.Now(),
		cancelHook: cancelHook,
	}
	r.order = append(r.order, id)

	if r.cancelled && cancelHook != nil {
		cancelHook()
	}
	return id
}

// ValidateArgs runs struct-tag validation on decoded tool-call arguments
// before a tool body is allowed to run.
func (r *ToolRegistry) ValidateArgs(args interface{}) error {
	return r.validate.Struct(args)
}

// Unregister releases an entry, e.g. on normal tool completion.
func (r *ToolRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *ToolRegistry) removeLocked(id string) {
	delete(r.entries, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Cancel cancels one entry by id without touching the others.
func (r *ToolRegistry) Cancel(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if ok && e.cancelHook != nil {
		e.cancelHook()
	}
}

// CancelAll invokes every registered entry's cancel hook and marks the
// registry so that any tool registering concurrently with this call also
// observes cancellation on its first poll. It does not remove entries —
// each tool body is expected to unregister itself once it actually exits.
func (r *ToolRegistry) CancelAll() {
	r.mu.Lock()
	r.cancelled = true
	hooks := make([]CancelHook, 0, len(r.entries))
	for _, e := range r.entries {
		if e.cancelHook != nil {
			hooks = append(hooks, e.cancelHook)
		}
	}
	r.mu.Unlock()

	for _, h := range hooks {
		h()
	}
}

// ResetForNewTurn clears the sticky cancelled flag so tools registered by a
// fresh Agent Runner are not born pre-cancelled.
func (r *ToolRegistry) ResetForNewTurn() {
	r.mu.Lock()
	r.cancelled = false
	r.mu.Unlock()
}

// Active returns a snapshot of all currently registered entries, in
// insertion order, for debug/testing.
func (r *ToolRegistry) Active() []ToolEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ToolEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Empty reports whether no tool executions are currently tracked.
func (r *ToolRegistry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) == 0
}
