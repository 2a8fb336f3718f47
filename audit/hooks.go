package audit

import "sync"

// PipelinePhase names an observable point in the audit pipeline's state
// machine, adapted from v3/runtime/hooks.go's HookType constants (there:
// BeforeCreate/AfterCreate/...; here: the audit pipeline's own stages,
// since the underlying CRUD lifecycle is the ORM's concern, not this
// engine's).
type PipelinePhase string

const (
	PhaseBeforeClassify     PipelinePhase = "before_classify"
	PhaseAfterPreFetch      PipelinePhase = "after_pre_fetch"
	PhaseAfterOperation     PipelinePhase = "after_operation"
	PhaseAfterResolve       PipelinePhase = "after_resolve"
	PhaseAfterDiff          PipelinePhase = "after_diff"
	PhaseAfterEnrich        PipelinePhase = "after_enrich"
	PhaseAfterEmit          PipelinePhase = "after_emit"
)

// PipelineEvent is the payload handed to a registered hook.
type PipelineEvent struct {
	Model     string
	Operation string
	Call      OperationCall
	Err       error
	Extra     interface{}
}

// HookFunc observes (never alters) pipeline progress.
type HookFunc func(event PipelineEvent)

// Hooks is a per-model, per-phase registry of observers, adapted from
// v3/runtime/hooks.go's Hooks{hooks map[string]map[HookType][]HookFunc}.
// "*" registers a hook for every model.
type Hooks struct {
	mu    sync.RWMutex
	hooks map[string]map[PipelinePhase][]HookFunc
}

func NewHooks() *Hooks {
	return &Hooks{hooks: map[string]map[PipelinePhase][]HookFunc{}}
}

func (h *Hooks) Register(model string, phase PipelinePhase, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hooks[model] == nil {
		h.hooks[model] = map[PipelinePhase][]HookFunc{}
	}
	h.hooks[model][phase] = append(h.hooks[model][phase], fn)
}

func (h *Hooks) Execute(model string, phase PipelinePhase, event PipelineEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.hooks[model][phase] {
		fn(event)
	}
	for _, fn := range h.hooks["*"][phase] {
		fn(event)
	}
}

func (h *Hooks) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = map[string]map[PipelinePhase][]HookFunc{}
}
