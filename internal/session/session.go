// Package session is the composition root for one model-driven screen
// session. It owns the render state, the per-turn read-back budget, the
// active catalog, and the sandbox policy, and feeds them to the dispatcher
// on every call.
//
// Tool calls are strictly sequential per session: Execute holds the session
// lock for the duration of the call.
package session

import (
	"context"
	"fmt"
	"sync"

	"neurodeck/internal/catalog"
	"neurodeck/internal/config"
	"neurodeck/internal/dispatch"
	"neurodeck/internal/logging"
	"neurodeck/internal/prompt"
	"neurodeck/internal/readback"
	"neurodeck/internal/render"
	"neurodeck/internal/sandbox"
)

// Session holds the state of one conversation with the screen environment.
type Session struct {
	mu sync.Mutex

	dispatcher *dispatch.Dispatcher
	policy     *sandbox.Policy
	handlers   map[string]dispatch.Handler
	observers  []func(render.StreamEvent)

	tier       catalog.Tier
	tierTools  map[catalog.Tier][]string
	onboarding bool
	cat        *catalog.Catalog

	renderState *render.State
	usage       *readback.UsageState
	readLimits  readback.Limits
	turn        int
}

// New builds a session from a validated config.
func New(cfg *config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tier, err := cfg.Tier()
	if err != nil {
		return nil, err
	}

	policy, err := sandbox.NewPolicy(cfg.Workspace.DefaultRoot, cfg.Workspace.AllowedRoots...)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.New()
	if err != nil {
		return nil, err
	}

	opts := cfg.CatalogOptions()
	s := &Session{
		dispatcher:  dispatcher,
		policy:      policy,
		handlers:    make(map[string]dispatch.Handler),
		tier:        tier,
		tierTools:   opts.TierTools,
		onboarding:  cfg.Onboarding.Required,
		renderState: render.NewState(),
		usage:       readback.NewUsageState(),
		readLimits: readback.Limits{
			DefaultMaxChars: cfg.ReadBack.DefaultMaxChars,
			MaxCharsCeiling: cfg.ReadBack.MaxCharsCeiling,
		},
	}
	s.rebuildCatalog()

	logging.Session("session created: tier=%s onboarding=%v root=%s", tier, s.onboarding, policy.DefaultRoot)
	return s, nil
}

// RegisterHandler wires a delegated tool name to a host handler.
func (s *Session) RegisterHandler(name string, h dispatch.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Subscribe adds an observer for accepted emit_screen events. Observers run
// synchronously inside the dispatching call.
func (s *Session) Subscribe(fn func(render.StreamEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// BeginTurn starts a new model turn: the read-back budget resets, the
// render state carries over.
func (s *Session) BeginTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn++
	s.usage = readback.NewUsageState()
	logging.SessionDebug("turn %d started", s.turn)
}

// Execute runs one tool call under the session's policy. Calls are
// serialized; the catalog and sandbox in force are the ones at entry.
func (s *Session) Execute(ctx context.Context, req dispatch.Request) dispatch.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc := dispatch.Context{
		Catalog:        s.cat,
		Sandbox:        s.policy,
		OnboardingMode: s.onboarding,
		Handlers:       s.handlers,
		RenderState:    s.renderState,
		ReadUsage:      s.usage,
		ReadLimits:     s.readLimits,
		Observer:       s.notify,
	}

	res := s.dispatcher.Execute(ctx, req, pc)
	if !res.IsError {
		s.applyTransition(req)
	}
	return res
}

// applyTransition reacts to delegated calls that change session policy.
// Caller holds the lock.
func (s *Session) applyTransition(req dispatch.Request) {
	switch req.Name {
	case "complete_onboarding":
		if s.onboarding {
			s.onboarding = false
			s.rebuildCatalog()
			logging.Session("onboarding complete, full catalog unlocked (tier=%s)", s.tier)
		}
	case "set_workspace_root":
		path, _ := req.Arguments["path"].(string)
		if path == "" {
			return
		}
		policy, err := sandbox.NewPolicy(path)
		if err != nil {
			logging.Session("workspace root change to %q rejected: %v", path, err)
			return
		}
		s.policy = policy
		logging.Session("workspace root set to %s", policy.DefaultRoot)
	}
}

func (s *Session) notify(ev render.StreamEvent) {
	for _, fn := range s.observers {
		fn(ev)
	}
}

// rebuildCatalog recomputes the active catalog. Caller holds the lock.
func (s *Session) rebuildCatalog() {
	s.cat = catalog.Build(s.tier, catalog.Options{
		OnboardingRequired: s.onboarding,
		TierTools:          s.tierTools,
	})
}

// SetTier switches the capability tier; takes effect on the next call.
func (s *Session) SetTier(tier catalog.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tier == s.tier {
		return
	}
	s.tier = tier
	s.rebuildCatalog()
	logging.Session("tier changed to %s", tier)
}

// ApplyConfig absorbs a hot-reloaded config: tier, tier overrides and
// read-back limits. Workspace roots and onboarding state stay with the
// running session.
func (s *Session) ApplyConfig(cfg *config.Config) error {
	tier, err := cfg.Tier()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = tier
	s.tierTools = cfg.CatalogOptions().TierTools
	s.readLimits = readback.Limits{
		DefaultMaxChars: cfg.ReadBack.DefaultMaxChars,
		MaxCharsCeiling: cfg.ReadBack.MaxCharsCeiling,
	}
	s.rebuildCatalog()
	logging.ConfigInfo("session absorbed config reload: tier=%s", tier)
	return nil
}

// OnboardingRequired reports whether the restricted catalog is in force.
func (s *Session) OnboardingRequired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onboarding
}

// Catalog returns the catalog currently in force.
func (s *Session) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cat
}

// GuidancePrompt renders the tool guidance for the current catalog.
func (s *Session) GuidancePrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return prompt.BuildGuidancePrompt(s.cat)
}

// Screen returns the current render revision and HTML.
func (s *Session) Screen() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderState.Revision, s.renderState.LatestHTML
}
