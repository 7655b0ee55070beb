// Package inject implements the Injection Strategy Manager: it resolves
// the focused application, ranks candidate backends adaptively per
// (backend, app_id), and tries them in order with cooldown/backoff and a
// total latency budget, per §4.11.
package inject

import (
	"context"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/coldvox/coldvox/pkg/inject/backends"
	"github.com/coldvox/coldvox/pkg/metrics"
)

// FocusResolver resolves the currently focused application, best-effort.
// ATSPI implements this; a NoOpFocusResolver is used when NewManager is
// given a nil resolver.
type FocusResolver interface {
	ResolveFocus(ctx context.Context) backends.FocusInfo
}

// NoOpFocusResolver always reports an unknown, non-editable focus.
type NoOpFocusResolver struct{}

func (NoOpFocusResolver) ResolveFocus(ctx context.Context) backends.FocusInfo {
	return backends.FocusInfo{AppID: "Unknown"}
}

// Config tunes the Manager's policy, cooldown schedule and latency budget,
// per spec.md §6's injection configuration surface.
type Config struct {
	FailFast             bool
	InjectOnUnknownFocus bool
	RequireFocus         bool

	MaxTotalLatencyMs  int
	PerMethodTimeoutMs int

	CooldownInitialMs int
	CooldownFactor    float64
	CooldownMaxMs     int

	Allowlist *regexp.Regexp
	Blocklist *regexp.Regexp

	// AllowMethods, if non-empty, restricts candidates to these backend IDs,
	// in the given priority order.
	AllowMethods []string
}

// DefaultConfig returns the defaults named in spec.md §4.11/§6.
func DefaultConfig() Config {
	return Config{
		MaxTotalLatencyMs:  700,
		PerMethodTimeoutMs: 300,
		CooldownInitialMs:  100,
		CooldownFactor:     2.0,
		CooldownMaxMs:      5000,
	}
}

type outcomeRecord struct {
	score         float64 // exponential moving average of success (1.0/0.0)
	cooldownUntil time.Time
	cooldownMs    int
}

// Manager implements the Injection Strategy Manager contract: Inject(text)
// resolves focus, ranks candidates, and tries them in order until one
// succeeds or the attempt budget is exhausted.
type Manager struct {
	cfg      Config
	backends []backends.Backend
	resolver FocusResolver

	mu      sync.Mutex
	history map[string]*outcomeRecord // key: backendID + "\x00" + appID
}

// NewManager creates a Manager trying candidates in the given backends
// (any ordering; Priority() and adaptive ranking decide actual attempt
// order), resolving focus via resolver.
func NewManager(cfg Config, candidates []backends.Backend, resolver FocusResolver) *Manager {
	if resolver == nil {
		resolver = NoOpFocusResolver{}
	}
	return &Manager{
		cfg:      cfg,
		backends: candidates,
		resolver: resolver,
		history:  make(map[string]*outcomeRecord),
	}
}

// Inject delivers text to the focused application's editable element,
// trying ranked candidates until one succeeds. If FailFast is set and every
// candidate fails, the process exits non-zero after logging, per §4.11.
func (m *Manager) Inject(ctx context.Context, text string) error {
	budget := time.Duration(m.cfg.MaxTotalLatencyMs) * time.Millisecond
	deadline := time.Now().Add(budget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	focus := m.resolver.ResolveFocus(ctx)

	if focus.AppID == "Unknown" && !m.cfg.InjectOnUnknownFocus {
		return newError(ErrNotInjectable, "focus unknown and inject_on_unknown_focus is false", nil)
	}
	if m.cfg.RequireFocus && focus.EditableKnown && !focus.Editable {
		log.Printf("[inject] suppressing injection: focused element is not editable")
		return newError(ErrNotInjectable, "focused element is not editable", nil)
	}

	candidates := m.rankedCandidates(focus.AppID)
	if len(candidates) == 0 {
		return newError(ErrAllFailed, "no candidate backends available", nil)
	}

	var lastErr error
	for _, b := range candidates {
		if time.Now().After(deadline) {
			return newError(ErrLatencyExceeded, "total injection budget exceeded", lastErr)
		}
		if m.inCooldown(b.ID(), focus.AppID) {
			continue
		}

		mode := m.decideMode(b)
		methodCtx, methodCancel := context.WithTimeout(backends.WithMode(ctx, mode), time.Duration(m.cfg.PerMethodTimeoutMs)*time.Millisecond)
		err := b.Inject(methodCtx, text, focus)
		methodCancel()

		m.recordOutcome(b.ID(), focus.AppID, err == nil)
		if err == nil {
			metrics.Default().InjectionSucceeded()
			log.Printf("[inject] delivered via %s to app=%s", b.ID(), focus.AppID)
			return nil
		}
		lastErr = err
		log.Printf("[inject] backend %s failed for app=%s: %v", b.ID(), focus.AppID, err)
	}

	metrics.Default().InjectionFailed()
	finalErr := newError(ErrAllFailed, "every candidate backend failed", lastErr)
	if m.cfg.FailFast {
		log.Printf("[inject] fail_fast set, every backend exhausted: %v", finalErr)
		os.Exit(1)
	}
	return finalErr
}

// decideMode centralizes the Paste-vs-Keystroke choice once per injection,
// per §4.11: the clipboard backend gets ModePaste, the keystroke backend
// ModeKeystroke, and every other backend ModeUnset, which leaves it on its
// own default.
func (m *Manager) decideMode(b backends.Backend) backends.Mode {
	switch b.ID() {
	case "clipboard":
		return backends.ModePaste
	case "keystroke":
		return backends.ModeKeystroke
	default:
		return backends.ModeUnset
	}
}

// rankedCandidates filters by platform availability, allow/blocklist policy
// and AllowMethods, then sorts by adaptive score (descending) with fixed
// Priority() as the tie-break.
func (m *Manager) rankedCandidates(appID string) []backends.Backend {
	var out []backends.Backend
	for _, b := range m.backends {
		if !b.Available() {
			continue
		}
		if len(m.cfg.AllowMethods) > 0 && !contains(m.cfg.AllowMethods, b.ID()) {
			continue
		}
		if m.cfg.Blocklist != nil && m.cfg.Blocklist.MatchString(appID) {
			continue
		}
		if m.cfg.Allowlist != nil && !m.cfg.Allowlist.MatchString(appID) {
			continue
		}
		out = append(out, b)
	}

	m.mu.Lock()
	scores := make(map[string]float64, len(out))
	for _, b := range out {
		if rec, ok := m.history[historyKey(b.ID(), appID)]; ok {
			scores[b.ID()] = rec.score
		}
	}
	m.mu.Unlock()

	// Stable insertion sort: small N (a handful of backends), descending
	// score, Priority() breaks ties.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if less(scores[a.ID()], a.Priority(), scores[b.ID()], b.Priority()) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func less(scoreA float64, prioA int, scoreB float64, prioB int) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return prioA < prioB
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func historyKey(backendID, appID string) string {
	return backendID + "\x00" + appID
}

// recordOutcome updates the (backend, app_id) exponential moving average
// and, on failure, starts or extends that pair's cooldown.
func (m *Manager) recordOutcome(backendID, appID string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := historyKey(backendID, appID)
	rec, ok := m.history[key]
	if !ok {
		rec = &outcomeRecord{}
		m.history[key] = rec
	}

	const alpha = 0.3 // recent outcomes weighted higher
	var sample float64
	if success {
		sample = 1.0
		rec.cooldownMs = 0
	} else {
		sample = 0.0
	}
	rec.score = alpha*sample + (1-alpha)*rec.score

	if !success {
		if rec.cooldownMs == 0 {
			rec.cooldownMs = m.cfg.CooldownInitialMs
		} else {
			rec.cooldownMs = int(float64(rec.cooldownMs) * m.cfg.CooldownFactor)
		}
		if rec.cooldownMs > m.cfg.CooldownMaxMs {
			rec.cooldownMs = m.cfg.CooldownMaxMs
		}
		rec.cooldownUntil = time.Now().Add(time.Duration(rec.cooldownMs) * time.Millisecond)
	}
}

func (m *Manager) inCooldown(backendID, appID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.history[historyKey(backendID, appID)]
	if !ok {
		return false
	}
	return time.Now().Before(rec.cooldownUntil)
}
