package stt

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"
)

// pluginState mirrors the Unloaded -> Loading -> Ready -> Unloaded lifecycle
// from §5's shared-resource policy.
type pluginState int

const (
	stateUnloaded pluginState = iota
	stateLoading
	stateReady
	stateFailed
)

type pluginRecord struct {
	provider         Provider
	state            pluginState
	lastUsed         time.Time
	consecutiveFails int
	cooldownUntil    time.Time
	cooldownSecs     int
	lruElem          *list.Element
}

// SelectionPolicy constrains which plugins the Manager may pick.
type SelectionPolicy struct {
	RequireLocal bool
}

// Config tunes the Manager's failover, idle-GC and memory-ceiling behavior.
type Config struct {
	FailoverThreshold    int
	FailoverCooldownSecs int
	ModelTTLSecs         int
	DisableGC            bool
	MaxMemMB             int
	QueueCapacity        int
}

// DefaultConfig returns the defaults named in spec.md §4.9/§6.
func DefaultConfig() Config {
	return Config{
		FailoverThreshold:    5,
		FailoverCooldownSecs: 10,
		ModelTTLSecs:         300,
		DisableGC:            false,
		MaxMemMB:             0, // 0 = unbounded
		QueueCapacity:        8,
	}
}

type queuedSegment struct {
	segmentID string
	samples   []int16
	result    chan transcribeOutcome
}

type transcribeOutcome struct {
	res *TranscriptionResult
	err error
}

// Manager implements the STT Plugin Manager contract: available_plugins,
// select, transcribe and release_idle, per §4.9.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	plugins  map[string]*pluginRecord
	order    []string // registration order, used as fallback priority
	lru      *list.List
	preferred string
	fallbacks []string
	policy    SelectionPolicy

	queue  chan queuedSegment
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager with the given config. Register providers
// with Register before calling Select/Transcribe.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		plugins: make(map[string]*pluginRecord),
		lru:     list.New(),
		queue:   make(chan queuedSegment, maxInt(cfg.QueueCapacity, 1)),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Register adds a provider to the manager's candidate set, unloaded.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := p.Name()
	if _, exists := m.plugins[name]; exists {
		return
	}
	m.plugins[name] = &pluginRecord{provider: p, state: stateUnloaded}
	m.order = append(m.order, name)
}

// AvailablePlugins lists registered provider names.
func (m *Manager) AvailablePlugins() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Select records the preferred plugin and ordered fallbacks, plus a
// selection policy applied on every future pick.
func (m *Manager) Select(preferred string, fallbacks []string, policy SelectionPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred = preferred
	m.fallbacks = fallbacks
	m.policy = policy
}

// Start launches the background queue drainer and idle-GC supervisor. Both
// run outside the audio path, per §4.9.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(2)
	go m.drainQueue(ctx)
	go m.gcLoop(ctx)
	return nil
}

// Stop cancels both background loops and waits for them to exit.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}

// Transcribe picks the best available plugin per policy and recognizes
// samples, queuing the request if no plugin is immediately Ready. Overflow
// of the bounded queue drops the oldest queued segment with ErrBackpressure.
func (m *Manager) Transcribe(ctx context.Context, segmentID string, samples []int16) (*TranscriptionResult, error) {
	rec := m.pickReady()
	if rec != nil {
		return m.invoke(ctx, rec, samples)
	}

	req := queuedSegment{segmentID: segmentID, samples: samples, result: make(chan transcribeOutcome, 1)}
	select {
	case m.queue <- req:
	default:
		select {
		case old := <-m.queue:
			old.result <- transcribeOutcome{err: newError(ErrBackpressure, "queue overflow, dropped oldest segment "+old.segmentID, nil)}
		default:
		}
		select {
		case m.queue <- req:
		default:
			return nil, newError(ErrBackpressure, "queue overflow, dropped segment "+segmentID, nil)
		}
	}

	select {
	case out := <-req.result:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) invoke(ctx context.Context, rec *pluginRecord, samples []int16) (*TranscriptionResult, error) {
	audioCfg := AudioConfig{SampleRate: 16000, Channels: 1, Encoding: "pcm_s16le"}
	result, err := rec.provider.Recognize(ctx, samples, audioCfg, RecognitionConfig{})

	m.mu.Lock()
	rec.lastUsed = time.Now()
	if m.lru != nil && rec.lruElem != nil {
		m.lru.MoveToFront(rec.lruElem)
	}
	if err != nil {
		rec.consecutiveFails++
		if rec.consecutiveFails >= m.cfg.FailoverThreshold {
			rec.state = stateFailed
			if rec.cooldownSecs == 0 {
				rec.cooldownSecs = m.cfg.FailoverCooldownSecs
			} else {
				rec.cooldownSecs *= 2
			}
			rec.cooldownUntil = time.Now().Add(time.Duration(rec.cooldownSecs) * time.Second)
			log.Printf("[stt-manager] plugin %s entered Failed, cooldown %ds", rec.provider.Name(), rec.cooldownSecs)
		}
	} else {
		rec.consecutiveFails = 0
		rec.cooldownSecs = 0
		if rec.state == stateFailed {
			rec.state = stateReady
		}
	}
	m.mu.Unlock()

	return result, err
}

// pickReady applies the selection policy: preferred first, then ordered
// fallbacks, skipping any plugin in Failed-with-active-cooldown or one that
// violates policy.
func (m *Manager) pickReady() *pluginRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := []string{}
	if m.preferred != "" {
		candidates = append(candidates, m.preferred)
	}
	candidates = append(candidates, m.fallbacks...)
	if len(candidates) == 0 {
		candidates = m.order
	}

	for _, name := range candidates {
		rec, ok := m.plugins[name]
		if !ok {
			continue
		}
		if rec.state == stateFailed && time.Now().Before(rec.cooldownUntil) {
			continue
		}
		if m.policy.RequireLocal && !rec.provider.IsLocal() {
			continue
		}
		if rec.state != stateReady {
			if err := m.loadLocked(rec); err != nil {
				continue
			}
		}
		return rec
	}
	return nil
}

// loadLocked transitions rec to Ready, evicting the least-recently-used
// Ready plugin first if admitting it would exceed MaxMemMB. Caller must
// hold m.mu.
func (m *Manager) loadLocked(rec *pluginRecord) error {
	if m.cfg.MaxMemMB > 0 {
		for m.accountedMemLocked()+rec.provider.DeclaredMemoryMB() > m.cfg.MaxMemMB {
			victim := m.lruVictimLocked()
			if victim == nil {
				break
			}
			log.Printf("[stt-manager] evicting %s to admit %s under mem ceiling", victim.provider.Name(), rec.provider.Name())
			m.unloadLocked(victim)
		}
	}

	rec.state = stateLoading
	if err := rec.provider.Load(context.Background()); err != nil {
		rec.state = stateUnloaded
		return newError(ErrPluginLoadFailed, "load failed for "+rec.provider.Name(), err)
	}
	rec.state = stateReady
	rec.lruElem = m.lru.PushFront(rec)
	return nil
}

func (m *Manager) accountedMemLocked() int {
	total := 0
	for _, rec := range m.plugins {
		if rec.state == stateReady {
			total += rec.provider.DeclaredMemoryMB()
		}
	}
	return total
}

func (m *Manager) lruVictimLocked() *pluginRecord {
	elem := m.lru.Back()
	if elem == nil {
		return nil
	}
	return elem.Value.(*pluginRecord)
}

func (m *Manager) unloadLocked(rec *pluginRecord) {
	if rec.state != stateReady {
		return
	}
	if err := rec.provider.Unload(); err != nil {
		log.Printf("[stt-manager] unload of %s failed: %v", rec.provider.Name(), err)
	}
	if rec.lruElem != nil {
		m.lru.Remove(rec.lruElem)
		rec.lruElem = nil
	}
	rec.state = stateUnloaded
}

// ReleaseIdle unloads any Ready plugin whose last use exceeds ModelTTLSecs.
func (m *Manager) ReleaseIdle() {
	if m.cfg.DisableGC {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl := time.Duration(m.cfg.ModelTTLSecs) * time.Second
	for _, rec := range m.plugins {
		if rec.state == stateReady && time.Since(rec.lastUsed) > ttl {
			log.Printf("[stt-manager] releasing idle plugin %s", rec.provider.Name())
			m.unloadLocked(rec)
		}
	}
}

func (m *Manager) gcLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReleaseIdle()
		}
	}
}

func (m *Manager) drainQueue(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.queue:
			rec := m.pickReady()
			if rec == nil {
				req.result <- transcribeOutcome{err: newError(ErrNoBackend, "no plugin satisfies selection policy", nil)}
				continue
			}
			res, err := m.invoke(ctx, rec, req.samples)
			req.result <- transcribeOutcome{res: res, err: err}
		}
	}
}
