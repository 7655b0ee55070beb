package inject

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coldvox/coldvox/pkg/inject/backends"
)

// fakeBackend is a scripted Backend for exercising ranking/cooldown without
// touching any real OS mechanism.
type fakeBackend struct {
	id        string
	priority  int
	available bool
	results   []error // consumed in order; last is reused once exhausted
	calls     int
}

func (f *fakeBackend) ID() string      { return f.id }
func (f *fakeBackend) Priority() int   { return f.priority }
func (f *fakeBackend) Available() bool { return f.available }

func (f *fakeBackend) Inject(ctx context.Context, text string, focus backends.FocusInfo) error {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	return f.results[idx]
}

type fixedFocus struct{ info backends.FocusInfo }

func (f fixedFocus) ResolveFocus(ctx context.Context) backends.FocusInfo { return f.info }

func TestInjectTriesNextCandidateOnFailure(t *testing.T) {
	primary := &fakeBackend{id: "primary", priority: 0, available: true, results: []error{errBoom}}
	secondary := &fakeBackend{id: "secondary", priority: 1, available: true, results: []error{nil}}

	cfg := DefaultConfig()
	cfg.InjectOnUnknownFocus = true
	m := NewManager(cfg, []backends.Backend{primary, secondary}, fixedFocus{backends.FocusInfo{AppID: "editor", Editable: true, EditableKnown: true}})

	err := m.Inject(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestInjectAllFailedReturnsError(t *testing.T) {
	b := &fakeBackend{id: "only", priority: 0, available: true, results: []error{errBoom}}
	cfg := DefaultConfig()
	cfg.InjectOnUnknownFocus = true
	m := NewManager(cfg, []backends.Backend{b}, fixedFocus{backends.FocusInfo{AppID: "editor"}})

	err := m.Inject(context.Background(), "hello")
	require.Error(t, err)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	require.Equal(t, ErrAllFailed, ie.Kind)
}

func TestUnknownFocusSuppressedByDefault(t *testing.T) {
	b := &fakeBackend{id: "only", priority: 0, available: true, results: []error{nil}}
	m := NewManager(DefaultConfig(), []backends.Backend{b}, fixedFocus{backends.FocusInfo{AppID: "Unknown"}})

	err := m.Inject(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, 0, b.calls)
}

func TestRequireFocusSuppressesNonEditable(t *testing.T) {
	b := &fakeBackend{id: "only", priority: 0, available: true, results: []error{nil}}
	cfg := DefaultConfig()
	cfg.InjectOnUnknownFocus = true
	cfg.RequireFocus = true
	m := NewManager(cfg, []backends.Backend{b}, fixedFocus{backends.FocusInfo{AppID: "term", Editable: false, EditableKnown: true}})

	err := m.Inject(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, 0, b.calls)
}

func TestCooldownSkipsFailedBackendForSameApp(t *testing.T) {
	b := &fakeBackend{id: "flaky", priority: 0, available: true, results: []error{errBoom}}
	fallback := &fakeBackend{id: "fallback", priority: 1, available: true, results: []error{nil}}
	cfg := DefaultConfig()
	cfg.InjectOnUnknownFocus = true
	cfg.CooldownInitialMs = 60_000 // long enough to still be in effect on the next call
	m := NewManager(cfg, []backends.Backend{b, fallback}, fixedFocus{backends.FocusInfo{AppID: "editor"}})

	require.NoError(t, m.Inject(context.Background(), "one"))
	require.Equal(t, 1, b.calls)

	// Second injection: fallback now outranks b on its success score and
	// fails this time; b is still in cooldown for this app_id, so it is
	// skipped instead of being tried as the next candidate.
	b.results = append(b.results, nil)
	fallback.results = append(fallback.results, errBoom)
	require.Error(t, m.Inject(context.Background(), "two"))
	require.Equal(t, 1, b.calls) // still 1: cooldown skipped it
	require.Equal(t, 2, fallback.calls)
}

func TestAdaptiveRankingPrefersRecentSuccess(t *testing.T) {
	// x has the better fixed priority (tie-break winner) but fails once and
	// falls into a short cooldown; y picks up the slack and, once its
	// success score rises above x's untouched zero score, keeps winning the
	// ranking even after x's cooldown lapses.
	x := &fakeBackend{id: "x", priority: 0, available: true, results: []error{errBoom}}
	y := &fakeBackend{id: "y", priority: 1, available: true, results: []error{nil}}
	cfg := DefaultConfig()
	cfg.InjectOnUnknownFocus = true
	cfg.CooldownInitialMs = 1
	m := NewManager(cfg, []backends.Backend{x, y}, fixedFocus{backends.FocusInfo{AppID: "editor"}})

	require.NoError(t, m.Inject(context.Background(), "one"))
	require.Equal(t, 1, x.calls)
	require.Equal(t, 1, y.calls)

	for i := 0; i < 4; i++ {
		time.Sleep(5 * time.Millisecond) // let x's short cooldown lapse
		require.NoError(t, m.Inject(context.Background(), "warm"))
	}

	require.Equal(t, 1, x.calls, "x's score never recovered, so y's adaptive lead keeps winning")
	require.Equal(t, 5, y.calls)
}

func TestAllowlistBlocksNonMatchingApp(t *testing.T) {
	b := &fakeBackend{id: "only", priority: 0, available: true, results: []error{nil}}
	cfg := DefaultConfig()
	cfg.InjectOnUnknownFocus = true
	cfg.Allowlist = regexp.MustCompile(`^editor$`)
	m := NewManager(cfg, []backends.Backend{b}, fixedFocus{backends.FocusInfo{AppID: "terminal"}})

	err := m.Inject(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, 0, b.calls)
}

var errBoom = &backendFailure{"boom"}

type backendFailure struct{ msg string }

func (e *backendFailure) Error() string { return e.msg }
