package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSelectsPreferredWhenReady(t *testing.T) {
	m := NewManager(DefaultConfig())
	good := NewMockProvider("good", "hello")
	m.Register(good)
	m.Select("good", nil, SelectionPolicy{})

	res, err := m.Transcribe(context.Background(), "seg-1", make([]int16, 160))
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
}

func TestManagerFailoverThresholdEntersFailedWithCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailoverThreshold = 2
	cfg.FailoverCooldownSecs = 1
	m := NewManager(cfg)

	failing := NewMockProvider("flaky", "")
	failing.FixedErr = errors.New("boom")
	fallback := NewMockProvider("fallback", "fallback-text")

	m.Register(failing)
	m.Register(fallback)
	m.Select("flaky", []string{"fallback"}, SelectionPolicy{})

	for i := 0; i < 2; i++ {
		_, err := m.Transcribe(context.Background(), "seg", make([]int16, 160))
		assert.Error(t, err)
	}

	// flaky is now Failed and cooling down; pickReady should skip it.
	res, err := m.Transcribe(context.Background(), "seg", make([]int16, 160))
	require.NoError(t, err)
	assert.Equal(t, "fallback-text", res.Text)
}

func TestManagerResetsFailureCounterOnSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailoverThreshold = 3
	m := NewManager(cfg)

	calls := 0
	flaky := &MockProvider{
		NameValue:  "flaky",
		LocalValue: true,
		MemoryMB:   1,
		RecognizeFunc: func(samples []int16) (*TranscriptionResult, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient")
			}
			return &TranscriptionResult{Text: "ok"}, nil
		},
	}
	m.Register(flaky)
	m.Select("flaky", nil, SelectionPolicy{})

	_, err := m.Transcribe(context.Background(), "seg-1", make([]int16, 160))
	assert.Error(t, err)

	res, err := m.Transcribe(context.Background(), "seg-2", make([]int16, 160))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)

	m.mu.Lock()
	fails := m.plugins["flaky"].consecutiveFails
	m.mu.Unlock()
	assert.Equal(t, 0, fails)
}

func TestManagerRequireLocalPolicySkipsRemoteCandidate(t *testing.T) {
	m := NewManager(DefaultConfig())
	remote := NewMockProvider("remote", "remote-text")
	remote.LocalValue = false
	local := NewMockProvider("local", "local-text")

	m.Register(remote)
	m.Register(local)
	m.Select("remote", []string{"local"}, SelectionPolicy{RequireLocal: true})

	res, err := m.Transcribe(context.Background(), "seg", make([]int16, 160))
	require.NoError(t, err)
	assert.Equal(t, "local-text", res.Text)
}

func TestManagerNoBackendWhenNothingSatisfiesPolicy(t *testing.T) {
	m := NewManager(DefaultConfig())
	remote := NewMockProvider("remote", "remote-text")
	remote.LocalValue = false
	m.Register(remote)
	m.Select("remote", nil, SelectionPolicy{RequireLocal: true})
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := m.Transcribe(ctx, "seg", make([]int16, 160))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrNoBackend, se.Kind)
}

func TestManagerReleaseIdleUnloadsExpiredPlugins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelTTLSecs = 0
	m := NewManager(cfg)
	p := NewMockProvider("p", "hi")
	m.Register(p)
	m.Select("p", nil, SelectionPolicy{})

	_, err := m.Transcribe(context.Background(), "seg", make([]int16, 160))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	m.ReleaseIdle()

	m.mu.Lock()
	state := m.plugins["p"].state
	m.mu.Unlock()
	assert.Equal(t, stateUnloaded, state)
}
