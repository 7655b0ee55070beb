package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsApplyWithNoOverrides(t *testing.T) {
	cfg := Default()
	require.Equal(t, "vad", cfg.ActivationMode)
	require.Equal(t, "balanced", cfg.ResamplerQuality)
	require.Equal(t, float64(0.1), cfg.VAD.SpeechOn)
	require.Equal(t, 30000, cfg.STT.MaxSegmentDurationMs)
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("COLDVOX_ACTIVATION_MODE", "hotkey")
	t.Setenv("COLDVOX_VAD__SPEECH_ON", "0.25")
	t.Setenv("COLDVOX_STT__FALLBACKS", "mock,process")

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "hotkey", cfg.ActivationMode)
	require.Equal(t, float64(0.25), cfg.VAD.SpeechOn)
	require.Equal(t, []string{"mock", "process"}, cfg.STT.Fallbacks)
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("COLDVOX_ACTIVATION_MODE", "hotkey")

	cfg, err := Load([]string{"--activation-mode", "vad"})
	require.NoError(t, err)
	require.Equal(t, "vad", cfg.ActivationMode)
}

func TestNestedEnvSeparatorDoesNotLeakIntoSiblingKeys(t *testing.T) {
	os.Unsetenv("COLDVOX_VAD__SPEECH_ON")
	os.Unsetenv("COLDVOX_VAD__SPEECH_OFF")
	t.Setenv("COLDVOX_VAD__SPEECH_OFF", "0.02")

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, float64(0.1), cfg.VAD.SpeechOn, "unset sibling key keeps its default")
	require.Equal(t, float64(0.02), cfg.VAD.SpeechOff)
}
