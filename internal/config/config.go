// Package config implements spec.md §6's configuration surface: a fixed
// precedence of defaults, then environment variables under the COLDVOX_
// prefix (with "__" as the nesting separator, e.g. COLDVOX_VAD__SPEECH_ON),
// then CLI flags. Generic config-file loading (YAML/TOML) is the named
// out-of-scope collaborator; the only file this package touches is an
// optional ".env" for local development, the same godotenv idiom the
// teacher's cmd/main.go uses.
package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envPrefix = "COLDVOX_"

// VADConfig mirrors spec.md §6's vad.* surface.
type VADConfig struct {
	SpeechOn             float64
	SpeechOff            float64
	MinSpeechDurationMs  int
	MinSilenceDurationMs int
	WindowSizeSamples    int

	// ModelPath is the path to the ONNX Silero VAD model file. Only
	// consulted by builds tagged "vad"; the default build's mock detector
	// ignores it.
	ModelPath string
}

// STTConfig mirrors spec.md §6's stt.* surface.
type STTConfig struct {
	Preferred            string
	Fallbacks            []string
	RequireLocal         bool
	MaxMemMB             int
	FailoverThreshold    int
	FailoverCooldownSecs int
	ModelTTLSecs         int
	DisableGC            bool
	AutoExtract          bool
	MaxSegmentDurationMs int
}

// InjectionConfig mirrors spec.md §6's injection.* surface.
type InjectionConfig struct {
	FailFast             bool
	InjectOnUnknownFocus bool
	RequireFocus         bool
	MaxTotalLatencyMs    int
	PerMethodTimeoutMs   int
	ClipboardRestoreMs   int
	CooldownInitialMs    int
	CooldownFactor       float64
	CooldownMaxMs        int
	Allowlist            string
	Blocklist            string
	AllowMethods         []string
}

// Config is the fully-resolved configuration for one coldvoxd run.
type Config struct {
	ActivationMode    string // "vad" | "hotkey"
	ResamplerQuality  string // "fast" | "balanced" | "quality"
	Device            string

	VAD       VADConfig
	STT       STTConfig
	Injection InjectionConfig

	ListDevices bool
	TUI         bool
}

// Default returns the built-in defaults named throughout spec.md.
func Default() *Config {
	return &Config{
		ActivationMode:   "vad",
		ResamplerQuality: "balanced",
		VAD: VADConfig{
			SpeechOn:             0.1,
			SpeechOff:            0.05,
			MinSpeechDurationMs:  100,
			MinSilenceDurationMs: 500,
			WindowSizeSamples:    512,
		},
		STT: STTConfig{
			MaxMemMB:             0,
			FailoverThreshold:    5,
			FailoverCooldownSecs: 10,
			ModelTTLSecs:         300,
			MaxSegmentDurationMs: 30000,
		},
		Injection: InjectionConfig{
			MaxTotalLatencyMs:  700,
			PerMethodTimeoutMs: 300,
			ClipboardRestoreMs: 500,
			CooldownInitialMs:  100,
			CooldownFactor:     2.0,
			CooldownMaxMs:      5000,
		},
	}
}

// Load builds a Config from defaults, an optional ".env" file (loaded
// before the real environment is read, so real env vars still win),
// COLDVOX_-prefixed environment variables, then args as CLI flags. args is
// normally os.Args[1:].
func Load(args []string) (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	cfg := Default()
	applyEnv(cfg)

	fs := flag.NewFlagSet("coldvoxd", flag.ContinueOnError)
	fs.StringVar(&cfg.ActivationMode, "activation-mode", cfg.ActivationMode, "vad | hotkey")
	fs.StringVar(&cfg.ResamplerQuality, "resampler-quality", cfg.ResamplerQuality, "fast | balanced | quality")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "device id or name substring override")
	fs.StringVar(&cfg.VAD.ModelPath, "vad-model-path", cfg.VAD.ModelPath, "path to the ONNX Silero VAD model (builds tagged vad only)")
	fs.BoolVar(&cfg.ListDevices, "list-devices", false, "enumerate input devices and exit")
	fs.BoolVar(&cfg.TUI, "tui", false, "attach the dashboard")
	fs.BoolVar(&cfg.Injection.FailFast, "injection-fail-fast", cfg.Injection.FailFast, "exit non-zero when every injection backend fails")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str(&cfg.ActivationMode, "ACTIVATION_MODE")
	str(&cfg.ResamplerQuality, "RESAMPLER_QUALITY")
	str(&cfg.Device, "DEVICE")

	f64(&cfg.VAD.SpeechOn, "VAD__SPEECH_ON")
	f64(&cfg.VAD.SpeechOff, "VAD__SPEECH_OFF")
	i(&cfg.VAD.MinSpeechDurationMs, "VAD__MIN_SPEECH_DURATION_MS")
	i(&cfg.VAD.MinSilenceDurationMs, "VAD__MIN_SILENCE_DURATION_MS")
	i(&cfg.VAD.WindowSizeSamples, "VAD__WINDOW_SIZE_SAMPLES")
	str(&cfg.VAD.ModelPath, "VAD__MODEL_PATH")

	str(&cfg.STT.Preferred, "STT__PREFERRED")
	csv(&cfg.STT.Fallbacks, "STT__FALLBACKS")
	b(&cfg.STT.RequireLocal, "STT__REQUIRE_LOCAL")
	i(&cfg.STT.MaxMemMB, "STT__MAX_MEM_MB")
	i(&cfg.STT.FailoverThreshold, "STT__FAILOVER_THRESHOLD")
	i(&cfg.STT.FailoverCooldownSecs, "STT__FAILOVER_COOLDOWN_SECS")
	i(&cfg.STT.ModelTTLSecs, "STT__MODEL_TTL_SECS")
	b(&cfg.STT.DisableGC, "STT__DISABLE_GC")
	b(&cfg.STT.AutoExtract, "STT__AUTO_EXTRACT")
	i(&cfg.STT.MaxSegmentDurationMs, "STT__MAX_SEGMENT_DURATION_MS")

	b(&cfg.Injection.FailFast, "INJECTION__FAIL_FAST")
	b(&cfg.Injection.InjectOnUnknownFocus, "INJECTION__INJECT_ON_UNKNOWN_FOCUS")
	b(&cfg.Injection.RequireFocus, "INJECTION__REQUIRE_FOCUS")
	i(&cfg.Injection.MaxTotalLatencyMs, "INJECTION__MAX_TOTAL_LATENCY_MS")
	i(&cfg.Injection.PerMethodTimeoutMs, "INJECTION__PER_METHOD_TIMEOUT_MS")
	i(&cfg.Injection.ClipboardRestoreMs, "INJECTION__CLIPBOARD_RESTORE_DELAY_MS")
	i(&cfg.Injection.CooldownInitialMs, "INJECTION__COOLDOWN_INITIAL_MS")
	f64(&cfg.Injection.CooldownFactor, "INJECTION__COOLDOWN_FACTOR")
	i(&cfg.Injection.CooldownMaxMs, "INJECTION__COOLDOWN_MAX_MS")
	str(&cfg.Injection.Allowlist, "INJECTION__ALLOWLIST")
	str(&cfg.Injection.Blocklist, "INJECTION__BLOCKLIST")
	csv(&cfg.Injection.AllowMethods, "INJECTION__ALLOW_METHODS")
}

func lookup(suffix string) (string, bool) {
	return os.LookupEnv(envPrefix + suffix)
}

func str(dst *string, suffix string) {
	if v, ok := lookup(suffix); ok {
		*dst = v
	}
}

func b(dst *bool, suffix string) {
	if v, ok := lookup(suffix); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func i(dst *int, suffix string) {
	if v, ok := lookup(suffix); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func f64(dst *float64, suffix string) {
	if v, ok := lookup(suffix); ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func csv(dst *[]string, suffix string) {
	if v, ok := lookup(suffix); ok {
		var out []string
		start := 0
		for idx := 0; idx <= len(v); idx++ {
			if idx == len(v) || v[idx] == ',' {
				if idx > start {
					out = append(out, v[start:idx])
				}
				start = idx + 1
			}
		}
		*dst = out
	}
}
