//go:build whispercpp

package stt

import (
	"context"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"
)

// WhisperCppProvider is a fully local, in-process Provider wrapping
// whisper.cpp's Go bindings directly, for callers who opt into the
// whispercpp build tag instead of the MockProvider/ProcessProvider
// external-engine shape.
type WhisperCppProvider struct {
	name      string
	modelPath string
	memMB     int
	language  string

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperCppProvider configures (without loading) a whisper.cpp-backed
// Provider reading its model from modelPath.
func NewWhisperCppProvider(name, modelPath string, memMB int, language string) *WhisperCppProvider {
	return &WhisperCppProvider{name: name, modelPath: modelPath, memMB: memMB, language: language}
}

func (w *WhisperCppProvider) Name() string           { return w.name }
func (w *WhisperCppProvider) IsLocal() bool          { return true }
func (w *WhisperCppProvider) DeclaredMemoryMB() int  { return w.memMB }
func (w *WhisperCppProvider) SupportsStreaming() bool { return false }

func (w *WhisperCppProvider) Languages() []string {
	if w.language == "" {
		return nil
	}
	return []string{w.language}
}

func (w *WhisperCppProvider) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		return nil
	}
	model, err := whisper.New(w.modelPath)
	if err != nil {
		return newError(ErrPluginLoadFailed, "loading whisper.cpp model "+w.modelPath, err)
	}
	w.model = model
	return nil
}

func (w *WhisperCppProvider) Unload() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

func (w *WhisperCppProvider) Recognize(ctx context.Context, samples []int16, audio AudioConfig, cfg RecognitionConfig) (*TranscriptionResult, error) {
	w.mu.Lock()
	model := w.model
	w.mu.Unlock()
	if model == nil {
		return nil, newError(ErrPluginLoadFailed, w.name+" is not loaded", nil)
	}

	wctx, err := model.NewContext()
	if err != nil {
		return nil, newError(ErrRecognitionFailed, "creating whisper.cpp context", err)
	}

	lang := w.language
	if cfg.Language != "" {
		lang = cfg.Language
	}
	if lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return nil, newError(ErrRecognitionFailed, "setting whisper.cpp language", err)
		}
	}

	pcm32 := make([]float32, len(samples))
	for i, s := range samples {
		pcm32[i] = float32(s) / 32768.0
	}

	if err := wctx.Process(pcm32, nil, nil, nil); err != nil {
		return nil, newError(ErrRecognitionFailed, "whisper.cpp inference", err)
	}

	var text string
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			break
		}
		text += seg.Text
	}

	return &TranscriptionResult{
		Text:      text,
		IsFinal:   true,
		Language:  lang,
		Duration:  time.Duration(len(samples)) * time.Second / time.Duration(audio.SampleRate),
		Timestamp: time.Now(),
	}, nil
}

func (w *WhisperCppProvider) StreamingRecognize(ctx context.Context, audio AudioConfig, cfg RecognitionConfig) (StreamingRecognizer, error) {
	return nil, newError(ErrUnsupportedAudio, w.name+" does not support streaming", nil)
}

var _ Provider = (*WhisperCppProvider)(nil)
