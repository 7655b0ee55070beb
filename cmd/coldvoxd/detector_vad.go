//go:build vad

package main

import (
	"fmt"

	"github.com/coldvox/coldvox/internal/config"
	"github.com/coldvox/coldvox/pkg/vad"
)

// newDetector constructs the real Silero ONNX VAD detector, initializing
// the ONNX Runtime environment on first use. Built only under the vad tag,
// which is also what pulls in the onnxruntime shared library dependency at
// link time; the default build never reaches this file.
func newDetector(cfg *config.Config) (vad.DetectorInterface, error) {
	if cfg.VAD.ModelPath == "" {
		return nil, fmt.Errorf("vad: -vad-model-path (or COLDVOX_VAD__MODEL_PATH) must be set for a vad-tagged build")
	}
	if err := vad.InitRuntime(""); err != nil {
		return nil, fmt.Errorf("vad: initializing onnx runtime: %w", err)
	}
	d, err := vad.NewDetector(vad.DetectorConfig{
		ModelPath:  cfg.VAD.ModelPath,
		SampleRate: 16000,
	})
	if err != nil {
		return nil, fmt.Errorf("vad: loading detector from %s: %w", cfg.VAD.ModelPath, err)
	}
	return d, nil
}
