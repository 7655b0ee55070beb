//go:build !vad

package main

import (
	"github.com/coldvox/coldvox/internal/config"
	"github.com/coldvox/coldvox/pkg/vad"
)

// newDetector returns the mock detector the default build registers so
// coldvoxd runs end-to-end with no native ONNX Runtime dependency at link
// time. Build with the vad tag to exercise the real Silero detector.
func newDetector(cfg *config.Config) (vad.DetectorInterface, error) {
	return vad.NewMockDetectorWithProb(1.0), nil
}
