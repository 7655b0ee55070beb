// Command coldvoxd runs the ColdVox capture-and-dispatch engine: it wires
// the Device Manager, Capture Thread, Audio Ring, Frame Reader,
// Chunker/Resampler, Broadcast Bus, VAD Processor, Segment Buffer/STT
// Processor, STT Plugin Manager, Hotkey Supervisor, Injection Strategy
// Manager and Watchdog/Device Monitor into one long-lived process.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/coldvox/coldvox/internal/config"
	"github.com/coldvox/coldvox/pkg/audio"
	"github.com/coldvox/coldvox/pkg/hotkey"
	"github.com/coldvox/coldvox/pkg/inject"
	"github.com/coldvox/coldvox/pkg/inject/backends"
	"github.com/coldvox/coldvox/pkg/metrics"
	"github.com/coldvox/coldvox/pkg/pipeline"
	"github.com/coldvox/coldvox/pkg/stt"
	"github.com/coldvox/coldvox/pkg/vad"
	"github.com/coldvox/coldvox/pkg/watchdog"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("[coldvoxd] config: %v", err)
	}

	if cfg.ListDevices {
		os.Exit(runListDevices())
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[coldvoxd] fatal: %v", err)
	}
}

func runListDevices() int {
	mgr, err := audio.NewManager(log.Printf)
	if err != nil {
		log.Printf("[coldvoxd] opening audio context: %v", err)
		return 1
	}
	defer mgr.Close()

	devices, err := mgr.Enumerate()
	if err != nil {
		log.Printf("[coldvoxd] enumerating devices: %v", err)
		return 1
	}
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = " (default)"
		}
		fmt.Printf("%s\t%s%s\n", d.ID.String(), d.Name, def)
	}
	return 0
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := pipeline.NewEventBus()
	if err := bus.Start(ctx); err != nil {
		return err
	}

	deviceMgr, err := audio.NewManager(log.Printf)
	if err != nil {
		return fmt.Errorf("opening audio context: %w", err)
	}
	defer deviceMgr.Close()

	ring := audio.NewRing(int(0.2 * 48000 * 2)) // >=200ms at 48kHz stereo, per §4.3
	captureCfg := audio.DefaultCaptureConfig()
	captureHandle := audio.Spawn(deviceMgr, ring, audio.DevicePreference{ExactID: cfg.Device, NameSubstring: cfg.Device}, captureCfg)

	frameReader := audio.NewFrameReader(ring, 2048, 20*time.Millisecond)
	go frameReader.Run(ctx)

	chunker, err := audio.NewChunker(captureCfg.SampleRate, parseQuality(cfg.ResamplerQuality))
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}
	defer chunker.Close()

	broadcast := audio.NewBroadcast(64)

	wd := watchdog.New(captureHandle.RequestRestart)
	wd.Start(ctx)
	defer wd.Stop()

	deviceMonitor := watchdog.NewDeviceMonitor(deviceMgr, "", func(reason string) {
		bus.Publish(pipeline.Event{Type: pipeline.EventDeviceChanged, Timestamp: time.Now(), Payload: reason})
		captureHandle.RequestRestart()
	})
	deviceMonitor.Start(ctx)
	defer deviceMonitor.Stop()

	go func() {
		for dc := range captureHandle.Changed() {
			if dc.Err != nil {
				log.Printf("[coldvoxd] capture device change error: %v", dc.Err)
				continue
			}
			deviceMonitor.SetSelected(dc.Descriptor.ID.String())
			chunker.Reset()
			bus.Publish(pipeline.Event{Type: pipeline.EventCaptureRestart, Timestamp: time.Now(), Payload: dc.Descriptor})
		}
	}()

	sttMgr := buildSTTManager(cfg)
	if err := sttMgr.Start(ctx); err != nil {
		return fmt.Errorf("starting stt manager: %w", err)
	}
	defer sttMgr.Stop()

	injMgr := buildInjectionManager(cfg)

	segmenter := stt.NewSegmenter(sttMgr, int64(cfg.STT.MaxSegmentDurationMs), func(evt stt.TranscriptEvent) {
		handleTranscriptEvent(ctx, bus, injMgr, evt)
	})

	detector, err := newDetector(cfg)
	if err != nil {
		return fmt.Errorf("constructing vad detector: %w", err)
	}
	defer detector.Destroy()
	vadProcessor := vad.NewProcessor(detector, vad.Config{
		SpeechOn:             float32(cfg.VAD.SpeechOn),
		SpeechOff:            float32(cfg.VAD.SpeechOff),
		MinSpeechDurationMs:  int64(cfg.VAD.MinSpeechDurationMs),
		MinSilenceDurationMs: int64(cfg.VAD.MinSilenceDurationMs),
		EnergyGateThreshold:  0.01,
	})

	var hotkeyHandle *hotkey.Handle
	initialHotkeyMode := hotkey.ModeVAD
	if cfg.ActivationMode == "hotkey" {
		initialHotkeyMode = hotkey.ModeHotkey
	}
	hotkeyHandle, err = hotkey.Spawn(hotkey.Config{KeyName: "KEY_RIGHTCTRL"}, initialHotkeyMode)
	if err != nil {
		log.Printf("[coldvoxd] hotkey supervisor unavailable: %v", err)
	} else {
		defer hotkeyHandle.Stop()
		go func() {
			for evt := range hotkeyHandle.Events() {
				segmenter.OnVADEvent(ctx, evt)
			}
		}()
	}

	sub := broadcast.Subscribe()
	defer broadcast.Unsubscribe(sub)
	// vadEvents buffers SpeechStart/SpeechEnd events between the broadcast
	// consumer and the Segmenter; Clear() discards any still-pending events
	// when the subscriber falls behind, since the audio they describe is
	// already stale.
	vadEvents := pipeline.NewClearableChan[vad.Event](8)
	go func() {
		for evt := range vadEvents.Chan() {
			segmenter.OnVADEvent(ctx, evt)
		}
	}()

	go func() {
		var lastLagged uint64
		for frame := range sub.Frames() {
			segmenter.OnFrame(ctx, frame)
			if cfg.ActivationMode != "hotkey" {
				evt, err := vadProcessor.ProcessWindow(frame.Samples[:], frame.TimestampMs)
				if err != nil {
					log.Printf("[coldvoxd] vad error: %v", err)
					continue
				}
				if evt != nil {
					publishVADEvent(bus, *evt)
					vadEvents.Send(*evt)
				}
			}
			if lagged := sub.Lagged(); lagged > lastLagged {
				metrics.Default().BroadcastLagged(lagged - lastLagged)
				lastLagged = lagged
				vadEvents.Clear()
			}
		}
	}()

	go pumpFrames(ctx, frameReader, chunker, broadcast, ring, wd)

	log.Printf("[coldvoxd] running, activation_mode=%s", cfg.ActivationMode)
	<-ctx.Done()
	log.Printf("[coldvoxd] shutting down")

	captureHandle.Stop(2 * time.Second)
	return nil
}

// pumpFrames drains the FrameReader, feeds the Chunker, and publishes every
// resulting canonical frame on the Broadcast Bus, touching the Watchdog and
// recording ring overflow on every iteration.
func pumpFrames(ctx context.Context, fr *audio.FrameReader, chunker *audio.Chunker, bc *audio.Broadcast, ring *audio.Ring, wd *watchdog.Watchdog) {
	var lastOverflow uint64
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-fr.Out():
			if !ok {
				return
			}
			frames, err := chunker.Feed(block)
			if err != nil {
				log.Printf("[coldvoxd] chunker error: %v", err)
				continue
			}
			for _, f := range frames {
				bc.Publish(f)
				metrics.Default().FrameProcessed()
				wd.Touch()
			}
			if overflow := ring.OverflowCount(); overflow > lastOverflow {
				metrics.Default().RingOverflow(overflow - lastOverflow)
				lastOverflow = overflow
			}
		}
	}
}

func publishVADEvent(bus pipeline.Bus, evt vad.Event) {
	t := pipeline.EventVADSpeechEnd
	if evt.Kind == vad.SpeechStart {
		t = pipeline.EventVADSpeechStart
	}
	bus.Publish(pipeline.Event{Type: t, Timestamp: time.Now(), Payload: evt})
}

func handleTranscriptEvent(ctx context.Context, bus pipeline.Bus, injMgr *inject.Manager, evt stt.TranscriptEvent) {
	if evt.Err != nil {
		bus.Publish(pipeline.Event{Type: pipeline.EventSttError, Timestamp: time.Now(), Payload: evt})
		log.Printf("[coldvoxd] segment %s transcription failed: %v", evt.SegmentID, evt.Err)
		return
	}
	if evt.Result == nil {
		return
	}
	if !evt.Result.IsFinal {
		bus.Publish(pipeline.Event{Type: pipeline.EventSttPartial, Timestamp: time.Now(), Payload: evt})
		return
	}

	bus.Publish(pipeline.Event{Type: pipeline.EventSttFinal, Timestamp: time.Now(), Payload: evt})
	if err := injMgr.Inject(ctx, evt.Result.Text); err != nil {
		bus.Publish(pipeline.Event{Type: pipeline.EventInjectionFailure, Timestamp: time.Now(), Payload: err})
		log.Printf("[coldvoxd] injection failed for segment %s: %v", evt.SegmentID, err)
		return
	}
	bus.Publish(pipeline.Event{Type: pipeline.EventInjectionSuccess, Timestamp: time.Now(), Payload: evt.SegmentID})
}

func buildSTTManager(cfg *config.Config) *stt.Manager {
	mgrCfg := stt.DefaultConfig()
	mgrCfg.FailoverThreshold = cfg.STT.FailoverThreshold
	mgrCfg.FailoverCooldownSecs = cfg.STT.FailoverCooldownSecs
	mgrCfg.ModelTTLSecs = cfg.STT.ModelTTLSecs
	mgrCfg.DisableGC = cfg.STT.DisableGC
	mgrCfg.MaxMemMB = cfg.STT.MaxMemMB

	mgr := stt.NewManager(mgrCfg)
	mgr.Register(stt.NewMockProvider("mock", ""))
	preferred := cfg.STT.Preferred
	if preferred == "" {
		preferred = "mock"
	}
	mgr.Select(preferred, cfg.STT.Fallbacks, stt.SelectionPolicy{RequireLocal: cfg.STT.RequireLocal})
	return mgr
}

func buildInjectionManager(cfg *config.Config) *inject.Manager {
	injCfg := inject.DefaultConfig()
	injCfg.FailFast = cfg.Injection.FailFast
	injCfg.InjectOnUnknownFocus = cfg.Injection.InjectOnUnknownFocus
	injCfg.RequireFocus = cfg.Injection.RequireFocus
	injCfg.MaxTotalLatencyMs = cfg.Injection.MaxTotalLatencyMs
	injCfg.PerMethodTimeoutMs = cfg.Injection.PerMethodTimeoutMs
	injCfg.CooldownInitialMs = cfg.Injection.CooldownInitialMs
	injCfg.CooldownFactor = cfg.Injection.CooldownFactor
	injCfg.CooldownMaxMs = cfg.Injection.CooldownMaxMs
	injCfg.AllowMethods = cfg.Injection.AllowMethods
	if cfg.Injection.Allowlist != "" {
		if re, err := regexp.Compile(cfg.Injection.Allowlist); err == nil {
			injCfg.Allowlist = re
		} else {
			log.Printf("[coldvoxd] invalid injection allowlist regex: %v", err)
		}
	}
	if cfg.Injection.Blocklist != "" {
		if re, err := regexp.Compile(cfg.Injection.Blocklist); err == nil {
			injCfg.Blocklist = re
		} else {
			log.Printf("[coldvoxd] invalid injection blocklist regex: %v", err)
		}
	}

	atspiBackend := backends.NewATSPI(0)
	keystrokeBackend := backends.NewKeystroke(1)
	clipboardRestoreDelay := time.Duration(cfg.Injection.ClipboardRestoreMs) * time.Millisecond
	clipboardBackend := backends.NewClipboard(2, keystrokeBackend.PasteCombo, clipboardRestoreDelay)
	noopBackend := &backends.NoOp{PriorityValue: 99}

	candidates := []backends.Backend{atspiBackend, clipboardBackend, keystrokeBackend, noopBackend}
	return inject.NewManager(injCfg, candidates, atspiBackend)
}

func parseQuality(s string) audio.ResamplerQuality {
	switch s {
	case "fast":
		return audio.QualityFast
	case "quality":
		return audio.QualityQuality
	default:
		return audio.QualityBalanced
	}
}
