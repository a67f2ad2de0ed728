package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/lokutorlog"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/pipeline"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/providers/stt"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker/inprocess"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker/mock"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker/wsworker"
)

// sampleRate keeps the malgo device configuration in lockstep with
// pkg/audiowav's fixed 16kHz mono contract.
const sampleRate = 16000

func buildEngine(name string) worker.Engine {
	switch name {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai STT")
		}
		return stt.NewOpenAI(key, os.Getenv("OPENAI_STT_MODEL"))
	case "groq":
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq STT")
		}
		return stt.NewGroq(key, os.Getenv("GROQ_STT_MODEL"))
	case "deepgram":
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			log.Fatal("Error: DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return stt.NewDeepgram(key)
	case "assemblyai":
		key := os.Getenv("ASSEMBLYAI_API_KEY")
		if key == "" {
			log.Fatal("Error: ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return stt.NewAssemblyAI(key)
	case "ws":
		addr := os.Getenv("WS_WORKER_ADDR")
		if addr == "" {
			log.Fatal("Error: WS_WORKER_ADDR must be set for ws STT")
		}
		return wsworker.New("ws-stt", addr)
	case "mock":
		fallthrough
	default:
		return mock.New("mock-stt", "[transcription]")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	providerName := os.Getenv("STT_PROVIDER")
	if providerName == "" {
		providerName = "mock"
	}

	workerCount := 2
	if v := os.Getenv("WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workerCount = n
		}
	}

	memoize := os.Getenv("MEMOIZE") == "true"

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := lokutorlog.NewCharm(logLevel)

	engines := make([]worker.Engine, workerCount)
	for i := 0; i < workerCount; i++ {
		e := buildEngine(providerName)
		if memoize {
			wrapped, err := inprocess.New(e, 64)
			if err != nil {
				log.Fatalf("inprocess cache: %v", err)
			}
			e = wrapped
		}
		engines[i] = e
	}

	cfg := pipeline.DefaultConfig()
	cfg.WorkerCount = workerCount
	cfg.TempDir = os.TempDir()

	p := pipeline.New(cfg, engines, logger, nil)

	p.OnStats(func(s pipeline.QueueStats) {
		logger.Debug("queue stats", "intake", s.IntakeLen, "dropped", s.Dropped, "next_expected", s.NextExpected)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	warmupCtx, warmupCancel := context.WithTimeout(ctx, 45*time.Second)
	p.WarmUp(warmupCtx)
	warmupCancel()

	go p.Run(ctx)
	defer p.Stop()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			p.PushFrame(pInput)
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Configured: STT=%s | workers=%d | sample_rate=%dHz\n", providerName, workerCount, sampleRate)
	fmt.Println("Transcribing system audio. Press Ctrl+C to exit.")

	go func() {
		var lastLen int
		for {
			entries := p.Sink().Entries()
			if len(entries) > lastLen {
				for _, e := range entries[lastLen:] {
					fmt.Printf("\r\033[K[%6.2fs] %s\n", e.StartAbs, e.Text)
				}
				lastLen = len(entries)
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nShutting down...")
}
