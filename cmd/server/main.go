// Lex audio server - captures microphone turns, sends them to Lex and plays the replies
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/config"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/metrics"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/capture"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/control"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/turns"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/orchestrator/viz"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/resilience"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/server"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/trace"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("LEXAUDIO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, closeClient, err := dialogueClient(ctx, cfg, awsCfg)
	if err != nil {
		return err
	}
	defer closeClient()
	backend := dialogue.WithBreaker(client, resilience.DialogueConfig())
	backend.Breaker().WithHook(func(_, to resilience.State) { m.RecordBreaker(int(to)) })

	src := audio.NewCapturer(cfg.CaptureSampleRate, cfg.FramesPerBuffer, cfg.FrameQueueSize, cfg.ExcludedAudioDevices)
	ctl := control.New(src, audio.NewBeepPlayer(),
		control.WithPipelineOptions(capture.WithMetrics(m), capture.WithQueueSize(cfg.WorkerQueueSize)))
	defer ctl.Close()

	// The batcher starts flushing only after the first recording, by which
	// time srv is set.
	var srv *server.Server
	batcher := viz.NewBatcher(func(ctx context.Context, frames []viz.Frame) error {
		return srv.Visualize(ctx, frames)
	}, cfg.VizBatchSize, time.Duration(cfg.VizFlushMs)*time.Millisecond)
	defer batcher.Stop()

	conv, err := orchestrator.New(cfg.Conversation, orchestrator.Options{
		Control:     ctl,
		Dialogue:    backend,
		Metrics:     m,
		Turns:       turns.NewStore(cfg.TurnHistory, turns.DefaultEventBuffer),
		OnAudioData: batcher.Add,
		ExportRate:  cfg.ExportSampleRate,
		OnSuccess: func(r *dialogue.Reply) {
			slog.Info("dialogue reply",
				"dialog_state", r.DialogState,
				"intent", r.IntentName,
				"slot", r.SlotToElicit,
				"content_type", r.ContentType)
		},
	})
	if err != nil {
		return err
	}
	srv = server.New(conv, reg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return conv.Run(gctx) })

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.HTTPAddr, "session", conv.SessionID(),
			"bot", cfg.Conversation.LexConfig.BotName, "relay_target", cfg.RelayTarget)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.RelayListenAddr != "" {
		lex, err := dialogue.NewLex(ctx, awsCfg)
		if err != nil {
			return err
		}
		g.Go(func() error { return serveRelay(gctx, cfg.RelayListenAddr, lex) })
	}

	return g.Wait()
}

// dialogueClient reaches Lex directly, or through a relay when one is configured.
func dialogueClient(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (dialogue.Client, func(), error) {
	if cfg.RelayTarget == "" {
		lex, err := dialogue.NewLex(ctx, awsCfg)
		if err != nil {
			return nil, nil, err
		}
		return lex, func() {}, nil
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxRetries = cfg.RelayMaxRetries
	relay, err := dialogue.DialRelay(cfg.RelayTarget, dialogue.WithRetry(retry))
	if err != nil {
		return nil, nil, fmt.Errorf("dial relay %s: %w", cfg.RelayTarget, err)
	}
	return relay, func() { _ = relay.Close() }, nil
}

// serveRelay exposes backend over gRPC until ctx is cancelled.
func serveRelay(ctx context.Context, addr string, backend dialogue.Client) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay listen %s: %w", addr, err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.MaxRecvMsgSize(dialogue.MaxMessageSize),
		grpc.MaxSendMsgSize(dialogue.MaxMessageSize),
	)
	dialogue.RegisterRelay(s, backend)

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	slog.Info("dialogue relay starting", "addr", addr)
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("relay serve: %w", err)
	}
	return nil
}
