package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/awslabs/aws-lex-browser-audio-capture/internal/errors"
)

// LoadFile reads the YAML file at path on top of the defaults, then applies
// environment overrides and validates the result.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r the same way LoadFile does.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "decode yaml")
	}
	applyEnv(cfg)
	cfg.Conversation = cfg.Conversation.WithDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.CaptureSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture_sample_rate must be positive, got %d", cfg.CaptureSampleRate))
	}
	if cfg.ExportSampleRate <= 0 || cfg.ExportSampleRate > cfg.CaptureSampleRate {
		errs = append(errs, fmt.Errorf("export_sample_rate %d must be in (0, capture_sample_rate=%d]", cfg.ExportSampleRate, cfg.CaptureSampleRate))
	}
	if cfg.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("frames_per_buffer must be positive, got %d", cfg.FramesPerBuffer))
	}
	if cfg.WorkerQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("worker_queue_size must be positive, got %d", cfg.WorkerQueueSize))
	}
	if cfg.RelayMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("relay_max_retries must not be negative, got %d", cfg.RelayMaxRetries))
	}
	if a := cfg.Conversation.SilenceDetectionConfig.Amplitude; a > 1 {
		errs = append(errs, fmt.Errorf("conversation.silence_detection_config.amplitude %.2f is out of range (0, 1]", a))
	}
	if cfg.RelayListenAddr != "" && cfg.RelayTarget != "" {
		slog.Warn("relay_listen_addr and relay_target are both set; the service will relay to another relay")
	}

	if len(errs) == 0 {
		return nil
	}
	return apperrors.Wrap(errors.Join(errs...), apperrors.CodeConfigInvalid, "invalid configuration")
}
