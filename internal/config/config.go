// Package config handles service and conversation configuration
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/awslabs/aws-lex-browser-audio-capture/internal/audio"
	"github.com/awslabs/aws-lex-browser-audio-capture/internal/dialogue"
)

type Config struct {
	HTTPAddr             string   `yaml:"http_addr"`
	LogLevel             string   `yaml:"log_level"`
	RelayListenAddr      string   `yaml:"relay_listen_addr"` // serve the dialogue relay; empty disables
	RelayTarget          string   `yaml:"relay_target"`      // reach Lex through a relay instead of directly
	RelayMaxRetries      int      `yaml:"relay_max_retries"`
	CaptureSampleRate    int      `yaml:"capture_sample_rate"`
	FramesPerBuffer      int      `yaml:"frames_per_buffer"`
	FrameQueueSize       int      `yaml:"frame_queue_size"`
	WorkerQueueSize      int      `yaml:"worker_queue_size"`
	ExcludedAudioDevices []string `yaml:"excluded_audio_devices"`
	ExportSampleRate     int      `yaml:"export_sample_rate"`
	TurnHistory          int      `yaml:"turn_history"`
	VizBatchSize         int      `yaml:"viz_batch_size"`
	VizFlushMs           int      `yaml:"viz_flush_ms"`

	Conversation Conversation `yaml:"conversation"`
}

// Conversation is the per-session configuration. Zero values take defaults.
type Conversation struct {
	SilenceDetection       *bool               `yaml:"silence_detection" json:"silenceDetection,omitempty"`
	SilenceDetectionConfig audio.SilenceConfig `yaml:"silence_detection_config" json:"silenceDetectionConfig"`
	LexConfig              Lex                 `yaml:"lex" json:"lexConfig"`
}

// Lex holds the PostContent parameters sent with every turn.
type Lex struct {
	BotName           string            `yaml:"bot_name" json:"botName"`
	BotAlias          string            `yaml:"bot_alias" json:"botAlias,omitempty"`
	ContentType       string            `yaml:"content_type" json:"contentType,omitempty"`
	UserID            string            `yaml:"user_id" json:"userId,omitempty"`
	Accept            string            `yaml:"accept" json:"accept,omitempty"`
	SessionAttributes map[string]string `yaml:"session_attributes" json:"sessionAttributes,omitempty"`
}

func defaults() *Config {
	return &Config{
		HTTPAddr:             ":8000",
		LogLevel:             "debug",
		CaptureSampleRate:    audio.DefaultCaptureSampleRate,
		FramesPerBuffer:      audio.DefaultFrameSize,
		FrameQueueSize:       32,
		WorkerQueueSize:      64,
		ExcludedAudioDevices: []string{"iphone", "teams"},
		ExportSampleRate:     audio.DefaultExportSampleRate,
		TurnHistory:          50,
		VizBatchSize:         8,
		VizFlushMs:           100,
	}
}

// Load returns defaults overridden by environment variables.
func Load() *Config {
	cfg := defaults()
	applyEnv(cfg)
	cfg.Conversation = cfg.Conversation.WithDefaults()
	return cfg
}

func applyEnv(c *Config) {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RelayListenAddr = getEnv("RELAY_LISTEN_ADDR", c.RelayListenAddr)
	c.RelayTarget = getEnv("RELAY_TARGET", c.RelayTarget)
	c.RelayMaxRetries = getEnvInt("RELAY_MAX_RETRIES", c.RelayMaxRetries)
	c.CaptureSampleRate = getEnvInt("CAPTURE_SAMPLE_RATE", c.CaptureSampleRate)
	c.FramesPerBuffer = getEnvInt("FRAMES_PER_BUFFER", c.FramesPerBuffer)
	c.FrameQueueSize = getEnvInt("FRAME_QUEUE_SIZE", c.FrameQueueSize)
	c.WorkerQueueSize = getEnvInt("WORKER_QUEUE_SIZE", c.WorkerQueueSize)
	c.ExcludedAudioDevices = getEnvList("EXCLUDED_AUDIO_DEVICES", c.ExcludedAudioDevices)
	c.ExportSampleRate = getEnvInt("EXPORT_SAMPLE_RATE", c.ExportSampleRate)
	c.TurnHistory = getEnvInt("TURN_HISTORY", c.TurnHistory)
	c.VizBatchSize = getEnvInt("VIZ_BATCH_SIZE", c.VizBatchSize)
	c.VizFlushMs = getEnvInt("VIZ_FLUSH_MS", c.VizFlushMs)

	conv := &c.Conversation
	if v := os.Getenv("SILENCE_DETECTION"); v != "" {
		enabled := getEnvBool("SILENCE_DETECTION", true)
		conv.SilenceDetection = &enabled
	}
	conv.SilenceDetectionConfig.Amplitude = getEnvFloat("SILENCE_AMPLITUDE", conv.SilenceDetectionConfig.Amplitude)
	conv.SilenceDetectionConfig.Time = getEnvInt("SILENCE_TIME_MS", conv.SilenceDetectionConfig.Time)

	lex := &conv.LexConfig
	lex.BotName = getEnv("LEX_BOT_NAME", lex.BotName)
	lex.BotAlias = getEnv("LEX_BOT_ALIAS", lex.BotAlias)
	lex.ContentType = getEnv("LEX_CONTENT_TYPE", lex.ContentType)
	lex.UserID = getEnv("LEX_USER_ID", lex.UserID)
	lex.Accept = getEnv("LEX_ACCEPT", lex.Accept)
}

// WithDefaults fills unset fields: silence detection on, amplitude 0.2,
// 1500ms, and the Lex request defaults.
func (c Conversation) WithDefaults() Conversation {
	if c.SilenceDetection == nil {
		enabled := true
		c.SilenceDetection = &enabled
	}
	if c.SilenceDetectionConfig.Amplitude <= 0 {
		c.SilenceDetectionConfig.Amplitude = audio.DefaultSilenceAmplitude
	}
	if c.SilenceDetectionConfig.Time <= 0 {
		c.SilenceDetectionConfig.Time = audio.DefaultSilenceTimeMs
	}
	if c.LexConfig.BotAlias == "" {
		c.LexConfig.BotAlias = dialogue.DefaultBotAlias
	}
	if c.LexConfig.ContentType == "" {
		c.LexConfig.ContentType = dialogue.DefaultContentType
	}
	if c.LexConfig.UserID == "" {
		c.LexConfig.UserID = dialogue.DefaultUserID
	}
	if c.LexConfig.Accept == "" {
		c.LexConfig.Accept = dialogue.DefaultAccept
	}
	return c
}

// SilenceEnabled reports whether silence ends a recording. Unset means true.
func (c Conversation) SilenceEnabled() bool {
	return c.SilenceDetection == nil || *c.SilenceDetection
}

// Request builds the PostContent request for one recorded turn.
func (l Lex) Request(input []byte) *dialogue.Request {
	var attrs map[string]string
	if len(l.SessionAttributes) > 0 {
		attrs = make(map[string]string, len(l.SessionAttributes))
		for k, v := range l.SessionAttributes {
			attrs[k] = v
		}
	}
	return &dialogue.Request{
		BotName:           l.BotName,
		BotAlias:          l.BotAlias,
		UserID:            l.UserID,
		ContentType:       l.ContentType,
		Accept:            l.Accept,
		SessionAttributes: attrs,
		InputStream:       input,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
