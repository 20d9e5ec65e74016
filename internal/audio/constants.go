// Package audio handles microphone capture, sample math and WAV encoding
package audio

// Audio constants
const (
	// Samples per capture callback (~85ms at 48kHz)
	DefaultFrameSize = 4096

	// Capture rate used when the device does not report one
	DefaultCaptureSampleRate = 48000

	// Export rate expected by Lex for audio/x-l16
	DefaultExportSampleRate = 16000

	// Silence detection defaults
	DefaultSilenceAmplitude = 0.2
	DefaultSilenceTimeMs    = 1500

	// WAV layout
	WAVHeaderSize  = 44
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8
	NumChannels    = 1
)
