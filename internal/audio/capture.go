package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// ErrNoInputDevice is returned when no usable microphone is found.
var ErrNoInputDevice = errors.New("no audio input device available")

// Capturer captures mono frames from the best available microphone with backpressure.
type Capturer struct {
	outCh        chan Frame
	sampleRate   int
	framesPerBuf int
	excludedDevs []string

	mu      sync.Mutex
	running bool
	device  *deviceCapture
}

type deviceCapture struct {
	stream   *portaudio.Stream
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewCapturer creates a capturer. sampleRate 0 uses the device default.
func NewCapturer(sampleRate, framesPerBuffer, bufferSize int, excludedDevices []string) *Capturer {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFrameSize
	}
	if sampleRate <= 0 {
		sampleRate = DefaultCaptureSampleRate
	}
	return &Capturer{
		outCh:        make(chan Frame, bufferSize),
		sampleRate:   sampleRate,
		framesPerBuf: framesPerBuffer,
		excludedDevs: excludedDevices,
	}
}

// Frames returns the channel for receiving captured frames.
func (c *Capturer) Frames() <-chan Frame { return c.outCh }

// SampleRate returns the capture sample rate.
func (c *Capturer) SampleRate() int { return c.sampleRate }

// Check verifies that a microphone exists and can be opened at the capture rate.
func (c *Capturer) Check(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer func() { _ = portaudio.Terminate() }()

	dev, err := c.selectDevice()
	if err != nil {
		return err
	}

	buf := make([]float32, c.framesPerBuf)
	stream, err := portaudio.OpenStream(c.streamParams(dev), buf)
	if err != nil {
		return err
	}
	return stream.Close()
}

// Start begins capturing from the selected microphone.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return err
	}

	dev, err := c.selectDevice()
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	if err := c.startDevice(ctx, dev); err != nil {
		_ = portaudio.Terminate()
		return err
	}

	c.running = true
	slog.Info("started audio capture", "device", dev.Name, "sample_rate", c.sampleRate, "frames", c.framesPerBuf)
	return nil
}

func (c *Capturer) selectDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 || c.isExcluded(dev.Name) || isLoopback(dev.Name) {
			continue
		}
		if best == nil || preferDevice(dev.Name, best.Name) {
			best = dev
		}
	}
	if best == nil {
		return nil, ErrNoInputDevice
	}
	return best, nil
}

func (c *Capturer) streamParams(dev *portaudio.DeviceInfo) portaudio.StreamParameters {
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: NumChannels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: c.framesPerBuf,
	}
}

// isLoopback reports virtual devices that carry system output, not a voice.
func isLoopback(name string) bool {
	for _, kw := range []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower"} {
		if containsIgnoreCase(name, kw) {
			return true
		}
	}
	return false
}

func (c *Capturer) isExcluded(name string) bool {
	for _, ex := range c.excludedDevs {
		if containsIgnoreCase(name, ex) {
			return true
		}
	}
	return false
}

// preferDevice ranks microphone-looking names above generic inputs, and
// built-in mics above external ones.
func preferDevice(name, current string) bool {
	for _, p := range []string{"built-in", "macbook", "microphone", "mic"} {
		nameHas := containsIgnoreCase(name, p)
		currHas := containsIgnoreCase(current, p)
		if nameHas != currHas {
			return nameHas
		}
	}
	return false
}

func (c *Capturer) startDevice(ctx context.Context, dev *portaudio.DeviceInfo) error {
	buf := make([]float32, c.framesPerBuf)
	stream, err := portaudio.OpenStream(c.streamParams(dev), buf)
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	devCtx, cancel := context.WithCancel(ctx)
	dc := &deviceCapture{stream: stream, cancel: cancel}
	c.device = dc

	deviceID := dev.Name

	go func() {
		defer dc.stop()
		for {
			select {
			case <-devCtx.Done():
				return
			default:
			}

			if err := stream.Read(); err != nil {
				slog.Debug("audio read error", "device", deviceID, "error", err)
				return
			}

			frame := Frame{
				Samples:   append([]float32(nil), buf...),
				DeviceID:  deviceID,
				Timestamp: time.Now(),
			}

			select {
			case c.outCh <- frame:
			default:
				slog.Debug("audio buffer full, dropping frame", "device", deviceID)
			}
		}
	}()

	return nil
}

func (d *deviceCapture) stop() {
	d.stopOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		if d.stream != nil {
			_ = d.stream.Stop()
			_ = d.stream.Close()
		}
	})
}

// Stop stops audio capture.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}

	if c.device != nil {
		c.device.stop()
		c.device = nil
	}
	c.running = false
	_ = portaudio.Terminate()
}

func containsIgnoreCase(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || containsIgnoreCaseImpl(s, substr))
}

const asciiCaseOffset = 'a' - 'A'

func containsIgnoreCaseImpl(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		match := true
		for j := 0; j < len(substr); j++ {
			c1, c2 := s[i+j], substr[j]
			if c1 >= 'A' && c1 <= 'Z' {
				c1 += asciiCaseOffset
			}
			if c2 >= 'A' && c2 <= 'Z' {
				c2 += asciiCaseOffset
			}
			if c1 != c2 {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
