package audio

import (
	"testing"
)

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		expected bool
	}{
		{"blackhole", "BlackHole 2ch", true},
		{"vb-cable", "VB-Cable", true},
		{"loopback", "Loopback Audio", true},
		{"monitor", "Monitor of Built-in Audio", true},
		{"soundflower", "Soundflower (2ch)", true},
		{"microphone", "Built-in Microphone", false},
		{"usb mic", "USB Mic", false},
		{"line input", "Line Input", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLoopback(tt.device); got != tt.expected {
				t.Errorf("isLoopback(%q) = %v, want %v", tt.device, got, tt.expected)
			}
		})
	}
}

func TestPreferDevice(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		expected bool
	}{
		{"MacBook Pro Microphone", "USB Audio Device", true},
		{"Built-in Microphone", "External Mic", true},
		{"External Mic", "Line Input", true},
		{"Line Input", "External Mic", false},
		{"USB Audio Device", "Built-in Microphone", false},
		{"Line Input", "Aux Input", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"_vs_"+tt.current, func(t *testing.T) {
			if got := preferDevice(tt.name, tt.current); got != tt.expected {
				t.Errorf("preferDevice(%q, %q) = %v, want %v", tt.name, tt.current, got, tt.expected)
			}
		})
	}
}

func TestIsExcluded(t *testing.T) {
	c := NewCapturer(0, 0, 1, []string{"iphone", "teams"})

	if !c.isExcluded("Jane's iPhone Microphone") {
		t.Error("iPhone mic should be excluded")
	}
	if !c.isExcluded("Microsoft Teams Audio") {
		t.Error("Teams device should be excluded")
	}
	if c.isExcluded("Built-in Microphone") {
		t.Error("built-in mic should not be excluded")
	}
}

func TestNewCapturerDefaults(t *testing.T) {
	c := NewCapturer(0, 0, 8, nil)

	if c.SampleRate() != DefaultCaptureSampleRate {
		t.Errorf("SampleRate() = %d, want %d", c.SampleRate(), DefaultCaptureSampleRate)
	}
	if c.framesPerBuf != DefaultFrameSize {
		t.Errorf("framesPerBuf = %d, want %d", c.framesPerBuf, DefaultFrameSize)
	}
	if cap(c.outCh) != 8 {
		t.Errorf("frame channel capacity = %d, want 8", cap(c.outCh))
	}
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s        string
		substr   string
		expected bool
	}{
		{"BlackHole 2ch", "blackhole", true},
		{"BLACKHOLE", "blackhole", true},
		{"Some BlackHole Device", "blackhole", true},
		{"Built-in Microphone", "MICROPHONE", true},
		{"External Speakers", "blackhole", false},
		{"", "test", false},
		{"test", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.s+"_"+tt.substr, func(t *testing.T) {
			result := containsIgnoreCase(tt.s, tt.substr)
			if result != tt.expected {
				t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tt.s, tt.substr, result, tt.expected)
			}
		})
	}
}

func TestStopWithoutStart(t *testing.T) {
	c := NewCapturer(16000, 1024, 1, nil)
	c.Stop() // must not touch portaudio
	if c.running {
		t.Error("capturer should not be running")
	}
}
