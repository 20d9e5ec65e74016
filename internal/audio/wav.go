package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data size
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data size in bytes
}

// WAVInfo summarises a parsed WAV header.
type WAVInfo struct {
	SampleRate    uint32 `json:"sample_rate"`
	Channels      uint16 `json:"channels"`
	BitsPerSample uint16 `json:"bits_per_sample"`
	DataSize      uint32 `json:"data_size_bytes"`
	NumSamples    uint32 `json:"num_samples"`
}

func newWAVHeader(numSamples, sampleRate int) WAVHeader {
	dataSize := uint32(numSamples * BytesPerSample)
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   NumChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * NumChannels * BytesPerSample),
		BlockAlign:    NumChannels * BytesPerSample,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeWAV serializes mono float samples as a 16-bit little-endian PCM WAV.
// An empty input yields a bare 44-byte header with a zero data size.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*BytesPerSample))

	// Writes to a bytes.Buffer of fixed-size values cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, newWAVHeader(len(samples), sampleRate))

	pcm := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*BytesPerSample:], uint16(FloatToPCM16(s)))
	}
	buf.Write(pcm)

	return buf.Bytes()
}

// ParseWAVHeader validates the 44-byte header of data and returns its fields.
func ParseWAVHeader(data []byte) (WAVInfo, error) {
	if len(data) < WAVHeaderSize {
		return WAVInfo{}, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}

	var h WAVHeader
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &h); err != nil {
		return WAVInfo{}, fmt.Errorf("failed to read WAV header: %w", err)
	}

	switch {
	case string(h.ChunkID[:]) != "RIFF":
		return WAVInfo{}, fmt.Errorf("invalid WAV file: missing RIFF header")
	case string(h.Format[:]) != "WAVE":
		return WAVInfo{}, fmt.Errorf("invalid WAV file: missing WAVE format")
	case string(h.Subchunk1ID[:]) != "fmt ":
		return WAVInfo{}, fmt.Errorf("invalid WAV file: missing fmt chunk")
	case string(h.Subchunk2ID[:]) != "data":
		return WAVInfo{}, fmt.Errorf("invalid WAV file: missing data chunk")
	case h.AudioFormat != 1:
		return WAVInfo{}, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", h.AudioFormat)
	}

	info := WAVInfo{
		SampleRate:    h.SampleRate,
		Channels:      h.NumChannels,
		BitsPerSample: h.BitsPerSample,
		DataSize:      h.Subchunk2Size,
	}
	if h.BitsPerSample >= 8 {
		info.NumSamples = h.Subchunk2Size / uint32(h.BitsPerSample/8)
	}
	return info, nil
}

// DecodePCM16 returns the samples stored after the header of an EncodeWAV result.
func DecodePCM16(data []byte) ([]int16, error) {
	info, err := ParseWAVHeader(data)
	if err != nil {
		return nil, err
	}
	if info.BitsPerSample != BitsPerSample || info.Channels != NumChannels {
		return nil, fmt.Errorf("unsupported layout: %d channels, %d bits", info.Channels, info.BitsPerSample)
	}
	body := data[WAVHeaderSize:]
	if uint32(len(body)) < info.DataSize {
		return nil, fmt.Errorf("truncated WAV data: header says %d bytes, have %d", info.DataSize, len(body))
	}
	samples := make([]int16, info.NumSamples)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(body[i*BytesPerSample:]))
	}
	return samples, nil
}
