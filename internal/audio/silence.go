package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// Level summarises the loudness of a clip in dB relative to full scale.
// Silent clips report -Inf for both values.
type Level struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// Silent applies an RMS gate at thresholdDBFS with a peak gate 6 dB above it,
// so a single click does not count as speech.
func (l Level) Silent(thresholdDBFS float64) bool {
	if l.Samples == 0 || (math.IsInf(l.RMSdBFS, -1) && math.IsInf(l.PeakdBFS, -1)) {
		return true
	}
	return l.RMSdBFS <= thresholdDBFS && l.PeakdBFS <= thresholdDBFS+6
}

// MeasurePCM16 measures interleaved signed 16-bit little-endian samples.
func MeasurePCM16(pcm []byte) Level {
	var acc accumulator
	for i := 0; i+2 <= len(pcm); i += 2 {
		acc.add(float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0)
	}
	return acc.level()
}

func MeasureWAV(path string) (Level, error) {
	f, err := os.Open(path)
	if err != nil {
		return Level{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Level{}, ErrInvalidWAV
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return Level{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Level{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	depth := int(decoder.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return Level{}, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, depth)
	}

	fullScale := float64(int64(1) << (depth - 1))
	var acc accumulator
	for _, sample := range buf.Data {
		value := float64(sample)
		if depth == 8 {
			value -= 128
		}
		acc.add(value / fullScale)
	}
	return acc.level(), nil
}

// WritePCM16WAV wraps interleaved s16le samples in a RIFF/WAVE container.
// An empty pcm slice still yields a valid header-only file.
func WritePCM16WAV(w io.WriteSeeker, pcm []byte, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid wav format: %d Hz, %d channels", sampleRate, channels)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	encoder := wav.NewEncoder(w, sampleRate, 16, channels, wavFormatPCM)
	err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	})
	if closeErr := encoder.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

type accumulator struct {
	peak       float64
	sumSquares float64
	samples    int64
}

func (a *accumulator) add(value float64) {
	abs := math.Abs(value)
	if abs > a.peak {
		a.peak = abs
	}
	a.sumSquares += value * value
	a.samples++
}

func (a *accumulator) level() Level {
	if a.samples == 0 {
		return Level{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}
	return Level{
		RMSdBFS:  amplitudeToDBFS(math.Sqrt(a.sumSquares / float64(a.samples))),
		PeakdBFS: amplitudeToDBFS(a.peak),
		Samples:  a.samples,
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
