// Package audio provides the PCM16 audio frame model and sample-format
// conversions shared by the capture and playback pipelines.
package audio

import "math"

// Frame is a chunk of PCM16 little-endian audio. It is immutable once
// created; ownership passes from the producer to the single consumer
// that plays or sends it.
type Frame struct {
	// Data contains raw PCM16 little-endian bytes.
	Data []byte

	// SampleRate is the sample rate of this frame in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// NewFrame creates a frame from raw PCM16 bytes.
func NewFrame(data []byte, sampleRate, channels int) Frame {
	return Frame{Data: data, SampleRate: sampleRate, Channels: channels}
}

// Samples returns the frame's data as int16 samples.
func (f *Frame) Samples() []int16 {
	return BytesToSamples(f.Data)
}

// Duration returns the duration of the frame in seconds.
func (f *Frame) Duration() float64 {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	return float64(len(f.Data)/2) / float64(f.SampleRate*f.Channels)
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// ToFloat32 converts PCM16 samples to normalized float32 in [-1, 1).
func ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Quantize converts normalized float samples to PCM16, clamping to
// [-1, 1] and rounding to the nearest step.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = QuantizeSample(s)
	}
	return out
}

// QuantizeSample clamps a single float sample to [-1, 1] and quantizes
// it to int16.
func QuantizeSample(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * 32767))
}

// RMS calculates the root mean square energy of samples, normalized to
// the 0..1 range.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum/float64(len(samples))) / 32767
}
