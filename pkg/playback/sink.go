// Package playback schedules assistant audio for low-latency speaker
// output. Frames flow through a FIFO queue drained at a fixed tick;
// Flush cancels everything queued and playing, which is how barge-in
// and turn boundaries cut the assistant off.
package playback

import "io"

// Handle controls one playing frame.
type Handle interface {
	// Stop cancels playback. Safe to call on a frame that has
	// already finished.
	Stop()
}

// Sink plays normalized float32 samples on an output device.
type Sink interface {
	// Play starts playback of the samples at the given rate and
	// returns a handle for cancellation. done is invoked exactly
	// once when playback finishes naturally; it is never invoked
	// before Play returns and not invoked after Stop.
	Play(samples []float32, sampleRate int, done func()) (Handle, error)

	// Name returns the backend name (e.g., "oto", "mock").
	Name() string

	// Close releases the output device.
	io.Closer
}
