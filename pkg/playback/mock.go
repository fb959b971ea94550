package playback

import (
	"sync"
	"sync/atomic"
)

// MockSink is a mock output sink for testing. Playback does not finish
// on its own; tests call CompleteAll or complete individual handles to
// simulate frames ending.
type MockSink struct {
	mu      sync.Mutex
	handles []*MockHandle

	plays atomic.Int64
}

// NewMockSink creates a new mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Play records the request and returns a handle the test can complete.
func (m *MockSink) Play(samples []float32, sampleRate int, done func()) (Handle, error) {
	h := &MockHandle{
		Samples:    samples,
		SampleRate: sampleRate,
		done:       done,
	}

	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()

	m.plays.Add(1)
	return h, nil
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close is a no-op.
func (m *MockSink) Close() error {
	return nil
}

// Plays returns the total number of Play calls.
func (m *MockSink) Plays() int64 {
	return m.plays.Load()
}

// Handles returns a snapshot of all handles created so far.
func (m *MockSink) Handles() []*MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockHandle, len(m.handles))
	copy(out, m.handles)
	return out
}

// CompleteAll finishes every handle that is still playing.
func (m *MockSink) CompleteAll() {
	for _, h := range m.Handles() {
		h.Complete()
	}
}

// MockHandle is a handle returned by MockSink.
type MockHandle struct {
	Samples    []float32
	SampleRate int

	mu      sync.Mutex
	stopped bool
	ended   bool
	done    func()
}

// Stop cancels playback without firing the completion callback.
func (h *MockHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

// Complete simulates the frame finishing naturally.
func (h *MockHandle) Complete() {
	h.mu.Lock()
	if h.stopped || h.ended {
		h.mu.Unlock()
		return
	}
	h.ended = true
	done := h.done
	h.mu.Unlock()

	if done != nil {
		done()
	}
}

// Stopped reports whether Stop was called.
func (h *MockHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

var _ Sink = (*MockSink)(nil)
