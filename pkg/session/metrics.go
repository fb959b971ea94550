package session

import (
	"sync"
	"time"
)

// Metrics tracks one conversation turn.
// Latencies are measured from the moment the user stops talking.
type Metrics struct {
	// Timestamps for key events
	TurnStartTime  time.Time // When the user started talking
	EndTurnTime    time.Time // When end_turn was sent
	FirstAudioTime time.Time // When the first assistant audio arrived
	TurnDoneTime   time.Time // When turn_complete arrived

	// Computed latencies
	FirstAudioLatency time.Duration // end_turn to first assistant audio
	TurnDuration      time.Duration // end_turn to turn_complete

	// Counts for this conversation turn
	ChunksSent     int // Microphone chunks sent upstream
	ChunksReceived int // Assistant audio chunks received
	Interruptions  int // Times the user barged in
}

// MetricsCollector collects per-turn metrics. It is goroutine-safe and
// can be used from capture, transport, and playback callbacks.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// OnUpdate sets a callback that fires whenever metrics are updated.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// MarkTurnStart resets the collector for a new turn.
func (m *MetricsCollector) MarkTurnStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{}
	m.current.TurnStartTime = time.Now()
}

// MarkEndTurn records when the user finished talking. This is the
// reference point for latency measurements.
func (m *MetricsCollector) MarkEndTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.EndTurnTime = time.Now()
}

// MarkFirstAudio records the first assistant audio of the turn.
func (m *MetricsCollector) MarkFirstAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.FirstAudioTime.IsZero() {
		m.current.FirstAudioTime = time.Now()
		if !m.current.EndTurnTime.IsZero() {
			m.current.FirstAudioLatency = m.current.FirstAudioTime.Sub(m.current.EndTurnTime)
		}
		m.notify()
	}
}

// MarkTurnDone records turn completion and archives the turn.
func (m *MetricsCollector) MarkTurnDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TurnDoneTime = time.Now()
	if !m.current.EndTurnTime.IsZero() {
		m.current.TurnDuration = m.current.TurnDoneTime.Sub(m.current.EndTurnTime)
	}
	m.history = append(m.history, m.current)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	m.notify()
}

// IncrementSent increments the count of chunks sent upstream.
func (m *MetricsCollector) IncrementSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ChunksSent++
}

// IncrementReceived increments the count of assistant chunks received.
func (m *MetricsCollector) IncrementReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ChunksReceived++
}

// IncrementInterruptions counts a barge-in.
func (m *MetricsCollector) IncrementInterruptions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Interruptions++
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Average returns average latencies over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.FirstAudioLatency += h.FirstAudioLatency
		avg.TurnDuration += h.TurnDuration
	}

	n := time.Duration(len(m.history))
	avg.FirstAudioLatency /= n
	avg.TurnDuration /= n

	return avg
}

// notify calls the update callback if set.
// Must be called with mutex held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		metrics := m.current
		go m.onUpdate(metrics)
	}
}
