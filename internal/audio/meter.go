package audio

import (
	"encoding/binary"
	"sync"
)

// Meter keeps the most recent samples of a PCM stream so the UI can draw
// input levels while a take is running.
type Meter struct {
	mu      sync.RWMutex
	samples []int16
	head    int // next write position
	count   int
	window  int
}

// NewMeter keeps capacity samples and reports the last window of them.
func NewMeter(capacity, window int) *Meter {
	if window > capacity {
		window = capacity
	}

	return &Meter{
		samples: make([]int16, capacity),
		window:  window,
	}
}

// Consume feeds packets from input into the meter until input closes.
func (m *Meter) Consume(input <-chan DataPacket) {
	for packet := range input {
		m.Write(pcmSamples(packet))
	}
}

// Write appends samples, overwriting the oldest once full.
func (m *Meter) Write(samples []int16) {
	if len(samples) == 0 || len(m.samples) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	capacity := len(m.samples)
	for _, sample := range samples {
		m.samples[m.head] = sample
		m.head = (m.head + 1) % capacity
		if m.count < capacity {
			m.count++
		}
	}
}

// Read returns the last window samples, oldest first.
func (m *Meter) Read() []int16 {
	return m.Last(m.window)
}

// Last returns up to n of the most recent samples, oldest first.
func (m *Meter) Last(n int) []int16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 || n <= 0 {
		return nil
	}
	n = min(n, m.count)

	capacity := len(m.samples)
	start := (m.head - n + capacity) % capacity

	out := make([]int16, n)
	for i := range out {
		out[i] = m.samples[(start+i)%capacity]
	}

	return out
}

// pcmSamples decodes S16LE bytes. A trailing odd byte is ignored.
func pcmSamples(data []byte) []int16 {
	n := len(data) / bytesPerSample
	if n == 0 {
		return nil
	}

	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
	}

	return samples
}
