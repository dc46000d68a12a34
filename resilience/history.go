package resilience

import (
	"sync"

	"github.com/parley-ai/parley/types"
)

const defaultHistoryCapacity = 256

// History keeps a bounded ring of error records for analytics plus a
// consecutive-unrecovered counter driving the degradation warning.
type History struct {
	mu               sync.Mutex
	records          []types.ErrorRecord
	next             int
	full             bool
	consecutiveUnrec int
	warnThreshold    int
}

// NewHistory creates a history. warnThreshold <= 0 selects 3.
func NewHistory(warnThreshold int) *History {
	if warnThreshold <= 0 {
		warnThreshold = 3
	}
	return &History{
		records:       make([]types.ErrorRecord, defaultHistoryCapacity),
		warnThreshold: warnThreshold,
	}
}

// Record stores one record. Recovered records reset the consecutive-
// unrecovered counter; unrecovered ones advance it.
func (h *History) Record(rec types.ErrorRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = rec
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}

	if rec.Recovered {
		h.consecutiveUnrec = 0
	} else {
		h.consecutiveUnrec++
	}
}

// NoteSuccess resets the consecutive-unrecovered counter without
// storing a record.
func (h *History) NoteSuccess() {
	h.mu.Lock()
	h.consecutiveUnrec = 0
	h.mu.Unlock()
}

// ShouldWarn reports whether consecutive unrecovered errors exceed the
// warning threshold.
func (h *History) ShouldWarn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutiveUnrec > h.warnThreshold
}

// ConsecutiveUnrecovered returns the current counter value.
func (h *History) ConsecutiveUnrecovered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutiveUnrec
}

// Recent returns up to n records, most recent last.
func (h *History) Recent(n int) []types.ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = len(h.records)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]types.ErrorRecord, 0, n)
	start := h.next - n
	if start < 0 {
		start += len(h.records)
	}
	for i := 0; i < n; i++ {
		out = append(out, h.records[(start+i)%len(h.records)])
	}
	return out
}
