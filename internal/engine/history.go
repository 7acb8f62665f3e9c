package engine

import (
	"sync"
	"sync/atomic"
)

// HistoryLog is the append-only record of sanitization cycles. Readers load a
// published snapshot and never wait on the writer.
type HistoryLog struct {
	mu      sync.Mutex
	seq     uint64
	records atomic.Pointer[[]SanitizationRecord]
}

// NewHistoryLog creates an empty log.
func NewHistoryLog() *HistoryLog {
	h := &HistoryLog{}
	empty := make([]SanitizationRecord, 0)
	h.records.Store(&empty)
	return h
}

// append stamps rec with the next sequence number and returns the stored copy.
func (h *HistoryLog) append(rec SanitizationRecord) SanitizationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	rec.Seq = h.seq
	// Published snapshots are handed out with len == cap, so writing past
	// their end never touches memory a reader can see.
	next := append(*h.records.Load(), rec)
	h.records.Store(&next)
	return rec
}

func (h *HistoryLog) restore(records []SanitizationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := make([]SanitizationRecord, len(records))
	copy(next, records)
	h.seq = 0
	for _, r := range next {
		h.seq = max(h.seq, r.Seq)
	}
	h.records.Store(&next)
}

// Records returns every record in insertion order.
func (h *HistoryLog) Records() []SanitizationRecord {
	cur := *h.records.Load()
	return cur[:len(cur):len(cur)]
}

// ForStation returns the records of one station in insertion order.
func (h *HistoryLog) ForStation(stationID string) []SanitizationRecord {
	var out []SanitizationRecord
	for _, r := range h.Records() {
		if r.StationID == stationID {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records.
func (h *HistoryLog) Len() int {
	return len(*h.records.Load())
}
