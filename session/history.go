package session

import "sync"

// History keeps the most recent non-analysis engine lines.
//
// Memory management:
//   - Lines are stored in a slice (FIFO queue)
//   - Oldest lines are evicted when MaxLines or MaxBytes is exceeded
//   - A zero limit means no limit
//
// History is safe for concurrent use.
type History struct {
	lines    []string
	byteSize int
	maxLines int
	maxBytes int
	mu       sync.Mutex
}

// NewHistory returns an empty History bounded by maxLines and maxBytes.
func NewHistory(maxLines, maxBytes int) *History {
	return &History{maxLines: maxLines, maxBytes: maxBytes}
}

// Add appends line and evicts from the front until both limits hold.
func (h *History) Add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lines = append(h.lines, line)
	h.byteSize += len(line)

	// Keep removing lines until both constraints are satisfied.
	for len(h.lines) > 0 {
		exceedsLineLimit := h.maxLines > 0 && len(h.lines) > h.maxLines
		exceedsByteLimit := h.maxBytes > 0 && h.byteSize > h.maxBytes
		if !exceedsLineLimit && !exceedsByteLimit {
			break
		}
		h.byteSize -= len(h.lines[0])
		h.lines[0] = ""
		h.lines = h.lines[1:]
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (h *History) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

// Bytes returns the total size of the retained lines.
func (h *History) Bytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byteSize
}

// Reset drops every retained line.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = nil
	h.byteSize = 0
}
