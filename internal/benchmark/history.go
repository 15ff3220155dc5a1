package benchmark

import "oracleScope/internal/model"

// History is an append-only sliding window of the most recent benchmark points.
// It has a single owner; readers get copies.
type History struct {
	buf   []model.BenchmarkPoint
	start int
	size  int
}

// NewHistory returns a window holding at most capacity points.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]model.BenchmarkPoint, capacity)}
}

// Cap returns the window length.
func (h *History) Cap() int {
	return len(h.buf)
}

// Len returns the number of points held.
func (h *History) Len() int {
	return h.size
}

// Append adds a point, evicting the oldest when full.
func (h *History) Append(p model.BenchmarkPoint) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = p
		h.size++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// Points returns the held points from oldest to newest.
func (h *History) Points() []model.BenchmarkPoint {
	if h == nil {
		return nil
	}
	return h.Last(h.size)
}

// Last returns up to n of the newest points, oldest first.
func (h *History) Last(n int) []model.BenchmarkPoint {
	if h == nil || n <= 0 {
		return nil
	}
	if n > h.size {
		n = h.size
	}
	out := make([]model.BenchmarkPoint, 0, n)
	for i := h.size - n; i < h.size; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

// TWAP returns the arithmetic mean benchmark price over the last n ticks, skipping
// undefined points. ok is false when none of them is defined.
func (h *History) TWAP(n int) (float64, bool) {
	return MeanPrice(h.Last(n))
}

// MeanPrice averages the defined points of a slice.
func MeanPrice(points []model.BenchmarkPoint) (float64, bool) {
	var (
		sum   float64
		count int
	)
	for _, p := range points {
		if !p.Defined {
			continue
		}
		sum += p.Price
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
