package calculator

import "math"

// window is a fixed-capacity ring of the most recent values.
type window struct {
	buf   []float64
	idx   int
	count int
}

func newWindow(period int) *window {
	return &window{buf: make([]float64, period)}
}

func (w *window) push(v float64) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

func (w *window) full() bool { return w.count == len(w.buf) }

// mean sums the ring directly rather than keeping a running sum, so the
// result does not depend on how many values have passed through.
func (w *window) mean() float64 {
	if w.count == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := 0; i < w.count; i++ {
		sum += w.buf[i]
	}
	return sum / float64(w.count)
}

func (w *window) max() float64 {
	m := math.Inf(-1)
	for i := 0; i < w.count; i++ {
		if w.buf[i] > m {
			m = w.buf[i]
		}
	}
	return m
}

func (w *window) min() float64 {
	m := math.Inf(1)
	for i := 0; i < w.count; i++ {
		if w.buf[i] < m {
			m = w.buf[i]
		}
	}
	return m
}
