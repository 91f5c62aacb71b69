// Package history keeps the per-asset chronological close-price
// windows the estimation engine feeds on.
package history

import "fmt"

// Window is a fixed-capacity chronological buffer of close prices.
// Once full, each append evicts the oldest sample (FIFO). It is owned
// by the synchronizer; a single goroutine writes any given window.
type Window struct {
	buf   []float64
	start int
	n     int
}

// NewWindow creates an empty window with the given capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		panic(fmt.Sprintf("history: invalid window capacity %d", capacity))
	}
	return &Window{buf: make([]float64, capacity)}
}

// Append adds the newest sample, evicting the oldest when full.
func (w *Window) Append(price float64) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = price
		w.n++
		return
	}
	w.buf[w.start] = price
	w.start = (w.start + 1) % len(w.buf)
}

// Fill replaces the window contents with a bootstrap sequence. The
// sequence must match the window capacity exactly.
func (w *Window) Fill(prices []float64) error {
	if len(prices) != len(w.buf) {
		return fmt.Errorf("history: fill with %d samples, capacity %d", len(prices), len(w.buf))
	}
	copy(w.buf, prices)
	w.start = 0
	w.n = len(w.buf)
	return nil
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return w.n
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Full reports whether the window holds a complete history.
func (w *Window) Full() bool {
	return w.n == len(w.buf)
}

// Latest returns the most recent sample.
func (w *Window) Latest() (float64, bool) {
	if w.n == 0 {
		return 0, false
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)], true
}

// Prices returns the samples oldest-first as a fresh slice.
func (w *Window) Prices() []float64 {
	out := make([]float64, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
