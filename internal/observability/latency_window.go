package observability

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TurnStageSnapshot is the payload of the latency endpoint.
type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// p95 latency budgets per stage, in milliseconds.
var stageTargets = map[string]float64{
	"wake_to_ack": 900,
	"capture":     5000,
	"generate":    2500,
	"synthesize":  1800,
	"turn_total":  6000,
}

// ring keeps the most recent samples in insertion order.
type ring struct {
	buf  []float64
	head int
	size int
}

func (r *ring) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *ring) last() float64 {
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)]
}

func (r *ring) sorted() []float64 {
	out := make([]float64, r.size)
	if r.size < len(r.buf) {
		copy(out, r.buf[:r.size])
	} else {
		copy(out, r.buf)
	}
	slices.Sort(out)
	return out
}

type latencyWindow struct {
	mu       sync.Mutex
	capacity int
	stages   map[string]*ring
	counts   map[string]int
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity <= 0 {
		capacity = 256
	}
	w := &latencyWindow{capacity: capacity}
	w.clear()
	return w
}

func (w *latencyWindow) clear() {
	w.stages = make(map[string]*ring)
	w.counts = make(map[string]int)
}

func (w *latencyWindow) observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.stages[stage]
	if r == nil {
		r = &ring{buf: make([]float64, w.capacity)}
		w.stages[stage] = r
	}
	r.push(ms)
}

func (w *latencyWindow) count(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	w.counts[name]++
	w.mu.Unlock()
}

func (w *latencyWindow) reset() {
	w.mu.Lock()
	w.clear()
	w.mu.Unlock()
}

func (w *latencyWindow) snapshot() TurnStageSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      make([]TurnStageStats, 0, len(w.stages)),
	}
	for _, stage := range sortedKeys(w.stages) {
		r := w.stages[stage]
		if r.size == 0 {
			continue
		}
		snap.Stages = append(snap.Stages, summarize(stage, r))
	}
	for _, name := range sortedKeys(w.counts) {
		snap.Indicators = append(snap.Indicators, TurnIndicator{Name: name, Count: w.counts[name]})
	}
	return snap
}

func summarize(stage string, r *ring) TurnStageStats {
	values := r.sorted()
	var sum float64
	for _, v := range values {
		sum += v
	}
	return TurnStageStats{
		Stage:       stage,
		Samples:     len(values),
		LastMS:      round2(r.last()),
		AvgMS:       round2(sum / float64(len(values))),
		P50MS:       round2(percentile(values, 0.50)),
		P95MS:       round2(percentile(values, 0.95)),
		P99MS:       round2(percentile(values, 0.99)),
		TargetP95MS: stageTargets[stage],
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
