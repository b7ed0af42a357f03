package fusion

import (
	"fmt"
	"math"
	"strings"
)

// Decision is the fused output of one Active-state inference cycle.
type Decision struct {
	// Detected is true when the target class's fused score strictly exceeds
	// the threshold.
	Detected bool `json:"detected"`

	// Scores holds the fused, boosted score for every class.
	Scores []float64 `json:"scores"`

	// TargetLabel and TargetScore identify the decision-driving class.
	TargetLabel string  `json:"targetLabel"`
	TargetScore float64 `json:"targetScore"`

	// Threshold is the configured decision threshold the score was compared
	// against.
	Threshold float64 `json:"threshold"`

	// Window counts pushes since startup, so consumers can line decisions up
	// with the upstream window stream.
	Window uint64 `json:"window"`
}

// Report renders the decision in the fixed operator format: a DETECTED /
// NOT DETECTED headline followed by one "<label>: <score>" line per class,
// five decimal places.
func (d Decision) Report(labels []string) string {
	var b strings.Builder
	if d.Detected {
		b.WriteString("DETECTED\n")
	} else {
		b.WriteString("NOT DETECTED\n")
	}
	for i, label := range labels {
		score := 0.0
		if i < len(d.Scores) {
			score = d.Scores[i]
		}
		fmt.Fprintf(&b, "%s: %.5f\n", label, score)
	}
	return b.String()
}

// Detector owns one history ring plus its fusion configuration and walks the
// two-state cycle machine: Warming until the ring fills, then Active for the
// rest of the process. It is not safe for concurrent use; the surrounding
// loop runs one cycle at a time.
type Detector struct {
	cfg     Config
	history *HistoryBuffer
}

// NewDetector validates cfg and builds a detector in the Warming state.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fusion config: %w", err)
	}
	return &Detector{
		cfg:     cfg,
		history: NewHistoryBuffer(cfg.ClassCount(), cfg.WindowCount),
	}, nil
}

// Config returns the detector's immutable configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Warming reports whether the detector is still filling its history ring.
func (d *Detector) Warming() bool {
	return !d.history.IsFull()
}

// Windows returns the number of score vectors observed since startup.
func (d *Detector) Windows() uint64 {
	return d.history.Pushes()
}

// Observe feeds one per-window score vector through the detector.
//
// A malformed vector (wrong length, NaN or infinite score, negative score) is
// rejected at this boundary before it can corrupt the ring; the cycle is
// skipped and the history is left untouched. During warm-up the vector is
// buffered and ok is false: no fused output exists yet. Once the ring has
// filled, every call re-fuses the full history and returns the decision.
func (d *Detector) Observe(vector []float64) (dec Decision, ok bool, err error) {
	if len(vector) != d.cfg.ClassCount() {
		return Decision{}, false, fmt.Errorf("score vector has %d classes, expected %d",
			len(vector), d.cfg.ClassCount())
	}
	for i, score := range vector {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return Decision{}, false, fmt.Errorf("score for class %d is not finite", i)
		}
		if score < 0 {
			return Decision{}, false, fmt.Errorf("score for class %d is negative: %f", i, score)
		}
	}

	d.history.Push(vector)
	if !d.history.IsFull() {
		return Decision{}, false, nil
	}

	fused := Fuse(d.history.Snapshot(), d.cfg.Weights, d.cfg.Boosts)
	return Decision{
		Detected:    Decide(fused, d.cfg.TargetClass, d.cfg.Threshold),
		Scores:      fused,
		TargetLabel: d.cfg.TargetLabel(),
		TargetScore: fused[d.cfg.TargetClass],
		Threshold:   d.cfg.Threshold,
		Window:      d.history.Pushes(),
	}, true, nil
}
