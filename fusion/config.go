package fusion

import (
	"fmt"
	"math"
)

// weightSumTolerance bounds how far the recency weights may drift from 1.0
// before the configuration is reported as suspect. The fused scores stay
// interpretable only when the weights form (approximately) a convex
// combination.
const weightSumTolerance = 0.01

// Config carries every constant the fusion engine needs. All fields are fixed
// at startup; nothing here is renegotiated at runtime.
type Config struct {
	// Labels names the classifier's output classes, index-aligned with every
	// incoming score vector. len(Labels) fixes the class count C.
	Labels []string `json:"labels"`

	// WindowCount is W, the number of per-window score vectors fused together.
	WindowCount int `json:"windowCount"`

	// Weights holds one recency weight per history slot. Weights[W-1]
	// multiplies the most recent window, Weights[0] the oldest one still in
	// the ring. Should sum to ~1.
	Weights []float64 `json:"weights"`

	// Boosts holds one per-class multiplier applied after the weighted sum.
	// A boost above 1 deliberately pushes that class's fused score beyond the
	// probability scale.
	Boosts []float64 `json:"boosts"`

	// TargetClass is the index of the class whose fused score drives the
	// binary decision.
	TargetClass int `json:"targetClass"`

	// Threshold is compared against the target class's fused score with
	// strict inequality.
	Threshold float64 `json:"threshold"`
}

// DefaultConfig mirrors the reference engine-knock deployment: five windows
// of history, recency-weighted toward the newest window, with the knock class
// boosted 2x before thresholding.
func DefaultConfig() Config {
	return Config{
		Labels:      []string{"engine", "knock", "neither"},
		WindowCount: 5,
		Weights:     []float64{0.05, 0.10, 0.20, 0.30, 0.35},
		Boosts:      []float64{1.0, 2.0, 1.0},
		TargetClass: 1,
		Threshold:   0.25,
	}
}

// ClassCount returns C, the number of classes every score vector must carry.
func (c Config) ClassCount() int {
	return len(c.Labels)
}

// TargetLabel returns the label of the decision-driving class.
func (c Config) TargetLabel() string {
	if c.TargetClass < 0 || c.TargetClass >= len(c.Labels) {
		return ""
	}
	return c.Labels[c.TargetClass]
}

// Validate checks the structural invariants of the configuration. It returns
// the first violation found; a nil result means the config is safe to hand to
// NewDetector.
func (c Config) Validate() error {
	if len(c.Labels) == 0 {
		return fmt.Errorf("no class labels configured")
	}
	if c.WindowCount <= 0 {
		return fmt.Errorf("window count must be positive, got %d", c.WindowCount)
	}
	if len(c.Weights) != c.WindowCount {
		return fmt.Errorf("expected %d recency weights, got %d", c.WindowCount, len(c.Weights))
	}
	if len(c.Boosts) != len(c.Labels) {
		return fmt.Errorf("expected %d class boosts, got %d", len(c.Labels), len(c.Boosts))
	}
	var weightSum float64
	for i, w := range c.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("recency weight %d is invalid: %f", i, w)
		}
		weightSum += w
	}
	if math.Abs(weightSum-1.0) > weightSumTolerance {
		return fmt.Errorf("recency weights sum to %.4f, expected ~1.0", weightSum)
	}
	for i, b := range c.Boosts {
		if b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("class boost %d is invalid: %f", i, b)
		}
	}
	if c.TargetClass < 0 || c.TargetClass >= len(c.Labels) {
		return fmt.Errorf("target class %d out of range [0, %d)", c.TargetClass, len(c.Labels))
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("threshold is invalid: %f", c.Threshold)
	}
	return nil
}
