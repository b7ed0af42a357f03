package fusion

// Temporal Fusion Engine for Acoustic Event Detection
//
// This package implements the smoothing stage between a noisy per-window
// audio classifier and a stable binary detection decision.
//
// How It Works:
//
// 1. History:
//    - Every inference window yields one score vector (one score per class)
//    - The last W vectors are kept in a fixed-capacity ring (HistoryBuffer)
//
// 2. Fusion:
//    - Each class score is a recency-weighted sum over the W buffered windows
//    - Newer windows carry larger weights, so a transient spike in a single
//      window cannot flip the decision on its own
//    - A per-class boost is applied after the weighted sum to bias
//      sensitivity toward the classes that matter (e.g. knock 2x)
//
// 3. Decision:
//    - The fused score of a single configured target class is compared
//      against a threshold (strict inequality)
//    - No output at all is produced until the ring has filled once; the
//      first W-1 windows are a warm-up period
//
// Fused scores are not renormalised, so a boost above 1 intentionally pushes
// values past the probability scale: the boost amplifies confidence rather
// than preserving a distribution.

// Fuse computes the recency-weighted, class-boosted aggregate of a full
// history snapshot. history must be ordered oldest first (HistoryBuffer.
// Snapshot order), so weights[len-1] lands on the most recent window.
//
// Fuse is a pure function of its inputs: identical history, weights and
// boosts produce bit-identical output.
func Fuse(history [][]float64, weights, boosts []float64) []float64 {
	fused := make([]float64, len(boosts))
	for c := range fused {
		var sum float64
		for i, vector := range history {
			sum += weights[i] * vector[c]
		}
		fused[c] = boosts[c] * sum
	}
	return fused
}

// Decide applies the threshold rule to a fused score vector. Equality with
// the threshold counts as not detected.
func Decide(fused []float64, targetClass int, threshold float64) bool {
	return fused[targetClass] > threshold
}
