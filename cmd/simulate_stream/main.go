package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"

	"knock-detection/fusion"
)

// Feeds a synthetic score stream through the fusion detector: background
// engine noise with a knock burst in the middle. Useful for eyeballing how
// the recency weights damp single-window spikes and how long a sustained
// burst needs to trip the threshold.
func main() {
	cycles := flag.Int("cycles", 40, "Number of windows to simulate")
	burstStart := flag.Int("burst-start", 15, "Window index where the knock burst begins")
	burstLen := flag.Int("burst-len", 10, "Number of windows the knock burst lasts")
	burstScore := flag.Float64("burst-score", 0.35, "Raw knock score during the burst")
	noise := flag.Float64("noise", 0.05, "Random jitter added to every raw score")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	cfg := fusion.DefaultConfig()
	detector, err := fusion.NewDetector(cfg)
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	jitter := func() float64 { return *noise * rng.Float64() }

	log.Printf("Simulating %d windows (burst of %.2f at windows %d-%d)\n",
		*cycles, *burstScore, *burstStart, *burstStart+*burstLen-1)

	var detectedWindows []uint64
	for i := 0; i < *cycles; i++ {
		knock := jitter()
		if i >= *burstStart && i < *burstStart+*burstLen {
			knock = *burstScore + jitter()
		}
		engine := 0.6 + jitter()
		neither := math.Max(0, 1.0-engine-knock)

		dec, ok, err := detector.Observe([]float64{engine, knock, neither})
		if err != nil {
			log.Fatalf("window %d rejected: %v", i, err)
		}
		if !ok {
			fmt.Printf("window %2d: warming (%d/%d)\n", i, detector.Windows(), cfg.WindowCount)
			continue
		}

		marker := " "
		if dec.Detected {
			marker = "*"
			detectedWindows = append(detectedWindows, dec.Window)
		}
		fmt.Printf("window %2d:%s %s=%.5f (threshold %.2f)\n",
			i, marker, dec.TargetLabel, dec.TargetScore, dec.Threshold)
	}

	fmt.Printf("\n%d of %d windows detected", len(detectedWindows), *cycles)
	if len(detectedWindows) > 0 {
		fmt.Printf(" (first at window %d)", detectedWindows[0])
	}
	fmt.Println()
}
