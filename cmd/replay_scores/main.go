package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"knock-detection/fusion"
	"knock-detection/models"
)

// Replays a recorded score log (JSON array of ScoreFrame) through a fresh
// fusion detector and prints the decision timeline. Handy for threshold
// tuning: rerun the same capture with different KNOCK_THRESHOLD / KNOCK_BOOSTS
// values and compare detection counts.
func main() {
	verbose := flag.Bool("v", false, "Print the full per-class report for every window")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: replay_scores [-v] <path-to-score-log.json>")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read score log: %v", err)
	}

	var frames []models.ScoreFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		log.Fatalf("failed to parse score log: %v", err)
	}
	if len(frames) == 0 {
		log.Fatal("score log is empty")
	}

	cfg := fusion.DefaultConfig()
	detector, err := fusion.NewDetector(cfg)
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}

	var (
		skipped   int
		decisions int
		detected  int
		peak      float64
	)

	for i, frame := range frames {
		dec, ok, err := detector.Observe(frame.Scores)
		if err != nil {
			log.Printf("frame %d skipped: %v", i, err)
			skipped++
			continue
		}
		if !ok {
			continue
		}

		decisions++
		if dec.TargetScore > peak {
			peak = dec.TargetScore
		}
		if dec.Detected {
			detected++
		}

		if *verbose {
			fmt.Printf("--- frame %d ---\n%s", i, dec.Report(cfg.Labels))
		} else if dec.Detected {
			fmt.Printf("frame %d: %s=%.5f DETECTED\n", i, dec.TargetLabel, dec.TargetScore)
		}
	}

	fmt.Println("\n=== Replay Summary ===")
	fmt.Printf("frames:     %d (%d malformed, skipped)\n", len(frames), skipped)
	fmt.Printf("decisions:  %d (first %d frames were warm-up)\n", decisions, cfg.WindowCount-1)
	fmt.Printf("detected:   %d\n", detected)
	fmt.Printf("peak %s score: %.5f (threshold %.2f)\n", cfg.TargetLabel(), peak, cfg.Threshold)
}
