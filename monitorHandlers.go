package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"time"

	"knock-detection/detections"
	"knock-detection/fusion"
	"knock-detection/models"
	"knock-detection/scoring"
	"knock-detection/utils"

	"github.com/mdobak/go-xerrors"
)

// monitor runs the headless inference loop: one cycle asks the inference
// sidecar for the next classified window, feeds the vector to the detector
// and reports the fused decision. Cycles are strictly sequential; a sidecar
// timeout or a malformed vector skips the push and leaves the ring frozen
// for that cycle.
func monitor(interval time.Duration, maxCycles int) {
	logger := utils.GetLogger()
	ctx := context.Background()

	cfg, err := fusionConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid fusion configuration: %v", err)
	}

	detector, err := fusion.NewDetector(cfg)
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}

	timeoutStr := utils.GetEnv("SCORER_TIMEOUT_SECONDS", "10")
	timeoutSec, err := strconv.Atoi(timeoutStr)
	if err != nil || timeoutSec <= 0 {
		timeoutSec = 10
	}
	cycleTimeout := time.Duration(timeoutSec) * time.Second

	scorerURL := utils.GetEnv("SCORER_SERVICE_URL", "http://localhost:5003")
	scorer := scoring.NewScorerClient(scorerURL, cycleTimeout)

	if err := scorer.HealthCheck(); err != nil {
		log.Printf("WARNING: %v\n", err)
		log.Println("The monitor will start but cycles will be skipped until the inference service is up.")
	} else {
		log.Printf("Inference service is available at %s\n", scorerURL)
	}

	log.Printf("Monitoring: %d classes, %d-window fusion, target=%s, threshold=%.2f\n",
		cfg.ClassCount(), cfg.WindowCount, cfg.TargetLabel(), cfg.Threshold)

	for cycle := 1; maxCycles <= 0 || cycle <= maxCycles; cycle++ {
		runCycle(ctx, logger, scorer, detector, cfg, cycleTimeout)

		if interval > 0 {
			time.Sleep(interval)
		}
	}
}

func runCycle(ctx context.Context, logger *slog.Logger, scorer *scoring.ScorerClient, detector *fusion.Detector, cfg fusion.Config, timeout time.Duration) {
	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	window, err := scorer.NextWindow(cycleCtx)
	if err != nil {
		// Upstream failure: no vector this cycle, history stays frozen, the
		// next cycle retries independently.
		logger.WarnContext(ctx, "skipping cycle, no classification produced",
			slog.Any("error", err))
		return
	}

	dec, ok, err := detector.Observe(window.Scores)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "rejected score vector", slog.Any("error", err))
		return
	}

	if !ok {
		log.Printf("warming up: %d/%d windows buffered\n", detector.Windows(), cfg.WindowCount)
		return
	}

	fmt.Print(dec.Report(cfg.Labels))

	if dec.Detected {
		latency := time.Since(started).Seconds() * 1000
		scoresJSON, err := json.Marshal(dec.Scores)
		if err != nil {
			logger.ErrorContext(ctx, "failed to marshal fused scores", slog.Any("error", xerrors.New(err)))
			return
		}
		detection := &models.Detection{
			Timestamp:   time.Now(),
			Detected:    true,
			TargetLabel: dec.TargetLabel,
			TargetScore: dec.TargetScore,
			Threshold:   dec.Threshold,
			Window:      dec.Window,
			LatencyMs:   latency,
			Scores:      json.RawMessage(scoresJSON),
			Source:      "monitor",
		}
		if err := detections.SaveDetection(detection); err != nil {
			logger.ErrorContext(ctx, "failed to log detection", slog.Any("error", xerrors.New(err)))
		}
	}
}
