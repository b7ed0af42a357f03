package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"knock-detection/db"
	"knock-detection/fusion"
	"knock-detection/models"
	"knock-detection/tts"
	"knock-detection/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

// socketController funnels every score frame, whether it arrived over
// socket.io or HTTP, through a single detector. The mutex is the
// serialization boundary for push+fuse: each frame is one atomic inference
// cycle regardless of transport.
type socketController struct {
	mu           sync.Mutex
	detector     *fusion.Detector
	store        *db.SQLiteClient
	announcer    *tts.Client
	server       *socketio.Server
	lastDetected bool
}

func newSocketController(detector *fusion.Detector, store *db.SQLiteClient, announcer *tts.Client) *socketController {
	return &socketController{detector: detector, store: store, announcer: announcer}
}

func (c *socketController) status() statusResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := "active"
	if c.detector.Warming() {
		status = "warming"
	}
	return statusResponse{
		Status:          status,
		WindowsObserved: c.detector.Windows(),
		Config:          c.detector.Config(),
	}
}

// handleScoreFrame runs one inference cycle: boundary-validate, push, fuse
// once the ring is full, persist and broadcast the decision.
func (c *socketController) handleScoreFrame(ctx context.Context, frame models.ScoreFrame) (decisionResponse, error) {
	logger := utils.GetLogger()
	started := time.Now()

	c.mu.Lock()
	dec, ok, err := c.detector.Observe(frame.Scores)
	windows := c.detector.Windows()
	needed := c.detector.Config().WindowCount
	var announce bool
	if ok {
		announce = dec.Detected && !c.lastDetected
		c.lastDetected = dec.Detected
	}
	c.mu.Unlock()

	if err != nil {
		// Shape mismatch is fatal to this cycle only; the ring is untouched
		// and the next frame is processed independently.
		return decisionResponse{}, fmt.Errorf("score frame rejected: %w", err)
	}

	if !ok {
		logger.InfoContext(ctx, "buffered warm-up window",
			slog.Uint64("windowsObserved", windows),
			slog.Int("windowsNeeded", needed),
		)
		return decisionResponse{
			Status:          "warming",
			WindowsObserved: windows,
			WindowsNeeded:   needed,
		}, nil
	}

	latency := time.Since(started).Seconds() * 1000
	logger.InfoContext(ctx, "fused window decision",
		slog.Uint64("window", dec.Window),
		slog.Bool("detected", dec.Detected),
		slog.String("targetLabel", dec.TargetLabel),
		slog.Float64("targetScore", dec.TargetScore),
		slog.Float64("threshold", dec.Threshold),
		slog.Float64("latency_ms", latency),
	)

	c.persistDecision(ctx, dec, frame, latency)
	c.broadcastDecision(dec)
	if announce {
		go c.announceDetection(ctx, dec)
	}

	return decisionResponse{
		Status:          "active",
		WindowsObserved: windows,
		WindowsNeeded:   needed,
		Decision:        &dec,
	}, nil
}

func (c *socketController) persistDecision(ctx context.Context, dec fusion.Decision, frame models.ScoreFrame, latency float64) {
	if c.store == nil {
		return
	}

	logger := utils.GetLogger()
	scoresJSON, err := json.Marshal(dec.Scores)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal fused scores", slog.Any("error", xerrors.New(err)))
		return
	}

	detection := &models.Detection{
		Timestamp:   time.Now(),
		Detected:    dec.Detected,
		TargetLabel: dec.TargetLabel,
		TargetScore: dec.TargetScore,
		Threshold:   dec.Threshold,
		Window:      dec.Window,
		LatencyMs:   latency,
		Scores:      json.RawMessage(scoresJSON),
		Source:      frame.Source,
	}
	if err := c.store.StoreDetection(detection); err != nil {
		logger.ErrorContext(ctx, "failed to store detection", slog.Any("error", xerrors.New(err)))
	}
}

func (c *socketController) broadcastDecision(dec fusion.Decision) {
	if c.server == nil {
		return
	}
	c.server.BroadcastToNamespace("/", "decision", dec)
}

// announceDetection emits a spoken alert to connected clients when the fused
// decision transitions from quiet to detected.
func (c *socketController) announceDetection(ctx context.Context, dec fusion.Decision) {
	if c.announcer == nil {
		return
	}

	logger := utils.GetLogger()
	text := fmt.Sprintf("Alert. %s detected with score %.2f.", dec.TargetLabel, dec.TargetScore)
	audio, err := c.announcer.SynthesizeText(ctx, text)
	if err != nil {
		logger.ErrorContext(ctx, "failed to synthesize alert", slog.Any("error", xerrors.New(err)))
		return
	}

	if c.server != nil {
		c.server.BroadcastToNamespace("/", "alertAudio", map[string]string{
			"encoding": "mp3",
			"audio":    base64.StdEncoding.EncodeToString(audio),
		})
	}
}

func (c *socketController) handleWindowScores(socket socketio.Conn, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if msg == "" {
		logger.ErrorContext(ctx, "no data received in windowScores event")
		socket.Emit("scoreError", map[string]string{"message": "no score data received"})
		return
	}

	var frame models.ScoreFrame
	if err := json.Unmarshal([]byte(msg), &frame); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse score frame", slog.Any("error", err))
		socket.Emit("scoreError", map[string]string{"message": "invalid score payload"})
		return
	}

	log.Printf("[windowScores] socket %s submitted %d scores (window %d)\n",
		socket.ID(), len(frame.Scores), frame.Window)

	response, err := c.handleScoreFrame(ctx, frame)
	if err != nil {
		socket.Emit("scoreError", map[string]string{"message": err.Error()})
		return
	}

	socket.Emit("decisionAck", response)
}
