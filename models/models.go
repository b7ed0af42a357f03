package models

import (
	"encoding/json"
	"time"
)

// ScoreFrame is the per-window payload delivered by the external classifier:
// one score per class, index-aligned with the configured label set.
type ScoreFrame struct {
	Scores     []float64  `json:"scores"`
	Window     uint64     `json:"window,omitempty"`
	CapturedAt *time.Time `json:"capturedAt,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// Detection represents a stored knock detection event with its fused scores.
type Detection struct {
	ID          int64                  `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Detected    bool                   `json:"detected"`
	TargetLabel string                 `json:"targetLabel"`
	TargetScore float64                `json:"targetScore"`
	Threshold   float64                `json:"threshold"`
	Window      uint64                 `json:"window"`
	LatencyMs   float64                `json:"latencyMs"`
	Scores      json.RawMessage        `json:"scores"` // fused per-class scores as JSON
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Source      string                 `json:"source,omitempty"`
}
