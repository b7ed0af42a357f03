package fusion

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.ClassCount() != 3 {
		t.Fatalf("expected 3 classes, got %d", cfg.ClassCount())
	}
	if cfg.TargetLabel() != "knock" {
		t.Fatalf("expected target label knock, got %q", cfg.TargetLabel())
	}
}

func TestConfigValidateRejectsBadShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no labels", func(c *Config) { c.Labels = nil }},
		{"zero windows", func(c *Config) { c.WindowCount = 0 }},
		{"weight count mismatch", func(c *Config) { c.Weights = c.Weights[:3] }},
		{"boost count mismatch", func(c *Config) { c.Boosts = append(c.Boosts, 1.0) }},
		{"negative weight", func(c *Config) { c.Weights[0] = -0.05 }},
		{"weights not normalised", func(c *Config) { c.Weights = []float64{0.5, 0.5, 0.5, 0.5, 0.5} }},
		{"negative boost", func(c *Config) { c.Boosts[2] = -1 }},
		{"target below range", func(c *Config) { c.TargetClass = -1 }},
		{"target above range", func(c *Config) { c.TargetClass = 3 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestConfigValidateToleratesSmallWeightDrift(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Weights = []float64{0.05, 0.10, 0.20, 0.30, 0.355}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("0.005 drift from unit sum should pass, got %v", err)
	}
}
