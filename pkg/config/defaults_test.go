package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultScanConfig(t *testing.T) {
	config := DefaultScanConfig()

	if config.PatternProfile != "vuln" {
		t.Errorf("Expected PatternProfile vuln, got %q", config.PatternProfile)
	}
	if config.ConcurrencyLimit != 32 {
		t.Errorf("Expected ConcurrencyLimit 32, got %d", config.ConcurrencyLimit)
	}
	if config.BatchSize != 50 {
		t.Errorf("Expected BatchSize 50, got %d", config.BatchSize)
	}
	if config.ProbeTimeout() != 30*time.Second {
		t.Errorf("Expected ProbeTimeout 30s, got %s", config.ProbeTimeout())
	}
	if config.MaxFilesPerCommit != 20 {
		t.Errorf("Expected MaxFilesPerCommit 20, got %d", config.MaxFilesPerCommit)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Defaults must validate, got %v", err)
	}
}

func TestSampleLimit(t *testing.T) {
	config := DefaultScanConfig()
	if got := config.SampleLimit(); got != 20000 {
		t.Errorf("Expected sample limit 20000, got %d", got)
	}

	config.CommitCap = 100
	if got := config.SampleLimit(); got != 100 {
		t.Errorf("Expected sample limit 100, got %d", got)
	}

	config.CommitCap = 50000
	if got := config.SampleLimit(); got != 20000 {
		t.Errorf("Cap above threshold must not raise the limit, got %d", got)
	}
}

func TestValidateRejectsNonPositive(t *testing.T) {
	cases := map[string]func(*ScanConfig){
		"zero batch":       func(c *ScanConfig) { c.BatchSize = 0 },
		"negative permits": func(c *ScanConfig) { c.ConcurrencyLimit = -1 },
		"zero timeout":     func(c *ScanConfig) { c.ProbeTimeoutSeconds = 0 },
		"zero stale days":  func(c *ScanConfig) { c.StaleThresholdDays = 0 },
		"negative cap":     func(c *ScanConfig) { c.CommitCap = -5 },
		"empty profile":    func(c *ScanConfig) { c.PatternProfile = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := DefaultScanConfig()
			mutate(&config)
			err := config.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDefaultRiskWeights(t *testing.T) {
	weights := DefaultRiskWeights()

	if weights.SingleAuthorWeight != 2.0 {
		t.Errorf("Expected SingleAuthorWeight 2.0, got %f", weights.SingleAuthorWeight)
	}
	if weights.VulnerabilityCap != 5.0 {
		t.Errorf("Expected VulnerabilityCap 5.0, got %f", weights.VulnerabilityCap)
	}
	if weights.HistoryCap+weights.CodeCap+weights.VulnerabilityCap < 10 {
		t.Error("Sub-score caps must be able to reach the overall ceiling")
	}
}

func TestRiskWeightsValidate(t *testing.T) {
	if err := DefaultRiskWeights().Validate(); err != nil {
		t.Fatalf("Defaults must validate, got %v", err)
	}

	cases := map[string]func(*RiskWeights){
		"negative single author": func(w *RiskWeights) { w.SingleAuthorWeight = -20 },
		"negative stale":         func(w *RiskWeights) { w.StaleFileWeight = -0.1 },
		"negative step":          func(w *RiskWeights) { w.OutdatedDependencyStep = -1 },
		"negative history cap":   func(w *RiskWeights) { w.HistoryCap = -3 },
		"zero code cap":          func(w *RiskWeights) { w.CodeCap = 0 },
		"zero vulnerability cap": func(w *RiskWeights) { w.VulnerabilityCap = 0 },
		"zero outdated cap":      func(w *RiskWeights) { w.OutdatedDependencyCap = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			weights := DefaultRiskWeights()
			mutate(&weights)
			if err := weights.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	weights := DefaultRiskWeights()
	weights.ChurnWeight = 0
	if err := weights.Validate(); err != nil {
		t.Errorf("A zero weight disables a component and must validate, got %v", err)
	}
}
