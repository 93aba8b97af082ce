package output

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm-areas-go/internal/area"
)

// RunReport is the YAML summary written after a run
type RunReport struct {
	Inputs    []string         `yaml:"inputs"`
	StartedAt time.Time        `yaml:"started_at"`
	Duration  string           `yaml:"duration"`
	Areas     AreaCounts       `yaml:"areas"`
	Outputs   map[string]int64 `yaml:"outputs,omitempty"`
	Reasons   map[string]int64 `yaml:"failures_by_reason,omitempty"`
	Warnings  map[string]int64 `yaml:"warnings,omitempty"`
	Failures  []area.Failure   `yaml:"failures,omitempty"`
}

// AreaCounts totals what the run produced
type AreaCounts struct {
	Relations  int64 `yaml:"relations"`
	Ways       int64 `yaml:"ways"`
	Inner      int64 `yaml:"inner"`
	Repaired   int64 `yaml:"repaired"`
	Reoriented int64 `yaml:"reoriented_rings"`
	Failed     int64 `yaml:"failed"`
	Incomplete int64 `yaml:"incomplete"`
}

// WriteReport writes r as YAML to path
func WriteReport(path string, r *RunReport) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport
func ReadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r RunReport
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
