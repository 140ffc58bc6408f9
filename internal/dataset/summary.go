package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lumina/fraud-lab/internal/domain"
)

// Summary describes one generation run. It is written next to the dataset.
type Summary struct {
	RunID        string    `yaml:"run_id"`
	GeneratedAt  time.Time `yaml:"generated_at"`
	Seed         uint64    `yaml:"seed"`
	Customers    int       `yaml:"customers"`
	Merchants    int       `yaml:"merchants"`
	Transactions int       `yaml:"transactions"`
	Start        time.Time `yaml:"start"`
	End          time.Time `yaml:"end"`

	FraudRate   float64        `yaml:"fraud_rate"`
	FraudCounts map[string]int `yaml:"fraud_counts"`
	Overwritten int            `yaml:"overwritten_labels"`

	// MeanDistanceKm is the mean distance_from_home per fraud type.
	MeanDistanceKm map[string]float64 `yaml:"mean_distance_km"`
}

// Summarize computes label counts and per-label mean distance of txns.
// Run metadata fields are left for the caller.
func Summarize(txns []domain.Transaction) Summary {
	s := Summary{
		Transactions:   len(txns),
		FraudCounts:    make(map[string]int),
		MeanDistanceKm: make(map[string]float64),
	}
	sums := make(map[string]float64)
	fraud := 0
	for i := range txns {
		ft := string(txns[i].FraudType)
		s.FraudCounts[ft]++
		sums[ft] += txns[i].DistanceFromHome
		if txns[i].IsFraud {
			fraud++
		}
	}
	for ft, n := range s.FraudCounts {
		s.MeanDistanceKm[ft] = sums[ft] / float64(n)
	}
	if len(txns) > 0 {
		s.FraudRate = float64(fraud) / float64(len(txns))
	}
	return s
}

// WriteSummary writes s as YAML, creating parent directories.
func WriteSummary(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("dataset: encode summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSummary reads a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("%w: summary %s: %v", ErrDataFormat, path, err)
	}
	return s, nil
}
