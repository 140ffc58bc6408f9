// Package scoring turns a feature vector into an anomaly decision.
//
// The engine owns the feature contract of the model manifest: every feature
// the model needs must be present, in the manifest's order, or the request
// fails with the full list of missing names. The scorer itself is a
// collaborator behind the Scorer interface.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"lumina/fraud-lab/internal/features"
)

// Scorer scores a standardised feature vector. Whether high or low values
// are anomalous is declared by the manifest's Direction.
type Scorer interface {
	Score(x []float64) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(x []float64) float64

// Score implements Scorer.
func (f ScorerFunc) Score(x []float64) float64 { return f(x) }

// DeviationScorer scores a standardised vector by its mean squared z-score.
// It is the built-in baseline; higher means more anomalous.
type DeviationScorer struct{}

// Score implements Scorer.
func (DeviationScorer) Score(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, z := range x {
		sum += z * z
	}
	return sum / float64(len(x))
}

// Factor is one feature's contribution to a decision.
type Factor struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	ZScore float64 `json:"z_score"`
}

// Result is the outcome of scoring one transaction.
type Result struct {
	Score       float64   `json:"score"`
	Threshold   float64   `json:"threshold"`
	Direction   Direction `json:"direction"`
	IsAnomaly   bool      `json:"is_anomaly"`
	Factors     []Factor  `json:"factors"`
	Explanation string    `json:"explanation"`
}

const maxFactors = 3

// Engine applies a manifest and a scorer.
type Engine struct {
	manifest Manifest
	scorer   Scorer
}

// New creates an engine. The manifest must be valid.
func New(m Manifest, s Scorer) (*Engine, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: nil scorer", ErrInvalidManifest)
	}
	return &Engine{manifest: m, scorer: s}, nil
}

// Manifest returns the engine's manifest.
func (e *Engine) Manifest() Manifest { return e.manifest }

// Evaluate scores v. A *features.MissingFeaturesError is returned when v
// lacks any feature the manifest requires.
func (e *Engine) Evaluate(v features.Vector) (Result, error) {
	raw, err := v.Select(e.manifest.Features)
	if err != nil {
		return Result{}, err
	}
	return e.EvaluateValues(raw), nil
}

// EvaluateValues scores raw values already ordered like the manifest features.
func (e *Engine) EvaluateValues(raw []float64) Result {
	z := e.standardize(raw)
	score := e.scorer.Score(z)

	res := Result{
		Score:     score,
		Threshold: e.manifest.Threshold,
		Direction: e.manifest.Direction,
		IsAnomaly: e.isAnomaly(score),
		Factors:   e.topFactors(raw, z),
	}
	res.Explanation = buildExplanation(res)
	return res
}

func (e *Engine) standardize(raw []float64) []float64 {
	z := make([]float64, len(raw))
	for i, x := range raw {
		z[i] = (x - e.manifest.Scaler.Mean[i]) / e.manifest.Scaler.Scale[i]
	}
	return z
}

func (e *Engine) isAnomaly(score float64) bool {
	if e.manifest.Direction == LowerIsAnomalous {
		return score <= e.manifest.Threshold
	}
	return score >= e.manifest.Threshold
}

// topFactors returns the features furthest from their training mean.
func (e *Engine) topFactors(raw, z []float64) []Factor {
	factors := make([]Factor, len(raw))
	for i := range raw {
		factors[i] = Factor{Name: e.manifest.Features[i], Value: raw[i], ZScore: z[i]}
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].ZScore) > math.Abs(factors[j].ZScore)
	})
	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}
	return factors
}

func buildExplanation(r Result) string {
	if !r.IsAnomaly {
		return "Transaction appears consistent with normal patterns"
	}
	names := make([]string, len(r.Factors))
	for i, f := range r.Factors {
		names[i] = fmt.Sprintf("%s (z=%.1f)", f.Name, f.ZScore)
	}
	return "Transaction deviates significantly from normal behavior: " + strings.Join(names, ", ")
}
