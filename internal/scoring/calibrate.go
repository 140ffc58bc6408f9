package scoring

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// minScale replaces the standard deviation of constant features.
const minScale = 1e-9

// Calibrate fits the scaler to rows (ordered like names) and sets the
// threshold so that the given share of rows scores as anomalous with the
// DeviationScorer. The returned manifest uses HigherIsAnomalous.
func Calibrate(names []string, rows [][]float64, anomalyRate float64) (Manifest, error) {
	if len(rows) < 2 {
		return Manifest{}, fmt.Errorf("%w: need at least two rows to calibrate", ErrInvalidManifest)
	}
	if anomalyRate <= 0 || anomalyRate >= 1 {
		return Manifest{}, fmt.Errorf("%w: anomaly rate %.4f outside (0, 1)", ErrInvalidManifest, anomalyRate)
	}

	m := Manifest{
		Model:     "deviation",
		Version:   "v1",
		Features:  slices.Clone(names),
		Direction: HigherIsAnomalous,
		Scaler: Scaler{
			Mean:  make([]float64, len(names)),
			Scale: make([]float64, len(names)),
		},
	}

	col := make([]float64, len(rows))
	for j := range names {
		for i, r := range rows {
			if len(r) != len(names) {
				return Manifest{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidManifest, i, len(r), len(names))
			}
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < minScale {
			std = 1
		}
		m.Scaler.Mean[j] = mean
		m.Scaler.Scale[j] = std
	}

	e := &Engine{manifest: m, scorer: DeviationScorer{}}
	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = e.scorer.Score(e.standardize(r))
	}
	slices.Sort(scores)
	m.Threshold = stat.Quantile(1-anomalyRate, stat.Empirical, scores, nil)
	return m, nil
}
