package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lumina/fraud-lab/internal/dataset"
	"lumina/fraud-lab/internal/features"
	"lumina/fraud-lab/internal/scoring"
)

const featuresFile = "features.csv"

var (
	featuresIn   string
	calibrate    bool
	modelOut     string
	modelVersion string
	anomalyRate  float64
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute behavioural features for a transaction dataset",
	Long: `Read a transactions.csv, compute the per-transaction feature vectors and
write features.csv next to it. With --calibrate, also fit the scaler and
decision threshold of the deviation model and write its manifest for the
scoring service.

Examples:
  fraudgen features
  fraudgen features --in data/transactions.csv --calibrate --anomaly-rate 0.015`,
	Args: cobra.NoArgs,
	RunE: runFeatures,
}

func init() {
	featuresCmd.Flags().StringVarP(&featuresIn, "in", "i", "", "transactions CSV (default <out>/transactions.csv)")
	featuresCmd.Flags().BoolVar(&calibrate, "calibrate", false, "fit and write a model manifest")
	featuresCmd.Flags().StringVar(&modelOut, "model-out", "models/model.yaml", "model manifest path")
	featuresCmd.Flags().StringVar(&modelVersion, "model-version", "v1", "model manifest version")
	featuresCmd.Flags().Float64Var(&anomalyRate, "anomaly-rate", 0.01, "share of rows scored anomalous at calibration")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	cfg, err := loadGeneration(cmd)
	if err != nil {
		return err
	}
	in := featuresIn
	if in == "" {
		in = filepath.Join(cfg.OutputDir, transactionsFile)
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	txns, err := dataset.ReadTransactions(bufio.NewReader(f))
	f.Close()
	if err != nil {
		return err
	}

	rows := features.ComputeBatch(txns)
	slog.Info("features computed", "rows", len(rows), "source", in)

	outPath := filepath.Join(filepath.Dir(in), featuresFile)
	if err := writeFile(outPath, func(w *bufio.Writer) error {
		return dataset.WriteFeatures(w, rows)
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d feature rows to %s\n", len(rows), outPath)

	if !calibrate {
		return nil
	}

	values := make([][]float64, len(rows))
	for i := range rows {
		values[i] = rows[i].Features.Values()
	}
	m, err := scoring.Calibrate(features.Names, values, anomalyRate)
	if err != nil {
		return err
	}
	m.Version = modelVersion
	if err := scoring.SaveManifest(modelOut, m); err != nil {
		return fmt.Errorf("write %s: %w", modelOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote model manifest to %s (threshold %.6f)\n", modelOut, m.Threshold)
	return nil
}
