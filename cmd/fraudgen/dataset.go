package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lumina/fraud-lab/internal/dataset"
	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/pipeline"
)

const (
	transactionsFile = "transactions.csv"
	summaryFile      = "manifest.yaml"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Generate a labelled transaction dataset",
	Long: `Generate customers, merchants and a baseline transaction stream, inject
fraud labels and write transactions.csv plus a manifest.yaml run summary to
the output directory.

Examples:
  fraudgen dataset
  fraudgen dataset --seed 7 --out /tmp/run7
  FRAUDGEN_SIMULATION_TRANSACTIONS=20000 fraudgen dataset`,
	Args: cobra.NoArgs,
	RunE: runDataset,
}

func runDataset(cmd *cobra.Command, args []string) error {
	cfg, err := loadGeneration(cmd)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	txPath := filepath.Join(cfg.OutputDir, transactionsFile)
	if err := writeFile(txPath, func(w *bufio.Writer) error {
		return dataset.WriteTransactions(w, res.Transactions)
	}); err != nil {
		return err
	}
	summaryPath := filepath.Join(cfg.OutputDir, summaryFile)
	if err := dataset.WriteSummary(summaryPath, res.Summary); err != nil {
		return fmt.Errorf("write %s: %w", summaryPath, err)
	}

	s := res.Summary
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (seed %d)\n", s.RunID, s.Seed)
	fmt.Fprintf(out, "  transactions:  %d\n", s.Transactions)
	fmt.Fprintf(out, "  fraud rate:    %.2f%%\n", s.FraudRate*100)
	for _, ft := range domain.FraudTypes {
		fmt.Fprintf(out, "  %-20s %d (mean distance %.1f km)\n",
			string(ft)+":", s.FraudCounts[string(ft)], s.MeanDistanceKm[string(ft)])
	}
	fmt.Fprintf(out, "Wrote %s and %s\n", txPath, summaryPath)
	return nil
}

// writeFile creates path and streams into it through a buffered writer.
func writeFile(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
