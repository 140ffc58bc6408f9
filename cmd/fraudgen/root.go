package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lumina/fraud-lab/internal/config"
)

var Version = "dev"

var (
	configPath string
	seed       uint64
	outDir     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fraudgen",
	Short: "Synthetic payment fraud dataset generator",
	Long: `fraudgen simulates card transactions for a customer and merchant
population, injects card cloning, account takeover and merchant collusion
patterns, and computes behavioural features for model training.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "generation config file (YAML)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(featuresCmd)
}

// loadGeneration resolves the generation config and applies flag overrides.
func loadGeneration(cmd *cobra.Command) (config.Generation, error) {
	cfg, err := config.LoadGeneration(configPath)
	if err != nil {
		return config.Generation{}, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("out") {
		cfg.OutputDir = outDir
	}
	return cfg, nil
}
