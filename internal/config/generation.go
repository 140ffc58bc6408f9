package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"lumina/fraud-lab/internal/entity"
	"lumina/fraud-lab/internal/fraud"
	"lumina/fraud-lab/internal/simulate"
)

// EnvPrefix namespaces generation overrides, e.g. FRAUDGEN_SEED or
// FRAUDGEN_SIMULATION_TRANSACTIONS.
const EnvPrefix = "FRAUDGEN"

// DateLayout is the layout of start_date.
const DateLayout = "2006-01-02"

// Generation configures one dataset generation run.
type Generation struct {
	Seed       uint64          `mapstructure:"seed"`
	OutputDir  string          `mapstructure:"output_dir"`
	StartDate  string          `mapstructure:"start_date"`
	Entities   entity.Config   `mapstructure:"entities"`
	Simulation simulate.Config `mapstructure:"simulation"`
	Fraud      fraud.Config    `mapstructure:"fraud"`
}

// DefaultGeneration returns the reference run configuration.
func DefaultGeneration() Generation {
	sim := simulate.DefaultConfig()
	return Generation{
		Seed:       42,
		OutputDir:  "data",
		StartDate:  sim.Start.Format(DateLayout),
		Entities:   entity.DefaultConfig(),
		Simulation: sim,
		Fraud:      fraud.DefaultConfig(),
	}
}

// LoadGeneration builds a Generation from defaults, the optional YAML file at
// path and FRAUDGEN_* environment variables, in increasing precedence.
func LoadGeneration(path string) (Generation, error) {
	v := viper.New()
	setGenerationDefaults(v, DefaultGeneration())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Generation{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Generation
	if err := v.Unmarshal(&cfg); err != nil {
		return Generation{}, fmt.Errorf("config: decode generation config: %w", err)
	}

	start, err := time.Parse(DateLayout, cfg.StartDate)
	if err != nil {
		return Generation{}, fmt.Errorf("config: start_date %q: %w", cfg.StartDate, err)
	}
	cfg.Simulation.Start = start
	return cfg, nil
}

func setGenerationDefaults(v *viper.Viper, d Generation) {
	v.SetDefault("seed", d.Seed)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("start_date", d.StartDate)

	v.SetDefault("entities.customers", d.Entities.Customers)
	v.SetDefault("entities.merchants", d.Entities.Merchants)
	v.SetDefault("entities.customer_radius_min_km", d.Entities.CustomerRadiusMinKm)
	v.SetDefault("entities.customer_radius_max_km", d.Entities.CustomerRadiusMaxKm)
	v.SetDefault("entities.merchant_radius_min_km", d.Entities.MerchantRadiusMinKm)
	v.SetDefault("entities.merchant_radius_max_km", d.Entities.MerchantRadiusMaxKm)

	v.SetDefault("simulation.transactions", d.Simulation.Transactions)
	v.SetDefault("simulation.days", d.Simulation.Days)
	v.SetDefault("simulation.local_probability", d.Simulation.LocalProbability)
	v.SetDefault("simulation.min_amount", d.Simulation.MinAmount)

	v.SetDefault("fraud.cloning_distance_km", d.Fraud.CloningDistanceKm)
	v.SetDefault("fraud.cloning_window", d.Fraud.CloningWindow)
	v.SetDefault("fraud.cloning_amount_ratio", d.Fraud.CloningAmountRatio)
	v.SetDefault("fraud.takeover_window_size", d.Fraud.TakeoverWindowSize)
	v.SetDefault("fraud.takeover_divergence", d.Fraud.TakeoverDivergence)
	v.SetDefault("fraud.takeover_night_increase", d.Fraud.TakeoverNightIncrease)
	v.SetDefault("fraud.night_hour_cutoff", d.Fraud.NightHourCutoff)
	v.SetDefault("fraud.smoothing_epsilon", d.Fraud.SmoothingEpsilon)
	v.SetDefault("fraud.collusion_min_volume", d.Fraud.CollusionMinVolume)
	v.SetDefault("fraud.collusion_max_merchants", d.Fraud.CollusionMaxMerchants)
	v.SetDefault("fraud.collusion_target_cases", d.Fraud.CollusionTargetCases)
	v.SetDefault("fraud.collusion_percentile", d.Fraud.CollusionPercentile)
	v.SetDefault("fraud.collusion_sample_seed", d.Fraud.CollusionSampleSeed)
}
