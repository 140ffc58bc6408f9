package scoring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Direction tells which side of the threshold is anomalous.
type Direction string

const (
	// HigherIsAnomalous suits reconstruction-error style scores.
	HigherIsAnomalous Direction = "higher_is_anomalous"
	// LowerIsAnomalous suits decision functions where negative means outlier.
	LowerIsAnomalous Direction = "lower_is_anomalous"
)

// ErrInvalidManifest is returned for manifests that cannot drive an Engine.
var ErrInvalidManifest = errors.New("scoring: invalid model manifest")

// Scaler standardises features before scoring: (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `mapstructure:"mean" yaml:"mean"`
	Scale []float64 `mapstructure:"scale" yaml:"scale"`
}

// Manifest describes the model the service scores with: the ordered feature
// list, the scaler and the out-of-band decision threshold.
type Manifest struct {
	Model     string    `mapstructure:"model" yaml:"model"`
	Version   string    `mapstructure:"version" yaml:"version"`
	Features  []string  `mapstructure:"features" yaml:"features"`
	Scaler    Scaler    `mapstructure:"scaler" yaml:"scaler"`
	Threshold float64   `mapstructure:"threshold" yaml:"threshold"`
	Direction Direction `mapstructure:"direction" yaml:"direction"`
}

// Validate checks that the manifest is internally consistent.
func (m Manifest) Validate() error {
	if len(m.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidManifest)
	}
	if len(m.Scaler.Mean) != len(m.Features) || len(m.Scaler.Scale) != len(m.Features) {
		return fmt.Errorf("%w: scaler has %d means and %d scales for %d features",
			ErrInvalidManifest, len(m.Scaler.Mean), len(m.Scaler.Scale), len(m.Features))
	}
	for i, s := range m.Scaler.Scale {
		if s <= 0 {
			return fmt.Errorf("%w: scale of %s must be positive", ErrInvalidManifest, m.Features[i])
		}
	}
	switch m.Direction {
	case HigherIsAnomalous, LowerIsAnomalous:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidManifest, m.Direction)
	}
	return nil
}

// LoadManifest reads a YAML model manifest.
func LoadManifest(path string) (Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("direction", string(HigherIsAnomalous))

	if err := v.ReadInConfig(); err != nil {
		return Manifest{}, fmt.Errorf("scoring: read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return Manifest{}, fmt.Errorf("scoring: decode manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// SaveManifest writes m as YAML, creating parent directories.
func SaveManifest(path string, m Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("scoring: encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
