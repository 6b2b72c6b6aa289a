package config

import (
	"os"
	"strconv"
	"strings"

	"pepdensity/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Density  DensityConfig
	Sweep    SweepConfig
	Database DatabaseConfig
	Server   ServerConfig
	Data     DataConfig
}

// DensityConfig holds the statistical constants of the density testing procedure.
// These are exposed configuration, not internal constants.
type DensityConfig struct {
	// BinCount is the number of equal-width histogram bins per feature.
	BinCount int
	// MainDegree is the polynomial degree of the measurement term.
	MainDegree int
	// InteractionDegrees lists the group-interaction degrees to fit and test.
	InteractionDegrees []int
	// FDRThreshold is the adjusted p-value cutoff for a significance call.
	FDRThreshold float64
	// SmoothBasisDim is the B-spline basis dimension for the smooth models.
	SmoothBasisDim int
	// MaxIterations caps the IRLS loop for a single fit.
	MaxIterations int
	// Tolerance is the relative deviance change below which IRLS stops.
	Tolerance float64
}

// SweepConfig holds batch execution settings
type SweepConfig struct {
	Workers int
	Seed    int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds report server settings
type ServerConfig struct {
	Port string
}

// DataConfig holds input file paths
type DataConfig struct {
	// MatrixFile is the feature-by-sample intensity table (xlsx or csv).
	MatrixFile string
	// CovariateFile maps sample IDs to group labels (xlsx or csv).
	CovariateFile string
	// ReferenceFile holds the external mixed-model p-values for comparison.
	ReferenceFile string
}

// DefaultDensityConfig returns the reference workflow constants.
func DefaultDensityConfig() DensityConfig {
	return DensityConfig{
		BinCount:           40,
		MainDegree:         4,
		InteractionDegrees: []int{0, 1, 2, 3, 4},
		FDRThreshold:       0.05,
		SmoothBasisDim:     10,
		MaxIterations:      50,
		Tolerance:          1e-8,
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Density: DensityConfig{
			BinCount:           getEnvIntOrDefault("BIN_COUNT", 40),
			MainDegree:         getEnvIntOrDefault("MAIN_DEGREE", 4),
			InteractionDegrees: getEnvIntListOrDefault("INTERACTION_DEGREES", []int{0, 1, 2, 3, 4}),
			FDRThreshold:       getEnvFloatOrDefault("FDR_THRESHOLD", 0.05),
			SmoothBasisDim:     getEnvIntOrDefault("SMOOTH_BASIS_DIM", 10),
			MaxIterations:      getEnvIntOrDefault("FIT_MAX_ITERATIONS", 50),
			Tolerance:          getEnvFloatOrDefault("FIT_TOLERANCE", 1e-8),
		},
		Sweep: SweepConfig{
			Workers: getEnvIntOrDefault("SWEEP_WORKERS", 4),
			Seed:    int64(getEnvIntOrDefault("SWEEP_SEED", 42)),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Data: DataConfig{
			MatrixFile:    getEnvOrDefault("MATRIX_FILE", ""),
			CovariateFile: getEnvOrDefault("COVARIATE_FILE", ""),
			ReferenceFile: getEnvOrDefault("REFERENCE_FILE", ""),
		},
	}

	if err := Validate(&config.Density); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	if config.Sweep.Workers < 1 {
		return nil, errors.ConfigInvalid("SWEEP_WORKERS must be at least 1")
	}

	return config, nil
}

// Validate checks the density constants against their valid ranges.
// An out-of-range value here is fatal; per-feature problems are not.
func Validate(d *DensityConfig) error {
	if d.BinCount <= 0 {
		return errors.ConfigInvalid("bin count must be positive")
	}
	if d.MainDegree < 1 {
		return errors.ConfigInvalid("main polynomial degree must be at least 1")
	}
	if len(d.InteractionDegrees) == 0 {
		return errors.ConfigInvalid("at least one interaction degree is required")
	}
	for _, deg := range d.InteractionDegrees {
		if deg < 0 || deg > d.MainDegree {
			return errors.ConfigInvalid("interaction degrees must lie in [0, main degree]")
		}
	}
	if d.FDRThreshold < 0 || d.FDRThreshold > 1 {
		return errors.ConfigInvalid("FDR threshold must lie in [0, 1]")
	}
	if d.SmoothBasisDim < 4 {
		return errors.ConfigInvalid("smooth basis dimension must be at least 4")
	}
	if d.MaxIterations < 1 {
		return errors.ConfigInvalid("fit iteration cap must be at least 1")
	}
	if d.Tolerance <= 0 {
		return errors.ConfigInvalid("fit tolerance must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvIntListOrDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
