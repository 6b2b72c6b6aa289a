package config

import (
	"testing"

	"pepdensity/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Density.BinCount != 40 || cfg.Density.MainDegree != 4 {
		t.Fatalf("density defaults = %+v", cfg.Density)
	}
	if len(cfg.Density.InteractionDegrees) != 5 {
		t.Fatalf("interaction degrees = %v", cfg.Density.InteractionDegrees)
	}
	if cfg.Sweep.Workers < 1 {
		t.Fatalf("workers = %d", cfg.Sweep.Workers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BIN_COUNT", "25")
	t.Setenv("INTERACTION_DEGREES", "0, 2, 4")
	t.Setenv("FDR_THRESHOLD", "0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Density.BinCount != 25 {
		t.Fatalf("bin count = %d, want 25", cfg.Density.BinCount)
	}
	if got := cfg.Density.InteractionDegrees; len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Fatalf("interaction degrees = %v", got)
	}
	if cfg.Density.FDRThreshold != 0.1 {
		t.Fatalf("threshold = %g", cfg.Density.FDRThreshold)
	}
}

func TestLoadMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("BIN_COUNT", "forty")
	t.Setenv("INTERACTION_DEGREES", "0,two,4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Density.BinCount != 40 {
		t.Fatalf("bin count = %d, want default 40", cfg.Density.BinCount)
	}
	if len(cfg.Density.InteractionDegrees) != 5 {
		t.Fatalf("interaction degrees = %v, want defaults", cfg.Density.InteractionDegrees)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DensityConfig)
	}{
		{"zero bins", func(d *DensityConfig) { d.BinCount = 0 }},
		{"degree zero", func(d *DensityConfig) { d.MainDegree = 0 }},
		{"no interaction degrees", func(d *DensityConfig) { d.InteractionDegrees = nil }},
		{"interaction above main", func(d *DensityConfig) { d.InteractionDegrees = []int{5} }},
		{"negative interaction", func(d *DensityConfig) { d.InteractionDegrees = []int{-1} }},
		{"threshold above 1", func(d *DensityConfig) { d.FDRThreshold = 1.5 }},
		{"basis too small", func(d *DensityConfig) { d.SmoothBasisDim = 3 }},
		{"no iterations", func(d *DensityConfig) { d.MaxIterations = 0 }},
		{"zero tolerance", func(d *DensityConfig) { d.Tolerance = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DefaultDensityConfig()
			tc.mutate(&d)
			if err := Validate(&d); errors.GetCode(err) != errors.CodeConfigInvalid {
				t.Fatalf("err = %v, want config-invalid", err)
			}
		})
	}

	d := DefaultDensityConfig()
	if err := Validate(&d); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}
