package model

import (
	"fmt"

	"pepdensity/domain/core"
)

// Variant tags one member of the nested model family. The family is generated
// from these fields deterministically; nothing downstream ever parses a model
// identifier string to learn a model's structure.
type Variant struct {
	// MainDegree is the polynomial degree of the measurement term. Zero means
	// the group-only baseline. Ignored for smooth variants.
	MainDegree int `json:"main_degree"`
	// InteractionDegree is the degree of the group-by-measurement interaction
	// terms (powers 1..InteractionDegree get a per-group coefficient).
	InteractionDegree int `json:"interaction_degree"`
	// Smooth selects the penalized-spline alternative to the polynomial.
	Smooth bool `json:"smooth"`
	// PerGroup fits one smooth curve per group level ("by" semantics).
	// Only meaningful when Smooth is set.
	PerGroup bool `json:"per_group"`
}

// ID returns the stable model identifier used to key result tables.
func (v Variant) ID() core.ModelID {
	switch {
	case v.Smooth && v.PerGroup:
		return core.ModelID("smooth-by-group")
	case v.Smooth:
		return core.ModelID("smooth-null")
	case v.MainDegree == 0:
		return core.ModelID("group-only")
	default:
		return core.ModelID(fmt.Sprintf("degree-%d-interaction-%d", v.MainDegree, v.InteractionDegree))
	}
}

// HasInteraction reports whether the variant carries any group-by-measurement
// interaction coefficients. The Wald test is only defined when it does.
func (v Variant) HasInteraction() bool {
	if v.Smooth {
		return false
	}
	return v.InteractionDegree > 0
}

// Null returns the nested null variant for the likelihood-ratio test, and
// whether one exists. Polynomial variants with interaction terms test against
// the interaction-free model at the same main degree, holding the measurement
// shape flexibility constant; the per-group smooth tests against the shared
// smooth. Baseline and null variants have no null of their own.
func (v Variant) Null() (Variant, bool) {
	switch {
	case v.Smooth && v.PerGroup:
		return Variant{Smooth: true}, true
	case !v.Smooth && v.MainDegree > 0 && v.InteractionDegree > 0:
		return Variant{MainDegree: v.MainDegree}, true
	default:
		return Variant{}, false
	}
}

// IsNull reports whether the variant serves only as a nested null for another
// variant's likelihood-ratio test.
func (v Variant) IsNull() bool {
	_, hasNull := v.Null()
	return !hasNull
}

// FamilyConfig parameterizes family generation.
type FamilyConfig struct {
	MainDegree         int
	InteractionDegrees []int
}

// Family enumerates the model variants fit for every feature, in a fixed
// order: the group-only baseline, the polynomial ladder by interaction
// degree, then the smooth pair.
func Family(cfg FamilyConfig) []Variant {
	variants := []Variant{{}} // group-only baseline
	for _, k := range cfg.InteractionDegrees {
		variants = append(variants, Variant{MainDegree: cfg.MainDegree, InteractionDegree: k})
	}
	variants = append(variants,
		Variant{Smooth: true},                 // smooth null
		Variant{Smooth: true, PerGroup: true}, // per-group smooth
	)
	return variants
}
