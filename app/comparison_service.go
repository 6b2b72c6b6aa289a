package app

import (
	"context"
	"sort"

	"pepdensity/domain/core"
	"pepdensity/domain/stats"
	"pepdensity/internal"
	"pepdensity/internal/errors"
	"pepdensity/ports"
)

// ComparisonService contrasts a finished sweep's significance calls against
// the external reference workflow's calls, one report per (model, kind)
// family, and persists the reports under the sweep.
type ComparisonService struct {
	ledger    ports.LedgerPort
	reference ports.ReferenceCallsPort
	logger    *internal.Logger
}

// NewComparisonService wires the comparison service.
func NewComparisonService(ledger ports.LedgerPort, reference ports.ReferenceCallsPort, logger *internal.Logger) *ComparisonService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ComparisonService{ledger: ledger, reference: reference, logger: logger}
}

// Compare builds the agreement report for every family the sweep produced.
// Families are processed in sorted key order so repeated runs emit identical
// artifact sequences.
func (s *ComparisonService) Compare(ctx context.Context, sweepID core.SweepID) ([]stats.FamilyComparison, error) {
	reference, err := s.reference.LoadReferenceCalls(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load reference calls")
	}
	if len(reference) == 0 {
		return nil, errors.InvalidInput("reference table is empty")
	}

	artifacts, err := s.ledger.GetArtifactsBySweep(ctx, sweepID)
	if err != nil {
		return nil, errors.Wrap(err, "load sweep artifacts")
	}

	type family struct {
		model core.ModelID
		kind  stats.TestKind
	}
	byFamily := make(map[family][]stats.TestResult)
	for _, a := range artifacts {
		if a.Kind != core.ArtifactFeatureResult {
			continue
		}
		result, ok := a.Payload.(stats.FeatureResult)
		if !ok {
			continue
		}
		for _, t := range result.Tests {
			k := family{model: t.Model, kind: t.Kind}
			byFamily[k] = append(byFamily[k], t)
		}
	}
	if len(byFamily) == 0 {
		return nil, errors.NotFound("no feature results for sweep " + sweepID.String())
	}

	keys := make([]family, 0, len(byFamily))
	for k := range byFamily {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].model != keys[b].model {
			return keys[a].model < keys[b].model
		}
		return keys[a].kind < keys[b].kind
	})

	var reports []stats.FamilyComparison
	for _, k := range keys {
		cmp := stats.Compare(k.model, k.kind, byFamily[k], reference)
		if cmp.SharedTested == 0 && cmp.DensityOnlyN == 0 {
			// Every test in this family was NA; nothing to compare.
			continue
		}
		reports = append(reports, cmp)

		if err := s.ledger.StoreArtifact(ctx, sweepID, core.Artifact{
			ID:        core.NewID(),
			Kind:      core.ArtifactComparison,
			Payload:   cmp,
			CreatedAt: core.Now(),
		}); err != nil {
			return nil, errors.Wrap(err, "persist comparison")
		}
		s.logger.Info("comparison %s/%s: shared=%d both=%d density-only=%d reference-only=%d jaccard=%.3f",
			cmp.Model, cmp.Kind, cmp.SharedTested, len(cmp.Both), len(cmp.DensityExtra), len(cmp.ReferenceExtra), cmp.Jaccard)
	}
	return reports, nil
}
