package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pepdensity/domain/core"
	"pepdensity/domain/dataset"
	"pepdensity/domain/histogram"
	"pepdensity/domain/model"
	"pepdensity/domain/stats"
	"pepdensity/internal"
	"pepdensity/internal/config"
	"pepdensity/internal/errors"
	"pepdensity/internal/fdr"
	"pepdensity/internal/gam"
	"pepdensity/internal/glm"
	"pepdensity/ports"
)

// DensitySweepService runs the full density testing pipeline over a feature
// table: per-feature discretization and model fits in parallel, then a
// single-threaded FDR phase over the collected raw p-values, then artifact
// persistence.
type DensitySweepService struct {
	cfg     config.DensityConfig
	workers int
	ledger  ports.LedgerWriterPort
	logger  *internal.Logger
}

// NewDensitySweepService wires the sweep service.
func NewDensitySweepService(cfg config.DensityConfig, workers int, ledger ports.LedgerWriterPort, logger *internal.Logger) *DensitySweepService {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DensitySweepService{cfg: cfg, workers: workers, ledger: ledger, logger: logger}
}

// SweepRequest is the input to one sweep.
type SweepRequest struct {
	Table *dataset.FeatureTable
	// SweepID is generated when empty.
	SweepID core.SweepID
}

// SweepOutcome is the in-memory view of a completed sweep. Everything in it
// is also persisted through the ledger port.
type SweepOutcome struct {
	Manifest stats.SweepManifest   `json:"manifest"`
	Results  []stats.FeatureResult `json:"results"`
	Skipped  []stats.SkippedFeature `json:"skipped"`
	Failed   []stats.FailedFit     `json:"failed"`
}

// featureOutcome is one worker's output, merged deterministically afterward.
type featureOutcome struct {
	profile *histogram.FeatureProfile
	result  *stats.FeatureResult
	skipped *stats.SkippedFeature
	failed  []stats.FailedFit
}

// Run executes the sweep. Feature order is the sorted feature-key order
// regardless of worker scheduling, so two sweeps over the same table produce
// identical artifacts.
func (s *DensitySweepService) Run(ctx context.Context, req SweepRequest) (*SweepOutcome, error) {
	if err := config.Validate(&s.cfg); err != nil {
		return nil, err
	}
	if req.Table == nil || req.Table.FeatureCount() == 0 {
		return nil, errors.InvalidInput("sweep requires a non-empty feature table")
	}

	sweepID := req.SweepID
	if sweepID == "" {
		sweepID = core.SweepID(core.NewID())
	}
	started := core.Now()
	startClock := time.Now()

	order := make([]int, req.Table.FeatureCount())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return req.Table.Features[order[a]] < req.Table.Features[order[b]]
	})

	s.logger.Info("sweep %s: %d features, %d workers", sweepID, len(order), s.workers)

	outcomes := make([]featureOutcome, len(order))
	sem := semaphore.NewWeighted(int64(s.workers))
	g, gctx := errgroup.WithContext(ctx)
	for slot, featureIdx := range order {
		slot, featureIdx := slot, featureIdx
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			outcomes[slot] = s.processFeature(req.Table, featureIdx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "sweep cancelled")
	}

	out := &SweepOutcome{}
	for _, o := range outcomes {
		if o.skipped != nil {
			out.Skipped = append(out.Skipped, *o.skipped)
		}
		if o.result != nil {
			out.Results = append(out.Results, *o.result)
		}
		out.Failed = append(out.Failed, o.failed...)
	}

	// The FDR phase is deliberately single threaded: families span features,
	// so it cannot start before every fit has finished.
	significantByFamily := s.adjustFamilies(out.Results)

	skipReasons := make(map[string]int)
	for _, sk := range out.Skipped {
		skipReasons[sk.Reason]++
	}

	manifest := stats.SweepManifest{
		Sweep:               sweepID,
		Fingerprint:         req.Table.Fingerprint,
		StartedAt:           started,
		FinishedAt:          core.Now(),
		FeatureCount:        req.Table.FeatureCount(),
		Tested:              len(out.Results),
		Skipped:             len(out.Skipped),
		FailedFits:          len(out.Failed),
		BinCount:            s.cfg.BinCount,
		MainDegree:          s.cfg.MainDegree,
		InteractionDegrees:  s.cfg.InteractionDegrees,
		FDRThreshold:        s.cfg.FDRThreshold,
		SkipReasons:         skipReasons,
		SignificantByFamily: significantByFamily,
	}
	out.Manifest = manifest

	if err := s.persist(ctx, sweepID, outcomes, manifest); err != nil {
		return nil, err
	}

	s.logger.Info("sweep %s: tested=%d skipped=%d failed_fits=%d in %s",
		sweepID, manifest.Tested, manifest.Skipped, manifest.FailedFits, time.Since(startClock))
	return out, nil
}

// processFeature runs profile, discretization, the model family, and the
// per-model tests for one feature. Raw p-values only; adjustment happens
// after the fan-in.
func (s *DensitySweepService) processFeature(table *dataset.FeatureTable, idx int) featureOutcome {
	feature := table.Features[idx]
	profile := histogram.Profile(feature, table.Row(idx), table.Groups)
	out := featureOutcome{profile: &profile}

	if degenerate, reason := profile.Degenerate(); degenerate {
		s.logger.Debug("feature %s skipped: %s", feature, reason)
		out.skipped = &stats.SkippedFeature{Feature: feature, Reason: reason}
		return out
	}

	binned, err := histogram.Discretize(feature, table.GroupedRow(idx), s.cfg.BinCount)
	if err != nil {
		out.skipped = &stats.SkippedFeature{Feature: feature, Reason: err.Error()}
		return out
	}

	fits := make(map[core.ModelID]model.FitResult)
	family := model.Family(model.FamilyConfig{
		MainDegree:         s.cfg.MainDegree,
		InteractionDegrees: s.cfg.InteractionDegrees,
	})
	for _, variant := range family {
		fit, err := s.fitterFor(variant).Fit(binned)
		if err != nil {
			s.logger.Debug("feature %s model %s: %v", feature, variant.ID(), err)
			out.failed = append(out.failed, stats.FailedFit{
				Feature: feature,
				Model:   variant.ID(),
				Reason:  err.Error(),
			})
			continue
		}
		fits[variant.ID()] = fit
	}
	if len(fits) == 0 {
		out.skipped = &stats.SkippedFeature{Feature: feature, Reason: "no model converged"}
		return out
	}

	result := stats.FeatureResult{Feature: feature}
	for _, variant := range family {
		fit, ok := fits[variant.ID()]
		if !ok {
			continue
		}
		result.Tests = append(result.Tests, stats.DevianceTest(feature, fit))
		result.Tests = append(result.Tests, stats.WaldTest(feature, fit))
		result.Tests = append(result.Tests, s.likelihoodRatio(feature, variant, fit, fits))
	}
	out.result = &result
	return out
}

func (s *DensitySweepService) fitterFor(v model.Variant) model.Fittable {
	if v.Smooth {
		return gam.NewFitter(v, s.cfg.SmoothBasisDim, s.cfg.MaxIterations, s.cfg.Tolerance)
	}
	return glm.NewFitter(v, s.cfg.MaxIterations, s.cfg.Tolerance)
}

// likelihoodRatio resolves the variant's nested null among this feature's
// converged fits. A missing null fit makes the test NA for this feature; it
// does not fail the feature.
func (s *DensitySweepService) likelihoodRatio(feature core.FeatureKey, v model.Variant, fit model.FitResult, fits map[core.ModelID]model.FitResult) stats.TestResult {
	nullVariant, ok := v.Null()
	if !ok {
		return stats.NotApplicable(feature, v.ID(), stats.TestLR)
	}
	nullFit, ok := fits[nullVariant.ID()]
	if !ok {
		return stats.NotApplicable(feature, v.ID(), stats.TestLR)
	}
	return stats.LikelihoodRatioTest(feature, fit, nullFit)
}

// adjustFamilies runs Benjamini-Hochberg per (model, kind) family across all
// tested features and writes the adjusted values and significance calls back
// into the results. Returns significant-call counts keyed "model/kind".
func (s *DensitySweepService) adjustFamilies(results []stats.FeatureResult) map[string]int {
	type slot struct{ feature, test int }
	families := make(map[string][]slot)
	for fi := range results {
		for ti, t := range results[fi].Tests {
			if !t.Applicable {
				continue
			}
			key := familyKey(t.Model, t.Kind)
			families[key] = append(families[key], slot{feature: fi, test: ti})
		}
	}

	keys := make([]string, 0, len(families))
	for k := range families {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	counts := make(map[string]int)
	for _, key := range keys {
		slots := families[key]
		raw := make([]float64, len(slots))
		for i, sl := range slots {
			raw[i] = results[sl.feature].Tests[sl.test].PValue
		}
		adjusted := fdr.Adjust(raw)
		calls := fdr.Significant(adjusted, s.cfg.FDRThreshold)
		for i, sl := range slots {
			t := &results[sl.feature].Tests[sl.test]
			t.Adjusted = adjusted[i]
			t.Significant = calls[i]
			if calls[i] {
				counts[key]++
			}
		}
	}
	return counts
}

func familyKey(modelID core.ModelID, kind stats.TestKind) string {
	return fmt.Sprintf("%s/%s", modelID, kind)
}

func (s *DensitySweepService) persist(ctx context.Context, sweepID core.SweepID, outcomes []featureOutcome, manifest stats.SweepManifest) error {
	store := func(kind core.ArtifactKind, payload interface{}) error {
		return s.ledger.StoreArtifact(ctx, sweepID, core.Artifact{
			ID:        core.NewID(),
			Kind:      kind,
			Payload:   payload,
			CreatedAt: core.Now(),
		})
	}

	for _, o := range outcomes {
		if o.profile != nil {
			if err := store(core.ArtifactFeatureProfile, *o.profile); err != nil {
				return errors.Wrap(err, "persist feature profile")
			}
		}
		if o.skipped != nil {
			if err := store(core.ArtifactSkippedFeature, *o.skipped); err != nil {
				return errors.Wrap(err, "persist skipped feature")
			}
		}
		for _, f := range o.failed {
			if err := store(core.ArtifactFailedFit, f); err != nil {
				return errors.Wrap(err, "persist failed fit")
			}
		}
		if o.result != nil {
			if err := store(core.ArtifactFeatureResult, *o.result); err != nil {
				return errors.Wrap(err, "persist feature result")
			}
		}
	}
	if err := store(core.ArtifactSweepManifest, manifest); err != nil {
		return errors.Wrap(err, "persist sweep manifest")
	}
	return nil
}
