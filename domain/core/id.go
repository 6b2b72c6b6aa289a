package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// FeatureKey identifies a measured peptide, unique and stable across a run.
	FeatureKey ID
	// SampleID identifies a single cell (one column of the intensity matrix).
	SampleID ID
	// GroupLabel is the categorical sample covariate (e.g. cell type).
	GroupLabel ID
	// ModelID identifies one variant of the fitted model family,
	// e.g. "degree-4-interaction-2" or "smooth-by-group".
	ModelID ID
	// SweepID identifies one full batch run over a feature table.
	SweepID ID
	// ArtifactID identifies a stored result artifact.
	ArtifactID ID
)

// String conversions for domain IDs
func (id FeatureKey) String() string { return ID(id).String() }
func (id SampleID) String() string   { return ID(id).String() }
func (id GroupLabel) String() string { return ID(id).String() }
func (id ModelID) String() string    { return ID(id).String() }
func (id SweepID) String() string    { return ID(id).String() }
func (id ArtifactID) String() string { return ID(id).String() }

// ParseFeatureKey parses a string into FeatureKey
func ParseFeatureKey(s string) (FeatureKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("feature key cannot be empty")
	}
	return FeatureKey(s), nil
}

// ParseGroupLabel parses a string into GroupLabel
func ParseGroupLabel(s string) (GroupLabel, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("group label cannot be empty")
	}
	return GroupLabel(s), nil
}

// ParseSweepID parses a string into SweepID
func ParseSweepID(s string) (SweepID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sweep ID cannot be empty")
	}
	return SweepID(s), nil
}

// Artifact represents any output of the system
type Artifact struct {
	ID        ID           `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Payload   interface{}  `json:"payload"`
	CreatedAt Timestamp    `json:"created_at"`
}

// ArtifactKind defines types of artifacts
type ArtifactKind string

const (
	// ArtifactFeatureResult holds per-(feature, model, test) p-values.
	ArtifactFeatureResult ArtifactKind = "feature_result"
	// ArtifactFeatureProfile is the per-feature pre-discretization summary.
	ArtifactFeatureProfile ArtifactKind = "feature_profile"
	// ArtifactSkippedFeature records why a feature was not tested.
	ArtifactSkippedFeature ArtifactKind = "skipped_feature"
	// ArtifactFailedFit records a (feature, model) fit that did not converge.
	ArtifactFailedFit ArtifactKind = "failed_fit"
	// ArtifactSweepManifest captures audit metadata for a sweep (counts, thresholds, fingerprint).
	ArtifactSweepManifest ArtifactKind = "sweep_manifest"
	// ArtifactComparison holds the density-vs-reference agreement report.
	ArtifactComparison ArtifactKind = "comparison"
)
