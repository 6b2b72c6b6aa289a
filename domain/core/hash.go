package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// ComputeTableHash fingerprints a feature table: feature keys in sorted order
// plus the group assignment, enough to detect input drift between runs.
func ComputeTableHash(featureKeys []string, groups map[string]string) Hash {
	keys := append([]string(nil), featureKeys...)
	sort.Strings(keys)

	var data strings.Builder
	for _, k := range keys {
		data.WriteString(k)
		data.WriteByte('\n')
	}

	sampleIDs := make([]string, 0, len(groups))
	for s := range groups {
		sampleIDs = append(sampleIDs, s)
	}
	sort.Strings(sampleIDs)
	for _, s := range sampleIDs {
		data.WriteString(fmt.Sprintf("%s=%s\n", s, groups[s]))
	}

	return NewHash([]byte(data.String()))
}
