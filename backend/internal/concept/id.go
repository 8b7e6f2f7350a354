package concept

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"course-graph/backend/internal/constants"
)

// Normalize lowercases and trims a label. Equal normalized labels are the same concept.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// ID derives the stable concept id from a label: prefix + truncated sha1 of the normalized label
func ID(label string) string {
	sum := sha1.Sum([]byte(Normalize(label)))
	return constants.ConceptIDPrefix + hex.EncodeToString(sum[:])[:constants.ConceptIDHashLength]
}
