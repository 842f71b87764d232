package model

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// proofReferencePattern matches base58-encoded external transaction
// identifiers. Zero, capital O, capital I and lowercase l are excluded
// from the alphabet.
var proofReferencePattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,96}$`)

// reasonKeyPattern matches structured reward reason keys such as
// "achievement:first_click" or "milestone:10000".
var reasonKeyPattern = regexp.MustCompile(`^[a-z_]+:[a-z0-9_.-]+$`)

// IsValidProofReference reports whether ref is a well formed external
// proof reference. Format is checked before any lottery or ledger logic
// runs; uniqueness is enforced separately by the datasource.
func IsValidProofReference(ref string) bool {
	return proofReferencePattern.MatchString(ref)
}

// IsValidReasonKey reports whether key follows the structured
// "<kind>:<slug>" reward reason format.
func IsValidReasonKey(key string) bool {
	return reasonKeyPattern.MatchString(key)
}
