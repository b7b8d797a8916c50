// Package validation provides normalization and format checks for the lookup
// scope parameters. The same rules run on admin writes, public reads, and cache
// key construction; if they ever diverged, cached entries and stored scopes
// would stop matching each other.
package validation

import "strings"

// cnpjLength is the number of digits in a valid CNPJ registration number.
const cnpjLength = 14

// NormalizeCNPJ strips every non-digit character from a raw CNPJ, so
// "06.210.435/0001-47" and "06210435000147" normalize to the same value.
// The operation is idempotent. An empty result means "not provided".
func NormalizeCNPJ(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeMachine lower-cases and trims a raw machine name so "PDV-01" and
// "pdv-01" address the same scope. Idempotent; empty means "not provided".
func NormalizeMachine(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidCNPJ reports whether a normalized CNPJ has the expected 14 digits.
// Callers normalize first; an empty string is not valid.
func ValidCNPJ(normalized string) bool {
	return len(normalized) == cnpjLength
}
