// Package fingerprint derives stable identities for recurring error
// conditions. A fingerprint is a truncated SHA-256 over a normalized message
// template plus the service and source-location context, so semantically
// identical errors group together across variable data like IDs and
// addresses.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// Defaults substituted into the seed when context is missing. Two records
// with the same template but different source locations must not collide, so
// the defaults are part of the hashed seed rather than being skipped.
const (
	DefaultService = "unknown-service"
	DefaultSource  = "unknown-source"

	// EmptyTemplate stands in for messages that normalize to nothing.
	EmptyTemplate = "unknown error"
)

var (
	uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	hexPattern  = regexp.MustCompile(`0x[0-9a-f]+|\b[0-9a-f]{12,}\b`)
	ipPattern   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	numPattern  = regexp.MustCompile(`\d+`)
	wsPattern   = regexp.MustCompile(`\s+`)
)

// Normalize reduces a message to its template form. Substitution order is
// load-bearing: UUIDs, hex ids and IPv4 addresses must be masked before the
// generic digit pass, otherwise the digit pass would shred them into
// inconsistent partial placeholders across otherwise identical messages.
func Normalize(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	s = uuidPattern.ReplaceAllString(s, "{uuid}")
	s = hexPattern.ReplaceAllString(s, "{hex}")
	s = ipPattern.ReplaceAllString(s, "{ip}")
	s = numPattern.ReplaceAllString(s, "{num}")
	s = strings.TrimSpace(wsPattern.ReplaceAllString(s, " "))
	if s == "" {
		return EmptyTemplate
	}
	return s
}

// Seed joins the grouping context into the string that gets hashed.
func Seed(serviceName, sourceFile string, lineNumber int, normalizedMessage string) string {
	if serviceName == "" {
		serviceName = DefaultService
	}
	if sourceFile == "" {
		sourceFile = DefaultSource
	}
	return strings.Join([]string{
		serviceName,
		sourceFile,
		strconv.Itoa(lineNumber),
		normalizedMessage,
	}, "|")
}

// Compute hashes a seed into the stored fingerprint: SHA-256 truncated to the
// first 32 hex characters (128 bits). Collisions are negligible at expected
// event volumes; the truncation is a storage trade-off, not a correctness
// guarantee.
func Compute(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:32]
}
