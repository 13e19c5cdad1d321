// Package normalizers provides field normalization and validity checks for
// lead matching
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("ncompany", CompanyName)
	Register("remove_whitespace", RemoveWhitespace)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

var (
	legalSuffixRe = regexp.MustCompile(`\b(inc|llc|ltd|corp|corporation|company|co)\b\.?`)
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)

	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?(\(?[0-9]{1,4}\)?[-.]?){2,7}$`)
)

// CompanyName canonicalizes a business name for matching:
// lowercase, strip legal-entity suffixes as whole words, drop everything
// outside [a-z0-9 ], collapse runs of whitespace, trim.
// Idempotent: CompanyName(CompanyName(s)) == CompanyName(s).
func CompanyName(s string) string {
	s = strings.ToLower(s)
	s = legalSuffixRe.ReplaceAllString(s, "")
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsValidEmail reports whether s looks like an email address: exactly one @
// with non-empty, whitespace-free local part and a domain containing a dot.
// Shape check only, no RFC validation and no DNS lookups.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// IsValidPhone reports whether s looks like a phone number after stripping
// whitespace: optional leading +, digit groups optionally parenthesized and
// separated by dashes or dots. Intentionally permissive.
func IsValidPhone(s string) bool {
	s = RemoveWhitespace(s)
	if s == "" {
		return false
	}
	return phoneRe.MatchString(s)
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizePhone removes all non-digit characters from a phone number
func NormalizePhone(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
