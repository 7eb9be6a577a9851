package mapcode

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxLen is the longest accepted mapcode.
const MaxLen = 64

var (
	validRegex    = regexp.MustCompile(`^[A-Za-z0-9_-]{2,64}$`)
	separatorRe   = regexp.MustCompile(`[,;\t]+`)
	digitRe       = regexp.MustCompile(`[0-9]`)
	leadingWrapRe = regexp.MustCompile(`^[<(\[]+`)
	trailWrapRe   = regexp.MustCompile(`[>)\]]+$`)
	trailPunctRe  = regexp.MustCompile(`[.,;:!?]+$`)
)

// Normalize extracts a single mapcode from raw input:
// 1. Trim, strip one layer of wrapping quotes
// 2. Strip leading < ( [ and trailing > ) ], then trailing . , ; : ! ?
// 3. Strip leading @
// 4. Keep the first whitespace-delimited token
// 5. Validate against ^[A-Za-z0-9_-]{2,64}$
//
// The second return value is false when raw holds no valid mapcode.
func Normalize(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", false
	}

	t = stripWrappingQuotes(t)
	t = stripPunctuation(t)
	if t == "" {
		return "", false
	}

	t = strings.TrimLeft(t, "@")

	fields := strings.Fields(t)
	if len(fields) == 0 {
		return "", false
	}
	t = fields[0]

	if !validRegex.MatchString(t) {
		return "", false
	}
	return t, true
}

func stripWrappingQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func stripPunctuation(s string) string {
	t := strings.TrimSpace(s)
	t = leadingWrapRe.ReplaceAllString(t, "")
	t = trailWrapRe.ReplaceAllString(t, "")
	t = trailPunctRe.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// ParseMany extracts mapcodes from freeform text, CSV-like rows or chat logs.
// Order is preserved and duplicates are kept.
//
// Lines containing '@' only yield tokens that carry an '@'. Lines without
// one only yield tokens that contain a digit, which drops CSV headers.
func ParseMany(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var tokens []string
		for _, chunk := range separatorRe.Split(trimmed, -1) {
			tokens = append(tokens, strings.Fields(chunk)...)
		}

		hasAt := strings.Contains(trimmed, "@")
		for _, tok := range tokens {
			if hasAt && !strings.Contains(tok, "@") {
				continue
			}
			mc, ok := Normalize(tok)
			if !ok {
				continue
			}
			if !hasAt && !digitRe.MatchString(mc) {
				continue
			}
			out = append(out, mc)
		}
	}
	return out
}

// DedupeKeepOrder removes duplicates, keeping the first occurrence.
func DedupeKeepOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// NumericID returns the content-lookup key of a mapcode.
// Only plain positive base-10 integers qualify.
func NumericID(mc string) (int64, bool) {
	s := strings.TrimLeft(mc, "@")
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
