// Package secrets implements the conservative content heuristic that keeps
// credential material out of generic write/edit tool calls.
//
// The pattern table is data, not code: extend patternsV1 (or add a v2 table)
// without touching dispatch logic. The scanner favors false positives over
// leaks and is a best-effort guard, not a cryptographic boundary.
package secrets

import "regexp"

// PatternVersion identifies the active pattern table.
const PatternVersion = "v1"

// pattern pairs a label with its compiled expression. The label surfaces in
// logs only, never in tool results.
type pattern struct {
	label string
	re    *regexp.Regexp
}

// patternsV1 is the active heuristic set. Ordered roughly by specificity;
// the scan short-circuits on the first hit.
var patternsV1 = []pattern{
	{"aws_access_key", regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"openai_style_key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)},
	{"anthropic_key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{10,}\b`)},
	{"google_api_key", regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_.~+/-]{20,}=*`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY(?: BLOCK)?-----`)},
}

// LooksLikeSecret reports whether content appears to contain credential
// material. A true result means the caller must refuse to write the content
// and point at the dedicated credential-submission action instead.
func LooksLikeSecret(content string) bool {
	return MatchLabel(content) != ""
}

// MatchLabel returns the label of the first matching pattern, or "" when
// the content looks ordinary.
func MatchLabel(content string) string {
	if content == "" {
		return ""
	}
	for _, p := range patternsV1 {
		if p.re.MatchString(content) {
			return p.label
		}
	}
	return ""
}
