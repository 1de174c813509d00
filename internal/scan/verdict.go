package scan

import "strings"

// Verdict is the road risk label reported to the user.
type Verdict string

const (
	VerdictLow    Verdict = "Low"
	VerdictMedium Verdict = "Medium"
	VerdictHigh   Verdict = "High"
	// VerdictError marks a scan whose backend call failed.
	VerdictError Verdict = "ERROR"
	// VerdictReady is reported by status probes, never by a scan.
	VerdictReady Verdict = "READY"
)

// verdictOrder is the search precedence. "low" is checked first even when
// another label appears earlier in the text; this ordering is part of the
// observable classification contract.
var verdictOrder = []struct {
	needle  string
	verdict Verdict
}{
	{"low", VerdictLow},
	{"medium", VerdictMedium},
	{"high", VerdictHigh},
}

// ExtractVerdict returns the first label (in precedence order) found as a
// case-insensitive substring of text, or VerdictMedium when none is.
func ExtractVerdict(text string) Verdict {
	lower := strings.ToLower(text)
	for _, v := range verdictOrder {
		if strings.Contains(lower, v.needle) {
			return v.verdict
		}
	}
	return VerdictMedium
}
