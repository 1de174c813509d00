// Package output defines how scan progress and results reach the user:
// PlainIO for terminals, JSONIO for scripts and the mobile bridge, and
// BufferIO for tests and embedding.
package output

import (
	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/scan"
)

// IO is the contract between the scan commands and the presentation layer.
// It embeds generate.Sink so an IO can be handed straight to Scanner.Scan.
type IO interface {
	generate.Sink

	// ScanStart announces a scan at fix against the named backend.
	ScanStart(fix scan.Fix, backend string)

	// Verdict shows the finished report, including failed scans.
	Verdict(rep *scan.Report)

	// System displays an informational notice.
	System(text string)

	// Error displays an error message.
	Error(msg string)
}

// Result is the compact {"verdict","entropy"} shape consumed by the mobile
// bridge. For failed scans Entropy carries the error text.
type Result struct {
	Verdict string `json:"verdict"`
	Entropy string `json:"entropy"`
}

// ResultOf reduces a report to its bridge shape.
func ResultOf(rep *scan.Report) Result {
	if rep == nil {
		return Result{Verdict: string(scan.VerdictError), Entropy: "no report"}
	}
	if rep.Verdict == scan.VerdictError && rep.Err != "" {
		return Result{Verdict: string(rep.Verdict), Entropy: rep.Err}
	}
	return Result{Verdict: string(rep.Verdict), Entropy: rep.Entropy}
}

// Ready is reported by status probes when the backend answers.
var Ready = Result{Verdict: string(scan.VerdictReady), Entropy: "QRS Online"}
