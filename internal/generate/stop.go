package generate

import "strings"

// StopCondition records why a session ended.
type StopCondition int

const (
	// StopBudget: the iteration cap was reached.
	StopBudget StopCondition = iota
	// StopEmpty: the backend produced no text after trimming, or a
	// response shape that could not be read.
	StopEmpty
	// StopTerminalLabel: the assembled text ends with Low, Medium or High.
	StopTerminalLabel
	// StopShortChunk: the last chunk had too few words to continue.
	StopShortChunk
	// StopCancelled: the context ended before the next backend call.
	StopCancelled
	// StopError: the backend call failed.
	StopError
)

func (s StopCondition) String() string {
	switch s {
	case StopBudget:
		return "budget-exhausted"
	case StopEmpty:
		return "backend-returned-empty"
	case StopTerminalLabel:
		return "terminal-label-seen"
	case StopShortChunk:
		return "chunk-too-short"
	case StopCancelled:
		return "cancelled"
	case StopError:
		return "backend-error"
	default:
		return "unknown"
	}
}

// TerminalLabels are the classification outputs that end generation.
var TerminalLabels = []string{"Low", "Medium", "High"}

// StopSequences are sent with every chunk request.
var StopSequences = []string{"Low", "Medium", "High", "\n", "\r"}

func endsWithLabel(s string) bool {
	s = strings.TrimSpace(s)
	for _, l := range TerminalLabels {
		if strings.HasSuffix(s, l) {
			return true
		}
	}
	return false
}
