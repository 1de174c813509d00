package generate

import (
	"errors"
	"fmt"

	"github.com/qrs-ai/roadscan/internal/punkd"
)

// ErrInvalidOptions is returned by Options.Validate and by the controller
// when budgets would make the loop meaningless.
var ErrInvalidOptions = errors.New("invalid generation options")

// Defaults for a session; 256 tokens in 64-token chunks allows four calls.
const (
	DefaultMaxTotalTokens  = 256
	DefaultChunkTokens     = 64
	DefaultBaseTemperature = 0.18
	DefaultOverlapWindow   = 30
	DefaultTailWindow      = 140

	minTemperature = 0.01
	maxTemperature = 2.0
)

// Options configures one generation session.
type Options struct {
	MaxTotalTokens  int
	ChunkTokens     int
	BaseTemperature float64
	Profile         punkd.Profile
	TopN            int

	// OverlapWindow caps how many characters of a new chunk may be matched
	// against the tail of the assembled text.
	OverlapWindow int
	// TailWindow is how many trailing characters of the assembled text are
	// kept for overlap detection.
	TailWindow int
}

// DefaultOptions returns the defaults with the balanced PUNKD profile.
func DefaultOptions() Options {
	return Options{
		MaxTotalTokens:  DefaultMaxTotalTokens,
		ChunkTokens:     DefaultChunkTokens,
		BaseTemperature: DefaultBaseTemperature,
		Profile:         punkd.ProfileBalanced,
		TopN:            punkd.DefaultTopN,
		OverlapWindow:   DefaultOverlapWindow,
		TailWindow:      DefaultTailWindow,
	}
}

// Validate rejects budgets that are zero or negative and windows that
// cannot work together.
func (o Options) Validate() error {
	switch {
	case o.MaxTotalTokens <= 0:
		return fmt.Errorf("%w: max_total_tokens must be > 0, got %d", ErrInvalidOptions, o.MaxTotalTokens)
	case o.ChunkTokens <= 0:
		return fmt.Errorf("%w: chunk_tokens must be > 0, got %d", ErrInvalidOptions, o.ChunkTokens)
	case o.TopN < 0:
		return fmt.Errorf("%w: top_n must be >= 0, got %d", ErrInvalidOptions, o.TopN)
	case o.OverlapWindow < 0:
		return fmt.Errorf("%w: overlap_window must be >= 0, got %d", ErrInvalidOptions, o.OverlapWindow)
	case o.TailWindow < o.OverlapWindow:
		return fmt.Errorf("%w: tail_window (%d) must be >= overlap_window (%d)", ErrInvalidOptions, o.TailWindow, o.OverlapWindow)
	}
	return nil
}

// Iterations returns the backend call cap: ceil(maxTotal/chunk), at least 1.
// A non-positive chunk yields 1.
func Iterations(maxTotal, chunk int) int {
	if chunk <= 0 || maxTotal <= 0 {
		return 1
	}
	return max(1, (maxTotal+chunk-1)/chunk)
}

// Temperature scales base by the perturbation multiplier and clamps the
// result into [0.01, 2.0].
func Temperature(base, mult float64) float64 {
	return min(maxTemperature, max(minTemperature, base*mult))
}

// minWords is the word count below which a chunk ends the session.
func (o Options) minWords() int {
	return max(4, o.ChunkTokens/10)
}
