package resolve

import (
	"context"

	"github.com/vmunix/stowaway/internal/modules"
)

// Strategy is one way of asking the extraction engine for streams.
type Strategy int

const (
	// StrategyAsync requires the module's Async capability.
	StrategyAsync Strategy = iota
	// StrategyStreamAsync requires the module's StreamAsync capability.
	StrategyStreamAsync
	// StrategyBaseline is always available and always tried last.
	StrategyBaseline
)

// strategies is the fixed priority order.
var strategies = []Strategy{StrategyAsync, StrategyStreamAsync, StrategyBaseline}

func (s Strategy) String() string {
	switch s {
	case StrategyAsync:
		return "async"
	case StrategyStreamAsync:
		return "stream-async"
	case StrategyBaseline:
		return "baseline"
	default:
		return "unknown"
	}
}

// Supported reports whether module m advertises the capability s needs.
func (s Strategy) Supported(m *modules.Module) bool {
	switch s {
	case StrategyBaseline:
		return true
	case StrategyAsync:
		return m != nil && m.Capabilities.Async
	case StrategyStreamAsync:
		return m != nil && m.Capabilities.StreamAsync
	default:
		return false
	}
}

// Result is what the extraction engine found for one strategy.
type Result struct {
	Streams   []string `json:"streams"`
	Subtitles []string `json:"subtitles"`
}

// Extractor is the extraction engine: it turns an episode page URL into raw
// stream and subtitle URLs. The cascade calls it sequentially, never in
// parallel, for a single item.
//
//go:generate mockgen -destination=mocks/mock_extractor.go -package=mocks . Extractor
type Extractor interface {
	Extract(ctx context.Context, episodeURL string, mod *modules.Module, s Strategy) (*Result, error)
}
