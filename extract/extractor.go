// Package extract turns raw agent text into validated decision records.
// The Semantic facade is the primary path (external model behind a cache
// with degradation to the lexical Fallback); both implement Extractor and
// are total: any input yields a usable record, never an error.
package extract

import (
	"context"

	"github.com/BaSui01/tradecrew/decision"
)

// Request identifies one piece of agent text to interpret.
type Request struct {
	Kind      decision.Kind
	AgentID   string
	AgentName string
	Text      string
}

// Extractor is the strategy interface shared by the semantic facade and
// the lexical fallback. Implementations must be safe for concurrent use
// and total: they always return a usable record.
type Extractor interface {
	Extract(ctx context.Context, req Request) decision.Record
}
