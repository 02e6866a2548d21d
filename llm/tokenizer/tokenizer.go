// Package tokenizer estimates token usage for cost accounting: the
// extraction facade uses it to report prompt tokens spared by cache hits.
package tokenizer

import (
	"fmt"
	"sync"
)

// Tokenizer counts tokens for a specific model family.
type Tokenizer interface {
	// CountTokens returns the token count of the given text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total token count of a message list,
	// including per-message overhead (role markers, separators).
	CountMessages(messages []Message) (int, error)

	// Name identifies the tokenizer in logs.
	Name() string
}

// Message is a lightweight message shape used by this package to avoid a
// cycle with the llm package.
type Message struct {
	Role    string
	Content string
}

var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register binds a tokenizer to a model name.
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// Lookup returns the tokenizer registered for the model, trying prefix
// matches ("gpt-4o" matches "gpt-4o-mini") before failing.
func Lookup(model string) (Tokenizer, error) {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}
	for prefix, t := range modelTokenizers {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// ForModel returns the registered tokenizer for the model, falling back to
// the generic estimator when none is registered. It never returns nil.
func ForModel(model string) Tokenizer {
	t, err := Lookup(model)
	if err != nil {
		return NewEstimator()
	}
	return t
}
