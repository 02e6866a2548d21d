// Package decision defines the normalized contract every extraction path
// produces: the Record type, its enumerations, and the total Validate
// function that turns loosely-typed candidate fields into a Record that
// always satisfies the contract.
package decision

import (
	"math"
	"regexp"
	"strings"
)

// Action is the trade directive carried by an interpreted decision.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionHold    Action = "HOLD"
	ActionUnknown Action = "UNKNOWN"
)

// ParseAction maps a free-form token to an Action. Unrecognized input
// yields ActionUnknown; Validate defaults that to ActionHold.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return ActionBuy
	case "SELL":
		return ActionSell
	case "HOLD":
		return ActionHold
	default:
		return ActionUnknown
	}
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionUnknown:
		return true
	}
	return false
}

// Kind selects which extraction contract applies to a piece of text.
type Kind string

const (
	KindVote       Kind = "VOTE"
	KindDiscussion Kind = "DISCUSSION"
	KindMediation  Kind = "MEDIATION"
)

// Valid reports whether k is one of the defined extraction kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVote, KindDiscussion, KindMediation:
		return true
	}
	return false
}

// MessageType classifies a discussion contribution.
type MessageType string

const (
	MessagePosition   MessageType = "POSITION"
	MessageRebuttal   MessageType = "REBUTTAL"
	MessageAgreement  MessageType = "AGREEMENT"
	MessageCompromise MessageType = "COMPROMISE"
	MessageQuestion   MessageType = "QUESTION"
)

// ParseMessageType maps a free-form token to a MessageType, defaulting to
// MessagePosition.
func ParseMessageType(s string) MessageType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "REBUTTAL":
		return MessageRebuttal
	case "AGREEMENT":
		return MessageAgreement
	case "COMPROMISE":
		return MessageCompromise
	case "QUESTION":
		return MessageQuestion
	default:
		return MessagePosition
	}
}

// Sentiment is the market stance expressed by a discussion message.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// ParseSentiment maps a free-form token to a Sentiment, defaulting to
// SentimentNeutral.
func ParseSentiment(s string) Sentiment {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BULLISH":
		return SentimentBullish
	case "BEARISH":
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// Source records which extraction path produced a Record.
type Source string

const (
	SourceSemantic Source = "SEMANTIC"
	SourceFallback Source = "FALLBACK"
)

// Record is the canonical interpretation of one piece of agent text. Every
// field is guaranteed valid by construction through Validate; consumers
// never re-check ranges.
type Record struct {
	Action     Action `json:"action"`
	Symbol     string `json:"symbol,omitempty"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning,omitempty"`

	// Discussion-only fields; zero values for other kinds.
	MessageType     MessageType `json:"message_type,omitempty"`
	Sentiment       Sentiment   `json:"sentiment,omitempty"`
	MentionedAgents []string    `json:"mentioned_agents,omitempty"`
	KeyPoints       []string    `json:"key_points,omitempty"`

	// Provenance, stamped by the extraction facade.
	Source    Source `json:"source,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
}

// Clone returns a deep copy so cached records cannot be mutated through
// shared slices.
func (r Record) Clone() Record {
	out := r
	if r.MentionedAgents != nil {
		out.MentionedAgents = append([]string(nil), r.MentionedAgents...)
	}
	if r.KeyPoints != nil {
		out.KeyPoints = append([]string(nil), r.KeyPoints...)
	}
	return out
}

// RawFields carries candidate values as produced by a semantic reply or the
// lexical fallback, before any normalization. Absent values stay zero; a nil
// Confidence means the field was not present at all.
type RawFields struct {
	Action          string
	Symbol          string
	Confidence      *float64
	Reasoning       string
	MessageType     string
	Sentiment       string
	MentionedAgents []string
	KeyPoints       []string
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// NormalizeSymbol trims and upper-cases a ticker candidate. Anything that
// does not look like a symbol (1-10 uppercase alphanumerics) comes back
// empty, which the contract treats as "no symbol".
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(s) {
		return ""
	}
	return s
}

// ClampConfidence rounds and clamps a confidence value into [0, 100].
// NaN and anything non-finite below zero map to 0; overshoot maps to 100.
func ClampConfidence(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v <= 0:
		return 0
	case v >= 100:
		return 100
	}
	return int(math.Round(v))
}

// Validate normalizes raw candidate fields into a Record. It is total:
// any input, however malformed, yields a usable Record and no error.
//
// Defaulting rules: unparseable action becomes HOLD, a missing confidence
// becomes 0, and for DISCUSSION records an unrecognized message type or
// sentiment becomes POSITION / NEUTRAL. Non-discussion kinds leave the
// discussion-only fields zero.
func Validate(kind Kind, raw RawFields) Record {
	rec := Record{
		Action:    ParseAction(raw.Action),
		Symbol:    NormalizeSymbol(raw.Symbol),
		Reasoning: strings.TrimSpace(raw.Reasoning),
	}
	if rec.Action == ActionUnknown {
		rec.Action = ActionHold
	}
	if raw.Confidence != nil {
		rec.Confidence = ClampConfidence(*raw.Confidence)
	}
	if kind == KindDiscussion {
		rec.MessageType = ParseMessageType(raw.MessageType)
		rec.Sentiment = ParseSentiment(raw.Sentiment)
		rec.MentionedAgents = dedupeNonEmpty(raw.MentionedAgents)
		rec.KeyPoints = trimNonEmpty(raw.KeyPoints)
	}
	return rec
}

// dedupeNonEmpty trims entries, drops empties, and removes duplicates while
// preserving first-seen order.
func dedupeNonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func trimNonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
