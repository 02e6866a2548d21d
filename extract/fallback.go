package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/decision"
)

// scoredPattern weights one lexical signal.
type scoredPattern struct {
	re     *regexp.Regexp
	weight int
}

var buySignals = []scoredPattern{
	{regexp.MustCompile(`(?i)\bstrong\s+buy\b`), 3},
	{regexp.MustCompile(`(?i)\b(buy|buying)\b`), 2},
	{regexp.MustCompile(`(?i)\b(go|going|enter)\s+long\b`), 2},
	{regexp.MustCompile(`(?i)\b(accumulate|add\s+to\s+position)\b`), 2},
	{regexp.MustCompile(`(?i)\b(bullish|upside|undervalued|breakout|oversold)\b`), 1},
}

var sellSignals = []scoredPattern{
	{regexp.MustCompile(`(?i)\bstrong\s+sell\b`), 3},
	{regexp.MustCompile(`(?i)\b(sell|selling)\b`), 2},
	{regexp.MustCompile(`(?i)\b(go|going|enter)\s+short\b`), 2},
	{regexp.MustCompile(`(?i)\b(exit|liquidate|take\s+profits?)\b`), 2},
	{regexp.MustCompile(`(?i)\b(bearish|downside|overvalued|breakdown|overbought)\b`), 1},
}

var holdSignals = []scoredPattern{
	{regexp.MustCompile(`(?i)\bhold(ing)?\b`), 2},
	{regexp.MustCompile(`(?i)\b(wait|stay\s+(put|flat)|sidelines?)\b`), 2},
	{regexp.MustCompile(`(?i)\b(no\s+(position|trade)|do\s+nothing)\b`), 2},
	{regexp.MustCompile(`(?i)\bneutral\b`), 1},
}

var (
	percentPattern = regexp.MustCompile(`\b(\d{1,3})\s*%`)
	tickerPattern  = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}\b`)
	mentionPattern = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_-]*)`)
	sentenceSplit  = regexp.MustCompile(`[.!?\n]+`)

	compromisePattern = regexp.MustCompile(`(?i)\b(compromise|middle\s+ground|meet\s+halfway|partially\s+agree)\b`)
	agreementPattern  = regexp.MustCompile(`(?i)\b(agree|support|concur|good\s+point|well\s+said)\b|\+1`)
	rebuttalPattern   = regexp.MustCompile(`(?i)\b(disagree|counter|however|wrong|flawed|on\s+the\s+contrary)\b`)
	questionPattern   = regexp.MustCompile(`(?i)^\s*(what|why|how|when|could|would|should|is|are|do|does)\b`)
)

// tickerStopwords filters uppercase tokens that look like symbols but are
// ordinary trading vocabulary.
var tickerStopwords = map[string]struct{}{
	"BUY": {}, "SELL": {}, "HOLD": {}, "LONG": {}, "SHORT": {},
	"THE": {}, "AND": {}, "FOR": {}, "NOT": {}, "BUT": {}, "ALL": {}, "NOW": {},
	"USD": {}, "EUR": {}, "GBP": {}, "USA": {}, "US": {}, "EU": {}, "UK": {},
	"ETF": {}, "IPO": {}, "CEO": {}, "CFO": {}, "FED": {}, "GDP": {}, "CPI": {},
	"AI": {}, "API": {}, "EPS": {}, "PE": {}, "YOY": {}, "QOQ": {}, "YTD": {},
	"RSI": {}, "MACD": {}, "SMA": {}, "EMA": {}, "ATH": {}, "ATL": {}, "DCA": {},
	"PT": {}, "TP": {}, "SL": {}, "OK": {}, "IMO": {}, "NYSE": {}, "NASDAQ": {},
}

// Fallback is the deterministic lexical extractor the facade degrades to.
// It inspects keyword patterns only: no I/O, no shared state, total over
// any input.
type Fallback struct {
	logger *zap.Logger
}

// NewFallback creates the lexical extractor.
func NewFallback(logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{logger: logger.With(zap.String("component", "fallback_extractor"))}
}

// Extract derives a record from keyword evidence alone. With no signal at
// all it returns the contract default (HOLD, confidence 0).
func (f *Fallback) Extract(_ context.Context, req Request) decision.Record {
	text := req.Text

	buyScore, buyHits := scoreSignals(buySignals, text)
	sellScore, sellHits := scoreSignals(sellSignals, text)
	holdScore, holdHits := scoreSignals(holdSignals, text)

	raw := decision.RawFields{
		Symbol: findTicker(text),
	}

	action, hits := pickAction(buyScore, sellScore, holdScore, buyHits, sellHits, holdHits)
	raw.Action = string(action)

	if conf, ok := explicitConfidence(text); ok {
		raw.Confidence = &conf
	} else if action != decision.ActionUnknown {
		conf := densityConfidence(hits)
		raw.Confidence = &conf
	}

	if req.Kind == decision.KindDiscussion {
		raw.MessageType = string(detectMessageType(text))
		raw.Sentiment = string(detectSentiment(buyScore, sellScore))
		raw.MentionedAgents = findMentions(text)
		raw.KeyPoints = findKeyPoints(text)
	}

	rec := decision.Validate(req.Kind, raw)
	rec.Source = decision.SourceFallback

	f.logger.Debug("lexical extraction",
		zap.String("kind", string(req.Kind)),
		zap.String("agent_id", req.AgentID),
		zap.String("action", string(rec.Action)),
		zap.String("symbol", rec.Symbol),
		zap.Int("confidence", rec.Confidence))

	return rec
}

func scoreSignals(signals []scoredPattern, text string) (score, hits int) {
	for _, s := range signals {
		n := len(s.re.FindAllStringIndex(text, -1))
		score += n * s.weight
		hits += n
	}
	return score, hits
}

// pickAction chooses the highest-scoring direction. Conflicting buy and
// sell evidence of equal strength reads as no directional signal.
func pickAction(buy, sell, hold, buyHits, sellHits, holdHits int) (decision.Action, int) {
	switch {
	case sell > buy && sell > hold:
		return decision.ActionSell, sellHits
	case buy > sell && buy > hold:
		return decision.ActionBuy, buyHits
	case hold > 0 && hold >= buy && hold >= sell:
		return decision.ActionHold, holdHits
	default:
		return decision.ActionUnknown, 0
	}
}

func explicitConfidence(text string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// densityConfidence maps keyword hit counts into a conservative band,
// always below what a confident semantic parse would report.
func densityConfidence(hits int) float64 {
	if hits > 4 {
		hits = 4
	}
	return float64(35 + 10*hits)
}

func findTicker(text string) string {
	for _, cand := range tickerPattern.FindAllString(text, -1) {
		if _, stop := tickerStopwords[cand]; stop {
			continue
		}
		return cand
	}
	return ""
}

func detectMessageType(text string) decision.MessageType {
	switch {
	case compromisePattern.MatchString(text):
		return decision.MessageCompromise
	case agreementPattern.MatchString(text):
		return decision.MessageAgreement
	case rebuttalPattern.MatchString(text):
		return decision.MessageRebuttal
	case strings.Contains(text, "?") || questionPattern.MatchString(text):
		return decision.MessageQuestion
	default:
		return decision.MessagePosition
	}
}

func detectSentiment(buyScore, sellScore int) decision.Sentiment {
	switch {
	case buyScore > sellScore:
		return decision.SentimentBullish
	case sellScore > buyScore:
		return decision.SentimentBearish
	default:
		return decision.SentimentNeutral
	}
}

func findMentions(text string) []string {
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// findKeyPoints keeps up to three sentences carrying directional or
// confidence evidence.
func findKeyPoints(text string) []string {
	var out []string
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if !salient(sentence) {
			continue
		}
		if r := []rune(sentence); len(r) > 200 {
			sentence = string(r[:200])
		}
		out = append(out, sentence)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func salient(sentence string) bool {
	if percentPattern.MatchString(sentence) {
		return true
	}
	for _, group := range [][]scoredPattern{buySignals, sellSignals, holdSignals} {
		for _, s := range group {
			if s.re.MatchString(sentence) {
				return true
			}
		}
	}
	return false
}
