package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/decision"
	"github.com/BaSui01/tradecrew/internal/metrics"
	"github.com/BaSui01/tradecrew/llm"
	"github.com/BaSui01/tradecrew/llm/tokenizer"
)

// SemanticConfig configures the semantic extraction facade.
type SemanticConfig struct {
	// Model passed to the provider on every completion.
	Model string
	// Timeout bounds one extraction end to end, including the wait for a
	// concurrency slot.
	Timeout time.Duration
	// Temperature for completions. Extraction wants it low.
	Temperature float64
	// MaxTokens caps the completion length.
	MaxTokens int
}

// DefaultSemanticConfig returns conservative extraction settings.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		Model:       "gpt-4o-mini",
		Timeout:     10 * time.Second,
		Temperature: 0.1,
		MaxTokens:   512,
	}
}

// Semantic is the primary Extractor: cache lookup, one provider attempt
// under the shared limiter, strict JSON parsing, then validation. Any
// failure along the way degrades to the lexical fallback with no retry,
// so the method is total.
type Semantic struct {
	cfg      SemanticConfig
	provider llm.Provider
	limiter  *llm.Limiter
	fallback *Fallback
	cache    *TieredCache
	counter  tokenizer.Tokenizer
	metrics  *metrics.Collector
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewSemantic builds the facade. provider may be nil, in which case every
// call goes straight to the fallback (the subsystem stays fully usable
// without an external service). A nil limiter or cache gets defaults.
func NewSemantic(cfg SemanticConfig, provider llm.Provider, limiter *llm.Limiter, cache *TieredCache, collector *metrics.Collector, logger *zap.Logger) *Semantic {
	def := DefaultSemanticConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = llm.NewLimiter(0, 0, 0)
	}
	if cache == nil {
		cache = NewTieredCache(DefaultTieredConfig(), nil, collector, logger)
	}

	l := logger.With(zap.String("component", "semantic_extractor"))
	if provider != nil {
		l = l.With(zap.String("provider", provider.Name()))
	}

	return &Semantic{
		cfg:      cfg,
		provider: provider,
		limiter:  limiter,
		fallback: NewFallback(logger),
		cache:    cache,
		counter:  tokenizer.ForModel(cfg.Model),
		metrics:  collector,
		logger:   l,
		tracer:   otel.Tracer("tradecrew/extract"),
	}
}

// CacheStats exposes the cache counters for dashboards.
func (s *Semantic) CacheStats() Stats {
	return s.cache.Stats()
}

// Extract interprets one piece of agent text. Identical inputs within the
// cache TTL return the first call's record unchanged, marked FromCache.
func (s *Semantic) Extract(ctx context.Context, req Request) decision.Record {
	ctx, span := s.tracer.Start(ctx, "extract",
		trace.WithAttributes(attribute.String("extract.kind", string(req.Kind))))
	defer span.End()

	key := Key(req.Kind, req.AgentID, req.Text)
	if rec, ok := s.cache.Get(ctx, key); ok {
		rec.FromCache = true
		span.SetAttributes(
			attribute.Bool("extract.cache_hit", true),
			attribute.String("extract.source", string(rec.Source)))
		s.metrics.RecordExtraction(string(req.Kind), string(rec.Source), "cache_hit", 0)
		s.recordTokensSaved(req)
		return rec
	}

	start := time.Now()
	rec := s.interpret(ctx, req)
	s.cache.Set(ctx, key, rec)

	span.SetAttributes(
		attribute.Bool("extract.cache_hit", false),
		attribute.String("extract.source", string(rec.Source)))
	s.metrics.RecordExtraction(string(req.Kind), string(rec.Source), "ok", time.Since(start))
	return rec
}

func (s *Semantic) interpret(ctx context.Context, req Request) decision.Record {
	if s.provider == nil {
		return s.fallback.Extract(ctx, req)
	}

	resp, err := s.complete(ctx, req)
	if err != nil {
		code := llm.Classify(err)
		s.logger.Warn("semantic extraction degraded to fallback",
			zap.String("kind", string(req.Kind)),
			zap.String("agent_id", req.AgentID),
			zap.String("error_code", string(code)),
			zap.Error(err))
		s.metrics.RecordFallback(string(req.Kind), string(code))
		return s.fallback.Extract(ctx, req)
	}

	raw, perr := parsePayload(resp.Content)
	if perr != nil {
		s.logger.Warn("semantic reply unparseable, using fallback",
			zap.String("kind", string(req.Kind)),
			zap.String("agent_id", req.AgentID),
			zap.Error(perr))
		s.metrics.RecordFallback(string(req.Kind), string(llm.ErrBadResponse))
		return s.fallback.Extract(ctx, req)
	}

	s.metrics.RecordTokens(s.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	rec := decision.Validate(req.Kind, raw)
	rec.Source = decision.SourceSemantic
	return rec
}

// complete performs the single provider attempt under the shared limiter
// and the per-call timeout.
func (s *Semantic) complete(ctx context.Context, req Request) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	system, user := BuildPrompt(req.Kind, req.AgentName, req.Text)
	resp, err := s.provider.Complete(ctx, &llm.Request{
		Model: s.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, llm.NewError(llm.ErrBadResponse, "empty completion")
	}
	return resp, nil
}

func (s *Semantic) recordTokensSaved(req Request) {
	if s.metrics == nil || s.counter == nil {
		return
	}
	system, user := BuildPrompt(req.Kind, req.AgentName, req.Text)
	n, err := s.counter.CountMessages([]tokenizer.Message{
		{Role: string(llm.RoleSystem), Content: system},
		{Role: string(llm.RoleUser), Content: user},
	})
	if err != nil {
		return
	}
	s.metrics.RecordTokensSaved(s.cfg.Model, n)
}

// payload mirrors the JSON shape the prompts mandate. Replies occasionally
// use "decision" for the action and "rationale" for the reasoning; both
// aliases are accepted.
type payload struct {
	Action          string          `json:"action"`
	Decision        string          `json:"decision"`
	Symbol          *string         `json:"symbol"`
	Confidence      json.RawMessage `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	Rationale       string          `json:"rationale"`
	MessageType     string          `json:"message_type"`
	Sentiment       string          `json:"sentiment"`
	MentionedAgents []string        `json:"mentioned_agents"`
	KeyPoints       []string        `json:"key_points"`
}

func parsePayload(content string) (decision.RawFields, error) {
	body, err := extractJSON(content)
	if err != nil {
		return decision.RawFields{}, err
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return decision.RawFields{}, fmt.Errorf("decode extraction payload: %w", err)
	}

	raw := decision.RawFields{
		Action:          firstNonEmpty(p.Action, p.Decision),
		Reasoning:       firstNonEmpty(p.Reasoning, p.Rationale),
		MessageType:     p.MessageType,
		Sentiment:       p.Sentiment,
		MentionedAgents: p.MentionedAgents,
		KeyPoints:       p.KeyPoints,
	}
	if p.Symbol != nil && !isNullToken(*p.Symbol) {
		raw.Symbol = *p.Symbol
	}
	raw.Confidence = coerceConfidence(p.Confidence)
	return raw, nil
}

// extractJSON locates the outermost JSON object in a reply, which also
// strips any markdown code fences around it.
func extractJSON(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	return content[start : end+1], nil
}

// coerceConfidence accepts a JSON number or a numeric string, optionally
// with a percent sign. Anything else reads as absent.
func coerceConfidence(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			return &v
		}
	}
	return nil
}

func isNullToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "n/a":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
