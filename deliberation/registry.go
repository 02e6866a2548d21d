package deliberation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/decision"
	"github.com/BaSui01/tradecrew/extract"
	"github.com/BaSui01/tradecrew/internal/metrics"
)

// SessionSpec describes one deliberation to start.
type SessionSpec struct {
	// Symbol is the target under consideration. Optional for
	// signal-driven sessions; when set it must normalize to a valid
	// ticker.
	Symbol string
	// AssetClass tags the symbol's market (stock, crypto, forex).
	AssetClass string
	// Participants is the roster, unique IDs. An empty roster yields a
	// session that fails immediately.
	Participants []Participant
	// Config overrides the registry-wide policy for this session.
	Config *Config
}

// RegistryOptions wires a Registry's collaborators. Zero values are
// usable: a nil Extractor falls back to the lexical extractor, a nil
// Mediator resolves deadlocks to HOLD.
type RegistryOptions struct {
	Config    Config
	Extractor extract.Extractor
	Mediator  Mediator
	Metrics   *metrics.Collector
	Events    *Sink
	Logger    *zap.Logger
}

// Registry owns the live sessions. Sessions for different symbols run
// fully in parallel; the registry only serializes its own index.
type Registry struct {
	cfg       Config
	extractor extract.Extractor
	mediator  Mediator
	metrics   *metrics.Collector
	events    *Sink
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewRegistry builds a session registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.NewFallback(opts.Logger)
	}
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}

	return &Registry{
		cfg:       opts.Config.withDefaults(),
		extractor: opts.Extractor,
		mediator:  opts.Mediator,
		metrics:   opts.Metrics,
		events:    opts.Events,
		logger:    opts.Logger.With(zap.String("component", "session_registry")),
	}
}

// StartSession validates the spec and registers a new session in the
// DELIBERATING phase at round 1. An empty roster still registers: the
// session comes back already FAILED.
func (r *Registry) StartSession(spec SessionSpec) (*Session, error) {
	seen := make(map[string]bool, len(spec.Participants))
	for _, p := range spec.Participants {
		if p.ID == "" {
			return nil, fmt.Errorf("participant %q has an empty id", p.Name)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate participant id %q", p.ID)
		}
		seen[p.ID] = true
	}

	symbol := decision.NormalizeSymbol(spec.Symbol)
	if spec.Symbol != "" && symbol == "" {
		return nil, fmt.Errorf("invalid session symbol %q", spec.Symbol)
	}

	cfg := r.cfg
	if spec.Config != nil {
		cfg = spec.Config.withDefaults()
	}

	id := uuid.NewString()
	sess := &Session{
		id:           id,
		symbol:       symbol,
		assetClass:   spec.AssetClass,
		cfg:          cfg,
		extractor:    r.extractor,
		mediator:     r.mediator,
		events:       r.events,
		metrics:      r.metrics,
		logger:       r.logger.With(zap.String("session_id", id), zap.String("symbol", symbol)),
		tracer:       otel.Tracer("tradecrew/deliberation"),
		status:       StatusDeliberating,
		participants: append([]Participant(nil), spec.Participants...),
		round:        1,
		votes:        make(map[string]Vote),
		startedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
	r.sessions[id] = sess
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.metrics.SessionStarted()
	r.events.Emit(EventSessionStarted, id, map[string]any{
		"symbol":       symbol,
		"asset_class":  spec.AssetClass,
		"participants": len(spec.Participants),
	})
	r.logger.Info("session started",
		zap.String("session_id", id),
		zap.String("symbol", symbol),
		zap.Int("participants", len(spec.Participants)))

	// An empty roster is a structural fault surfaced on the session
	// itself, not as a constructor error.
	if len(spec.Participants) == 0 {
		_ = sess.Abort("session requires at least one participant")
	}

	return sess, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns sessions newest-first. limit caps the result; zero or
// negative means all.
func (r *Registry) List(limit int) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.sessions[r.order[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Active returns the non-terminal sessions, newest-first.
func (r *Registry) Active() []*Session {
	var out []*Session
	for _, s := range r.List(0) {
		if !s.Status().Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Prune drops terminal sessions that ended more than maxAge ago and
// returns how many were removed. Live sessions are never touched.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	kept := r.order[:0]
	for _, id := range r.order {
		s := r.sessions[id]
		if s.endedBefore(cutoff) {
			delete(r.sessions, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	if removed > 0 {
		r.logger.Info("pruned terminal sessions", zap.Int("removed", removed))
	}
	return removed
}

func (s *Session) endedBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Terminal() && !s.endedAt.IsZero() && s.endedAt.Before(cutoff)
}
