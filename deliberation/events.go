package deliberation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/internal/metrics"
)

// EventType classifies a session lifecycle event.
type EventType string

const (
	// EventSessionStarted fires when a session is registered.
	EventSessionStarted EventType = "session_started"
	// EventMessageAdded fires for every accepted discussion message.
	EventMessageAdded EventType = "message_added"
	// EventRoundAdvanced fires when a discussion round closes.
	EventRoundAdvanced EventType = "round_advanced"
	// EventVotingStarted fires on the transition into voting.
	EventVotingStarted EventType = "voting_started"
	// EventVoteRecorded fires for every accepted vote.
	EventVoteRecorded EventType = "vote_recorded"
	// EventMediationStarted fires when voting ends without consensus.
	EventMediationStarted EventType = "mediation_started"
	// EventSessionCompleted fires when a final decision is reached.
	EventSessionCompleted EventType = "session_completed"
	// EventSessionFailed fires when a session ends without a decision.
	EventSessionFailed EventType = "session_failed"
)

// Event is one observation of session progress.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	At        time.Time      `json:"at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

const defaultEventBuffer = 256

// Sink fans session events out to one consumer channel. Emission never
// blocks session progress: when the consumer lags the event is dropped
// and counted.
type Sink struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64

	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewSink creates a sink with the given buffer size (0 or less uses the
// default).
func NewSink(buffer int, collector *metrics.Collector, logger *zap.Logger) *Sink {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		ch:      make(chan Event, buffer),
		metrics: collector,
		logger:  logger.With(zap.String("component", "event_sink")),
	}
}

// Events returns the consumer channel. It is closed by Close.
func (s *Sink) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Emit publishes one event without blocking. Emitting on a closed or nil
// sink is a no-op.
func (s *Sink) Emit(eventType EventType, sessionID string, payload map[string]any) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		At:        time.Now().UTC(),
		Payload:   payload,
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
		s.metrics.RecordEventDropped()
		s.logger.Warn("event buffer full, dropping",
			zap.String("type", string(eventType)),
			zap.String("session_id", sessionID))
	}
}

// Close closes the consumer channel. Further Emit calls are no-ops.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
