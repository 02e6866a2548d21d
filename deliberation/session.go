// Package deliberation drives multi-agent trading decisions: bounded
// discussion rounds, a weighted vote tally with a risk-averse tie-break,
// and mediator arbitration when consensus falls short. Sessions are
// event-driven state machines; deadlines live with the caller, which
// closes rounds and voting explicitly.
package deliberation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/tradecrew/decision"
	"github.com/BaSui01/tradecrew/extract"
	"github.com/BaSui01/tradecrew/internal/metrics"
)

// Participant is one agent taking part in a session. Weight is the
// agent's vote weight; non-positive values fall back to the configured
// default at vote time.
type Participant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Message is one accepted discussion contribution.
type Message struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Round     int             `json:"round"`
	Seq       int             `json:"seq"`
	Text      string          `json:"text"`
	Record    decision.Record `json:"record"`
	At        time.Time       `json:"at"`
}

// Mediator arbitrates a deadlocked session. It receives the full session
// snapshot and returns a free-form ruling, which the session interprets
// through the extraction pipeline.
type Mediator interface {
	Arbitrate(ctx context.Context, snap Snapshot) (string, error)
}

// Config holds the deliberation policy knobs.
type Config struct {
	// MaxRounds bounds the discussion phase.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds" env:"MAX_ROUNDS"`
	// ConsensusThreshold is the minimum consensus score (0-100) that
	// completes a session without mediation.
	ConsensusThreshold float64 `json:"consensus_threshold" yaml:"consensus_threshold" env:"CONSENSUS_THRESHOLD"`
	// DefaultWeight replaces non-positive participant weights.
	DefaultWeight float64 `json:"default_weight" yaml:"default_weight" env:"DEFAULT_WEIGHT"`
	// EnableEarlyConvergence skips remaining rounds once every participant
	// states the same action in a completed round.
	EnableEarlyConvergence bool `json:"enable_early_convergence" yaml:"enable_early_convergence" env:"ENABLE_EARLY_CONVERGENCE"`
	// MediationTimeout bounds one mediator call.
	MediationTimeout time.Duration `json:"mediation_timeout" yaml:"mediation_timeout" env:"MEDIATION_TIMEOUT"`
}

// DefaultConfig returns the stock deliberation policy.
func DefaultConfig() Config {
	return Config{
		MaxRounds:              3,
		ConsensusThreshold:     66,
		DefaultWeight:          1.0,
		EnableEarlyConvergence: true,
		MediationTimeout:       30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRounds <= 0 {
		c.MaxRounds = def.MaxRounds
	}
	if c.ConsensusThreshold <= 0 || c.ConsensusThreshold > 100 {
		c.ConsensusThreshold = def.ConsensusThreshold
	}
	if c.DefaultWeight <= 0 {
		c.DefaultWeight = def.DefaultWeight
	}
	if c.MediationTimeout <= 0 {
		c.MediationTimeout = def.MediationTimeout
	}
	return c
}

var (
	// ErrSessionTerminal rejects any mutation of a COMPLETE or FAILED
	// session.
	ErrSessionTerminal = errors.New("session is terminal")
	// ErrNotDeliberating rejects discussion messages outside the
	// deliberation phase.
	ErrNotDeliberating = errors.New("session is not in the deliberation phase")
	// ErrNotVoting rejects votes outside the voting phase.
	ErrNotVoting = errors.New("session is not in the voting phase")
	// ErrAlreadyVoted keeps the first vote per participant final.
	ErrAlreadyVoted = errors.New("participant has already voted")
	// ErrUnknownParticipant rejects input from agents outside the roster.
	ErrUnknownParticipant = errors.New("agent is not a session participant")
)

// Session is one group decision-making episode. All mutations for the
// same session are serialized; extraction runs outside the session lock
// so independent agents' texts are interpreted concurrently.
type Session struct {
	id         string
	symbol     string
	assetClass string
	cfg        Config

	extractor extract.Extractor
	mediator  Mediator
	events    *Sink
	metrics   *metrics.Collector
	logger    *zap.Logger
	tracer    trace.Tracer

	mu              sync.Mutex
	status          Status
	participants    []Participant
	round           int
	messages        []Message
	votes           map[string]Vote
	consensus       float64
	tally           *Tally
	final           *Decision
	mediatorInvoked bool
	failReason      string
	seq             int
	startedAt       time.Time
	endedAt         time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Symbol returns the session's target symbol (may be empty for
// signal-driven sessions).
func (s *Session) Symbol() string { return s.symbol }

// Status returns the current lifecycle phase.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Round returns the current discussion round.
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Session) participantLocked(agentID string) (Participant, bool) {
	for _, p := range s.participants {
		if p.ID == agentID {
			return p, true
		}
	}
	return Participant{}, false
}

func (s *Session) phaseErrLocked(want Status) error {
	if s.status.Terminal() {
		return ErrSessionTerminal
	}
	if s.status == want {
		return nil
	}
	if want == StatusDeliberating {
		return ErrNotDeliberating
	}
	return ErrNotVoting
}

// SubmitMessage interprets one discussion contribution and merges it into
// the round history. When the submission completes the roster for the
// current round the session advances automatically: to the next round, or
// to voting after the final round or on early convergence.
func (s *Session) SubmitMessage(ctx context.Context, agentID, text string) (Message, error) {
	s.mu.Lock()
	if err := s.phaseErrLocked(StatusDeliberating); err != nil {
		s.mu.Unlock()
		return Message{}, err
	}
	p, ok := s.participantLocked(agentID)
	if !ok {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, agentID)
	}
	s.mu.Unlock()

	// Extraction runs unlocked so concurrent participants do not serialize
	// on each other's model calls.
	rec := s.extractor.Extract(ctx, extract.Request{
		Kind:      decision.KindDiscussion,
		AgentID:   p.ID,
		AgentName: p.Name,
		Text:      text,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// The phase may have moved on while extracting; late results are
	// discarded.
	if err := s.phaseErrLocked(StatusDeliberating); err != nil {
		return Message{}, err
	}

	s.seq++
	msg := Message{
		ID:        fmt.Sprintf("%s-m%d", s.id, s.seq),
		AgentID:   p.ID,
		AgentName: p.Name,
		Round:     s.round,
		Seq:       s.seq,
		Text:      text,
		Record:    rec,
		At:        time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)

	s.events.Emit(EventMessageAdded, s.id, map[string]any{
		"agent":        p.Name,
		"round":        s.round,
		"message_type": string(rec.MessageType),
		"action":       string(rec.Action),
	})
	s.logger.Debug("message accepted",
		zap.String("agent", p.Name),
		zap.Int("round", s.round),
		zap.String("message_type", string(rec.MessageType)))

	s.maybeAdvanceLocked()
	return msg, nil
}

// roundFullLocked reports whether every participant has contributed to the
// current round.
func (s *Session) roundFullLocked() bool {
	spoke := make(map[string]bool, len(s.participants))
	for _, m := range s.messages {
		if m.Round == s.round {
			spoke[m.AgentID] = true
		}
	}
	return len(spoke) == len(s.participants)
}

// convergedLocked reports whether every participant's latest message in
// the current round states the same action.
func (s *Session) convergedLocked() bool {
	latest := make(map[string]decision.Record, len(s.participants))
	for _, m := range s.messages {
		if m.Round == s.round {
			latest[m.AgentID] = m.Record
		}
	}
	if len(latest) != len(s.participants) {
		return false
	}
	var want decision.Action
	for _, rec := range latest {
		if !hasStance(rec) {
			return false
		}
		if want == "" {
			want = rec.Action
			continue
		}
		if rec.Action != want {
			return false
		}
	}
	return want != ""
}

func (s *Session) maybeAdvanceLocked() {
	if !s.roundFullLocked() {
		return
	}
	if s.cfg.EnableEarlyConvergence && s.convergedLocked() {
		s.startVotingLocked(true)
		return
	}
	if s.round >= s.cfg.MaxRounds {
		s.startVotingLocked(false)
		return
	}
	s.round++
	s.events.Emit(EventRoundAdvanced, s.id, map[string]any{"round": s.round})
	s.logger.Info("round advanced", zap.Int("round", s.round))
}

// CloseRound force-advances the discussion, typically on an external
// round deadline. After the final round it opens voting.
func (s *Session) CloseRound() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.phaseErrLocked(StatusDeliberating); err != nil {
		return err
	}
	if s.round >= s.cfg.MaxRounds {
		s.startVotingLocked(false)
		return nil
	}
	s.round++
	s.events.Emit(EventRoundAdvanced, s.id, map[string]any{"round": s.round, "forced": true})
	s.logger.Info("round closed by deadline", zap.Int("round", s.round))
	return nil
}

func (s *Session) startVotingLocked(earlyConvergence bool) {
	if err := s.transitionLocked(StatusVoting); err != nil {
		return
	}
	s.events.Emit(EventVotingStarted, s.id, map[string]any{
		"round":             s.round,
		"early_convergence": earlyConvergence,
	})
	s.logger.Info("voting started",
		zap.Int("rounds_held", s.round),
		zap.Bool("early_convergence", earlyConvergence))
}

// SubmitVote interprets one participant's vote and records it. The first
// vote per participant is final. The vote completing the roster resolves
// the session.
func (s *Session) SubmitVote(ctx context.Context, agentID, text string) error {
	s.mu.Lock()
	if err := s.phaseErrLocked(StatusVoting); err != nil {
		s.mu.Unlock()
		return err
	}
	p, ok := s.participantLocked(agentID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, agentID)
	}
	if _, dup := s.votes[agentID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, agentID)
	}
	s.mu.Unlock()

	rec := s.extractor.Extract(ctx, extract.Request{
		Kind:      decision.KindVote,
		AgentID:   p.ID,
		AgentName: p.Name,
		Text:      text,
	})

	s.mu.Lock()
	if err := s.phaseErrLocked(StatusVoting); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, dup := s.votes[agentID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, agentID)
	}

	weight := p.Weight
	if weight <= 0 {
		weight = s.cfg.DefaultWeight
	}
	s.seq++
	s.votes[agentID] = Vote{
		AgentID:    p.ID,
		AgentName:  p.Name,
		Action:     rec.Action,
		Symbol:     rec.Symbol,
		Confidence: rec.Confidence,
		Reasoning:  rec.Reasoning,
		Weight:     weight,
		Seq:        s.seq,
	}

	s.events.Emit(EventVoteRecorded, s.id, map[string]any{
		"agent":  p.Name,
		"action": string(rec.Action),
		"weight": weight,
	})
	s.logger.Info("vote recorded",
		zap.String("agent", p.Name),
		zap.String("action", string(rec.Action)),
		zap.Float64("weight", weight))

	complete := len(s.votes) == len(s.participants)
	s.mu.Unlock()

	if complete {
		s.resolve(ctx)
	}
	return nil
}

// CloseVoting resolves the session on an external voting deadline,
// counting participants who never voted as abstentions.
func (s *Session) CloseVoting(ctx context.Context) error {
	s.mu.Lock()
	if err := s.phaseErrLocked(StatusVoting); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, p := range s.participants {
		if _, ok := s.votes[p.ID]; ok {
			continue
		}
		s.seq++
		s.votes[p.ID] = Vote{
			AgentID:   p.ID,
			AgentName: p.Name,
			Abstained: true,
			Seq:       s.seq,
		}
		s.logger.Info("participant abstained", zap.String("agent", p.Name))
	}
	s.mu.Unlock()

	s.resolve(ctx)
	return nil
}

// resolve tallies the vote table and drives the session to a terminal
// status, invoking the mediator when consensus falls short. The session
// lock is released around the mediator call.
func (s *Session) resolve(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "resolve",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	s.mu.Lock()
	if s.status != StatusVoting {
		s.mu.Unlock()
		return
	}

	votes := s.voteSliceLocked()
	t := Resolve(votes)
	s.tally = &t
	s.consensus = t.Score
	span.SetAttributes(
		attribute.Float64("session.consensus", t.Score),
		attribute.Int("session.votes", t.Votes))

	if t.Votes == 0 {
		s.failLocked("no votes cast before the deadline")
		s.mu.Unlock()
		return
	}

	if t.Score >= s.cfg.ConsensusThreshold {
		d := synthesize(t, votes, s.symbol)
		s.completeLocked(d)
		s.mu.Unlock()
		return
	}

	if err := s.transitionLocked(StatusMediating); err != nil {
		s.mu.Unlock()
		return
	}
	s.mediatorInvoked = true
	span.SetAttributes(attribute.Bool("session.mediated", true))
	s.events.Emit(EventMediationStarted, s.id, map[string]any{
		"score":     t.Score,
		"threshold": s.cfg.ConsensusThreshold,
	})
	s.logger.Info("consensus below threshold, invoking mediator",
		zap.Float64("score", t.Score),
		zap.Float64("threshold", s.cfg.ConsensusThreshold))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	d := s.arbitrate(ctx, snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Abort may have raced the mediator; terminal state wins.
	if s.status != StatusMediating {
		return
	}
	s.completeLocked(d)
}

// arbitrate obtains the mediator's ruling and interprets it. Every
// failure path yields a defensible HOLD so the session always terminates.
func (s *Session) arbitrate(ctx context.Context, snap Snapshot) Decision {
	if s.mediator == nil {
		return Decision{
			Action:    decision.ActionHold,
			Reasoning: "No mediator configured; defaulting to HOLD.",
			Mediated:  true,
		}
	}

	mctx, cancel := context.WithTimeout(ctx, s.cfg.MediationTimeout)
	defer cancel()

	ruling, err := s.mediator.Arbitrate(mctx, snap)
	if err != nil || strings.TrimSpace(ruling) == "" {
		s.logger.Warn("mediation failed, defaulting to HOLD", zap.Error(err))
		return Decision{
			Action:    decision.ActionHold,
			Reasoning: "Mediation failed; defaulting to HOLD.",
			Mediated:  true,
		}
	}

	rec := s.extractor.Extract(mctx, extract.Request{
		Kind:      decision.KindMediation,
		AgentID:   "mediator",
		AgentName: "Mediator",
		Text:      ruling,
	})
	return Decision{
		Action:     rec.Action,
		Symbol:     rec.Symbol,
		Confidence: rec.Confidence,
		Reasoning:  ruling,
		Mediated:   true,
	}
}

// Abort fails the session from any non-terminal status.
func (s *Session) Abort(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return ErrSessionTerminal
	}
	s.failLocked(reason)
	return nil
}

func (s *Session) transitionLocked(to Status) error {
	from := s.status
	if !CanTransition(from, to) {
		s.logger.Error("illegal status transition attempted",
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return ErrInvalidTransition{From: from, To: to}
	}
	s.status = to
	s.metrics.RecordTransition(string(from), string(to))
	s.logger.Info("status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

func (s *Session) completeLocked(d Decision) {
	if err := s.transitionLocked(StatusComplete); err != nil {
		return
	}
	s.final = &d
	s.endedAt = time.Now().UTC()
	s.mediatorInvoked = s.mediatorInvoked || d.Mediated

	s.events.Emit(EventSessionCompleted, s.id, map[string]any{
		"action":   string(d.Action),
		"symbol":   d.Symbol,
		"score":    s.consensus,
		"mediated": d.Mediated,
	})
	s.metrics.SessionEnded(string(StatusComplete), s.endedAt.Sub(s.startedAt), s.round, s.consensus, d.Mediated)
	s.logger.Info("session complete",
		zap.String("action", string(d.Action)),
		zap.String("symbol", d.Symbol),
		zap.Float64("consensus", s.consensus),
		zap.Bool("mediated", d.Mediated))
}

func (s *Session) failLocked(reason string) {
	if err := s.transitionLocked(StatusFailed); err != nil {
		return
	}
	s.failReason = reason
	s.endedAt = time.Now().UTC()

	s.events.Emit(EventSessionFailed, s.id, map[string]any{"reason": reason})
	s.metrics.SessionEnded(string(StatusFailed), s.endedAt.Sub(s.startedAt), s.round, s.consensus, false)
	s.logger.Warn("session failed", zap.String("reason", reason))
}

func (s *Session) voteSliceLocked() []Vote {
	votes := make([]Vote, 0, len(s.votes))
	for _, v := range s.votes {
		votes = append(votes, v)
	}
	// Map order is random; restore submission order.
	sort.Slice(votes, func(i, j int) bool { return votes[i].Seq < votes[j].Seq })
	return votes
}

// DiscussionContext renders the history for one agent's next prompt.
func (s *Session) DiscussionContext(viewer string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormatDiscussion(s.messages, viewer, s.round)
}

// VoteSummary renders the current vote table.
func (s *Session) VoteSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FormatVoteSummary(s.voteSliceLocked())
}
