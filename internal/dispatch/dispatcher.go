package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"relay/internal/classify"
	"relay/internal/domain"
	"relay/internal/memory"
	"relay/internal/registry"
)

// State of one dispatch cycle. A cycle always ends back at Idle; nothing a
// handler does can take the dispatcher down.
type State string

const (
	StateIdle         State = "idle"
	StateClassifying  State = "classifying"
	StateResolved     State = "resolved"
	StateAmbiguous    State = "ambiguous"
	StateUnrecognized State = "unrecognized"
	StateInvoking     State = "invoking"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

type Config struct {
	AmbiguityMargin   float64
	InvocationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		AmbiguityMargin:   0.1,
		InvocationTimeout: 30 * time.Second,
	}
}

// Dispatcher runs the classify -> resolve -> invoke -> record cycle. Cycles
// for one session are serialized on the session lock; independent sessions
// proceed in parallel and share only the read-only registry.
type Dispatcher struct {
	cfg        Config
	registry   *registry.Registry
	classifier *classify.Classifier
	sessions   *memory.Service
	logger     *slog.Logger
}

func New(cfg Config, reg *registry.Registry, classifier *classify.Classifier, sessions *memory.Service, logger *slog.Logger) *Dispatcher {
	if cfg.AmbiguityMargin <= 0 {
		cfg.AmbiguityMargin = DefaultConfig().AmbiguityMargin
	}
	if cfg.InvocationTimeout <= 0 {
		cfg.InvocationTimeout = DefaultConfig().InvocationTimeout
	}
	return &Dispatcher{
		cfg:        cfg,
		registry:   reg,
		classifier: classifier,
		sessions:   sessions,
		logger:     logger,
	}
}

// Dispatch processes one input event through a full cycle and returns the
// response event. It blocks while a previous cycle for the same session is
// still in flight, so responses keep input order within a session.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.InputEvent) domain.OutputEvent {
	sess := d.sessions.Session(ev.SessionID)
	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	cycleStart := time.Now()
	d.sessions.Append(ctx, sess, domain.RoleUser, ev.Text, nil)
	snapshot := sess.Context.RecentHistory(0)

	state := StateClassifying
	candidates := d.classifier.Classify(ctx, ev.Text, snapshot)

	switch {
	case len(candidates) == 0:
		state = StateUnrecognized
	case len(candidates) > 1 && candidates[0].Confidence-candidates[1].Confidence < d.cfg.AmbiguityMargin:
		state = StateAmbiguous
	default:
		state = StateResolved
	}

	var out domain.OutputEvent
	switch state {
	case StateUnrecognized:
		d.sessions.Append(ctx, sess, domain.RoleSystem, "no capability matched: "+ev.Text, nil)
		out = domain.OutputEvent{
			SessionID: ev.SessionID,
			Status:    domain.StatusUnrecognized,
			Reply:     "I don't have a capability matching that request.",
		}
	case StateAmbiguous:
		names := ambiguousCandidates(candidates, d.cfg.AmbiguityMargin)
		out = domain.OutputEvent{
			SessionID:  ev.SessionID,
			Status:     domain.StatusAmbiguous,
			Candidates: names,
			Reply:      "That could mean more than one thing, please clarify.",
		}
	case StateResolved:
		out = d.invoke(ctx, sess, ev, candidates[0], snapshot)
	}

	out.Timestamp = time.Now().UTC()
	d.logger.Info("dispatch cycle",
		"session_id", ev.SessionID,
		"status", out.Status,
		"capability", out.Capability,
		"candidates", len(candidates),
		"total_ms", time.Since(cycleStart).Milliseconds(),
	)
	return out
}

// invoke runs the chosen handler under the invocation timeout and records
// the outcome. Handler errors never escape this method.
func (d *Dispatcher) invoke(ctx context.Context, sess *memory.Session, ev domain.InputEvent, chosen domain.IntentCandidate, snapshot []domain.ContextEntry) domain.OutputEvent {
	cap, err := d.registry.Lookup(chosen.Capability)
	if err == nil && cap.Handler == nil {
		err = errors.New("capability has no handler bound")
	}
	if err != nil {
		// Registry misconfiguration kills this cycle only.
		result := domain.DispatchResult{
			Capability: chosen.Capability,
			Success:    false,
			ErrorKind:  domain.ErrExecution,
			ErrorMsg:   err.Error(),
		}
		d.sessions.AppendDispatch(ctx, sess, result)
		return failedOutput(ev.SessionID, result)
	}

	invCtx, cancel := context.WithTimeout(ctx, d.cfg.InvocationTimeout)
	defer cancel()

	type invocation struct {
		output string
		err    error
	}
	done := make(chan invocation, 1)

	invokeStart := time.Now()
	go func() {
		out, err := cap.Handler.Invoke(invCtx, chosen.Parameters, snapshot)
		done <- invocation{output: out, err: err}
	}()

	var output string
	var invokeErr error
	select {
	case inv := <-done:
		output, invokeErr = inv.output, inv.err
	case <-invCtx.Done():
		// The handler is abandoned; the cycle must resolve even if it
		// never honors cancellation.
		invokeErr = invCtx.Err()
	}
	duration := time.Since(invokeStart)

	if invokeErr != nil {
		if errors.Is(invCtx.Err(), context.DeadlineExceeded) {
			invokeErr = context.DeadlineExceeded
		}
		kind, msg := domain.ClassifyError(invokeErr)
		result := domain.DispatchResult{
			Capability: cap.Name,
			Success:    false,
			ErrorKind:  kind,
			ErrorMsg:   msg,
			Duration:   duration,
		}
		d.sessions.AppendDispatch(ctx, sess, result)
		d.logger.Warn("capability invocation failed",
			"session_id", ev.SessionID, "capability", cap.Name, "kind", kind, "error", msg)
		return failedOutput(ev.SessionID, result)
	}

	result := domain.DispatchResult{
		Capability: cap.Name,
		Success:    true,
		Output:     output,
		Duration:   duration,
	}
	d.sessions.AppendDispatch(ctx, sess, result)
	if output != "" {
		d.sessions.Append(ctx, sess, domain.RoleAgent, output, nil)
	}
	return domain.OutputEvent{
		SessionID:  ev.SessionID,
		Status:     domain.StatusCompleted,
		Capability: cap.Name,
		Reply:      output,
	}
}

// ambiguousCandidates lists every capability within the margin of the top
// score, in ranked order.
func ambiguousCandidates(candidates []domain.IntentCandidate, margin float64) []string {
	names := make([]string, 0, len(candidates))
	top := candidates[0].Confidence
	for _, c := range candidates {
		if top-c.Confidence >= margin {
			break
		}
		names = append(names, c.Capability)
	}
	return names
}

func failedOutput(sessionID string, result domain.DispatchResult) domain.OutputEvent {
	reply := result.ErrorMsg
	if reply == "" {
		reply = "capability invocation failed"
	}
	return domain.OutputEvent{
		SessionID:  sessionID,
		Status:     domain.StatusFailed,
		Capability: result.Capability,
		ErrorKind:  result.ErrorKind,
		Reply:      reply,
	}
}
