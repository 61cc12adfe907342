package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/internal/classifier"
	"github.com/JaimeStill/intake/internal/poller"
	"github.com/JaimeStill/intake/internal/transfer"
	"github.com/JaimeStill/intake/internal/trigger"
)

// Classifier supplies a declared type when the caller did not.
type Classifier interface {
	DeclaredTypeOrDefault(ctx context.Context, filename string, data []byte) (classifier.DocumentType, *classifier.Result)
}

// Transferer writes file bytes to a slot destination.
type Transferer interface {
	Execute(ctx context.Context, dest backend.Destination, file transfer.File) bool
}

// Poller waits for a terminal extraction outcome.
type Poller interface {
	Poll(ctx context.Context, documentID string, opts poller.Options) (*poller.Result, error)
	Clock() clockwork.Clock
}

// Trigger creates the downstream evaluation at most once per document.
type Trigger interface {
	Fire(ctx context.Context, documentID, ownerEntityID string) (*trigger.Outcome, error)
}

// Dependencies wires a Runner. Classifier and Trigger are optional.
type Dependencies struct {
	Classifier Classifier
	Initiator  *Initiator
	Transfer   Transferer
	Confirmer  *Confirmer
	Poller     Poller
	Trigger    Trigger
	Polling    poller.Options
	Observers  []Observer
	Logger     *slog.Logger
}

// Runner drives sessions through classify, slot, transfer, confirm, poll and trigger.
type Runner struct {
	classifier Classifier
	initiator  *Initiator
	transfer   Transferer
	confirmer  *Confirmer
	poller     Poller
	trigger    Trigger
	polling    poller.Options
	observers  []Observer
	logger     *slog.Logger
}

// NewRunner creates a Runner from its dependencies.
func NewRunner(deps Dependencies) *Runner {
	return &Runner{
		classifier: deps.Classifier,
		initiator:  deps.Initiator,
		transfer:   deps.Transfer,
		confirmer:  deps.Confirmer,
		poller:     deps.Poller,
		trigger:    deps.Trigger,
		polling:    deps.Polling,
		observers:  deps.Observers,
		logger:     deps.Logger.With("system", "runner"),
	}
}

// Run drives an idle session to a terminal status. It returns nil once a
// terminal status is reached, whichever it is. When ctx is canceled the
// session is abandoned where it stands, Run returns the context error, and
// the trigger is never fired for it.
func (r *Runner) Run(ctx context.Context, s *Session, file File) error {
	if s.Status() != StatusIdle {
		return ErrSessionStarted
	}
	if s.input.OwnerEntityID == "" {
		return ErrOwnerRequired
	}

	logger := r.logger.With("session_id", s.ID(), "filename", file.Name)

	declared := s.input.DeclaredType
	if declared == "" {
		declared = r.classify(ctx, s, file, logger)
	}
	s.update(func(st *Snapshot) { st.DeclaredType = declared })

	if ctx.Err() != nil {
		return r.abandon(ctx, s, logger)
	}
	if err := r.advance(ctx, s, StatusRequestingSlot, nil); err != nil {
		return err
	}

	slot, err := r.initiator.Initiate(ctx, SlotInput{
		File:          file.File,
		DeclaredType:  declared,
		OwnerEntityID: s.input.OwnerEntityID,
		IdentityHints: s.input.IdentityHints,
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.abandon(ctx, s, logger)
		}
		logger.Error("slot request failed", "error", err)
		return r.advance(ctx, s, StatusTransferFailed, func(st *Snapshot) {
			st.Error = &Error{Code: CodeSlotRequestFailed, Message: err.Error()}
		})
	}

	logger = logger.With("document_id", slot.DocumentID)
	if err := r.advance(ctx, s, StatusTransferring, func(st *Snapshot) {
		st.DocumentID = slot.DocumentID
	}); err != nil {
		return err
	}

	if !r.transfer.Execute(ctx, slot.Destination, file.File) {
		if ctx.Err() != nil {
			return r.abandon(ctx, s, logger)
		}
		return r.advance(ctx, s, StatusTransferFailed, func(st *Snapshot) {
			st.Error = &Error{Code: CodeTransferFailed, Message: "transfer to " + slot.Destination.Address + " failed"}
		})
	}

	if err := r.advance(ctx, s, StatusConfirming, nil); err != nil {
		return err
	}

	if !r.confirmer.Confirm(ctx, slot.DocumentID) {
		if ctx.Err() != nil {
			return r.abandon(ctx, s, logger)
		}
		s.addSoftError(CodeConfirmFailed, "upload confirmation not acknowledged")
	}

	return r.poll(ctx, s, logger)
}

// Resume polls a document confirmed outside this process in a new session.
func (r *Runner) Resume(ctx context.Context, documentID string, input Input) (*Session, error) {
	if documentID == "" {
		return nil, ErrDocumentRequired
	}
	if input.OwnerEntityID == "" {
		return nil, ErrOwnerRequired
	}

	s := newSession("", "", input)
	logger := r.logger.With("session_id", s.ID(), "document_id", documentID, "resumed", true)
	return s, r.pollFrom(ctx, s, documentID, logger)
}

// Repoll restarts polling for a timed-out session. The terminal session is
// left untouched; a new session with a fresh deadline is returned.
func (r *Runner) Repoll(ctx context.Context, prev *Session) (*Session, error) {
	snap := prev.Snapshot()
	if snap.Status != StatusTimedOut {
		return nil, ErrNotRepollable
	}

	s := newSession(snap.FileKey, snap.Filename, prev.input)
	s.update(func(st *Snapshot) { st.DeclaredType = snap.DeclaredType })

	logger := r.logger.With(
		"session_id", s.ID(),
		"document_id", snap.DocumentID,
		"repoll_of", snap.SessionID,
	)
	return s, r.pollFrom(ctx, s, snap.DocumentID, logger)
}

func (r *Runner) pollFrom(ctx context.Context, s *Session, documentID string, logger *slog.Logger) error {
	return r.pollWith(ctx, s, logger, func(st *Snapshot) { st.DocumentID = documentID })
}

func (r *Runner) poll(ctx context.Context, s *Session, logger *slog.Logger) error {
	return r.pollWith(ctx, s, logger, nil)
}

func (r *Runner) pollWith(ctx context.Context, s *Session, logger *slog.Logger, seed func(*Snapshot)) error {
	opts := r.polling
	opts.Start = r.poller.Clock().Now()
	deadline := opts.Start.Add(effectiveDeadline(opts))

	if err := r.advance(ctx, s, StatusPolling, func(st *Snapshot) {
		if seed != nil {
			seed(st)
		}
		st.StartedAt = opts.Start
		st.DeadlineAt = deadline
	}); err != nil {
		return err
	}

	opts.OnTick = func(t poller.Tick) {
		s.update(func(st *Snapshot) {
			st.Attempts = t.Attempt
			if t.Partial != nil {
				st.Partial = t.Partial
			}
		})
		r.emit(ctx, Event{Kind: EventTick}, s)
	}

	documentID := s.DocumentID()
	result, err := r.poller.Poll(ctx, documentID, opts)
	if err != nil {
		if ctx.Err() != nil {
			return r.abandon(ctx, s, logger)
		}
		return err
	}

	switch result.Outcome {
	case poller.Extracted:
		err = r.advance(ctx, s, StatusExtracted, func(st *Snapshot) {
			st.Attempts = result.Attempts
			st.Result = result.Variables
		})
	case poller.ExtractFailed:
		err = r.advance(ctx, s, StatusExtractFailed, func(st *Snapshot) {
			st.Attempts = result.Attempts
			st.Error = &Error{Code: result.Error.Code, Message: result.Error.Message}
		})
	default:
		err = r.advance(ctx, s, StatusTimedOut, func(st *Snapshot) {
			st.Attempts = result.Attempts
		})
	}
	if err != nil {
		return err
	}

	logger.Info("session finished", "status", s.Status(), "attempts", result.Attempts, "elapsed", result.Elapsed)

	if result.Outcome == poller.Extracted {
		r.fire(ctx, s, logger)
	}
	return nil
}

func (r *Runner) fire(ctx context.Context, s *Session, logger *slog.Logger) {
	if r.trigger == nil || ctx.Err() != nil {
		return
	}

	snap := s.Snapshot()
	out, err := r.trigger.Fire(ctx, snap.DocumentID, snap.OwnerEntityID)
	switch {
	case err == nil:
		s.update(func(st *Snapshot) { st.EvaluationID = out.EvaluationID })
		r.emit(ctx, Event{Kind: EventTrigger, Trigger: TriggerCreated}, s)
	case errors.Is(err, trigger.ErrAlreadyTriggered):
		logger.Debug("evaluation already triggered for document")
		r.emit(ctx, Event{Kind: EventTrigger, Trigger: TriggerSuppressed}, s)
	default:
		logger.Warn("evaluation trigger failed", "error", err)
		s.addSoftError(CodeTriggerFailed, err.Error())
		r.emit(ctx, Event{Kind: EventTrigger, Trigger: TriggerFailed}, s)
	}
}

func (r *Runner) classify(ctx context.Context, s *Session, file File, logger *slog.Logger) classifier.DocumentType {
	if r.classifier == nil {
		return classifier.TypeGeneric
	}

	declared, result := r.classifier.DeclaredTypeOrDefault(ctx, file.Name, file.Data)
	if result == nil {
		s.addSoftError(CodeClassificationUnavailable, "classification unavailable, declared as generic")
	} else {
		logger.Debug("classified", "declared_type", declared, "method", result.Method)
	}
	return declared
}

func (r *Runner) advance(ctx context.Context, s *Session, next Status, mutate func(*Snapshot)) error {
	from := s.Status()
	if err := s.transition(next, mutate); err != nil {
		r.logger.Error("session transition rejected", "session_id", s.ID(), "error", err)
		return err
	}
	r.emit(ctx, Event{Kind: EventTransition, From: from}, s)
	return nil
}

func (r *Runner) abandon(ctx context.Context, s *Session, logger *slog.Logger) error {
	logger.Info("session abandoned", "status", s.Status(), "reason", context.Cause(ctx))
	r.emit(ctx, Event{Kind: EventAbandon}, s)
	return ctx.Err()
}

func (r *Runner) emit(ctx context.Context, ev Event, s *Session) {
	if len(r.observers) == 0 {
		return
	}

	ev.Snapshot = s.Snapshot()
	ev.At = r.poller.Clock().Now()
	for _, o := range r.observers {
		o.Observe(ctx, ev)
	}
}

func effectiveDeadline(opts poller.Options) time.Duration {
	if opts.Deadline > 0 {
		return opts.Deadline
	}
	return poller.DefaultDeadline
}
