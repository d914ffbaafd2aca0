// Package engine is the conversation state machine. It routes each inbound
// user event to a handler for the session's current state, mutates the
// session, and produces the prompt the transport should render next.
//
// Validation outcomes (empty reason, wrong input kind) are ordinary prompts
// that re-ask the same state; the error return carries only unexpected
// failures, which the caller converts into a reset-to-idle.
package engine

import (
	"context"
	"github.com/evgkarn/cafebot/internal/checklist"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	"github.com/evgkarn/cafebot/internal/report"
	"github.com/evgkarn/cafebot/internal/session"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Checklists loads checklist definitions.
type Checklists interface {
	Load(t checklist.Type) (checklist.Definition, error)
}

// EvidenceStore persists uploaded media blobs.
type EvidenceStore interface {
	Save(r io.Reader, kind evidence.Kind) (evidence.Ref, error)
}

// ReportStore persists compiled reports.
type ReportStore interface {
	Save(r report.Report) (string, error)
}

// Dispatcher delivers a compiled report to the recipients.
type Dispatcher interface {
	Deliver(ctx context.Context, text string, refs []evidence.Ref, recipients []int64)
}

// Engine advances sessions through checklists. It is stateless itself; all
// conversation state lives on the session, which is exclusively owned by the
// worker calling HandleEvent.
type Engine struct {
	logger     *slog.Logger
	checklists Checklists
	evidence   EvidenceStore
	reports    ReportStore
	dispatcher Dispatcher
	recipients func() ([]int64, error)
	now        func() time.Time
}

func New(
	logger *slog.Logger,
	checklists Checklists,
	evidenceStore EvidenceStore,
	reports ReportStore,
	dispatcher Dispatcher,
	recipients func() ([]int64, error),
) *Engine {
	return &Engine{
		logger:     logger,
		checklists: checklists,
		evidence:   evidenceStore,
		reports:    reports,
		dispatcher: dispatcher,
		recipients: recipients,
		now:        time.Now,
	}
}

// HandleEvent processes one inbound event for the given session and returns
// the prompt to render. The caller must serialize calls per session.
func (e *Engine) HandleEvent(ctx context.Context, sess *session.Session, ev Event) (Prompt, error) {
	// /start and /cancel discard the current run from any state, keeping
	// identity fields.
	switch ev.Kind {
	case EventStart, EventCancel:
		sess.ResetRun()
		return Prompt{Text: textWelcome, Buttons: menuButtons()}, nil
	}

	switch sess.State {
	case session.StateMainMenu:
		return e.handleMainMenu(ctx, sess, ev)
	case session.StateAwaitOutcome:
		return e.handleOutcome(ctx, sess, ev)
	case session.StateAwaitReason:
		return e.handleReason(ctx, sess, ev)
	case session.StateAwaitEvidence:
		return e.handleEvidence(ctx, sess, ev)
	case session.StateAwaitComments:
		return e.handleComments(ctx, sess, ev)
	}
	return Prompt{}, errors.New("unhandled session state", slog.String("state", string(sess.State)))
}

func (e *Engine) handleMainMenu(ctx context.Context, sess *session.Session, ev Event) (Prompt, error) {
	if ev.Kind != EventButton {
		return Prompt{Text: textWelcome, Buttons: menuButtons()}, nil
	}
	switch ev.Button {
	case ButtonOpenShift, ButtonCloseShift:
		t := checklist.Open
		if ev.Button == ButtonCloseShift {
			t = checklist.Close
		}
		return e.startChecklist(ctx, sess, t)
	case ButtonRestart:
		sess.ResetRun()
		return Prompt{Text: textWelcome, Buttons: menuButtons(), Edit: true}, nil
	}
	return Prompt{Text: textWelcome, Buttons: menuButtons(), Edit: true}, nil
}

func (e *Engine) startChecklist(ctx context.Context, sess *session.Session, t checklist.Type) (Prompt, error) {
	def, err := e.checklists.Load(t)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			e.logger.WarnContext(ctx, "checklist not found", slog.String("type", string(t)))
			sess.ResetRun()
			return Prompt{Text: textChecklistNotFound, Edit: true}, nil
		}
		return Prompt{}, errors.Wrap(err, "load checklist", slog.String("type", string(t)))
	}
	sess.StartRun(t, def)
	return e.askQuestion(sess, true), nil
}

// askQuestion renders whichever prompt comes next: the question under the
// cursor, or the comments prompt once every question is answered.
func (e *Engine) askQuestion(sess *session.Session, edit bool) Prompt {
	q, ok := sess.CurrentQuestion()
	if !ok {
		sess.State = session.StateAwaitComments
		return Prompt{Text: textAskComments}
	}
	sess.State = session.StateAwaitOutcome

	text := questionHeader(sess.CurrentIndex, len(sess.Checklist), q.Text)
	if q.RequiresEvidence {
		text = textEvidenceHint(text)
	}
	row := []Button{
		{Label: labelDone, Data: ButtonDone},
		{Label: labelNotDone, Data: ButtonNotDone},
	}
	if sess.CurrentIndex > 0 {
		row = append(row, Button{Label: labelBack, Data: ButtonBack})
	}
	return Prompt{Text: text, Buttons: [][]Button{row}, Edit: edit}
}

func (e *Engine) handleOutcome(_ context.Context, sess *session.Session, ev Event) (Prompt, error) {
	if ev.Kind != EventButton {
		// Anything but a button press re-renders the current question.
		return e.askQuestion(sess, false), nil
	}
	switch ev.Button {
	case ButtonBack:
		sess.StepBack()
		return e.askQuestion(sess, true), nil
	case ButtonDone, ButtonNotDone:
		passed := ev.Button == ButtonDone
		if err := sess.RecordOutcome(passed); err != nil {
			return Prompt{}, err
		}
		_, q, err := sess.PendingAnswer()
		if err != nil {
			return Prompt{}, err
		}
		header := questionHeader(sess.CurrentIndex-1, len(sess.Checklist), q.Text)
		if !passed {
			sess.State = session.StateAwaitReason
			return Prompt{Text: textAskReason(header), Edit: true}, nil
		}
		if q.RequiresEvidence {
			sess.State = session.StateAwaitEvidence
			return Prompt{Text: textAskEvidence(header), Edit: true}, nil
		}
		sess.ClearPending()
		return e.askQuestion(sess, true), nil
	}
	return e.askQuestion(sess, true), nil
}

func (e *Engine) handleReason(_ context.Context, sess *session.Session, ev Event) (Prompt, error) {
	if ev.Kind != EventText {
		return Prompt{Text: textReasonEmpty}, nil
	}
	reason := strings.TrimSpace(ev.Text)
	if reason == "" {
		return Prompt{Text: textReasonEmpty}, nil
	}
	if err := sess.AttachReason(reason); err != nil {
		return Prompt{}, err
	}
	_, q, err := sess.PendingAnswer()
	if err != nil {
		return Prompt{}, err
	}
	if q.RequiresEvidence {
		sess.State = session.StateAwaitEvidence
		header := questionHeader(sess.CurrentIndex-1, len(sess.Checklist), q.Text)
		return Prompt{Text: textAskEvidence(header)}, nil
	}
	sess.ClearPending()
	return e.askQuestion(sess, false), nil
}

func (e *Engine) handleEvidence(ctx context.Context, sess *session.Session, ev Event) (Prompt, error) {
	if ev.Kind != EventMedia || ev.Media == nil {
		_, q, err := sess.PendingAnswer()
		if err != nil {
			return Prompt{}, err
		}
		header := questionHeader(sess.CurrentIndex-1, len(sess.Checklist), q.Text)
		return Prompt{Text: textEvidenceOnly(header)}, nil
	}

	// A failed download or write loses the evidence but not the answer;
	// the run continues, matching the report's best-effort nature.
	blob, err := ev.Media.Fetch(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "fetch media upload", errors.SlogError(err))
	} else {
		ref, saveErr := e.evidence.Save(blob, ev.Media.Kind)
		_ = blob.Close()
		if saveErr != nil {
			e.logger.ErrorContext(ctx, "save evidence", errors.SlogError(saveErr))
		} else if attachErr := sess.AttachEvidence(ref); attachErr != nil {
			return Prompt{}, attachErr
		}
	}

	sess.ClearPending()
	return e.askQuestion(sess, false), nil
}

func (e *Engine) handleComments(ctx context.Context, sess *session.Session, ev Event) (Prompt, error) {
	if ev.Kind != EventText {
		return Prompt{Text: textAskComments}, nil
	}
	comments := strings.TrimSpace(ev.Text)
	if strings.EqualFold(comments, SkipToken) {
		comments = ""
	}
	sess.Comments = comments
	return e.finalize(ctx, sess)
}

// finalize validates the run, compiles and persists the report, dispatches it,
// and returns the session to the main menu.
func (e *Engine) finalize(ctx context.Context, sess *session.Session) (Prompt, error) {
	if len(sess.Answers) == 0 {
		sess.ResetRun()
		return Prompt{Text: textNoAnswers, Buttons: menuButtons()}, nil
	}
	if idx, missing := sess.MissingReason(); missing {
		e.logger.WarnContext(ctx, "finalize rejected, missing reason", slog.Int("question", idx))
		sess.ResetRun()
		return Prompt{Text: textMissingReason(idx + 1), Buttons: menuButtons()}, nil
	}

	rep := report.Compile(sess, e.now())
	text := rep.Format()

	// A failed report write is a durability gap, not a reason to withhold
	// the report from the recipients.
	if _, err := e.reports.Save(rep); err != nil {
		e.logger.ErrorContext(ctx, "save report", errors.SlogError(err))
	}

	recipients, err := e.recipients()
	if err != nil {
		e.logger.ErrorContext(ctx, "load recipients", errors.SlogError(err))
	}
	if len(recipients) > 0 {
		e.dispatcher.Deliver(ctx, text, rep.EvidenceRefs(), recipients)
	}

	sess.ResetRun()
	return Prompt{Text: textReportSent, Buttons: menuButtonsWithRestart()}, nil
}
