package engine_test

import (
	"context"
	"fmt"
	"github.com/evgkarn/cafebot/internal/checklist"
	"github.com/evgkarn/cafebot/internal/engine"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	"github.com/evgkarn/cafebot/internal/report"
	"github.com/evgkarn/cafebot/internal/session"
	"github.com/evgkarn/cafebot/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"strings"
	"testing"
)

type fakeChecklists struct {
	definitions map[checklist.Type]checklist.Definition
}

func (f *fakeChecklists) Load(t checklist.Type) (checklist.Definition, error) {
	def, ok := f.definitions[t]
	if !ok {
		return nil, checklist.ErrNotFound
	}
	return def, nil
}

type fakeEvidence struct {
	saved int
	err   error
}

func (f *fakeEvidence) Save(_ io.Reader, kind evidence.Kind) (evidence.Ref, error) {
	if f.err != nil {
		return evidence.Ref{}, f.err
	}
	f.saved++
	return evidence.Ref{Path: fmt.Sprintf("media/%d.jpg", f.saved), Kind: kind}, nil
}

type fakeReports struct {
	saved []report.Report
	err   error
}

func (f *fakeReports) Save(r report.Report) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, r)
	return "reports/report.json", nil
}

type delivery struct {
	text       string
	refs       []evidence.Ref
	recipients []int64
}

type fakeDispatcher struct {
	deliveries []delivery
}

func (f *fakeDispatcher) Deliver(_ context.Context, text string, refs []evidence.Ref, recipients []int64) {
	f.deliveries = append(f.deliveries, delivery{text: text, refs: refs, recipients: recipients})
}

type fixture struct {
	engine     *engine.Engine
	sess       *session.Session
	evidence   *fakeEvidence
	reports    *fakeReports
	dispatcher *fakeDispatcher
}

func newFixture(t *testing.T, def checklist.Definition) *fixture {
	t.Helper()
	f := &fixture{
		evidence:   &fakeEvidence{},
		reports:    &fakeReports{},
		dispatcher: &fakeDispatcher{},
		sess:       session.New(7, "Anna"),
	}
	checklists := &fakeChecklists{definitions: map[checklist.Type]checklist.Definition{}}
	if def != nil {
		checklists.definitions[checklist.Open] = def
	}
	f.engine = engine.New(
		testhelpers.NewLogger(io.Discard),
		checklists,
		f.evidence,
		f.reports,
		f.dispatcher,
		func() ([]int64, error) { return []int64{100, 200}, nil },
	)
	return f
}

func (f *fixture) handle(t *testing.T, ev engine.Event) engine.Prompt {
	t.Helper()
	prompt, err := f.engine.HandleEvent(context.Background(), f.sess, ev)
	require.NoError(t, err)
	return prompt
}

func button(data string) engine.Event {
	return engine.Event{Kind: engine.EventButton, Button: data}
}

func text(s string) engine.Event {
	return engine.Event{Kind: engine.EventText, Text: s}
}

func imageUpload() engine.Event {
	return engine.Event{Kind: engine.EventMedia, Media: &engine.Media{
		Kind: evidence.Image,
		Fetch: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("jpeg bytes")), nil
		},
	}}
}

func plainQuestions(n int) checklist.Definition {
	def := make(checklist.Definition, n)
	for i := range def {
		def[i] = checklist.Question{Text: fmt.Sprintf("Question %d", i+1)}
	}
	return def
}

func TestStartShowsMenu(t *testing.T) {
	f := newFixture(t, plainQuestions(1))
	prompt := f.handle(t, engine.Event{Kind: engine.EventStart})

	require.Contains(t, prompt.Text, "Choose an action")
	require.Equal(t, session.StateMainMenu, f.sess.State)
	require.Len(t, prompt.Buttons, 2)
}

func TestChecklistNotFound(t *testing.T) {
	f := newFixture(t, nil)
	prompt := f.handle(t, button(engine.ButtonOpenShift))

	require.Contains(t, prompt.Text, "not found")
	require.Equal(t, session.StateMainMenu, f.sess.State)
}

func TestAllDoneReachesCommentsAfterNQuestions(t *testing.T) {
	const n = 5
	f := newFixture(t, plainQuestions(n))

	prompt := f.handle(t, button(engine.ButtonOpenShift))
	require.Contains(t, prompt.Text, "Question 1/5")

	for i := 0; i < n; i++ {
		require.Equal(t, session.StateAwaitOutcome, f.sess.State)
		prompt = f.handle(t, button(engine.ButtonDone))
	}

	require.Equal(t, session.StateAwaitComments, f.sess.State)
	require.Contains(t, prompt.Text, "comments")
	require.Equal(t, n, f.sess.CurrentIndex)
}

func TestBackAtFirstQuestionIsNoOp(t *testing.T) {
	f := newFixture(t, plainQuestions(3))
	f.handle(t, button(engine.ButtonOpenShift))

	prompt := f.handle(t, button(engine.ButtonBack))

	require.Zero(t, f.sess.CurrentIndex)
	require.Contains(t, prompt.Text, "Question 1/3", "same question is re-rendered")
	require.Equal(t, session.StateAwaitOutcome, f.sess.State)
}

func TestBackRewindsOneQuestion(t *testing.T) {
	f := newFixture(t, plainQuestions(3))
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonDone))

	prompt := f.handle(t, button(engine.ButtonBack))

	require.Zero(t, f.sess.CurrentIndex)
	require.Contains(t, prompt.Text, "Question 1/3")
	require.Empty(t, f.sess.Answers)
}

func TestBackButtonOnlyAfterFirstQuestion(t *testing.T) {
	f := newFixture(t, plainQuestions(2))

	prompt := f.handle(t, button(engine.ButtonOpenShift))
	require.Len(t, prompt.Buttons[0], 2, "first question has no back button")

	prompt = f.handle(t, button(engine.ButtonDone))
	require.Len(t, prompt.Buttons[0], 3)
}

func TestEmptyReasonReprompts(t *testing.T) {
	f := newFixture(t, plainQuestions(1))
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonNotDone))

	prompt := f.handle(t, text("   "))

	require.Contains(t, prompt.Text, "cannot be empty")
	require.Equal(t, session.StateAwaitReason, f.sess.State)
}

func TestNonMediaDuringEvidenceReprompts(t *testing.T) {
	def := checklist.Definition{{Text: "Photo of counter", RequiresEvidence: true}}
	f := newFixture(t, def)
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonDone))
	require.Equal(t, session.StateAwaitEvidence, f.sess.State)

	prompt := f.handle(t, text("here you go"))

	require.Contains(t, prompt.Text, "photo or video")
	require.Equal(t, session.StateAwaitEvidence, f.sess.State)
	require.Zero(t, f.evidence.saved)
}

func TestUnknownInputRerendersQuestion(t *testing.T) {
	f := newFixture(t, plainQuestions(2))
	f.handle(t, button(engine.ButtonOpenShift))

	prompt := f.handle(t, text("hello?"))

	require.Contains(t, prompt.Text, "Question 1/2")
	require.Equal(t, session.StateAwaitOutcome, f.sess.State)
}

func TestStartMidRunDiscardsProgress(t *testing.T) {
	f := newFixture(t, plainQuestions(3))
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonDone))

	prompt := f.handle(t, engine.Event{Kind: engine.EventStart})

	require.Equal(t, session.StateMainMenu, f.sess.State)
	require.Empty(t, f.sess.Answers)
	require.Contains(t, prompt.Text, "Choose an action")
}

func TestFinalizeRejectedWithoutReason(t *testing.T) {
	f := newFixture(t, plainQuestions(2))
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonDone))
	f.handle(t, button(engine.ButtonNotDone))
	f.handle(t, text("machine jammed"))
	require.Equal(t, session.StateAwaitComments, f.sess.State)

	// Remove the reason behind the engine's back to simulate a stale run.
	f.sess.Answers[1].Reason = ""

	prompt := f.handle(t, text("all noted"))

	require.Contains(t, prompt.Text, "Question 2", "error names the offending question 1-based")
	require.Equal(t, session.StateMainMenu, f.sess.State)
	require.Empty(t, f.reports.saved, "no report is compiled")
	require.Empty(t, f.dispatcher.deliveries)
}

func TestFinalizeAcceptedWithReason(t *testing.T) {
	f := newFixture(t, plainQuestions(1))
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonNotDone))
	f.handle(t, text("machine jammed"))

	prompt := f.handle(t, text("all noted"))

	require.Contains(t, prompt.Text, "Report sent")
	require.Len(t, f.reports.saved, 1)
	require.Len(t, f.dispatcher.deliveries, 1)
}

func TestReportSaveFailureStillDispatches(t *testing.T) {
	f := newFixture(t, plainQuestions(1))
	f.reports.err = errors.NewSentinel("disk full")
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonDone))

	prompt := f.handle(t, text("/skip"))

	require.Contains(t, prompt.Text, "Report sent")
	require.Len(t, f.dispatcher.deliveries, 1, "dispatch is attempted despite the storage failure")
}

func TestEndToEndScenario(t *testing.T) {
	def := checklist.Definition{
		{Text: "Fridge clean?", RequiresEvidence: false},
		{Text: "Photo of counter", RequiresEvidence: true},
	}
	f := newFixture(t, def)

	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonNotDone))
	prompt := f.handle(t, text("broken thermostat"))
	require.Contains(t, prompt.Text, "Question 2/2")

	prompt = f.handle(t, button(engine.ButtonDone))
	require.Contains(t, prompt.Text, "photo or video")
	prompt = f.handle(t, imageUpload())
	require.Contains(t, prompt.Text, "comments")

	prompt = f.handle(t, text("/skip"))
	require.Contains(t, prompt.Text, "Report sent")

	require.Len(t, f.reports.saved, 1)
	rep := f.reports.saved[0]
	require.Equal(t, "Anna", rep.UserName)
	require.Equal(t, checklist.Open, rep.ChecklistType)
	require.Equal(t, report.NoComments, rep.Comments)

	first := rep.Answers["0"]
	require.False(t, first.Passed)
	require.Equal(t, "broken thermostat", first.Reason)
	require.Nil(t, first.Evidence)

	second := rep.Answers["1"]
	require.True(t, second.Passed)
	require.Empty(t, second.Reason)
	require.NotNil(t, second.Evidence)

	require.Len(t, f.dispatcher.deliveries, 1)
	d := f.dispatcher.deliveries[0]
	require.Equal(t, []int64{100, 200}, d.recipients)
	require.Len(t, d.refs, 1)
	require.Contains(t, d.text, "broken thermostat")

	// The session is back to identity-only idle.
	require.Equal(t, session.StateMainMenu, f.sess.State)
	require.Empty(t, f.sess.Answers)
	require.Equal(t, "Anna", f.sess.DisplayName)
}

func TestFailedAnswerWithEvidenceAsksReasonThenMedia(t *testing.T) {
	def := checklist.Definition{{Text: "Photo of counter", RequiresEvidence: true}}
	f := newFixture(t, def)
	f.handle(t, button(engine.ButtonOpenShift))

	prompt := f.handle(t, button(engine.ButtonNotDone))
	require.Contains(t, prompt.Text, "reason")
	require.Equal(t, session.StateAwaitReason, f.sess.State)

	prompt = f.handle(t, text("counter is blocked"))
	require.Contains(t, prompt.Text, "photo or video")
	require.Equal(t, session.StateAwaitEvidence, f.sess.State)

	f.handle(t, imageUpload())
	require.Equal(t, session.StateAwaitComments, f.sess.State)
	require.Equal(t, 1, f.evidence.saved)
}

func TestEvidenceSaveFailureContinuesRun(t *testing.T) {
	def := checklist.Definition{{Text: "Photo of counter", RequiresEvidence: true}}
	f := newFixture(t, def)
	f.evidence.err = errors.NewSentinel("disk full")
	f.handle(t, button(engine.ButtonOpenShift))
	f.handle(t, button(engine.ButtonDone))

	prompt := f.handle(t, imageUpload())

	require.Contains(t, prompt.Text, "comments", "run continues without the blob")
	require.Nil(t, f.sess.Answers[0].Evidence)
}
