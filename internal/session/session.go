// Package session tracks each user's progress through a checklist run.
package session

import (
	"github.com/evgkarn/cafebot/internal/checklist"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	"log/slog"
	"time"
)

// State names the conversation step the session is waiting on.
type State string

const (
	// StateMainMenu is the idle state; the user is choosing a checklist.
	StateMainMenu State = "MAIN_MENU"
	// StateAwaitOutcome waits for done/not done/back on the current question.
	StateAwaitOutcome State = "AWAIT_OUTCOME"
	// StateAwaitReason waits for the failure reason of the answer just given.
	StateAwaitReason State = "AWAIT_REASON"
	// StateAwaitEvidence waits for a photo or video for the answer just given.
	StateAwaitEvidence State = "AWAIT_EVIDENCE"
	// StateAwaitComments waits for free-text comments before finalizing.
	StateAwaitComments State = "AWAIT_COMMENTS"
)

// Answer records the outcome for one question. Question text is denormalized
// so a later definition edit cannot change what the report says was asked.
type Answer struct {
	Question string        `json:"question"`
	Passed   bool          `json:"passed"`
	Reason   string        `json:"reason,omitempty"`
	Evidence *evidence.Ref `json:"evidence,omitempty"`
}

// noPending marks that no answer is awaiting a reason or evidence.
const noPending = -1

var (
	ErrNoPendingAnswer = errors.NewSentinel("no answer is awaiting follow-up input")
	ErrStaleIndex      = errors.NewSentinel("answer index out of bounds")
)

// Session is one user's conversation record. Identity fields survive run
// resets; everything else belongs to the current checklist run.
type Session struct {
	UserID      int64
	DisplayName string
	StartedAt   time.Time

	State         State
	ChecklistType checklist.Type
	Checklist     checklist.Definition
	CurrentIndex  int
	Answers       map[int]*Answer
	Comments      string

	// pendingIndex points at the answer awaiting a reason or evidence,
	// or noPending. It replaces deriving that index from CurrentIndex so
	// follow-up writes can be validated instead of trusted.
	pendingIndex int
}

func New(userID int64, displayName string) *Session {
	s := &Session{
		UserID:      userID,
		DisplayName: displayName,
		StartedAt:   time.Now(),
	}
	s.ResetRun()
	return s
}

// ResetRun discards all checklist-run state, keeping only identity fields.
func (s *Session) ResetRun() {
	s.State = StateMainMenu
	s.ChecklistType = ""
	s.Checklist = nil
	s.CurrentIndex = 0
	s.Answers = map[int]*Answer{}
	s.Comments = ""
	s.pendingIndex = noPending
}

// StartRun binds a checklist snapshot and rewinds the cursor.
func (s *Session) StartRun(t checklist.Type, def checklist.Definition) {
	s.ResetRun()
	s.ChecklistType = t
	s.Checklist = def
}

// Completed reports whether the cursor has passed the last question.
func (s *Session) Completed() bool {
	return s.CurrentIndex >= len(s.Checklist)
}

// CurrentQuestion returns the question under the cursor.
func (s *Session) CurrentQuestion() (checklist.Question, bool) {
	if s.Completed() {
		return checklist.Question{}, false
	}
	return s.Checklist[s.CurrentIndex], true
}

// RecordOutcome stores the answer for the question under the cursor, advances
// the cursor, and marks the answer pending follow-up input.
func (s *Session) RecordOutcome(passed bool) error {
	q, ok := s.CurrentQuestion()
	if !ok {
		return errors.Wrap(ErrStaleIndex, "record outcome", slog.Int("index", s.CurrentIndex))
	}
	idx := s.CurrentIndex
	s.Answers[idx] = &Answer{Question: q.Text, Passed: passed}
	s.CurrentIndex++
	s.pendingIndex = idx
	return nil
}

// PendingAnswer returns the answer awaiting a reason or evidence along with
// its question.
func (s *Session) PendingAnswer() (*Answer, checklist.Question, error) {
	idx := s.pendingIndex
	if idx == noPending {
		return nil, checklist.Question{}, ErrNoPendingAnswer
	}
	// The pending answer is always the one just given.
	if idx != s.CurrentIndex-1 || idx < 0 || idx >= len(s.Checklist) {
		return nil, checklist.Question{}, errors.Wrap(ErrStaleIndex, "pending answer",
			slog.Int("pending", idx), slog.Int("current", s.CurrentIndex))
	}
	answer, ok := s.Answers[idx]
	if !ok {
		return nil, checklist.Question{}, errors.Wrap(ErrStaleIndex, "pending answer missing",
			slog.Int("pending", idx))
	}
	return answer, s.Checklist[idx], nil
}

// AttachReason sets the failure reason on the pending answer.
func (s *Session) AttachReason(reason string) error {
	answer, _, err := s.PendingAnswer()
	if err != nil {
		return err
	}
	answer.Reason = reason
	return nil
}

// AttachEvidence sets the evidence reference on the pending answer.
func (s *Session) AttachEvidence(ref evidence.Ref) error {
	answer, _, err := s.PendingAnswer()
	if err != nil {
		return err
	}
	answer.Evidence = &ref
	return nil
}

// ClearPending marks that the answer just given needs no further input.
func (s *Session) ClearPending() {
	s.pendingIndex = noPending
}

// StepBack moves the cursor to the previous question and drops any answers at
// or past the new cursor so they can be re-given. At the first question it is
// a no-op.
func (s *Session) StepBack() {
	if s.CurrentIndex == 0 {
		return
	}
	s.CurrentIndex--
	for idx := range s.Answers {
		if idx >= s.CurrentIndex {
			delete(s.Answers, idx)
		}
	}
	s.pendingIndex = noPending
}

// MissingReason scans recorded answers in question order and returns the index
// of the first failed answer without a reason.
func (s *Session) MissingReason() (int, bool) {
	for idx := 0; idx < s.CurrentIndex; idx++ {
		answer, ok := s.Answers[idx]
		if !ok {
			continue
		}
		if !answer.Passed && answer.Reason == "" {
			return idx, true
		}
	}
	return 0, false
}
