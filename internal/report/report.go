// Package report compiles a completed session into an immutable report record
// and its formatted text summary.
package report

import (
	"fmt"
	"github.com/evgkarn/cafebot/internal/checklist"
	"github.com/evgkarn/cafebot/internal/evidence"
	"github.com/evgkarn/cafebot/internal/session"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NoComments is the canned value used when the user skips the comments step.
const NoComments = "No comments"

// Report is the finalized snapshot of a completed checklist run. It is never
// mutated after compilation. Answers are keyed by stringified question index
// to match the on-disk record format.
type Report struct {
	UserID        int64                     `json:"user_id"`
	UserName      string                    `json:"user_name"`
	ChecklistType checklist.Type            `json:"checklist_type"`
	Date          time.Time                 `json:"date"`
	Answers       map[string]session.Answer `json:"answers"`
	Comments      string                    `json:"comments"`
}

// Compile derives a report from a session. Pure; the caller supplies the
// timestamp.
func Compile(s *session.Session, now time.Time) Report {
	answers := make(map[string]session.Answer, len(s.Answers))
	for idx, answer := range s.Answers {
		answers[strconv.Itoa(idx)] = *answer
	}
	comments := s.Comments
	if comments == "" {
		comments = NoComments
	}
	return Report{
		UserID:        s.UserID,
		UserName:      s.DisplayName,
		ChecklistType: s.ChecklistType,
		Date:          now,
		Answers:       answers,
		Comments:      comments,
	}
}

func (r Report) typeLabel() string {
	if r.ChecklistType == checklist.Close {
		return "closing"
	}
	return "opening"
}

// sortedIndices returns the answer keys in ascending question order.
func (r Report) sortedIndices() []int {
	indices := make([]int, 0, len(r.Answers))
	for key := range r.Answers {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// Format renders the human-readable summary. Lines follow ascending question
// index regardless of map order, so the output is deterministic.
func (r Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Shift %s checklist report\n", r.typeLabel())
	fmt.Fprintf(&b, "👤 Staff: %s\n", r.UserName)
	fmt.Fprintf(&b, "📅 Date: %s\n\n", r.Date.Format("02.01.2006 15:04"))

	for _, idx := range r.sortedIndices() {
		answer := r.Answers[strconv.Itoa(idx)]
		status := "✅ Done"
		if !answer.Passed {
			status = "❌ Not done"
		}
		fmt.Fprintf(&b, "%d. %s\n", idx+1, answer.Question)
		fmt.Fprintf(&b, "   %s\n", status)
		if !answer.Passed && answer.Reason != "" {
			fmt.Fprintf(&b, "   Reason: %s\n", answer.Reason)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n💬 Comments: %s", r.Comments)
	return b.String()
}

// EvidenceRefs collects the evidence references in ascending question order.
func (r Report) EvidenceRefs() []evidence.Ref {
	var refs []evidence.Ref
	for _, idx := range r.sortedIndices() {
		answer := r.Answers[strconv.Itoa(idx)]
		if answer.Evidence != nil {
			refs = append(refs, *answer.Evidence)
		}
	}
	return refs
}
