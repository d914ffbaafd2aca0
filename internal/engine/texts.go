package engine

import "fmt"

const (
	textWelcome           = "☕ Welcome to CafeChecklistBot!\nChoose an action:"
	textChecklistNotFound = "⚠️ Checklist not found"
	textAskComments       = "💬 Please write any comments for the report (or send /skip to skip):"
	textReasonEmpty       = "⚠️ The reason cannot be empty. Please state the reason."
	textReportSent        = "✅ Report sent to the supervisors!"
	textNoAnswers         = "⚠️ Nothing to report. Start over with /start"

	labelOpenShift  = "📖 Open shift"
	labelCloseShift = "🔒 Close shift"
	labelDone       = "✅ Done"
	labelNotDone    = "❌ Not done"
	labelBack       = "⬅️ Back"
	labelRestart    = "🔄 Start over"
)

func questionHeader(index, total int, question string) string {
	return fmt.Sprintf("📋 Question %d/%d:\n\n%s", index+1, total, question)
}

func textEvidenceHint(header string) string {
	return header + "\n\n📷 Photo or video evidence required!"
}

func textAskReason(header string) string {
	return header + "\n\n📝 State the reason:"
}

func textAskEvidence(header string) string {
	return header + "\n\n📷 Please attach a photo or video:"
}

func textEvidenceOnly(header string) string {
	return header + "\n\n⚠️ Please send a photo or video."
}

func textMissingReason(questionNumber int) string {
	return fmt.Sprintf("⚠️ Question %d needs a reason. The report was not sent; start over with /start", questionNumber)
}

func menuButtons() [][]Button {
	return [][]Button{
		{{Label: labelOpenShift, Data: ButtonOpenShift}},
		{{Label: labelCloseShift, Data: ButtonCloseShift}},
	}
}

func menuButtonsWithRestart() [][]Button {
	return append(menuButtons(), []Button{{Label: labelRestart, Data: ButtonRestart}})
}
