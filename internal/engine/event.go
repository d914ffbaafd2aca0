package engine

import (
	"context"
	"github.com/evgkarn/cafebot/internal/evidence"
	"io"
)

// EventKind classifies one inbound user event.
type EventKind string

const (
	// EventStart is the /start command or the first free text in idle.
	EventStart EventKind = "start"
	// EventCancel is the /cancel command.
	EventCancel EventKind = "cancel"
	// EventButton is an inline keyboard press.
	EventButton EventKind = "button"
	// EventText is free text.
	EventText EventKind = "text"
	// EventMedia is a photo or video upload.
	EventMedia EventKind = "media"
	// EventOther is any other message kind (stickers, documents, ...).
	EventOther EventKind = "other"
)

// Button callback data values.
const (
	ButtonOpenShift  = "open_shift"
	ButtonCloseShift = "close_shift"
	ButtonDone       = "done"
	ButtonNotDone    = "not_done"
	ButtonBack       = "back"
	ButtonRestart    = "start"
)

// SkipToken skips the comments step.
const SkipToken = "/skip"

// Media is an uploaded blob. Fetch defers the transport download until the
// engine decides the upload is wanted.
type Media struct {
	Kind  evidence.Kind
	Fetch func(ctx context.Context) (io.ReadCloser, error)
}

// Event is one inbound user event, already classified by the transport
// adapter.
type Event struct {
	Kind   EventKind
	Button string
	Text   string
	Media  *Media
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Prompt is the outbound instruction the transport renders in response to an
// event.
type Prompt struct {
	Text    string
	Buttons [][]Button
	// Edit asks the transport to replace the message that carried the
	// pressed button instead of sending a new message.
	Edit bool
}
