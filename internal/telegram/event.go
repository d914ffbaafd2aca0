package telegram

import (
	"context"
	"fmt"
	"github.com/evgkarn/cafebot/internal/engine"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"io"
	"net/http"
)

// buildEvent classifies one Telegram update into an engine event.
func (b *Bot) buildEvent(update tgbotapi.Update) engine.Event {
	if cq := update.CallbackQuery; cq != nil {
		return engine.Event{Kind: engine.EventButton, Button: cq.Data}
	}

	msg := update.Message
	if msg == nil {
		return engine.Event{Kind: engine.EventOther}
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			return engine.Event{Kind: engine.EventStart}
		case "cancel":
			return engine.Event{Kind: engine.EventCancel}
		default:
			// Other commands, /skip included, flow through as text.
			return engine.Event{Kind: engine.EventText, Text: msg.Text}
		}
	}

	if len(msg.Photo) > 0 {
		// The last size is the largest rendition.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		return engine.Event{Kind: engine.EventMedia, Media: &engine.Media{
			Kind:  evidence.Image,
			Fetch: b.fetchFile(fileID),
		}}
	}
	if msg.Video != nil {
		return engine.Event{Kind: engine.EventMedia, Media: &engine.Media{
			Kind:  evidence.Clip,
			Fetch: b.fetchFile(msg.Video.FileID),
		}}
	}

	if msg.Text != "" {
		return engine.Event{Kind: engine.EventText, Text: msg.Text}
	}
	return engine.Event{Kind: engine.EventOther}
}

// fetchFile defers downloading the uploaded blob until the engine asks for it.
func (b *Bot) fetchFile(fileID string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		var file tgbotapi.File
		err := b.do(ctx, "get file info", func() error {
			var getErr error
			file, getErr = b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
			return getErr
		})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
		if err != nil {
			return nil, errors.Wrap(err, "build file download request")
		}
		client := &http.Client{Timeout: b.timeout}
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "download file")
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, errors.New(fmt.Sprintf("download file: unexpected status %d", resp.StatusCode))
		}
		return resp.Body, nil
	}
}
