package telegram

import (
	"context"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"log/slog"
	"time"
)

// Client wraps the Bot API with the bounded-timeout call discipline. It is
// what the report dispatcher sees as its transport; Bot builds the
// conversation loop on top of it.
type Client struct {
	api     *tgbotapi.BotAPI
	logger  *slog.Logger
	timeout time.Duration
}

func NewClient(api *tgbotapi.BotAPI, logger *slog.Logger, timeout time.Duration) *Client {
	return &Client{
		api:     api,
		logger:  logger,
		timeout: timeout,
	}
}

// do runs one transport call with the configured timeout. On timeout the call
// is reported failed to the caller, never silently retried.
func (c *Client) do(ctx context.Context, op string, call func() error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, op)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), op)
	}
}

// SendText implements dispatch.Transport.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.do(ctx, "send text", func() error {
		_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
		return err
	})
}

// SendMediaBatch implements dispatch.Transport. The caller is responsible for
// keeping batches within the media group ceiling.
func (c *Client) SendMediaBatch(ctx context.Context, chatID int64, refs []evidence.Ref) error {
	files := make([]interface{}, 0, len(refs))
	for _, ref := range refs {
		if ref.Kind == evidence.Clip {
			files = append(files, tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(ref.Path)))
		} else {
			files = append(files, tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(ref.Path)))
		}
	}
	group := tgbotapi.NewMediaGroup(chatID, files)
	return c.do(ctx, "send media group", func() error {
		_, err := c.api.SendMediaGroup(group)
		return err
	})
}
