// Package telegram adapts the conversation engine to the Telegram Bot API:
// it polls updates, serializes each chat's events through its own worker, and
// renders engine prompts as messages with inline keyboards.
package telegram

import (
	"context"
	"fmt"
	"github.com/evgkarn/cafebot/internal/engine"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/logging"
	"github.com/evgkarn/cafebot/internal/session"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"log/slog"
	"sync"
)

const (
	pollTimeoutSeconds = 30
	workerQueueSize    = 16

	textGenericError = "⚠️ Error. Try /start"
)

// Bot runs the Telegram side of the conversation.
type Bot struct {
	*Client
	engine   *engine.Engine
	sessions *session.Manager

	mu      sync.Mutex
	workers map[int64]chan tgbotapi.Update
	wg      sync.WaitGroup
}

func New(client *Client, eng *engine.Engine, sessions *session.Manager) *Bot {
	return &Bot{
		Client:   client,
		engine:   eng,
		sessions: sessions,
		workers:  map[int64]chan tgbotapi.Update{},
	}
}

// Run polls updates until ctx is cancelled. Updates from different chats are
// handled concurrently; updates from the same chat are handled in order by
// that chat's worker, so a session is never advanced by two events at once.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.InfoContext(ctx, "bot is polling", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.stopWorkers()
			return
		case update, ok := <-updates:
			if !ok {
				b.stopWorkers()
				return
			}
			b.route(ctx, update)
		}
	}
}

func (b *Bot) route(ctx context.Context, update tgbotapi.Update) {
	chatID, ok := updateChatID(update)
	if !ok {
		return
	}

	b.mu.Lock()
	queue, exists := b.workers[chatID]
	if !exists {
		queue = make(chan tgbotapi.Update, workerQueueSize)
		b.workers[chatID] = queue
		b.wg.Add(1)
		go b.worker(ctx, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- update:
	default:
		b.logger.WarnContext(ctx, "chat queue full, dropping update", slog.Int64("chat_id", chatID))
	}
}

func (b *Bot) stopWorkers() {
	b.mu.Lock()
	for _, queue := range b.workers {
		close(queue)
	}
	b.workers = map[int64]chan tgbotapi.Update{}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bot) worker(ctx context.Context, queue <-chan tgbotapi.Update) {
	defer b.wg.Done()
	for update := range queue {
		b.handleUpdate(ctx, update)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID, _ := updateChatID(update)
	user := updateUser(update)
	if user == nil {
		return
	}
	sess := b.sessions.Get(user.ID, displayName(user))
	ctx = logging.WithUser(ctx, sess.UserID, sess.DisplayName)

	if cq := update.CallbackQuery; cq != nil {
		b.ackCallback(ctx, cq)
	}

	ev := b.buildEvent(update)
	prompt, err := b.engine.HandleEvent(ctx, sess, ev)
	if err != nil {
		// No error may leave the conversation stuck: log, reset to
		// idle, and tell the user to start over.
		b.logger.ErrorContext(ctx, "handle event", errors.SlogError(err),
			slog.String("state", string(sess.State)))
		sess.ResetRun()
		if sendErr := b.SendText(ctx, chatID, textGenericError); sendErr != nil {
			b.logger.ErrorContext(ctx, "send error message", errors.SlogError(sendErr))
		}
		return
	}

	if err = b.render(ctx, chatID, update, prompt); err != nil {
		b.logger.ErrorContext(ctx, "render prompt", errors.SlogError(err))
		sess.ResetRun()
		if sendErr := b.SendText(ctx, chatID, textGenericError); sendErr != nil {
			b.logger.ErrorContext(ctx, "send error message", errors.SlogError(sendErr))
		}
	}
}

func (b *Bot) ackCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	err := b.do(ctx, "answer callback", func() error {
		_, reqErr := b.api.Request(tgbotapi.NewCallback(cq.ID, ""))
		return reqErr
	})
	if err != nil {
		b.logger.WarnContext(ctx, "answer callback", errors.SlogError(err))
	}
}

// render turns an engine prompt into a message send or edit.
func (b *Bot) render(ctx context.Context, chatID int64, update tgbotapi.Update, prompt engine.Prompt) error {
	markup := inlineKeyboard(prompt.Buttons)

	if prompt.Edit && update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		edit := tgbotapi.NewEditMessageText(chatID, update.CallbackQuery.Message.MessageID, prompt.Text)
		if markup != nil {
			edit.ReplyMarkup = markup
		}
		return b.do(ctx, "edit message", func() error {
			_, err := b.api.Send(edit)
			return err
		})
	}

	msg := tgbotapi.NewMessage(chatID, prompt.Text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	return b.do(ctx, "send message", func() error {
		_, err := b.api.Send(msg)
		return err
	})
}

func inlineKeyboard(rows [][]engine.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Label, button.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	return &markup
}

func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func updateUser(update tgbotapi.Update) *tgbotapi.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From
	}
	return nil
}

func displayName(user *tgbotapi.User) string {
	name := user.FirstName
	if user.LastName != "" {
		name = name + " " + user.LastName
	}
	if name == "" {
		name = fmt.Sprintf("User_%d", user.ID)
	}
	return name
}
