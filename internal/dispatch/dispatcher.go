// Package dispatch fans a compiled report out to the supervisor recipients.
package dispatch

import (
	"context"
	"github.com/evgkarn/cafebot/internal/errors"
	"github.com/evgkarn/cafebot/internal/evidence"
	"log/slog"
	"os"
)

// BatchSize is the transport-imposed ceiling on media items per send.
const BatchSize = 10

// Transport sends report content to a recipient chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMediaBatch(ctx context.Context, chatID int64, refs []evidence.Ref) error
}

// Dispatcher delivers the formatted report and its evidence to each recipient
// independently. A failure for one recipient, or one media batch, never blocks
// the rest.
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger
	batchSize int
	exists    func(path string) bool
}

func New(transport Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		logger:    logger,
		batchSize: BatchSize,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Deliver sends the formatted text and then the evidence, batched, to every
// recipient. Evidence whose backing blob is gone is skipped. All failures are
// logged and swallowed; delivery is best effort.
func (d *Dispatcher) Deliver(ctx context.Context, text string, refs []evidence.Ref, recipients []int64) {
	present := make([]evidence.Ref, 0, len(refs))
	for _, ref := range refs {
		if !d.exists(ref.Path) {
			d.logger.WarnContext(ctx, "evidence blob missing, skipping", slog.String("path", ref.Path))
			continue
		}
		present = append(present, ref)
	}

	for _, recipient := range recipients {
		d.deliverOne(ctx, recipient, text, present)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, chatID int64, text string, refs []evidence.Ref) {
	if err := d.transport.SendText(ctx, chatID, text); err != nil {
		// Text failure must not block media delivery.
		d.logger.ErrorContext(ctx, "send report text", errors.SlogError(err), slog.Int64("recipient", chatID))
	}

	for start := 0; start < len(refs); start += d.batchSize {
		end := start + d.batchSize
		if end > len(refs) {
			end = len(refs)
		}
		if err := d.transport.SendMediaBatch(ctx, chatID, refs[start:end]); err != nil {
			d.logger.ErrorContext(ctx, "send media batch", errors.SlogError(err),
				slog.Int64("recipient", chatID), slog.Int("batch_start", start))
			continue
		}
	}
}
