package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gametrack/gametrack/internal/notify"
)

// SendDailyDigest mails today's top Steam deals to every daily-deals
// subscriber who has not received a digest since the start of the day.
// last_sent is only advanced after a successful delivery.
func (t *Tracker) SendDailyDigest(ctx context.Context) error {
	deals, err := t.TopDeals(ctx)
	if err != nil {
		return fmt.Errorf("top deals fetch: %w", err)
	}
	if len(deals) == 0 {
		slog.Info("no deals found for daily digest")
		return nil
	}

	now := time.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	subs, err := t.store.DigestSubscribersDueSince(cutoff)
	if err != nil {
		return fmt.Errorf("digest subscribers: %w", err)
	}
	if len(subs) == 0 {
		slog.Info("daily digest already delivered to all subscribers")
		return nil
	}

	subject, body, err := notify.DealsDigestEmail(deals, now)
	if err != nil {
		return fmt.Errorf("digest render: %w", err)
	}

	sent := 0
	for _, sub := range subs {
		if err := t.mailer.Send(ctx, sub.User.Email, subject, body); err != nil {
			slog.Error("digest delivery failed", "email", sub.User.Email, "error", err)
			continue
		}
		if err := t.store.MarkDigestSent(sub.ID, now); err != nil {
			slog.Error("failed to mark digest sent", "user_id", sub.UserID, "error", err)
			continue
		}
		sent++
	}

	slog.Info("daily digest completed", "deals", len(deals), "subscribers", len(subs), "sent", sent)
	return nil
}
