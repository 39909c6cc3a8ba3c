package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gametrack/gametrack/internal/notify"
	"github.com/gametrack/gametrack/internal/store"
)

// CheckFreeGames diffs the current promotion list against what each
// subscriber has already been told about, keyed by (namespace, offer_id)
// equality. Each unseen promotion produces one notification and one
// FreeGameAlert row; running again on an unchanged list inserts nothing.
func (t *Tracker) CheckFreeGames(ctx context.Context) error {
	promos, err := t.epic.FreeGames(ctx)
	if err != nil {
		return fmt.Errorf("free games fetch: %w", err)
	}

	current := promos[:0:0]
	for _, p := range promos {
		if !p.Upcoming {
			current = append(current, p)
		}
	}
	if len(current) == 0 {
		slog.Info("no current free games")
		return nil
	}

	subs, err := t.store.FreeGameSubscribers()
	if err != nil {
		return fmt.Errorf("free games subscribers: %w", err)
	}

	notified := 0
	for _, sub := range subs {
		for _, promo := range current {
			seen, err := t.store.HasFreeGameAlert(sub.UserID, promo.Game.EpicNamespace, promo.Game.EpicOfferID)
			if err != nil {
				slog.Error("failed to check free game alert", "user_id", sub.UserID, "error", err)
				continue
			}
			if seen {
				continue
			}

			subject, body, err := notify.FreeGameEmail(promo)
			if err != nil {
				slog.Error("failed to render free game email", "game", promo.Game.Title, "error", err)
				continue
			}
			if err := t.mailer.Send(ctx, sub.User.Email, subject, body); err != nil {
				// No row is written, so the next run retries this promotion.
				slog.Error("free game notification delivery failed",
					"email", sub.User.Email, "game", promo.Game.Title, "error", err)
				continue
			}

			if err := t.store.CreateFreeGameAlert(&store.FreeGameAlert{
				UserID:        sub.UserID,
				EpicNamespace: promo.Game.EpicNamespace,
				EpicOfferID:   promo.Game.EpicOfferID,
				GameTitle:     promo.Game.Title,
				StartDate:     promo.StartDate,
				EndDate:       promo.EndDate,
				AlertSent:     true,
			}); err != nil {
				slog.Error("failed to record free game alert", "user_id", sub.UserID, "error", err)
				continue
			}
			notified++
		}
	}

	slog.Info("free games check completed", "promotions", len(current), "notifications", notified)
	return nil
}
