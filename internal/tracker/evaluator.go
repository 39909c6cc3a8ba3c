package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/gametrack/gametrack/internal/notify"
	"github.com/gametrack/gametrack/internal/store"
)

// ShouldTrigger is the alert rule: the alert fires when the current price
// is at or below the target.
func ShouldTrigger(current, target decimal.Decimal) bool {
	return current.LessThanOrEqual(target)
}

// CheckPriceAlerts evaluates every due alert on both platforms. For each
// row it refreshes the stored price, appends a history point and, on a
// threshold crossing, sends the notification before marking alert_sent.
// A failed delivery leaves alert_sent false so the next run retries.
func (t *Tracker) CheckPriceAlerts(ctx context.Context) error {
	steamTriggered, err := t.checkSteamAlerts(ctx)
	if err != nil {
		return err
	}
	epicTriggered, err := t.checkEpicAlerts(ctx)
	if err != nil {
		return err
	}
	slog.Info("price alert check completed",
		"steam_triggered", steamTriggered, "epic_triggered", epicTriggered)
	return nil
}

func (t *Tracker) checkSteamAlerts(ctx context.Context) (int, error) {
	alerts, err := t.store.DueSteamAlerts()
	if err != nil {
		return 0, fmt.Errorf("steam alert pass: %w", err)
	}

	triggered := 0
	for _, alert := range alerts {
		game, err := t.steam.AppDetails(ctx, alert.AppID)
		if err != nil {
			slog.Warn("steam price fetch failed, skipping alert",
				"alert_id", alert.ID, "app_id", alert.AppID, "error", err)
			continue
		}
		if game == nil || !game.Price.Available {
			continue
		}
		_ = t.cache.SetPrice(ctx, game)

		current := game.Price.Current
		if err := t.store.UpdateSteamAlertPrice(alert.ID, current); err != nil {
			slog.Error("failed to store refreshed steam price", "alert_id", alert.ID, "error", err)
			continue
		}
		if err := t.store.AppendPriceHistory(&store.PriceHistoryPoint{
			Platform:        "steam",
			AppID:           alert.AppID,
			Price:           current,
			Currency:        game.Price.Currency,
			DiscountPercent: game.Price.DiscountPercent,
		}); err != nil {
			slog.Error("failed to append steam price history", "app_id", alert.AppID, "error", err)
		}

		if !ShouldTrigger(current, alert.TargetPrice) {
			continue
		}

		subject, body, err := notify.PriceAlertEmail(alert.GameTitle, current, alert.TargetPrice, alert.Currency, game.URL)
		if err != nil {
			slog.Error("failed to render steam price alert", "alert_id", alert.ID, "error", err)
			continue
		}
		if err := t.mailer.Send(ctx, alert.User.Email, subject, body); err != nil {
			slog.Error("steam price alert delivery failed, will retry next run",
				"alert_id", alert.ID, "email", alert.User.Email, "error", err)
			continue
		}
		if err := t.store.MarkSteamAlertSent(alert.ID); err != nil {
			slog.Error("failed to mark steam alert sent", "alert_id", alert.ID, "error", err)
			continue
		}
		triggered++
		slog.Info("steam price alert sent",
			"alert_id", alert.ID, "game", alert.GameTitle, "email", alert.User.Email,
			"current", current.StringFixed(2), "target", alert.TargetPrice.StringFixed(2))
	}
	return triggered, nil
}

func (t *Tracker) checkEpicAlerts(ctx context.Context) (int, error) {
	alerts, err := t.store.DueEpicAlerts()
	if err != nil {
		return 0, fmt.Errorf("epic alert pass: %w", err)
	}

	triggered := 0
	for _, alert := range alerts {
		game, err := t.epic.Price(ctx, alert.EpicNamespace, alert.EpicOfferID)
		if err != nil {
			slog.Warn("epic price fetch failed, skipping alert",
				"alert_id", alert.ID, "namespace", alert.EpicNamespace, "error", err)
			continue
		}
		if game == nil || !game.Price.Available {
			continue
		}

		current := game.Price.Current
		if err := t.store.UpdateEpicAlertPrice(alert.ID, current); err != nil {
			slog.Error("failed to store refreshed epic price", "alert_id", alert.ID, "error", err)
			continue
		}
		if err := t.store.AppendPriceHistory(&store.PriceHistoryPoint{
			Platform:        "epic",
			EpicNamespace:   alert.EpicNamespace,
			EpicOfferID:     alert.EpicOfferID,
			Price:           current,
			Currency:        game.Price.Currency,
			DiscountPercent: game.Price.DiscountPercent,
		}); err != nil {
			slog.Error("failed to append epic price history", "namespace", alert.EpicNamespace, "error", err)
		}

		if !ShouldTrigger(current, alert.TargetPrice) {
			continue
		}

		subject, body, err := notify.PriceAlertEmail(alert.GameTitle, current, alert.TargetPrice, alert.Currency, game.URL)
		if err != nil {
			slog.Error("failed to render epic price alert", "alert_id", alert.ID, "error", err)
			continue
		}
		if err := t.mailer.Send(ctx, alert.User.Email, subject, body); err != nil {
			slog.Error("epic price alert delivery failed, will retry next run",
				"alert_id", alert.ID, "email", alert.User.Email, "error", err)
			continue
		}
		if err := t.store.MarkEpicAlertSent(alert.ID); err != nil {
			slog.Error("failed to mark epic alert sent", "alert_id", alert.ID, "error", err)
			continue
		}
		triggered++
		slog.Info("epic price alert sent",
			"alert_id", alert.ID, "game", alert.GameTitle, "email", alert.User.Email)
	}
	return triggered, nil
}
