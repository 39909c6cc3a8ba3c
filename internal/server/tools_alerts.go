package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gametrack/gametrack/internal/notify"
	"github.com/gametrack/gametrack/internal/storefront"
)

// ---------------------------------------------------------------- alerts

func (s *Server) toolSetupSteamAlert(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		AppID       int     `json:"app_id"`
		Email       string  `json:"email"`
		TargetPrice float64 `json:"target_price"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.AppID <= 0 {
		return "", errors.New("app_id is required")
	}
	if !validEmail(args.Email) {
		return "", fmt.Errorf("invalid email address: %q", args.Email)
	}
	if args.TargetPrice <= 0 {
		return "", errors.New("target_price must be positive")
	}
	if err := s.requireStore(); err != nil {
		return "", err
	}

	// Verify the app upstream before persisting anything. The fresh record
	// also warms the price cache for the details tool.
	game, err := s.steam.AppDetails(ctx, args.AppID)
	if err != nil {
		return "", fmt.Errorf("could not verify app %d: %w", args.AppID, err)
	}
	if game == nil {
		return "", fmt.Errorf("steam app %d not found", args.AppID)
	}
	_ = s.prices.SetPrice(ctx, game)

	user, err := s.store.RegisterUser(args.Email)
	if err != nil {
		return "", err
	}

	target := decimal.NewFromFloat(args.TargetPrice)
	_, err = s.store.UpsertSteamAlert(user.ID, args.AppID, game.Title, target, game.Price.Current, game.Price.Currency)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Price alert set for %s [app id %d]: notify %s when the price reaches %s %s.\n",
		game.Title, args.AppID, user.Email, game.Price.Currency, target.StringFixed(2))
	if game.Price.Available && game.Price.Current.LessThanOrEqual(target) {
		fmt.Fprintf(&b, "The current price %s %s already meets the target; expect a notification on the next check.\n",
			game.Price.Currency, game.Price.Current.StringFixed(2))
	} else if game.Price.Available {
		fmt.Fprintf(&b, "Current price: %s %s.\n", game.Price.Currency, game.Price.Current.StringFixed(2))
	}
	return b.String(), nil
}

func (s *Server) toolSetupEpicAlert(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		EpicNamespace string  `json:"epic_namespace"`
		EpicOfferID   string  `json:"epic_offer_id"`
		Email         string  `json:"email"`
		TargetPrice   float64 `json:"target_price"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.EpicNamespace == "" || args.EpicOfferID == "" {
		return "", errors.New("epic_namespace and epic_offer_id are required")
	}
	if !validEmail(args.Email) {
		return "", fmt.Errorf("invalid email address: %q", args.Email)
	}
	if args.TargetPrice <= 0 {
		return "", errors.New("target_price must be positive")
	}
	if err := s.requireStore(); err != nil {
		return "", err
	}

	game, err := s.epic.Price(ctx, args.EpicNamespace, args.EpicOfferID)
	if err != nil {
		return "", fmt.Errorf("could not verify offer %s/%s: %w", args.EpicNamespace, args.EpicOfferID, err)
	}
	if game == nil {
		return "", fmt.Errorf("epic offer %s/%s not found", args.EpicNamespace, args.EpicOfferID)
	}

	user, err := s.store.RegisterUser(args.Email)
	if err != nil {
		return "", err
	}

	target := decimal.NewFromFloat(args.TargetPrice)
	_, err = s.store.UpsertEpicAlert(user.ID, args.EpicNamespace, args.EpicOfferID,
		game.Title, target, game.Price.Current, game.Price.Currency)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Price alert set for %s on Epic Games Store: notify %s when the price reaches %s %s.\n",
		game.Title, user.Email, game.Price.Currency, target.StringFixed(2))
	if game.Price.Available && game.Price.Current.LessThanOrEqual(target) {
		fmt.Fprintf(&b, "The current price %s %s already meets the target; expect a notification on the next check.\n",
			game.Price.Currency, game.Price.Current.StringFixed(2))
	}
	return b.String(), nil
}

func (s *Server) toolListAlerts(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Email string `json:"email"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := s.requireStore(); err != nil {
		return "", err
	}

	user, err := s.store.GetUserByEmail(args.Email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("no user registered with email %q", args.Email)
	}

	steamAlerts, err := s.store.ActiveSteamAlertsByUser(user.ID)
	if err != nil {
		return "", err
	}
	epicAlerts, err := s.store.ActiveEpicAlertsByUser(user.ID)
	if err != nil {
		return "", err
	}
	if len(steamAlerts) == 0 && len(epicAlerts) == 0 {
		return fmt.Sprintf("%s has no active price alerts.", user.Email), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active price alerts for %s:\n", user.Email)
	for _, a := range steamAlerts {
		status := "waiting"
		if a.AlertSent {
			status = "notified"
		}
		fmt.Fprintf(&b, "- [Steam] %s (app id %d): target %s %s, last seen %s %s (%s)\n",
			a.GameTitle, a.AppID, a.Currency, a.TargetPrice.StringFixed(2),
			a.Currency, a.CurrentPrice.StringFixed(2), status)
	}
	for _, a := range epicAlerts {
		status := "waiting"
		if a.AlertSent {
			status = "notified"
		}
		fmt.Fprintf(&b, "- [Epic] %s (%s/%s): target %s %s, last seen %s %s (%s)\n",
			a.GameTitle, a.EpicNamespace, a.EpicOfferID, a.Currency, a.TargetPrice.StringFixed(2),
			a.Currency, a.CurrentPrice.StringFixed(2), status)
	}
	return b.String(), nil
}

func (s *Server) toolRemoveAlert(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Email string `json:"email"`
		AppID int    `json:"app_id"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.AppID <= 0 {
		return "", errors.New("app_id is required")
	}
	if err := s.requireStore(); err != nil {
		return "", err
	}

	user, err := s.store.GetUserByEmail(args.Email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("no user registered with email %q", args.Email)
	}

	removed, err := s.store.DeactivateSteamAlert(user.ID, args.AppID)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", fmt.Errorf("no active alert for app id %d", args.AppID)
	}
	return fmt.Sprintf("Price alert for app id %d removed.", args.AppID), nil
}

// ---------------------------------------------------------------- subscriptions

func (s *Server) toolSubscribeDailyDeals(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Email string `json:"email"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := s.requireStore(); err != nil {
		return "", err
	}

	// The digest requires prior registration; free-game alerts auto-register.
	user, err := s.store.GetUserByEmail(args.Email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("no user registered with email %q; call register_user first", args.Email)
	}
	if err := s.store.SubscribeDailyDeals(user.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is subscribed to the daily deals digest (delivered at %s).",
		user.Email, s.cfg.DealsDigestTime), nil
}

func (s *Server) toolSubscribeFreeGames(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Email string `json:"email"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if !validEmail(args.Email) {
		return "", fmt.Errorf("invalid email address: %q", args.Email)
	}
	if err := s.requireStore(); err != nil {
		return "", err
	}

	user, err := s.store.RegisterUser(args.Email)
	if err != nil {
		return "", err
	}
	if err := s.store.SubscribeFreeGames(user.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s will be notified about new Epic free games.", user.Email), nil
}

// ---------------------------------------------------------------- deals

func (s *Server) toolSendTopDeals(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Email string `json:"email"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if !validEmail(args.Email) {
		return "", fmt.Errorf("invalid email address: %q", args.Email)
	}

	deals, err := s.deals.TopDeals(ctx)
	if err != nil {
		return "", fmt.Errorf("could not fetch deals: %w", err)
	}
	if len(deals) == 0 {
		return "No notable Steam deals right now.", nil
	}

	subject, body, err := notify.DealsDigestEmail(deals, time.Now())
	if err != nil {
		return "", err
	}
	if err := s.mailer.Send(ctx, args.Email, subject, body); err != nil {
		return "", fmt.Errorf("could not deliver deals email: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sent %d deals to %s:\n", len(deals), args.Email)
	for _, g := range deals {
		fmt.Fprintf(&b, "- %s: %s\n", g.Title, formatPrice(g.Price))
	}
	return b.String(), nil
}

func (s *Server) toolSteamDetails(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		AppID int `json:"app_id"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.AppID <= 0 {
		return "", errors.New("app_id is required")
	}

	game, err := s.cachedAppDetails(ctx, args.AppID)
	if err != nil {
		return "", err
	}
	if game == nil {
		return "", fmt.Errorf("steam app %d not found", args.AppID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [app id %d]\n", game.Title, game.AppID)
	if game.Developer != "" {
		fmt.Fprintf(&b, "Developer: %s\n", game.Developer)
	}
	fmt.Fprintf(&b, "Price: %s\n", formatPrice(game.Price))
	if game.URL != "" {
		fmt.Fprintf(&b, "Store page: %s\n", game.URL)
	}
	return b.String(), nil
}

func (s *Server) toolEpicFreeGames(ctx context.Context, _ json.RawMessage) (string, error) {
	promos, err := s.epic.FreeGames(ctx)
	if err != nil {
		return "", err
	}
	if len(promos) == 0 {
		return "No free game promotions found.", nil
	}

	var current, upcoming []string
	for _, p := range promos {
		line := "- " + p.Game.Title
		if p.EndDate != nil {
			line += " (until " + p.EndDate.Format("Jan 2") + ")"
		} else if p.Upcoming && p.StartDate != nil {
			line += " (from " + p.StartDate.Format("Jan 2") + ")"
		}
		if p.Upcoming {
			upcoming = append(upcoming, line)
		} else {
			current = append(current, line)
		}
	}

	var b strings.Builder
	if len(current) > 0 {
		b.WriteString("Free right now on Epic Games Store:\n")
		b.WriteString(strings.Join(current, "\n"))
		b.WriteString("\n")
	}
	if len(upcoming) > 0 {
		b.WriteString("Coming up:\n")
		b.WriteString(strings.Join(upcoming, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// cachedAppDetails serves Steam app lookups from the speed layer before
// going upstream. A cache read failure is a miss, not an error.
func (s *Server) cachedAppDetails(ctx context.Context, appID int) (*storefront.Game, error) {
	if game, err := s.prices.GetPrice(ctx, appID); err == nil && game != nil {
		return game, nil
	}
	game, err := s.steam.AppDetails(ctx, appID)
	if err != nil {
		return nil, err
	}
	if game != nil {
		_ = s.prices.SetPrice(ctx, game)
	}
	return game, nil
}

// ---------------------------------------------------------------- misc

func (s *Server) toolValidate(_ context.Context, _ json.RawMessage) (string, error) {
	if s.cfg.OwnerID == "" {
		return "Token valid. No owner configured.", nil
	}
	return fmt.Sprintf("Token valid. Owner: %s.", s.cfg.OwnerID), nil
}
