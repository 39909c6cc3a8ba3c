package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gametrack/gametrack/internal/store"
	"github.com/gametrack/gametrack/internal/storefront"
)

// toolFunc executes one tool and returns the formatted text result.
type toolFunc func(ctx context.Context, args json.RawMessage) (string, error)

var errDatabaseUnavailable = errors.New("database unavailable, alert and subscription tools are disabled")

func (s *Server) registerTools() {
	s.tools = map[string]toolFunc{
		"register_user":                    s.toolRegisterUser,
		"search_steam_games":               s.toolSearchSteam,
		"search_epic_games":                s.toolSearchEpic,
		"search_games_all_platforms":       s.toolSearchAll,
		"compare_game_prices":              s.toolComparePrices,
		"setup_price_alert_by_appid":       s.toolSetupSteamAlert,
		"setup_epic_price_alert":           s.toolSetupEpicAlert,
		"subscribe_daily_deals":            s.toolSubscribeDailyDeals,
		"subscribe_epic_free_games_alerts": s.toolSubscribeFreeGames,
		"send_top_deals_today":             s.toolSendTopDeals,
		"get_epic_free_games":              s.toolEpicFreeGames,
		"get_steam_game_details":           s.toolSteamDetails,
		"list_user_alerts":                 s.toolListAlerts,
		"remove_price_alert":               s.toolRemoveAlert,
		"validate":                         s.toolValidate,
	}
}

// requireStore gates the write-path tools in search-only mode.
func (s *Server) requireStore() error {
	if !s.caps.Database || s.store == nil {
		return errDatabaseUnavailable
	}
	return nil
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing arguments")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------- users

func (s *Server) toolRegisterUser(_ context.Context, raw json.RawMessage) (string, error) {
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
	return fmt.Sprintf("Registered %s (user id %d).", user.Email, user.ID), nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// ---------------------------------------------------------------- search

func (s *Server) toolSearchSteam(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errors.New("query is required")
	}

	games, err := s.steam.Search(ctx, args.Query)
	if err != nil {
		return "", err
	}
	if len(games) == 0 {
		return fmt.Sprintf("No Steam games found for %q.", args.Query), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d Steam games for %q:\n", len(games), args.Query)
	for _, g := range games {
		fmt.Fprintf(&b, "- %s [app id %d]: %s\n", g.Title, g.AppID, formatPrice(g.Price))
	}
	return b.String(), nil
}

func (s *Server) toolSearchEpic(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errors.New("query is required")
	}

	games, err := s.epic.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return "", err
	}
	if len(games) == 0 {
		return fmt.Sprintf("No Epic games found for %q.", args.Query), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d Epic games for %q:\n", len(games), args.Query)
	for _, g := range games {
		fmt.Fprintf(&b, "- %s [namespace %s, offer %s]: %s\n",
			g.Title, g.EpicNamespace, g.EpicOfferID, formatPrice(g.Price))
	}
	return b.String(), nil
}

func (s *Server) toolSearchAll(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Query     string   `json:"query"`
		Platforms []string `json:"platforms"`
		Limit     int      `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errors.New("query is required")
	}

	wantSteam, wantEpic := true, true
	if len(args.Platforms) > 0 {
		wantSteam, wantEpic = false, false
		for _, p := range args.Platforms {
			switch storefront.Platform(strings.ToLower(p)) {
			case storefront.PlatformSteam:
				wantSteam = true
			case storefront.PlatformEpic:
				wantEpic = true
			default:
				return "", fmt.Errorf("unknown platform %q", p)
			}
		}
	}

	// One unreachable storefront degrades the answer, it does not fail it.
	var b strings.Builder
	var failures []string
	if wantSteam {
		games, err := s.steam.Search(ctx, args.Query)
		if err != nil {
			failures = append(failures, "Steam: "+err.Error())
		} else {
			b.WriteString("Steam:\n")
			writeGameLines(&b, games, args.Limit)
		}
	}
	if wantEpic {
		games, err := s.epic.Search(ctx, args.Query, args.Limit)
		if err != nil {
			failures = append(failures, "Epic: "+err.Error())
		} else {
			b.WriteString("Epic Games Store:\n")
			writeGameLines(&b, games, args.Limit)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("all storefront searches failed: %s", strings.Join(failures, "; "))
	}
	for _, f := range failures {
		fmt.Fprintf(&b, "(unavailable) %s\n", f)
	}
	return b.String(), nil
}

func writeGameLines(b *strings.Builder, games []storefront.Game, limit int) {
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	if len(games) == 0 {
		b.WriteString("  no matches\n")
		return
	}
	for _, g := range games {
		switch g.Platform {
		case storefront.PlatformSteam:
			fmt.Fprintf(b, "  - %s [app id %d]: %s\n", g.Title, g.AppID, formatPrice(g.Price))
		default:
			fmt.Fprintf(b, "  - %s [namespace %s, offer %s]: %s\n",
				g.Title, g.EpicNamespace, g.EpicOfferID, formatPrice(g.Price))
		}
	}
}

// ---------------------------------------------------------------- compare

func (s *Server) toolComparePrices(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		GameTitle string `json:"game_title"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.GameTitle) == "" {
		return "", errors.New("game_title is required")
	}

	steamGames, steamErr := s.steam.Search(ctx, args.GameTitle)
	epicGames, epicErr := s.epic.Search(ctx, args.GameTitle, 0)
	if steamErr != nil && epicErr != nil {
		return "", fmt.Errorf("both storefront searches failed: %v; %v", steamErr, epicErr)
	}

	// The cross-platform join is exact equality of normalized titles. The
	// first matching pair wins; everything else is reported single-platform.
	var steamPick, epicPick *storefront.Game
	for i := range steamGames {
		for j := range epicGames {
			if storefront.TitlesMatch(steamGames[i].Title, epicGames[j].Title) {
				steamPick, epicPick = &steamGames[i], &epicGames[j]
				break
			}
		}
		if steamPick != nil {
			break
		}
	}
	if steamPick == nil && len(steamGames) > 0 {
		steamPick = &steamGames[0]
	}
	if epicPick == nil && len(epicGames) > 0 {
		epicPick = &epicGames[0]
	}

	if steamPick == nil && epicPick == nil {
		return fmt.Sprintf("No games found for %q on either platform.", args.GameTitle), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Price comparison for %q:\n", args.GameTitle)
	if steamPick != nil {
		fmt.Fprintf(&b, "- Steam: %s [app id %d]: %s\n",
			steamPick.Title, steamPick.AppID, formatPrice(steamPick.Price))
	}
	if epicPick != nil {
		fmt.Fprintf(&b, "- Epic Games Store: %s [namespace %s, offer %s]: %s\n",
			epicPick.Title, epicPick.EpicNamespace, epicPick.EpicOfferID, formatPrice(epicPick.Price))
	}

	joined := steamPick != nil && epicPick != nil && storefront.TitlesMatch(steamPick.Title, epicPick.Title)
	if joined {
		b.WriteString(verdictLine(steamPick.Price, epicPick.Price))
		s.recordMapping(steamPick, epicPick)
	} else {
		b.WriteString("No exact cross-platform match; prices shown are per-platform best guesses.\n")
	}
	return b.String(), nil
}

func verdictLine(steam, epic storefront.Price) string {
	if !steam.Available || !epic.Available {
		return "One platform has no current price; no verdict.\n"
	}
	switch {
	case steam.Current.LessThan(epic.Current):
		return "Steam is cheaper.\n"
	case epic.Current.LessThan(steam.Current):
		return "Epic Games Store is cheaper.\n"
	default:
		return "Both platforms charge the same price.\n"
	}
}

// recordMapping persists a confirmed join so later lookups skip the search.
// Best effort: in search-only mode or on write failure the comparison still
// answers.
func (s *Server) recordMapping(steamGame, epicGame *storefront.Game) {
	if s.requireStore() != nil {
		return
	}
	m := &store.GamePlatformMapping{
		NormalizedTitle: storefront.NormalizeTitle(steamGame.Title),
		GameTitle:       steamGame.Title,
		SteamAppID:      steamGame.AppID,
		EpicNamespace:   epicGame.EpicNamespace,
		EpicOfferID:     epicGame.EpicOfferID,
	}
	if err := s.store.UpsertMapping(m); err != nil {
		slog.Warn("failed to record platform mapping", "title", steamGame.Title, "error", err)
	}
}
