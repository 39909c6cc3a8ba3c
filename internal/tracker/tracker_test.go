package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/gametrack/gametrack/internal/store"
	"github.com/gametrack/gametrack/internal/storefront"
)

type fakeSteam struct {
	details map[int]*storefront.Game
	deals   []storefront.Game
	err     error
}

func (f *fakeSteam) AppDetails(_ context.Context, appID int) (*storefront.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details[appID], nil
}

func (f *fakeSteam) TopDeals(_ context.Context, limit int) ([]storefront.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.deals) > limit {
		return f.deals[:limit], nil
	}
	return f.deals, nil
}

type fakeEpic struct {
	prices map[string]*storefront.Game
	promos []storefront.FreePromotion
	err    error
}

func (f *fakeEpic) Price(_ context.Context, namespace, offerID string) (*storefront.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prices[namespace+"/"+offerID], nil
}

func (f *fakeEpic) FreeGames(_ context.Context) ([]storefront.FreePromotion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.promos, nil
}

type sentMail struct {
	to      string
	subject string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	if f.fail {
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject})
	return nil
}

func newTestTracker(t *testing.T, steam *fakeSteam, epic *fakeEpic, mailer *fakeMailer) (*Tracker, *store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := store.Open(sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, s.AutoMigrate())
	t.Cleanup(func() { _ = s.Close() })
	return New(s, steam, epic, mailer, nil), s
}

func pricedGame(appID int, current float64) *storefront.Game {
	return &storefront.Game{
		Platform: storefront.PlatformSteam,
		Title:    "Cyberpunk 2077",
		AppID:    appID,
		URL:      fmt.Sprintf("https://store.steampowered.com/app/%d", appID),
		Price: storefront.Price{
			Currency:  "INR",
			Original:  decimal.NewFromInt(2999),
			Current:   decimal.NewFromFloat(current),
			Available: true,
		},
	}
}

func TestCheckPriceAlertsNoSendAboveTarget(t *testing.T) {
	steam := &fakeSteam{details: map[int]*storefront.Game{1091500: pricedGame(1091500, 999)}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	alert, err := s.UpsertSteamAlert(user.ID, 1091500, "Cyberpunk 2077",
		decimal.NewFromInt(500), decimal.NewFromInt(2999), "INR")
	require.NoError(t, err)

	require.NoError(t, tr.CheckPriceAlerts(context.Background()))

	require.Empty(t, mailer.sent)

	due, err := s.DueSteamAlerts()
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.True(t, decimal.NewFromInt(999).Equal(due[0].CurrentPrice),
		"refreshed price should be stored even without a trigger")
	require.Equal(t, alert.ID, due[0].ID)
}

func TestCheckPriceAlertsSendsOnceAndMarks(t *testing.T) {
	steam := &fakeSteam{details: map[int]*storefront.Game{1091500: pricedGame(1091500, 499)}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	_, err = s.UpsertSteamAlert(user.ID, 1091500, "Cyberpunk 2077",
		decimal.NewFromInt(500), decimal.NewFromInt(2999), "INR")
	require.NoError(t, err)

	require.NoError(t, tr.CheckPriceAlerts(context.Background()))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "a@b.com", mailer.sent[0].to)
	require.Contains(t, mailer.sent[0].subject, "Cyberpunk 2077")

	// The alert is now marked sent; a second run mails nothing.
	require.NoError(t, tr.CheckPriceAlerts(context.Background()))
	require.Len(t, mailer.sent, 1)

	due, err := s.DueSteamAlerts()
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestCheckPriceAlertsRetriesAfterFailedDelivery(t *testing.T) {
	steam := &fakeSteam{details: map[int]*storefront.Game{1091500: pricedGame(1091500, 499)}}
	mailer := &fakeMailer{fail: true}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	_, err = s.UpsertSteamAlert(user.ID, 1091500, "Cyberpunk 2077",
		decimal.NewFromInt(500), decimal.NewFromInt(2999), "INR")
	require.NoError(t, err)

	require.NoError(t, tr.CheckPriceAlerts(context.Background()))

	// Delivery failed, so alert_sent stays false and the next run retries.
	due, err := s.DueSteamAlerts()
	require.NoError(t, err)
	require.Len(t, due, 1)

	mailer.fail = false
	require.NoError(t, tr.CheckPriceAlerts(context.Background()))
	require.Len(t, mailer.sent, 1)

	due, err = s.DueSteamAlerts()
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestCheckPriceAlertsAppendsHistory(t *testing.T) {
	steam := &fakeSteam{details: map[int]*storefront.Game{1091500: pricedGame(1091500, 999)}}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, &fakeMailer{})

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	_, err = s.UpsertSteamAlert(user.ID, 1091500, "Cyberpunk 2077",
		decimal.NewFromInt(500), decimal.NewFromInt(2999), "INR")
	require.NoError(t, err)

	require.NoError(t, tr.CheckPriceAlerts(context.Background()))
	require.NoError(t, tr.CheckPriceAlerts(context.Background()))

	points, err := s.SteamPriceHistory(1091500, 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
}

func TestCheckPriceAlertsEpicTrigger(t *testing.T) {
	epic := &fakeEpic{prices: map[string]*storefront.Game{
		"fn/ac2": {
			Platform:      storefront.PlatformEpic,
			Title:         "Alan Wake 2",
			EpicNamespace: "fn",
			EpicOfferID:   "ac2",
			Price: storefront.Price{
				Currency:  "USD",
				Original:  decimal.NewFromInt(50),
				Current:   decimal.NewFromInt(20),
				Available: true,
			},
		},
	}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, &fakeSteam{}, epic, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	_, err = s.UpsertEpicAlert(user.ID, "fn", "ac2", "Alan Wake 2",
		decimal.NewFromInt(20), decimal.NewFromInt(50), "USD")
	require.NoError(t, err)

	// Boundary: current equal to target triggers.
	require.NoError(t, tr.CheckPriceAlerts(context.Background()))
	require.Len(t, mailer.sent, 1)
}

func TestCheckFreeGamesIdempotent(t *testing.T) {
	end := time.Now().Add(72 * time.Hour)
	epic := &fakeEpic{promos: []storefront.FreePromotion{
		{
			Game: storefront.Game{
				Platform:      storefront.PlatformEpic,
				Title:         "Control",
				EpicNamespace: "calluna",
				EpicOfferID:   "offer-1",
			},
			EndDate: &end,
		},
		{
			Game: storefront.Game{
				Platform:      storefront.PlatformEpic,
				Title:         "Mystery Game",
				EpicNamespace: "calluna",
				EpicOfferID:   "offer-2",
			},
			Upcoming: true,
		},
	}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, &fakeSteam{}, epic, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	require.NoError(t, s.SubscribeFreeGames(user.ID))

	require.NoError(t, tr.CheckFreeGames(context.Background()))

	// Only the current promotion is announced, not the upcoming one.
	require.Len(t, mailer.sent, 1)
	require.Contains(t, mailer.sent[0].subject, "Control")

	// Same list again: nothing new to say.
	require.NoError(t, tr.CheckFreeGames(context.Background()))
	require.Len(t, mailer.sent, 1)

	// A new promotion in the next fetch produces exactly one more email.
	epic.promos = append(epic.promos, storefront.FreePromotion{
		Game: storefront.Game{
			Platform:      storefront.PlatformEpic,
			Title:         "Celeste",
			EpicNamespace: "salamander",
			EpicOfferID:   "offer-3",
		},
	})
	require.NoError(t, tr.CheckFreeGames(context.Background()))
	require.Len(t, mailer.sent, 2)
}

func TestCheckFreeGamesFailedDeliveryRetries(t *testing.T) {
	epic := &fakeEpic{promos: []storefront.FreePromotion{
		{Game: storefront.Game{
			Platform:      storefront.PlatformEpic,
			Title:         "Control",
			EpicNamespace: "calluna",
			EpicOfferID:   "offer-1",
		}},
	}}
	mailer := &fakeMailer{fail: true}
	tr, s := newTestTracker(t, &fakeSteam{}, epic, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	require.NoError(t, s.SubscribeFreeGames(user.ID))

	require.NoError(t, tr.CheckFreeGames(context.Background()))
	require.Empty(t, mailer.sent)

	// No row was written on the failed send, so the retry delivers.
	mailer.fail = false
	require.NoError(t, tr.CheckFreeGames(context.Background()))
	require.Len(t, mailer.sent, 1)
}

func TestSendDailyDigestOncePerDay(t *testing.T) {
	steam := &fakeSteam{deals: []storefront.Game{
		{
			Platform: storefront.PlatformSteam,
			Title:    "Hades",
			AppID:    1145360,
			Price: storefront.Price{
				Currency:        "INR",
				Original:        decimal.NewFromInt(529),
				Current:         decimal.NewFromInt(264),
				DiscountPercent: 50,
				Available:       true,
			},
		},
	}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	require.NoError(t, s.SubscribeDailyDeals(user.ID))

	require.NoError(t, tr.SendDailyDigest(context.Background()))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "a@b.com", mailer.sent[0].to)

	// A second run the same day finds no due subscribers.
	require.NoError(t, tr.SendDailyDigest(context.Background()))
	require.Len(t, mailer.sent, 1)
}

func TestSendDailyDigestSkipsFreeGameOnlySubscribers(t *testing.T) {
	steam := &fakeSteam{deals: []storefront.Game{
		{
			Platform: storefront.PlatformSteam,
			Title:    "Hades",
			AppID:    1145360,
			Price:    storefront.Price{Current: decimal.NewFromInt(264), Available: true},
		},
	}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, mailer)

	user, err := s.RegisterUser("freegames@b.com")
	require.NoError(t, err)
	require.NoError(t, s.SubscribeFreeGames(user.ID))

	require.NoError(t, tr.SendDailyDigest(context.Background()))
	require.Empty(t, mailer.sent)
}

func TestCheckPriceAlertsSkipsUnavailable(t *testing.T) {
	unlisted := pricedGame(1091500, 499)
	unlisted.Price.Available = false
	steam := &fakeSteam{details: map[int]*storefront.Game{1091500: unlisted}}
	mailer := &fakeMailer{}
	tr, s := newTestTracker(t, steam, &fakeEpic{}, mailer)

	user, err := s.RegisterUser("a@b.com")
	require.NoError(t, err)
	_, err = s.UpsertSteamAlert(user.ID, 1091500, "Cyberpunk 2077",
		decimal.NewFromInt(500), decimal.NewFromInt(2999), "INR")
	require.NoError(t, err)

	require.NoError(t, tr.CheckPriceAlerts(context.Background()))
	require.Empty(t, mailer.sent)
}
