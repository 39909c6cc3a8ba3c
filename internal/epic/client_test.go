package epic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gametrack/gametrack/internal/storefront"
)

const searchBody = `{"data":{"Catalog":{"searchStore":{"elements":[
	{"title":"Control","id":"offer-1","namespace":"calluna","productSlug":"control",
	 "seller":{"name":"Remedy Entertainment"},
	 "price":{"totalPrice":{"discountPrice":1999,"originalPrice":3999,"currencyCode":"USD"}}},
	{"title":"","id":"broken","namespace":"x"},
	{"title":"Control Ultimate Edition","id":"offer-2","namespace":"calluna",
	 "price":{"totalPrice":{"discountPrice":0,"originalPrice":0,"currencyCode":"USD"}}}
]}}}}`

const freeGamesFeedBody = `{"data":{"Catalog":{"searchStore":{"elements":[
	{"title":"112 Operator","id":"op-112","namespace":"jutsu","productSlug":"112-operator",
	 "seller":{"name":"Jutsu Games"},
	 "price":{"totalPrice":{"discountPrice":0,"originalPrice":1999,"currencyCode":"USD"}},
	 "promotions":{"promotionalOffers":[{"promotionalOffers":[
		{"startDate":"2025-08-14T15:00:00.000Z","endDate":"2025-08-21T15:00:00.000Z",
		 "discountSetting":{"discountType":"PERCENTAGE","discountPercentage":0}}]}],
	  "upcomingPromotionalOffers":[{"promotionalOffers":[
		{"startDate":"2025-08-21T15:00:00.000Z","endDate":"2025-08-28T15:00:00.000Z",
		 "discountSetting":{"discountType":"PERCENTAGE","discountPercentage":0}}]}]}},
	{"title":"Just Discounted","id":"jd","namespace":"jd",
	 "promotions":{"promotionalOffers":[{"promotionalOffers":[
		{"startDate":"2025-08-14T15:00:00.000Z","endDate":"2025-08-21T15:00:00.000Z",
		 "discountSetting":{"discountType":"PERCENTAGE","discountPercentage":75}}]}],
	  "upcomingPromotionalOffers":[]}},
	{"title":"Mystery Game","id":"m","namespace":"m","promotions":{"promotionalOffers":[]}}
]}}}}`

func TestSearchNormalizesElements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(searchBody))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("US", WithGraphQLEndpoint(srv.URL))
	games, err := c.Search(context.Background(), "control", 10)
	require.NoError(t, err)

	require.Len(t, games, 2, "untitled elements are skipped, not fatal")
	require.Equal(t, "Control", games[0].Title)
	require.Equal(t, "calluna", games[0].EpicNamespace)
	require.Equal(t, "offer-1", games[0].EpicOfferID)
	require.Equal(t, "Remedy Entertainment", games[0].Developer)
	require.Equal(t, "19.99", games[0].Price.Current.String())
	require.Equal(t, 50, games[0].Price.DiscountPercent)
	require.True(t, games[1].Price.IsFree)
}

func TestSearchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("US", WithGraphQLEndpoint(srv.URL))
	_, err := c.Search(context.Background(), "control", 10)
	var te *storefront.TransportError
	require.True(t, errors.As(err, &te))
}

func TestPriceOfferLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Catalog":{"catalogOffer":
			{"title":"Control","id":"offer-1","namespace":"calluna",
			 "price":{"totalPrice":{"discountPrice":1999,"originalPrice":3999,"currencyCode":"USD"}}}}}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("US", WithGraphQLEndpoint(srv.URL))
	game, err := c.Price(context.Background(), "calluna", "offer-1")
	require.NoError(t, err)
	require.NotNil(t, game)
	require.Equal(t, "calluna", game.EpicNamespace)
	require.Equal(t, "offer-1", game.EpicOfferID)
	require.Equal(t, "19.99", game.Price.Current.String())
}

func TestPriceUnknownOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Catalog":{"catalogOffer":null}}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("US", WithGraphQLEndpoint(srv.URL))
	game, err := c.Price(context.Background(), "nope", "nope")
	require.NoError(t, err)
	require.Nil(t, game)
}

func TestFreeGamesClassifiesOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(freeGamesFeedBody))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("US", WithFreeGamesEndpoints(srv.URL))
	promos, err := c.FreeGames(context.Background())
	require.NoError(t, err)

	// 112 Operator contributes one current and one upcoming window; the
	// 75%-off promotion and the Mystery Game placeholder are excluded.
	require.Len(t, promos, 2)

	var current, upcoming int
	for _, p := range promos {
		require.Equal(t, "112 Operator", p.Game.Title)
		require.True(t, p.Game.Price.IsFree)
		require.NotNil(t, p.EndDate)
		if p.Upcoming {
			upcoming++
		} else {
			current++
		}
	}
	require.Equal(t, 1, current)
	require.Equal(t, 1, upcoming)
}

func TestFreeGamesWalksFallbacks(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)

	gamerPower := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":3313,"title":"Road Redemption Giveaway","platforms":"PC, Epic Games Store",
			 "open_giveaway_url":"https://example.test/claim","end_date":"2025-08-21 23:59:00"},
			{"id":9,"title":"Steam Only Thing","platforms":"PC, Steam"}
		]`))
	}))
	t.Cleanup(gamerPower.Close)

	c := NewClient("US", WithFreeGamesEndpoints(broken.URL, gamerPower.URL+"/gamerpower"))
	promos, err := c.FreeGames(context.Background())
	require.NoError(t, err)

	require.Len(t, promos, 1, "non-Epic giveaways are filtered out")
	require.Equal(t, "Road Redemption Giveaway", promos[0].Game.Title)
	require.Equal(t, "gamerpower", promos[0].Game.EpicNamespace)
	require.Equal(t, "3313", promos[0].Game.EpicOfferID)
	require.NotNil(t, promos[0].EndDate)
}

func TestFreeGamesAllEndpointsDown(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)

	c := NewClient("US", WithFreeGamesEndpoints(broken.URL, broken.URL+"/b"))
	_, err := c.FreeGames(context.Background())
	var te *storefront.TransportError
	require.True(t, errors.As(err, &te), "the last transport failure surfaces to the caller")
}
