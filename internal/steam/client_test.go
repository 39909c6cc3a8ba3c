package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gametrack/gametrack/internal/storefront"
)

const appListBody = `{"applist":{"apps":[
	{"appid":1091500,"name":"Cyberpunk 2077"},
	{"appid":999,"name":"Cyberpunk 2077 Dedicated Server"},
	{"appid":413150,"name":"Stardew Valley"},
	{"appid":0,"name":""}
]}}`

const cyberpunkDetails = `{"1091500":{"success":true,"data":{
	"name":"Cyberpunk 2077","is_free":false,
	"price_overview":{"currency":"INR","initial":299900,"final":149950,"discount_percent":50},
	"developers":["CD PROJEKT RED"]
}}}`

func newTestClient(t *testing.T, api, store http.Handler) *Client {
	t.Helper()
	apiSrv := httptest.NewServer(api)
	storeSrv := httptest.NewServer(store)
	t.Cleanup(apiSrv.Close)
	t.Cleanup(storeSrv.Close)
	return NewClient("IN", WithBaseURLs(apiSrv.URL, storeSrv.URL))
}

func TestSearchFiltersAndPrices(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(appListBody))
	})
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cyberpunkDetails))
	})

	c := newTestClient(t, api, store)
	games, err := c.Search(context.Background(), "cyberpunk")
	require.NoError(t, err)

	require.Len(t, games, 1, "dedicated server entries must be skipped")
	g := games[0]
	require.Equal(t, 1091500, g.AppID)
	require.Equal(t, "Cyberpunk 2077", g.Title)
	require.True(t, g.Price.Available)
	require.Equal(t, 50, g.Price.DiscountPercent)
	require.Equal(t, "1499.5", g.Price.Current.String())
	require.Equal(t, "CD PROJEKT RED", g.Developer)
}

func TestSearchZeroResultsIsNotAnError(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(appListBody))
	})
	c := newTestClient(t, api, http.NotFoundHandler())

	games, err := c.Search(context.Background(), "no such game anywhere")
	require.NoError(t, err)
	require.Empty(t, games)
}

func TestSearchSurvivesPriceLookupFailure(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(appListBody))
	})
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := newTestClient(t, api, store)
	games, err := c.Search(context.Background(), "stardew")
	require.NoError(t, err, "a failed price lookup must not fail the batch")
	require.Len(t, games, 1)
	require.False(t, games[0].Price.Available)
}

func TestAppDetailsTransportError(t *testing.T) {
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, http.NotFoundHandler(), store)

	_, err := c.AppDetails(context.Background(), 1091500)
	var te *storefront.TransportError
	require.True(t, errors.As(err, &te))
}

func TestAppDetailsParseError(t *testing.T) {
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"1091500": not json`))
	})
	c := newTestClient(t, http.NotFoundHandler(), store)

	_, err := c.AppDetails(context.Background(), 1091500)
	var pe *storefront.ParseError
	require.True(t, errors.As(err, &pe))
}

func TestAppDetailsFallbackEndpoint(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(primary.Close)
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cyberpunkDetails))
	}))
	t.Cleanup(fallback.Close)

	c := NewClient("IN",
		WithBaseURLs(primary.URL, primary.URL),
		WithFallbackStoreURL(fallback.URL))

	game, err := c.AppDetails(context.Background(), 1091500)
	require.NoError(t, err)
	require.NotNil(t, game)
	require.Equal(t, "Cyberpunk 2077", game.Title)
}

func TestAppDetailsUnknownApp(t *testing.T) {
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"42":{"success":false}}`))
	})
	c := newTestClient(t, http.NotFoundHandler(), store)

	game, err := c.AppDetails(context.Background(), 42)
	require.NoError(t, err)
	require.Nil(t, game)
}

func TestAppDetailsFreeGame(t *testing.T) {
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"570":{"success":true,"data":{"name":"Dota 2","is_free":true}}}`))
	})
	c := newTestClient(t, http.NotFoundHandler(), store)

	game, err := c.AppDetails(context.Background(), 570)
	require.NoError(t, err)
	require.True(t, game.Price.IsFree)
	require.True(t, game.Price.Available)
	require.True(t, game.Price.Current.IsZero())
}

func TestTopDeals(t *testing.T) {
	store := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"specials":{"items":[
			{"id":1,"name":"Small Discount","discounted":true,"discount_percent":5,"original_price":10000,"final_price":9500,"currency":"INR"},
			{"id":2,"name":"Half Off","discounted":true,"discount_percent":50,"original_price":200000,"final_price":100000,"currency":"INR"},
			{"id":3,"name":"Deep Cut","discounted":true,"discount_percent":80,"original_price":100000,"final_price":20000,"currency":"INR"},
			{"id":4,"name":"","discounted":true,"discount_percent":90,"original_price":100,"final_price":10,"currency":"INR"}
		]}}`))
	})
	c := newTestClient(t, http.NotFoundHandler(), store)

	deals, err := c.TopDeals(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, deals, 2, "sub-10%% discounts and unnamed items are dropped")
	require.Equal(t, "Deep Cut", deals[0].Title, "deepest discount first")
	require.Equal(t, "1000", deals[1].Price.Current.String())
}
