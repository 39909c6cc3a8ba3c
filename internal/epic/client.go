package epic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gametrack/gametrack/internal/storefront"
)

const (
	defaultGraphQLEndpoint = "https://graphql.epicgames.com/graphql"

	// The static free-games feed is served from several hosts; they fail
	// independently, so the client walks them in order. GamerPower is the
	// final cross-store aggregator fallback.
	freeGamesPrimary   = "https://store-site-backend-static-ipv4.ak.epicgames.com/freeGamesPromotions"
	freeGamesSecondary = "https://store-site-backend-static.ak.epicgames.com/freeGamesPromotions"
	gamerPowerEndpoint = "https://gamerpower.com/api/giveaways?platform=epic-games-store&type=game"
)

const searchQuery = `query searchStoreQuery($keywords: String!, $country: String!, $count: Int) {
  Catalog {
    searchStore(keywords: $keywords, country: $country, count: $count, category: "games/edition/base") {
      elements {
        title id namespace description productSlug
        seller { name }
        price(country: $country) { totalPrice { discountPrice originalPrice currencyCode } }
      }
    }
  }
}`

const offerQuery = `query catalogOffer($namespace: String!, $offerID: String!, $country: String!) {
  Catalog {
    catalogOffer(namespace: $namespace, id: $offerID, locale: "en-US") {
      title id namespace productSlug
      seller { name }
      price(country: $country) { totalPrice { discountPrice originalPrice currencyCode } }
    }
  }
}`

// Client talks to the Epic Games Store catalog and promotion feeds.
type Client struct {
	httpClient      *http.Client
	graphqlEndpoint string
	freeEndpoints   []string
	country         string
}

type Option func(*Client)

// WithGraphQLEndpoint overrides the catalog endpoint, mainly for tests.
func WithGraphQLEndpoint(url string) Option {
	return func(c *Client) { c.graphqlEndpoint = url }
}

// WithFreeGamesEndpoints replaces the ordered promotion-feed fallback list.
func WithFreeGamesEndpoints(urls ...string) Option {
	return func(c *Client) { c.freeEndpoints = urls }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(country string, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		graphqlEndpoint: defaultGraphQLEndpoint,
		country:         country,
	}
	c.freeEndpoints = []string{
		fmt.Sprintf("%s?locale=en-US&country=%s&allowCountries=%s", freeGamesPrimary, country, country),
		fmt.Sprintf("%s?locale=en-US&country=%s", freeGamesSecondary, country),
		gamerPowerEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the catalog for games matching the keywords. Zero results
// is not an error; malformed elements are skipped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]storefront.Game, error) {
	if limit <= 0 {
		limit = 10
	}
	var resp catalogResponse
	err := c.postGraphQL(ctx, searchQuery, map[string]interface{}{
		"keywords": query,
		"country":  c.country,
		"count":    limit,
	}, &resp)
	if err != nil {
		return nil, err
	}

	games := make([]storefront.Game, 0, len(resp.Data.Catalog.SearchStore.Elements))
	for _, el := range resp.Data.Catalog.SearchStore.Elements {
		game, ok := normalizeElement(el)
		if !ok {
			continue
		}
		games = append(games, game)
		if len(games) == limit {
			break
		}
	}
	return games, nil
}

// Price fetches the current price of one offer. A nil result with nil error
// means the offer is unknown.
func (c *Client) Price(ctx context.Context, namespace, offerID string) (*storefront.Game, error) {
	var resp catalogResponse
	err := c.postGraphQL(ctx, offerQuery, map[string]interface{}{
		"namespace": namespace,
		"offerID":   offerID,
		"country":   c.country,
	}, &resp)
	if err != nil {
		return nil, err
	}

	el := resp.Data.Catalog.CatalogOffer
	if el == nil {
		return nil, nil
	}
	game, ok := normalizeElement(*el)
	if !ok {
		return nil, &storefront.ParseError{
			Endpoint: c.graphqlEndpoint,
			Err:      fmt.Errorf("offer %s/%s has no usable title", namespace, offerID),
		}
	}
	// The offer query authoritatively identifies the pair we asked for.
	game.EpicNamespace = namespace
	game.EpicOfferID = offerID
	return &game, nil
}

// FreeGames returns the current and upcoming giveaway promotions, walking
// the fallback feeds until one answers with data.
func (c *Client) FreeGames(ctx context.Context) ([]storefront.FreePromotion, error) {
	var lastErr error
	for i, endpoint := range c.freeEndpoints {
		var (
			promos []storefront.FreePromotion
			err    error
		)
		if strings.Contains(endpoint, "gamerpower") {
			promos, err = c.freeGamesFromGamerPower(ctx, endpoint)
		} else {
			promos, err = c.freeGamesFromFeed(ctx, endpoint)
		}
		if err != nil {
			slog.Warn("free games endpoint failed",
				"endpoint_index", i, "endpoints_total", len(c.freeEndpoints), "error", err)
			lastErr = err
			continue
		}
		if len(promos) > 0 {
			return promos, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (c *Client) freeGamesFromFeed(ctx context.Context, endpoint string) ([]storefront.FreePromotion, error) {
	var resp freeGamesResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	var promos []storefront.FreePromotion
	for _, el := range resp.Data.Catalog.SearchStore.Elements {
		if el.Title == "" || el.Title == "Mystery Game" || el.Promotions == nil {
			continue
		}
		base, ok := normalizeElement(el)
		if !ok {
			continue
		}
		base.Price.IsFree = true
		base.Price.Current = decimal.Zero

		promos = append(promos, collectOffers(base, el.Promotions.PromotionalOffers, false)...)
		promos = append(promos, collectOffers(base, el.Promotions.UpcomingPromotionalOffers, true)...)
	}
	return promos, nil
}

// collectOffers keeps only the offers whose discount setting marks the game
// fully free (a stored percentage of 0 means 100% off in this feed).
func collectOffers(base storefront.Game, groups []promotionalOfferGroup, upcoming bool) []storefront.FreePromotion {
	var promos []storefront.FreePromotion
	for _, group := range groups {
		for _, offer := range group.PromotionalOffers {
			if offer.DiscountSetting.DiscountPercentage == nil || *offer.DiscountSetting.DiscountPercentage != 0 {
				continue
			}
			promos = append(promos, storefront.FreePromotion{
				Game:      base,
				StartDate: parseOfferDate(offer.StartDate),
				EndDate:   parseOfferDate(offer.EndDate),
				Upcoming:  upcoming,
			})
		}
	}
	return promos
}

func (c *Client) freeGamesFromGamerPower(ctx context.Context, endpoint string) ([]storefront.FreePromotion, error) {
	var giveaways []gamerPowerGiveaway
	if err := c.getJSON(ctx, endpoint, &giveaways); err != nil {
		return nil, err
	}

	var promos []storefront.FreePromotion
	for _, g := range giveaways {
		if !strings.Contains(strings.ToLower(g.Platforms), "epic") || g.Title == "" {
			continue
		}
		promos = append(promos, storefront.FreePromotion{
			Game: storefront.Game{
				Platform: storefront.PlatformEpic,
				Title:    g.Title,
				// The aggregator has no namespace/offer pair; the numeric
				// giveaway id keeps the promotion diffable.
				EpicNamespace: "gamerpower",
				EpicOfferID:   strconv.Itoa(g.ID),
				URL:           g.OpenGiveawayURL,
				Price:         storefront.Price{IsFree: true, Available: true},
			},
			EndDate: parseOfferDate(g.EndDate),
		})
	}
	return promos, nil
}

func (c *Client) postGraphQL(ctx context.Context, query string, variables map[string]interface{}, v interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return &storefront.ParseError{Endpoint: c.graphqlEndpoint, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlEndpoint, bytes.NewReader(body))
	if err != nil {
		return &storefront.TransportError{Endpoint: c.graphqlEndpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &storefront.TransportError{Endpoint: c.graphqlEndpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &storefront.TransportError{
			Endpoint: c.graphqlEndpoint,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &storefront.ParseError{Endpoint: c.graphqlEndpoint, Err: err}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &storefront.TransportError{Endpoint: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &storefront.TransportError{Endpoint: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &storefront.TransportError{Endpoint: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &storefront.ParseError{Endpoint: url, Err: err}
	}
	return nil
}

// normalizeElement maps a catalog element onto the common game record.
// Elements with no title are unusable and reported as not-ok.
func normalizeElement(el catalogElement) (storefront.Game, bool) {
	if el.Title == "" {
		return storefront.Game{}, false
	}
	game := storefront.Game{
		Platform:      storefront.PlatformEpic,
		Title:         el.Title,
		EpicNamespace: el.Namespace,
		EpicOfferID:   el.ID,
	}
	if el.Seller != nil {
		game.Developer = el.Seller.Name
	}
	if el.ProductSlug != "" {
		game.URL = "https://store.epicgames.com/en-US/p/" + strings.TrimSuffix(el.ProductSlug, "/home")
	}
	if el.Price != nil {
		tp := el.Price.TotalPrice
		current := decimal.New(tp.DiscountPrice, -2)
		original := decimal.New(tp.OriginalPrice, -2)
		discount := 0
		if original.IsPositive() && original.GreaterThan(current) {
			discount = int(original.Sub(current).Div(original).Mul(decimal.NewFromInt(100)).IntPart())
		}
		game.Price = storefront.Price{
			Currency:        tp.CurrencyCode,
			Original:        original,
			Current:         current,
			DiscountPercent: discount,
			IsFree:          current.IsZero(),
			Available:       true,
		}
	}
	return game, true
}

// parseOfferDate tolerates the feed's RFC3339 timestamps and plain dates;
// a missing or unparseable date is simply absent.
func parseOfferDate(v string) *time.Time {
	if v == "" || v == "N/A" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
