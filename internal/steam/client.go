package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gametrack/gametrack/internal/storefront"
)

const (
	defaultAPIBase   = "https://api.steampowered.com"
	defaultStoreBase = "https://store.steampowered.com/api"

	// maxSearchResults caps how many matches get a price lookup; the app
	// list has well over 100k entries.
	maxSearchResults = 15
)

// skipTerms filters technical catalog entries out of search results.
var skipTerms = []string{"dedicated server", "sdk", "authoring tools", "workshop", "demo", "soundtrack"}

// Client talks to the Steam Web and Store APIs and normalizes responses
// into the common game record.
type Client struct {
	httpClient *http.Client
	apiBase    string
	storeBase  string
	// fallbackStoreBase is tried when the primary store endpoint fails.
	fallbackStoreBase string
	country           string
}

type Option func(*Client)

// WithBaseURLs overrides the upstream endpoints, mainly for tests.
func WithBaseURLs(apiBase, storeBase string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimRight(apiBase, "/")
		c.storeBase = strings.TrimRight(storeBase, "/")
	}
}

// WithFallbackStoreURL configures a secondary store endpoint used when the
// primary one is unreachable.
func WithFallbackStoreURL(base string) Option {
	return func(c *Client) { c.fallbackStoreBase = strings.TrimRight(base, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(country string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiBase:    defaultAPIBase,
		storeBase:  defaultStoreBase,
		country:    country,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns games whose names contain the query, exact matches first,
// with current prices resolved for each. Zero results is not an error.
func (c *Client) Search(ctx context.Context, query string) ([]storefront.Game, error) {
	url := c.apiBase + "/ISteamApps/GetAppList/v2/"
	var list appListResponse
	if err := c.getJSON(ctx, url, &list); err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return nil, nil
	}

	type match struct {
		entry appEntry
		exact bool
	}
	var matches []match
	for _, app := range list.AppList.Apps {
		name := strings.TrimSpace(app.Name)
		if name == "" {
			continue
		}
		nameLower := strings.ToLower(name)
		if skipEntry(nameLower) {
			continue
		}
		if strings.Contains(nameLower, queryLower) {
			matches = append(matches, match{entry: app, exact: nameLower == queryLower})
		}
	}
	// Exact matches first; otherwise keep the upstream catalog order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].exact && !matches[j].exact
	})
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}

	games := make([]storefront.Game, 0, len(matches))
	for _, m := range matches {
		game, err := c.AppDetails(ctx, m.entry.AppID)
		if err != nil {
			// One unpriceable app must not fail the batch.
			slog.Warn("skipping steam app with failed price lookup",
				"app_id", m.entry.AppID, "error", err)
			games = append(games, storefront.Game{
				Platform: storefront.PlatformSteam,
				Title:    m.entry.Name,
				AppID:    m.entry.AppID,
			})
			continue
		}
		games = append(games, *game)
	}
	return games, nil
}

// AppDetails fetches price and metadata for one app id. A nil result with
// nil error means Steam does not know the app.
func (c *Client) AppDetails(ctx context.Context, appID int) (*storefront.Game, error) {
	path := fmt.Sprintf("/appdetails?appids=%d&cc=%s", appID, c.country)

	var payload map[string]appDetailsEntry
	err := c.getJSON(ctx, c.storeBase+path, &payload)
	if err != nil && c.fallbackStoreBase != "" {
		slog.Warn("steam store endpoint failed, retrying fallback", "app_id", appID, "error", err)
		err = c.getJSON(ctx, c.fallbackStoreBase+path, &payload)
	}
	if err != nil {
		return nil, err
	}

	entry, ok := payload[strconv.Itoa(appID)]
	if !ok || !entry.Success {
		return nil, nil
	}

	game := &storefront.Game{
		Platform: storefront.PlatformSteam,
		Title:    entry.Data.Name,
		AppID:    appID,
		URL:      fmt.Sprintf("https://store.steampowered.com/app/%d", appID),
	}
	if len(entry.Data.Developers) > 0 {
		game.Developer = entry.Data.Developers[0]
	}
	game.Price = normalizePrice(entry.Data)
	return game, nil
}

// TopDeals returns the current specials with a discount of at least 10%,
// deepest discount first.
func (c *Client) TopDeals(ctx context.Context, limit int) ([]storefront.Game, error) {
	path := "/featuredcategories?cc=" + c.country

	var payload featuredCategoriesResponse
	err := c.getJSON(ctx, c.storeBase+path, &payload)
	if err != nil && c.fallbackStoreBase != "" {
		slog.Warn("steam featured endpoint failed, retrying fallback", "error", err)
		err = c.getJSON(ctx, c.fallbackStoreBase+path, &payload)
	}
	if err != nil {
		return nil, err
	}

	deals := make([]storefront.Game, 0, len(payload.Specials.Items))
	for _, item := range payload.Specials.Items {
		if !item.Discounted || item.DiscountPercent < 10 || item.Name == "" {
			continue
		}
		deals = append(deals, storefront.Game{
			Platform: storefront.PlatformSteam,
			Title:    item.Name,
			AppID:    item.ID,
			URL:      fmt.Sprintf("https://store.steampowered.com/app/%d", item.ID),
			Price: storefront.Price{
				Currency:        item.Currency,
				Original:        minorUnits(item.OriginalPrice),
				Current:         minorUnits(item.FinalPrice),
				DiscountPercent: item.DiscountPercent,
				Available:       true,
			},
		})
	}
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Price.DiscountPercent > deals[j].Price.DiscountPercent
	})
	if limit > 0 && len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &storefront.TransportError{Endpoint: url, Err: err}
	}
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

func skipEntry(nameLower string) bool {
	for _, term := range skipTerms {
		if strings.Contains(nameLower, term) {
			return true
		}
	}
	return false
}

// normalizePrice maps the appdetails payload onto the common price struct.
// A missing price_overview on a paid title means Steam does not sell it in
// the configured country.
func normalizePrice(data appDetailsData) storefront.Price {
	if data.IsFree {
		return storefront.Price{Currency: "", IsFree: true, Available: true}
	}
	if data.PriceOverview == nil {
		return storefront.Price{Available: false}
	}
	po := data.PriceOverview
	return storefront.Price{
		Currency:        po.Currency,
		Original:        minorUnits(po.Initial),
		Current:         minorUnits(po.Final),
		DiscountPercent: po.DiscountPercent,
		Available:       true,
	}
}

// minorUnits converts paise/cents into a two-decimal amount.
func minorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
