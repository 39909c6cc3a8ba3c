package epic

// graphqlRequest is the POST body for the Epic catalog GraphQL endpoint.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// catalogResponse covers both searchStore and catalogOffer queries.
type catalogResponse struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []catalogElement `json:"elements"`
			} `json:"searchStore"`
			CatalogOffer *catalogElement `json:"catalogOffer"`
		} `json:"Catalog"`
	} `json:"data"`
}

type catalogElement struct {
	Title       string `json:"title"`
	ID          string `json:"id"`
	Namespace   string `json:"namespace"`
	Description string `json:"description"`
	ProductSlug string `json:"productSlug"`
	Seller      *struct {
		Name string `json:"name"`
	} `json:"seller"`
	Price *struct {
		TotalPrice struct {
			DiscountPrice int64  `json:"discountPrice"`
			OriginalPrice int64  `json:"originalPrice"`
			CurrencyCode  string `json:"currencyCode"`
		} `json:"totalPrice"`
	} `json:"price"`
	KeyImages []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"keyImages"`
	Promotions *promotions `json:"promotions"`
}

type promotions struct {
	PromotionalOffers         []promotionalOfferGroup `json:"promotionalOffers"`
	UpcomingPromotionalOffers []promotionalOfferGroup `json:"upcomingPromotionalOffers"`
}

type promotionalOfferGroup struct {
	PromotionalOffers []promotionalOffer `json:"promotionalOffers"`
}

type promotionalOffer struct {
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	DiscountSetting struct {
		DiscountType       string `json:"discountType"`
		DiscountPercentage *int   `json:"discountPercentage"`
	} `json:"discountSetting"`
}

// freeGamesResponse is the shape of the static freeGamesPromotions feed.
type freeGamesResponse struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []catalogElement `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

// gamerPowerGiveaway is one entry of the GamerPower aggregator feed, the
// last-resort fallback for free-game promotions.
type gamerPowerGiveaway struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	OpenGiveawayURL string `json:"open_giveaway_url"`
	Platforms       string `json:"platforms"`
	EndDate         string `json:"end_date"`
	ID              int    `json:"id"`
}
