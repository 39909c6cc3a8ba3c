package steam

// appListResponse matches the JSON structure from GetAppList/v2.
type appListResponse struct {
	AppList struct {
		Apps []appEntry `json:"apps"`
	} `json:"applist"`
}

type appEntry struct {
	AppID int    `json:"appid"`
	Name  string `json:"name"`
}

// appDetailsEntry is one value of the appdetails response map, keyed by the
// app id as a string.
type appDetailsEntry struct {
	Success bool           `json:"success"`
	Data    appDetailsData `json:"data"`
}

type appDetailsData struct {
	Name          string         `json:"name"`
	IsFree        bool           `json:"is_free"`
	PriceOverview *priceOverview `json:"price_overview"`
	Developers    []string       `json:"developers"`
}

// priceOverview carries prices in minor currency units (paise/cents).
type priceOverview struct {
	Currency        string `json:"currency"`
	Initial         int64  `json:"initial"`
	Final           int64  `json:"final"`
	DiscountPercent int    `json:"discount_percent"`
}

// featuredCategoriesResponse is the slice of featuredcategories we care
// about: the "specials" carousel.
type featuredCategoriesResponse struct {
	Specials struct {
		Items []specialItem `json:"items"`
	} `json:"specials"`
}

type specialItem struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Discounted      bool   `json:"discounted"`
	DiscountPercent int    `json:"discount_percent"`
	OriginalPrice   int64  `json:"original_price"`
	FinalPrice      int64  `json:"final_price"`
	Currency        string `json:"currency"`
}
