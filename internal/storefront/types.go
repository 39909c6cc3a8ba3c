package storefront

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform identifies a storefront.
type Platform string

const (
	PlatformSteam Platform = "steam"
	PlatformEpic  Platform = "epic"
)

// Price is a normalized price snapshot. Original and Current are in major
// currency units (both storefronts report minor units upstream).
type Price struct {
	Currency        string          `json:"currency"`
	Original        decimal.Decimal `json:"original"`
	Current         decimal.Decimal `json:"current"`
	DiscountPercent int             `json:"discount_percent"`
	IsFree          bool            `json:"is_free"`
	// Available is false when the storefront does not sell the title in the
	// configured country. The rest of the struct is zero in that case.
	Available bool `json:"available"`
}

// Game is the common record both clients normalize into. Exactly one of the
// platform identifier groups is populated.
type Game struct {
	Platform Platform `json:"platform"`
	Title    string   `json:"title"`

	// Steam identifier.
	AppID int `json:"app_id,omitempty"`

	// Epic identifier pair.
	EpicNamespace string `json:"epic_namespace,omitempty"`
	EpicOfferID   string `json:"epic_offer_id,omitempty"`

	Developer string `json:"developer,omitempty"`
	URL       string `json:"url,omitempty"`
	Price     Price  `json:"price"`
}

// FreePromotion is a free-game giveaway window on a storefront.
type FreePromotion struct {
	Game      Game       `json:"game"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Upcoming  bool       `json:"upcoming"`
}
