package server

import (
	"fmt"

	"github.com/gametrack/gametrack/internal/storefront"
)

// formatPrice renders one price for the text responses.
func formatPrice(p storefront.Price) string {
	if !p.Available {
		return "price unavailable"
	}
	if p.IsFree {
		return "Free"
	}
	if p.DiscountPercent > 0 {
		return fmt.Sprintf("%s %s (%d%% off, was %s)",
			p.Currency, p.Current.StringFixed(2), p.DiscountPercent, p.Original.StringFixed(2))
	}
	return fmt.Sprintf("%s %s", p.Currency, p.Current.StringFixed(2))
}
