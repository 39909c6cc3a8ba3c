package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gametrack/gametrack/internal/storefront"
)

var priceAlertTmpl = template.Must(template.New("price_alert").Parse(`<html>
<head><style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { color: #2c3e50; font-size: 24px; margin-bottom: 20px; }
.game-info { background: #ecf0f1; padding: 15px; border-radius: 5px; margin: 20px 0; }
.price { color: #e74c3c; font-size: 20px; font-weight: bold; }
.target { color: #27ae60; }
.button { background: #3498db; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; }
</style></head>
<body>
<div class="header">Price Alert!</div>
<div class="game-info">
<h3>{{.Title}}</h3>
<div class="price">Current Price: {{.Currency}} {{.Current}}</div>
<div class="target">Your Target: {{.Currency}} {{.Target}}</div>
<p>The price has dropped to your target or below.</p>
</div>
{{if .URL}}<p><a href="{{.URL}}" class="button">Buy Now</a></p>{{end}}
<hr><p><small>Sent by Game Tracker. Set a new alert to be notified again.</small></p>
</body></html>`))

var freeGameTmpl = template.Must(template.New("free_game").Parse(`<html>
<head><style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { color: #2c3e50; font-size: 24px; margin-bottom: 20px; }
.game-info { background: #ecf0f1; padding: 15px; border-radius: 5px; margin: 20px 0; }
.free { color: #27ae60; font-size: 20px; font-weight: bold; }
.button { background: #3498db; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; }
</style></head>
<body>
<div class="header">Free Game!</div>
<div class="game-info">
<h3>{{.Title}}</h3>
{{if .Developer}}<div>Developer: {{.Developer}}</div>{{end}}
<div class="free">FREE{{if .Until}} until {{.Until}}{{end}}</div>
</div>
{{if .URL}}<p><a href="{{.URL}}" class="button">Claim Free Game Now</a></p>{{end}}
<p><strong>Hurry!</strong> This offer is only available for a limited time.</p>
<hr><p><small>Sent by Game Tracker.</small></p>
</body></html>`))

var dealsDigestTmpl = template.Must(template.New("deals_digest").Parse(`<html>
<head><style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { color: #2c3e50; font-size: 24px; margin-bottom: 20px; }
.deal { margin-bottom: 20px; padding: 15px; border: 1px solid #ddd; border-radius: 5px; }
.title { color: #2c3e50; font-size: 18px; font-weight: bold; }
.price { color: #e74c3c; font-size: 16px; font-weight: bold; }
.discount { color: #27ae60; font-weight: bold; }
</style></head>
<body>
<div class="header">Today's Best Deals</div>
{{range .Deals}}<div class="deal">
<div class="title">{{.Title}}</div>
{{if .Developer}}<div>by {{.Developer}}</div>{{end}}
<div class="price">{{.Currency}} {{.Current}}{{if .Discounted}} <strike>{{.Currency}} {{.Original}}</strike> <span class="discount">{{.Discount}}% OFF</span>{{end}}</div>
{{if .URL}}<div><a href="{{.URL}}">View in store</a></div>{{end}}
</div>
{{end}}<hr><p><small>Sent by Game Tracker. You receive this once per day.</small></p>
</body></html>`))

// PriceAlertEmail renders the threshold-crossing notification.
func PriceAlertEmail(title string, current, target decimal.Decimal, currency, url string) (subject, body string, err error) {
	subject = fmt.Sprintf("Price Alert: %s is now %s %s!", title, currency, current.StringFixed(2))
	var b strings.Builder
	err = priceAlertTmpl.Execute(&b, struct {
		Title, Currency, Current, Target, URL string
	}{title, currency, current.StringFixed(2), target.StringFixed(2), url})
	if err != nil {
		return "", "", fmt.Errorf("failed to render price alert email: %w", err)
	}
	return subject, b.String(), nil
}

// FreeGameEmail renders the new-giveaway notification.
func FreeGameEmail(promo storefront.FreePromotion) (subject, body string, err error) {
	subject = fmt.Sprintf("Free Game Alert: %s is free right now!", promo.Game.Title)
	until := ""
	if promo.EndDate != nil {
		until = promo.EndDate.Format("Jan 2, 2006")
	}
	var b strings.Builder
	err = freeGameTmpl.Execute(&b, struct {
		Title, Developer, Until, URL string
	}{promo.Game.Title, promo.Game.Developer, until, promo.Game.URL})
	if err != nil {
		return "", "", fmt.Errorf("failed to render free game email: %w", err)
	}
	return subject, b.String(), nil
}

// DealsDigestEmail renders the daily digest for a deal list.
func DealsDigestEmail(deals []storefront.Game, day time.Time) (subject, body string, err error) {
	subject = fmt.Sprintf("Daily Deals: %d offers for %s", len(deals), day.Format("Jan 2"))

	type row struct {
		Title, Developer, Currency, Current, Original, URL string
		Discount                                           int
		Discounted                                         bool
	}
	rows := make([]row, 0, len(deals))
	for _, d := range deals {
		rows = append(rows, row{
			Title:      d.Title,
			Developer:  d.Developer,
			Currency:   d.Price.Currency,
			Current:    d.Price.Current.StringFixed(2),
			Original:   d.Price.Original.StringFixed(2),
			URL:        d.URL,
			Discount:   d.Price.DiscountPercent,
			Discounted: d.Price.DiscountPercent > 0,
		})
	}

	var b strings.Builder
	err = dealsDigestTmpl.Execute(&b, struct{ Deals []row }{rows})
	if err != nil {
		return "", "", fmt.Errorf("failed to render deals digest email: %w", err)
	}
	return subject, b.String(), nil
}
