package tracker

import (
	"context"

	"github.com/gametrack/gametrack/internal/cache"
	"github.com/gametrack/gametrack/internal/notify"
	"github.com/gametrack/gametrack/internal/store"
	"github.com/gametrack/gametrack/internal/storefront"
)

// SteamClient is the slice of the Steam client the tracker needs.
type SteamClient interface {
	AppDetails(ctx context.Context, appID int) (*storefront.Game, error)
	TopDeals(ctx context.Context, limit int) ([]storefront.Game, error)
}

// EpicClient is the slice of the Epic client the tracker needs.
type EpicClient interface {
	Price(ctx context.Context, namespace, offerID string) (*storefront.Game, error)
	FreeGames(ctx context.Context) ([]storefront.FreePromotion, error)
}

// Tracker runs the scheduled polling jobs: price alert evaluation, the
// free-game monitor and the daily deals digest. All jobs are best-effort
// per row; one bad upstream record never aborts a batch.
type Tracker struct {
	store  *store.Store
	steam  SteamClient
	epic   EpicClient
	mailer notify.Mailer
	cache  *cache.Cache
}

func New(st *store.Store, steamClient SteamClient, epicClient EpicClient, mailer notify.Mailer, c *cache.Cache) *Tracker {
	return &Tracker{
		store:  st,
		steam:  steamClient,
		epic:   epicClient,
		mailer: mailer,
		cache:  c,
	}
}

// topDealsLimit is how many specials make it into the digest and the
// on-demand deals email.
const topDealsLimit = 10

// TopDeals returns the current top Steam deals, serving from the cache
// when it is warm and refilling it after an upstream fetch.
func (t *Tracker) TopDeals(ctx context.Context) ([]storefront.Game, error) {
	if deals, err := t.cache.GetDeals(ctx); err == nil && len(deals) > 0 {
		return deals, nil
	}
	deals, err := t.steam.TopDeals(ctx, topDealsLimit)
	if err != nil {
		return nil, err
	}
	if len(deals) > 0 {
		// A failed cache write costs one refetch later, nothing else.
		_ = t.cache.SetDeals(ctx, deals)
	}
	return deals, nil
}
