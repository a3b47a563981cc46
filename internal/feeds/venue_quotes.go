package feeds

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// quoteGetter is the subset of the venue client this adapter needs,
// narrowed to a local interface so it can be tested without a live venue.
type quoteGetter interface {
	GetPrice(tokenID string) (float64, error)
}

// VenueQuotes is a slower, REST-based companion to VenueWS: it polls
// get_price for a fixed set of token ids on an interval and emits VenuePrice
// events. It exists because the component table in this project's design
// names three feed adapters (venue WS, venue REST quotes, spot WS) though
// only the first and third get full prose treatment — this fills that gap
// as a redundant, lower-frequency source sharing the same adapter contract.
type VenueQuotes struct {
	client    quoteGetter
	marketID  string
	tokenIDs  []string
	interval  time.Duration
	marketBus *bus.Bus[domain.MarketData]
}

// NewVenueQuotes builds a polling quote adapter for the given market and its
// token ids.
func NewVenueQuotes(client quoteGetter, marketID string, tokenIDs []string, interval time.Duration, marketBus *bus.Bus[domain.MarketData]) *VenueQuotes {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &VenueQuotes{client: client, marketID: marketID, tokenIDs: tokenIDs, interval: interval, marketBus: marketBus}
}

// Run polls until ctx is done, self-healing on individual request failures
// without ever propagating an error upward.
func (q *VenueQuotes) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.pollOnce()
		}
	}
}

func (q *VenueQuotes) pollOnce() {
	now := time.Now().UTC()
	for _, tokenID := range q.tokenIDs {
		price, err := q.client.GetPrice(tokenID)
		if err != nil {
			log.Warn().Err(err).Str("adapter", "venue_quotes").Str("token_id", tokenID).Msg("quote poll failed")
			continue
		}
		q.marketBus.Send(domain.NewVenuePrice(q.marketID, tokenID, price, now))
	}
}
