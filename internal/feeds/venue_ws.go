package feeds

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// venuePriceChange and venueBookSnapshot are the two upstream message shapes
// this adapter normalizes, grounded on the teacher's WSPriceChange /
// WSMarketSnapshot structs in internal/polymarket/ws_client.go.
type venuePriceChange struct {
	EventType    string `json:"event_type"`
	Market       string `json:"market"`
	PriceChanges []struct {
		AssetID string `json:"asset_id"`
		Price   string `json:"price"`
	} `json:"price_changes"`
}

type venueBookSnapshot struct {
	EventType string `json:"event_type"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Bids      []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

// VenueWS is the feed adapter for the prediction-market venue's market-data
// WebSocket. A book message becomes one VenueBook; a price_change message
// becomes one VenuePrice per entry with a parseable price; other event types
// are ignored. Events are published to the market bus, never blocking the
// bus on a slow consumer.
type VenueWS struct {
	url       string
	tokenIDs  []string
	marketBus *bus.Bus[domain.MarketData]
}

// NewVenueWS builds an adapter subscribing to the given token ids.
func NewVenueWS(url string, tokenIDs []string, marketBus *bus.Bus[domain.MarketData]) *VenueWS {
	return &VenueWS{url: url, tokenIDs: tokenIDs, marketBus: marketBus}
}

// Run connects, consumes, and reconnects with exponential backoff until ctx
// is done. It never returns an error: transient I/O self-heals per the
// pipeline's error-handling policy.
func (v *VenueWS) Run(ctx context.Context) {
	bo := newBackoff()
	for ctx.Err() == nil {
		cleanClose, err := v.runSession(ctx)
		if ctx.Err() != nil {
			return
		}
		if cleanClose {
			bo.reset()
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("adapter", "venue_ws").Msg("session ended, reconnecting")
		}
		delay := bo.next()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// runSession runs a single WS connection to completion, returning whether it
// ended via a clean remote close (which resets backoff per spec).
func (v *VenueWS) runSession(ctx context.Context) (cleanClose bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, v.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	conn.SetPingHandler(func(payload string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

	if err := conn.WriteJSON(map[string]interface{}{
		"type":      "market",
		"assets_ids": v.tokenIDs,
	}); err != nil {
		return false, err
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, raw, readErr := conn.ReadMessage()
		if readErr != nil {
			select {
			case <-done:
				return false, nil
			default:
			}
			if websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
				return true, nil
			}
			return false, readErr
		}
		v.handleMessage(raw)
	}
}

func (v *VenueWS) handleMessage(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Warn().Err(err).Str("adapter", "venue_ws").Msg("dropping malformed message")
		return
	}

	switch envelope.EventType {
	case "price_change":
		var msg venuePriceChange
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Str("adapter", "venue_ws").Msg("dropping malformed price_change")
			return
		}
		now := time.Now().UTC()
		for _, pc := range msg.PriceChanges {
			price, perr := strconv.ParseFloat(pc.Price, 64)
			if perr != nil {
				continue
			}
			v.marketBus.Send(domain.NewVenuePrice(msg.Market, pc.AssetID, price, now))
		}
	case "book":
		var msg venueBookSnapshot
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Str("adapter", "venue_ws").Msg("dropping malformed book message")
			return
		}
		book := domain.OrderBook{TokenID: msg.AssetID}
		for _, lvl := range msg.Bids {
			book.Bids = append(book.Bids, parseLevel(lvl.Price, lvl.Size))
		}
		for _, lvl := range msg.Asks {
			book.Asks = append(book.Asks, parseLevel(lvl.Price, lvl.Size))
		}
		v.marketBus.Send(domain.NewVenueBook(msg.Market, book))
	default:
		// unrecognized event types are ignored, not fatal
	}
}

func parseLevel(priceStr, sizeStr string) domain.BookLevel {
	price, _ := strconv.ParseFloat(priceStr, 64)
	size, _ := strconv.ParseFloat(sizeStr, 64)
	return domain.BookLevel{Price: price, Size: size}
}
