package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

const (
	spotRESTInterval    = 2 * time.Second
	spotRESTMaxFailures = 30
)

// spotTickerMessage matches Binance's combined-stream envelope
// ({"stream":"...","data":{...}}) with a fallback to the flat single-stream
// shape, mirroring the combined-stream-with-fallback parsing in the upstream
// adapter this spec was distilled from.
type spotTickerMessage struct {
	Stream string `json:"stream"`
	Data   *struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	} `json:"data"`
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// SpotFeed is the cross-referenced spot-exchange adapter: WS with REST
// fallback, exactly per the three-step degrade/resume algorithm this
// project's design specifies.
type SpotFeed struct {
	wsURLs     []string
	restURL    string
	symbols    []string
	httpClient *http.Client
	marketBus  *bus.Bus[domain.MarketData]
}

// NewSpotFeed builds the adapter for the given symbols.
func NewSpotFeed(wsURLs []string, restURL string, symbols []string, marketBus *bus.Bus[domain.MarketData]) *SpotFeed {
	return &SpotFeed{
		wsURLs:     wsURLs,
		restURL:    restURL,
		symbols:    symbols,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		marketBus:  marketBus,
	}
}

// Run drives the adapter until ctx is done.
func (s *SpotFeed) Run(ctx context.Context) {
	bo := newBackoff()
	for ctx.Err() == nil {
		connected, cleanClose, err := s.tryWSEndpoints(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			if cleanClose {
				bo.reset()
			} else if err != nil {
				log.Warn().Err(err).Str("adapter", "spot_ws").Msg("session ended, reconnecting")
			}
			continue
		}

		log.Warn().Str("adapter", "spot_ws").Msg("all WS endpoints failed, degrading to REST polling")
		if restErr := s.restPollLoop(ctx); restErr != nil {
			log.Warn().Err(restErr).Str("adapter", "spot_rest").Msg("REST polling exhausted retries, returning to WS")
		}
		if ctx.Err() != nil {
			return
		}

		delay := bo.next()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// tryWSEndpoints attempts each configured WS endpoint in order. A dial
// failure moves to the next endpoint; a successful dial is run to
// completion and the adapter stays on that endpoint until disconnect.
func (s *SpotFeed) tryWSEndpoints(ctx context.Context) (connected bool, cleanClose bool, err error) {
	for _, url := range s.wsURLs {
		dialFailed, clean, sessionErr := s.runWSSession(ctx, url)
		if dialFailed {
			continue
		}
		return true, clean, sessionErr
	}
	return false, false, nil
}

func (s *SpotFeed) runWSSession(ctx context.Context, url string) (dialFailed, cleanClose bool, err error) {
	conn, _, dialErr := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if dialErr != nil {
		return true, false, dialErr
	}
	defer conn.Close()

	conn.SetPingHandler(func(payload string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

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
				return false, false, nil
			default:
			}
			if websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
				return false, true, nil
			}
			return false, false, readErr
		}
		s.handleWSMessage(raw)
	}
}

func (s *SpotFeed) handleWSMessage(raw []byte) {
	var msg spotTickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("adapter", "spot_ws").Msg("dropping malformed ticker message")
		return
	}

	symbol, closeStr := msg.Symbol, msg.Close
	if msg.Data != nil {
		symbol, closeStr = msg.Data.Symbol, msg.Data.Close
	}
	if symbol == "" || closeStr == "" {
		return
	}

	price, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		log.Warn().Err(err).Str("adapter", "spot_ws").Msg("dropping ticker with unparseable price")
		return
	}
	s.marketBus.Send(domain.NewSpotTicker(strings.ToLower(symbol), price, time.Now().UTC()))
}

// restPollLoop polls the REST fallback at a fixed cadence until a tick
// produces no successful quote for spotRESTMaxFailures consecutive ticks, or
// ctx ends.
func (s *SpotFeed) restPollLoop(ctx context.Context) error {
	ticker := time.NewTicker(spotRESTInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tickSucceeded := false
			for _, symbol := range s.symbols {
				price, err := s.fetchRESTPrice(symbol)
				if err != nil {
					continue
				}
				tickSucceeded = true
				s.marketBus.Send(domain.NewSpotTicker(strings.ToLower(symbol), price, time.Now().UTC()))
			}
			if tickSucceeded {
				consecutiveFailures = 0
				continue
			}
			consecutiveFailures++
			if consecutiveFailures >= spotRESTMaxFailures {
				return fmt.Errorf("REST fallback failed %d consecutive ticks", consecutiveFailures)
			}
		}
	}
}

func (s *SpotFeed) fetchRESTPrice(symbol string) (float64, error) {
	url := fmt.Sprintf("%s?symbol=%s", s.restURL, strings.ToUpper(symbol))
	resp, err := s.httpClient.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("spot REST HTTP %d", resp.StatusCode)
	}

	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out.Price, 64)
}
