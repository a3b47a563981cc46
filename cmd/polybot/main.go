// polymarket-bot trades a binary-outcome prediction-market venue,
// cross-referencing a spot exchange for early signal and the venue's
// outcome-token prices for intra-market arbitrage.
//
// Pipeline: feed adapters -> market bus -> aggregator -> strategies ->
// signal bus -> risk gate -> order manager -> venue + persistence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/aggregator"
	"github.com/stuartoffabean/polymarket-bot/internal/bus"
	"github.com/stuartoffabean/polymarket-bot/internal/config"
	"github.com/stuartoffabean/polymarket-bot/internal/controlplane"
	"github.com/stuartoffabean/polymarket-bot/internal/database"
	"github.com/stuartoffabean/polymarket-bot/internal/domain"
	"github.com/stuartoffabean/polymarket-bot/internal/feeds"
	"github.com/stuartoffabean/polymarket-bot/internal/ordermanager"
	"github.com/stuartoffabean/polymarket-bot/internal/pnl"
	"github.com/stuartoffabean/polymarket-bot/internal/risk"
	"github.com/stuartoffabean/polymarket-bot/internal/strategy"
	"github.com/stuartoffabean/polymarket-bot/internal/telegram"
	"github.com/stuartoffabean/polymarket-bot/internal/venue"
)

const (
	marketBusCapacity = 1024
	signalBusCapacity = 256
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Msg("polymarket-bot starting")

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	venueClient := venue.New(venue.Config{
		BaseURL:         cfg.VenueBaseURL,
		AccountIdentity: cfg.PrivateKey,
		APIKey:          cfg.VenueAPIKey,
		Secret:          cfg.VenueSecret,
		Passphrase:      cfg.VenuePassphrase,
	})

	riskManager := risk.NewManager(risk.Config{
		MaxPositionPct:   cfg.Risk.MaxPositionPct,
		MaxDrawdownPct:   cfg.Risk.MaxDrawdownPct,
		MinBankroll:      cfg.Risk.MinBankroll,
		StartingBankroll: cfg.Risk.StartingBankroll,
		MaxExposure:      cfg.Risk.MaxExposure,
	})

	marketBus := bus.New[domain.MarketData](marketBusCapacity)
	signalBus := bus.New[domain.Signal](signalBusCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokenIDs, strategies := buildMarkets(cfg.Markets)

	venueWS := feeds.NewVenueWS(cfg.VenueWSURL, tokenIDs, marketBus)
	go venueWS.Run(ctx)

	if len(tokenIDs) > 0 {
		venueQuotes := feeds.NewVenueQuotes(venueClient, "all-markets", tokenIDs, cfg.VenueQuotesInterval, marketBus)
		go venueQuotes.Run(ctx)
	}

	symbols := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		if m.SpotSymbol != "" {
			symbols = append(symbols, m.SpotSymbol)
		}
	}
	spotFeed := feeds.NewSpotFeed(cfg.SpotWSURLs, cfg.SpotRESTURL, symbols, marketBus)
	go spotFeed.Run(ctx)

	agg := aggregator.New(marketBus, signalBus, riskManager, db, strategies)
	go agg.Run(ctx)

	orderMgr := ordermanager.New(signalBus, db, riskManager, venueClient)
	go orderMgr.Run(ctx)

	snapshotLoop := pnl.New(riskManager, db, cfg.Risk.StartingBankroll)
	go snapshotLoop.Run(ctx)

	strategyReporters := make([]controlplane.StrategyReporter, 0, len(strategies))
	for _, s := range strategies {
		strategyReporters = append(strategyReporters, s)
	}
	controlPlane := controlplane.New(fmt.Sprintf(":%d", cfg.ControlPlanePort), db, riskManager, orderMgr, strategyReporters)
	go func() {
		if err := controlPlane.Run(); err != nil {
			log.Error().Err(err).Msg("control plane server stopped")
		}
	}()

	var telegramBot *telegram.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = telegram.New(cfg.TelegramToken, cfg.TelegramChatID, db, riskManager, orderMgr)
		if err != nil {
			log.Error().Err(err).Msg("failed to start telegram bot, continuing without it")
		} else {
			telegramBot.Start()
		}
	}

	log.Info().Int("markets", len(cfg.Markets)).Msg("all components started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	if telegramBot != nil {
		telegramBot.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := controlPlane.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("control plane shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

// buildMarkets turns each configured market into its traded token set and
// its registered strategies: a LatencyArb and a TechnicalMomentum instance
// per market, plus a single IntraArb instance spanning every market's
// outcome tokens.
func buildMarkets(markets []config.MarketConfig) (tokenIDs []string, strategies []strategy.Strategy) {
	intraMarkets := make([]strategy.IntraMarket, 0, len(markets))

	for _, m := range markets {
		if m.YesTokenID == "" {
			continue
		}
		tokenIDs = append(tokenIDs, m.YesTokenID)
		if m.NoTokenID != "" {
			tokenIDs = append(tokenIDs, m.NoTokenID)
		}

		strategies = append(strategies,
			strategy.NewLatencyArb(m.MarketID, m.YesTokenID, m.NoTokenID, m.SpotSymbol, m.Threshold),
			strategy.NewTechnicalMomentum(m.MarketID, m.YesTokenID, m.SpotSymbol),
		)

		outcomeTokens := []string{m.YesTokenID}
		if m.NoTokenID != "" {
			outcomeTokens = append(outcomeTokens, m.NoTokenID)
		}
		intraMarkets = append(intraMarkets, strategy.IntraMarket{MarketID: m.MarketID, TokenIDs: outcomeTokens})
	}

	if len(intraMarkets) > 0 {
		strategies = append(strategies, strategy.NewIntraArb(intraMarkets))
	}

	return tokenIDs, strategies
}
