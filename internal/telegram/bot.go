// Package telegram is the secondary operator control surface: a
// Telegram bot exposing /status, /positions, /trades, and /kill against the same
// app state the HTTP control plane reports on. Grounded on the teacher's
// internal/bot/telegram.go (tgbotapi.NewBotAPI, GetUpdatesChan command
// loop, chat-id-gated startup message, sendMarkdown helper), stripped of
// the crypto-prediction command surface (/signal, /windows, /trade,
// /autotrade, /settings) this project's domain doesn't have and replaced
// with the read/kill surface this project's control plane exposes.
package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// Store is the read surface the bot reports on.
type Store interface {
	GetPositions() ([]domain.Position, error)
	GetRecentTrades(limit int) ([]domain.Trade, error)
}

// RiskGate is the status/kill surface the bot drives.
type RiskGate interface {
	Bankroll() float64
	PeakBankroll() float64
	IsActive() bool
	Kill()
}

// CancelAller cancels every resting order; satisfied by *ordermanager.Manager.
type CancelAller interface {
	CancelAll() error
}

// Bot is a thin Telegram front end over the control-plane's collaborators.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	store  Store
	risk   RiskGate
	orders CancelAller
	stopCh chan struct{}
}

// New authenticates against Telegram with token. chatID gates the startup
// message and is not required for the bot to otherwise respond to commands.
func New(token string, chatID int64, store Store, risk RiskGate, orders CancelAller) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram bot connected")

	return &Bot{
		api:    api,
		chatID: chatID,
		store:  store,
		risk:   risk,
		orders: orders,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the command listener and, if a chat id is configured, sends
// a startup notice.
func (b *Bot) Start() {
	go b.listenForCommands()
	if b.chatID != 0 {
		b.sendText(b.chatID, "bot online. /status /positions /kill /help")
	}
}

// Stop ends the command listener.
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil && update.Message.IsCommand() {
				go b.handleCommand(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	log.Debug().Int64("chat_id", chatID).Str("command", msg.Command()).Msg("telegram command received")

	switch msg.Command() {
	case "start", "help":
		b.sendText(chatID, "/status - bankroll and trading state\n/positions - open positions\n/trades - recent trades\n/kill - stop trading and cancel all orders")
	case "status":
		b.cmdStatus(chatID)
	case "positions":
		b.cmdPositions(chatID)
	case "trades":
		b.cmdTrades(chatID)
	case "kill":
		b.cmdKill(chatID)
	default:
		b.sendText(chatID, "unknown command, try /help")
	}
}

func (b *Bot) cmdStatus(chatID int64) {
	state := "active"
	if !b.risk.IsActive() {
		state = "HALTED"
	}
	text := fmt.Sprintf("bankroll: $%.2f\npeak: $%.2f\ntrading: %s",
		b.risk.Bankroll(), b.risk.PeakBankroll(), state)
	b.sendText(chatID, text)
}

func (b *Bot) cmdPositions(chatID int64) {
	positions, err := b.store.GetPositions()
	if err != nil {
		b.sendText(chatID, "error fetching positions: "+err.Error())
		return
	}
	if len(positions) == 0 {
		b.sendText(chatID, "no open positions")
		return
	}
	var sb strings.Builder
	for _, p := range positions {
		fmt.Fprintf(&sb, "%s/%s %s %.2f @ %.4f (pnl %.2f)\n", p.MarketID, p.TokenID, p.Side, p.Size, p.AvgPrice, p.PnL)
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) cmdTrades(chatID int64) {
	trades, err := b.store.GetRecentTrades(10)
	if err != nil {
		b.sendText(chatID, "error fetching trades: "+err.Error())
		return
	}
	if len(trades) == 0 {
		b.sendText(chatID, "no trades yet")
		return
	}
	var sb strings.Builder
	for _, t := range trades {
		fmt.Fprintf(&sb, "%s %s %.2f @ %.4f (fee %.4f)\n", t.MarketID, t.Side, t.Size, t.Price, t.Fee)
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) cmdKill(chatID int64) {
	b.risk.Kill()
	if err := b.orders.CancelAll(); err != nil {
		b.sendText(chatID, "trading halted, but cancel-all failed: "+err.Error())
		return
	}
	log.Warn().Int64("chat_id", chatID).Msg("trading killed via telegram")
	b.sendText(chatID, "trading halted and all orders cancelled")
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send telegram message")
	}
}
