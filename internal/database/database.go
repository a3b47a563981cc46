// Package database is the durable store for orders, trades, positions, P&L
// snapshots, and small operational config. It follows the teacher's gorm-
// based, dual sqlite/postgres-by-connection-string pattern and AutoMigrate
// bootstrap, adapted to the five tables this project's persistence
// operations actually need.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// orderRow, tradeRow, positionRow, pnlSnapshotRow and configRow are the gorm
// models backing the five tables. Enumerations are stored as their
// upper-case textual name and defaulted on read per the forward-
// compatibility rule (unknown OrderType -> GTC, unknown OrderStatus -> Pending).
type orderRow struct {
	ID        string `gorm:"primaryKey"`
	MarketID  string
	TokenID   string
	Side      string
	Price     float64
	Size      float64
	OrderType string
	Status    string `gorm:"index"`
	RemoteID  string
	CreatedAt time.Time
}

func (orderRow) TableName() string { return "orders" }

type tradeRow struct {
	ID        string `gorm:"primaryKey"`
	OrderID   string `gorm:"index"`
	MarketID  string
	Side      string
	Price     float64
	Size      float64
	Fee       float64
	Timestamp time.Time `gorm:"index"`
}

func (tradeRow) TableName() string { return "trades" }

type positionRow struct {
	MarketID     string `gorm:"primaryKey"`
	TokenID      string `gorm:"primaryKey"`
	Side         string
	Size         float64
	AvgPrice     float64
	CurrentPrice float64
	PnL          float64
}

func (positionRow) TableName() string { return "positions" }

type pnlSnapshotRow struct {
	ID        uint `gorm:"primaryKey"`
	Bankroll  float64
	PnlTotal  float64
	Timestamp time.Time `gorm:"index"`
}

func (pnlSnapshotRow) TableName() string { return "pnl_snapshots" }

type configRow struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (configRow) TableName() string { return "config" }

// DB wraps a gorm connection with the operations the rest of the pipeline
// needs. It is safe for concurrent use; Open caps the underlying connection
// pool at a single connection, so writes are serialized.
type DB struct {
	gorm *gorm.DB
}

// Open dials sqlite for a bare file path or postgres for a postgres://
// connection string, exactly as the teacher's database layer dispatches, and
// runs an idempotent AutoMigrate.
func Open(dsn string) (*DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := g.AutoMigrate(&orderRow{}, &tradeRow{}, &positionRow{}, &pnlSnapshotRow{}, &configRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log.Info().Str("dsn", dsn).Msg("database ready")
	return &DB{gorm: g}, nil
}

func orderFromRow(r orderRow) domain.Order {
	return domain.Order{
		ID:        r.ID,
		MarketID:  r.MarketID,
		TokenID:   r.TokenID,
		Side:      domain.Side(r.Side),
		Price:     r.Price,
		Size:      r.Size,
		OrderType: domain.ParseOrderType(r.OrderType),
		Status:    domain.ParseOrderStatus(r.Status),
		RemoteID:  r.RemoteID,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// InsertOrder persists a newly minted order. This is the durable commit
// point in the order manager's signal-to-order pipeline.
func (d *DB) InsertOrder(o domain.Order) error {
	row := orderRow{
		ID:        o.ID,
		MarketID:  o.MarketID,
		TokenID:   o.TokenID,
		Side:      string(o.Side),
		Price:     o.Price,
		Size:      o.Size,
		OrderType: string(o.OrderType),
		Status:    string(o.Status),
		RemoteID:  o.RemoteID,
		CreatedAt: o.CreatedAt.UTC(),
	}
	if err := d.gorm.Create(&row).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrderStatus transitions an order's status and, when provided, its
// venue-assigned remote id.
func (d *DB) UpdateOrderStatus(id string, status domain.OrderStatus, remoteID string) error {
	updates := map[string]interface{}{"status": string(status)}
	if remoteID != "" {
		updates["remote_id"] = remoteID
	}
	if err := d.gorm.Model(&orderRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// GetOpenOrders returns every order whose status is Pending or Open.
func (d *DB) GetOpenOrders() ([]domain.Order, error) {
	var rows []orderRow
	if err := d.gorm.Where("status IN ?", []string{string(domain.Pending), string(domain.Open)}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, orderFromRow(r))
	}
	return out, nil
}

// GetOrder looks up a single order by id.
func (d *DB) GetOrder(id string) (domain.Order, error) {
	var row orderRow
	if err := d.gorm.First(&row, "id = ?", id).Error; err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return orderFromRow(row), nil
}

// InsertTrade appends an immutable trade record.
func (d *DB) InsertTrade(t domain.Trade) error {
	row := tradeRow{
		ID:        t.ID,
		OrderID:   t.OrderID,
		MarketID:  t.MarketID,
		Side:      string(t.Side),
		Price:     t.Price,
		Size:      t.Size,
		Fee:       t.Fee,
		Timestamp: t.Timestamp.UTC(),
	}
	if err := d.gorm.Create(&row).Error; err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetRecentTrades returns the most recent trades, newest first, bounded to limit.
func (d *DB) GetRecentTrades(limit int) ([]domain.Trade, error) {
	var rows []tradeRow
	if err := d.gorm.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get recent trades: %w", err)
	}
	out := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Trade{
			ID: r.ID, OrderID: r.OrderID, MarketID: r.MarketID,
			Side: domain.Side(r.Side), Price: r.Price, Size: r.Size,
			Fee: r.Fee, Timestamp: r.Timestamp.UTC(),
		})
	}
	return out, nil
}

// UpsertPosition writes a position keyed by (market_id, token_id). Calling
// it twice with identical input is idempotent.
func (d *DB) UpsertPosition(p domain.Position) error {
	row := positionRow{
		MarketID: p.MarketID, TokenID: p.TokenID, Side: string(p.Side),
		Size: p.Size, AvgPrice: p.AvgPrice, CurrentPrice: p.CurrentPrice, PnL: p.PnL,
	}
	if err := d.gorm.Save(&row).Error; err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// DeletePosition removes the position row for a (market_id, token_id) key,
// used once a position's size reaches zero.
func (d *DB) DeletePosition(marketID, tokenID string) error {
	if err := d.gorm.Delete(&positionRow{}, "market_id = ? AND token_id = ?", marketID, tokenID).Error; err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// GetPositions returns every position with size > 0.
func (d *DB) GetPositions() ([]domain.Position, error) {
	var rows []positionRow
	if err := d.gorm.Where("size > 0").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	out := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Position{
			MarketID: r.MarketID, TokenID: r.TokenID, Side: domain.Side(r.Side),
			Size: r.Size, AvgPrice: r.AvgPrice, CurrentPrice: r.CurrentPrice, PnL: r.PnL,
		})
	}
	return out, nil
}

// RecordPnlSnapshot appends an append-only (bankroll, pnl_total, timestamp) row.
func (d *DB) RecordPnlSnapshot(bankroll, pnlTotal float64) error {
	row := pnlSnapshotRow{Bankroll: bankroll, PnlTotal: pnlTotal, Timestamp: time.Now().UTC()}
	if err := d.gorm.Create(&row).Error; err != nil {
		return fmt.Errorf("record pnl snapshot: %w", err)
	}
	return nil
}

// GetPnlHistory returns every snapshot, ascending in time.
func (d *DB) GetPnlHistory() ([]domain.PnlSnapshot, error) {
	var rows []pnlSnapshotRow
	if err := d.gorm.Order("timestamp ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get pnl history: %w", err)
	}
	out := make([]domain.PnlSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PnlSnapshot{Bankroll: r.Bankroll, PnlTotal: r.PnlTotal, Timestamp: r.Timestamp.UTC()})
	}
	return out, nil
}

// SetConfig upserts a key/value pair in the config table.
func (d *DB) SetConfig(key, value string) error {
	row := configRow{Key: key, Value: value}
	if err := d.gorm.Save(&row).Error; err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// GetConfig returns a config value and whether it was set.
func (d *DB) GetConfig(key string) (string, bool, error) {
	var row configRow
	err := d.gorm.First(&row, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return row.Value, true, nil
}
