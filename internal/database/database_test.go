package database

import (
	"testing"
	"time"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return db
}

func TestOrderLifecycleRoundTrip(t *testing.T) {
	db := newTestDB(t)

	o := domain.Order{
		ID: "order-1", MarketID: "m1", TokenID: "t1", Side: domain.Buy,
		Price: 0.5, Size: 25, OrderType: domain.GTC, Status: domain.Pending,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.InsertOrder(o); err != nil {
		t.Fatalf("InsertOrder() error = %v", err)
	}

	got, err := db.GetOrder("order-1")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Status != domain.Pending || got.MarketID != "m1" || got.Price != 0.5 {
		t.Fatalf("GetOrder() = %+v, want matching fields to insert", got)
	}

	if err := db.UpdateOrderStatus("order-1", domain.Open, "remote-1"); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}

	open, err := db.GetOpenOrders()
	if err != nil {
		t.Fatalf("GetOpenOrders() error = %v", err)
	}
	if len(open) != 1 || open[0].Status != domain.Open || open[0].RemoteID != "remote-1" {
		t.Fatalf("GetOpenOrders() = %+v, want one Open order with remote id", open)
	}

	if err := db.UpdateOrderStatus("order-1", domain.Filled, ""); err != nil {
		t.Fatalf("UpdateOrderStatus() error = %v", err)
	}
	open, err = db.GetOpenOrders()
	if err != nil {
		t.Fatalf("GetOpenOrders() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("GetOpenOrders() = %+v, want none after Filled", open)
	}
}

func TestUnknownEnumsDefaultForwardCompatibly(t *testing.T) {
	db := newTestDB(t)
	o := domain.Order{
		ID: "order-2", MarketID: "m1", TokenID: "t1", Side: domain.Buy,
		Price: 0.4, Size: 10, OrderType: domain.OrderType("SOMETHING_NEW"),
		Status: domain.OrderStatus("UNKNOWN_STATUS"), CreatedAt: time.Now().UTC(),
	}
	// InsertOrder takes the literal string through; ParseOrderType/Status
	// apply on read, matching the schema's forward-compatibility contract.
	row := orderRow{
		ID: o.ID, MarketID: o.MarketID, TokenID: o.TokenID, Side: string(o.Side),
		Price: o.Price, Size: o.Size, OrderType: string(o.OrderType), Status: string(o.Status),
		CreatedAt: o.CreatedAt,
	}
	if err := db.gorm.Create(&row).Error; err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.GetOrder("order-2")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.OrderType != domain.GTC {
		t.Errorf("OrderType = %v, want default GTC for unrecognized value", got.OrderType)
	}
	if got.Status != domain.Pending {
		t.Errorf("Status = %v, want default Pending for unrecognized value", got.Status)
	}
}

func TestUpsertPositionIsIdempotentAndDeletePositionRemovesRow(t *testing.T) {
	db := newTestDB(t)
	p := domain.Position{MarketID: "m1", TokenID: "t1", Side: domain.Buy, Size: 10, AvgPrice: 0.5}

	if err := db.UpsertPosition(p); err != nil {
		t.Fatalf("UpsertPosition() error = %v", err)
	}
	if err := db.UpsertPosition(p); err != nil {
		t.Fatalf("UpsertPosition() (second call) error = %v", err)
	}

	positions, err := db.GetPositions()
	if err != nil {
		t.Fatalf("GetPositions() error = %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("GetPositions() returned %d rows, want exactly 1 after idempotent upsert", len(positions))
	}

	if err := db.DeletePosition("m1", "t1"); err != nil {
		t.Fatalf("DeletePosition() error = %v", err)
	}
	positions, err = db.GetPositions()
	if err != nil {
		t.Fatalf("GetPositions() error = %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("GetPositions() returned %d rows, want 0 after delete", len(positions))
	}
}

func TestConfigSetGetOverride(t *testing.T) {
	db := newTestDB(t)

	if _, ok, err := db.GetConfig("missing"); err != nil || ok {
		t.Fatalf("GetConfig(missing) = (_, %v, %v), want ok=false, err=nil", ok, err)
	}

	if err := db.SetConfig("k", "v1"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	v, ok, err := db.GetConfig("k")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("GetConfig(k) = (%q, %v, %v), want (v1, true, nil)", v, ok, err)
	}

	if err := db.SetConfig("k", "v2"); err != nil {
		t.Fatalf("SetConfig() (override) error = %v", err)
	}
	v, ok, err = db.GetConfig("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("GetConfig(k) after override = (%q, %v, %v), want (v2, true, nil)", v, ok, err)
	}
}

func TestCancelAllIdempotentInPersistence(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"o1", "o2"} {
		if err := db.InsertOrder(domain.Order{
			ID: id, MarketID: "m1", TokenID: "t1", Side: domain.Buy,
			Price: 0.5, Size: 5, OrderType: domain.GTC, Status: domain.Open,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("InsertOrder(%s) error = %v", id, err)
		}
	}

	cancelAll := func() {
		open, err := db.GetOpenOrders()
		if err != nil {
			t.Fatalf("GetOpenOrders() error = %v", err)
		}
		for _, o := range open {
			if err := db.UpdateOrderStatus(o.ID, domain.Cancelled, ""); err != nil {
				t.Fatalf("UpdateOrderStatus() error = %v", err)
			}
		}
	}

	cancelAll()
	cancelAll() // idempotent: nothing left open, no error

	open, err := db.GetOpenOrders()
	if err != nil {
		t.Fatalf("GetOpenOrders() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("GetOpenOrders() = %+v, want none after cancel_all twice", open)
	}
}
