package pharmacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newRestockFixture() (*RestockSimulator, *stubStore, *fakeClock, *fakeRand) {
	store := newStubStore()
	store.putStock(StockRecord{MedicineID: "MED-1", PharmacyID: "PHARM-A", StockQuantity: 10, ReorderLevel: 20, MaxStock: 500, Price: 1000, Version: 1})

	clock := newFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	rnd := &fakeRand{values: []int{0}}
	simulator := NewRestockSimulator(store, NewClassifier(DefaultBanding()), nil, zap.NewNop(), DefaultRestockConfig(), clock, rnd)
	return simulator, store, clock, rnd
}

// TestRestock_SimulateRandomizedQuantity は数量未指定時のランダム補充のテスト
func TestRestock_SimulateRandomizedQuantity(t *testing.T) {
	simulator, _, clock, rnd := newRestockFixture()
	ctx := context.Background()

	// Intn(151)→30（数量）、Intn(6)→3（日数）
	rnd.values = []int{30, 3}

	sim, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 0)

	assert.NoError(t, err)
	assert.Equal(t, int64(80), sim.RestockQuantity) // 50 + 30
	assert.Equal(t, int64(10), sim.CurrentStock)
	assert.Equal(t, int64(90), sim.NewStock)
	assert.Equal(t, 5, sim.EstimatedDeliveryDays) // 2 + 3
	assert.Equal(t, clock.Now().AddDate(0, 0, 5), sim.RestockDate)
	assert.NotEmpty(t, sim.ID)
}

// TestRestock_SimulateExplicitQuantity は数量指定時のテスト
func TestRestock_SimulateExplicitQuantity(t *testing.T) {
	simulator, _, _, rnd := newRestockFixture()
	ctx := context.Background()
	rnd.values = []int{0}

	sim, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 25)

	assert.NoError(t, err)
	assert.Equal(t, int64(25), sim.RestockQuantity)
	assert.Equal(t, int64(35), sim.NewStock)
}

// TestRestock_SimulateUnknownRecord は存在しない在庫記録のテスト
func TestRestock_SimulateUnknownRecord(t *testing.T) {
	simulator, _, _, _ := newRestockFixture()
	ctx := context.Background()

	sim, err := simulator.SimulateRestock(ctx, "MED-X", "PHARM-X", 10)

	assert.Nil(t, sim)
	assert.ErrorIs(t, err, ErrStockNotFound)
}

// TestRestock_ExecuteAppliesHead は実行が先頭エントリを適用することのテスト
func TestRestock_ExecuteAppliesHead(t *testing.T) {
	simulator, store, _, _ := newRestockFixture()
	ctx := context.Background()

	first, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 40)
	assert.NoError(t, err)
	_, err = simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 100)
	assert.NoError(t, err)

	executed, err := simulator.ExecuteRestockSimulation(ctx, "MED-1", "PHARM-A")
	assert.NoError(t, err)
	assert.True(t, executed)

	record, err := store.GetStockRecord(ctx, "MED-1", "PHARM-A")
	assert.NoError(t, err)
	assert.Equal(t, first.NewStock, record.StockQuantity)
	assert.Equal(t, int64(2), record.Version)
	// 50は再分類でmedium帯（reorder 20 × 4.0以内）
	assert.Equal(t, StockLevelMedium, record.StockLevel)

	// FIFO: 2件目が残る
	pending := simulator.PendingSimulations("MED-1", "PHARM-A")
	assert.Len(t, pending, 1)
	assert.Equal(t, int64(100), pending[0].RestockQuantity)
}

// TestRestock_ExecuteEmptyQueue は空キュー実行のテスト
func TestRestock_ExecuteEmptyQueue(t *testing.T) {
	simulator, _, _, _ := newRestockFixture()
	ctx := context.Background()

	executed, err := simulator.ExecuteRestockSimulation(ctx, "MED-1", "PHARM-A")

	assert.NoError(t, err)
	assert.False(t, executed)
}

// TestRestock_ExecuteFailureRequeues は適用失敗時の再キューイングのテスト
func TestRestock_ExecuteFailureRequeues(t *testing.T) {
	simulator, store, _, _ := newRestockFixture()
	ctx := context.Background()

	_, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 40)
	assert.NoError(t, err)

	store.updateErr = func(*StockRecord) error {
		return errors.New("接続エラー")
	}

	executed, err := simulator.ExecuteRestockSimulation(ctx, "MED-1", "PHARM-A")
	assert.False(t, executed)
	assert.Error(t, err)

	// 失敗したエントリは先頭に戻り、復旧後に実行できる
	assert.Len(t, simulator.PendingSimulations("MED-1", "PHARM-A"), 1)

	store.updateErr = nil
	executed, err = simulator.ExecuteRestockSimulation(ctx, "MED-1", "PHARM-A")
	assert.NoError(t, err)
	assert.True(t, executed)
	assert.Empty(t, simulator.PendingSimulations("MED-1", "PHARM-A"))
}

// TestRestock_AutoExecuteDue は期日到来分の一括実行のテスト
func TestRestock_AutoExecuteDue(t *testing.T) {
	simulator, store, clock, rnd := newRestockFixture()
	store.putStock(StockRecord{MedicineID: "MED-1", PharmacyID: "PHARM-B", StockQuantity: 5, ReorderLevel: 20, MaxStock: 500, Price: 1200, Version: 1})
	ctx := context.Background()

	// PHARM-A: 2日後、PHARM-B: 5日後
	rnd.values = []int{0, 3}
	_, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 30)
	assert.NoError(t, err)
	_, err = simulator.SimulateRestock(ctx, "MED-1", "PHARM-B", 30)
	assert.NoError(t, err)

	// 3日後: PHARM-Aのみ期日到来
	clock.Advance(72 * time.Hour)
	executed, err := simulator.AutoExecuteDue(ctx, clock.Now())

	assert.NoError(t, err)
	assert.Len(t, executed, 1)
	assert.Equal(t, "PHARM-A", executed[0].PharmacyID)
	assert.Len(t, simulator.PendingSimulations("MED-1", "PHARM-B"), 1)

	// 同時刻の再実行は何もしない（冪等）
	executed, err = simulator.AutoExecuteDue(ctx, clock.Now())
	assert.NoError(t, err)
	assert.Empty(t, executed)

	// さらに3日後: PHARM-Bも期日到来
	clock.Advance(72 * time.Hour)
	executed, err = simulator.AutoExecuteDue(ctx, clock.Now())
	assert.NoError(t, err)
	assert.Len(t, executed, 1)
	assert.Equal(t, "PHARM-B", executed[0].PharmacyID)
}

// TestRestock_AutoExecuteFailureIsolation はキー単位の失敗隔離のテスト
func TestRestock_AutoExecuteFailureIsolation(t *testing.T) {
	simulator, store, clock, rnd := newRestockFixture()
	store.putStock(StockRecord{MedicineID: "MED-1", PharmacyID: "PHARM-B", StockQuantity: 5, ReorderLevel: 20, MaxStock: 500, Price: 1200, Version: 1})
	ctx := context.Background()

	rnd.values = []int{0}
	_, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 30)
	assert.NoError(t, err)
	_, err = simulator.SimulateRestock(ctx, "MED-1", "PHARM-B", 30)
	assert.NoError(t, err)

	// PHARM-Aの更新だけ失敗させる
	store.updateErr = func(record *StockRecord) error {
		if record.PharmacyID == "PHARM-A" {
			return errors.New("接続エラー")
		}
		return nil
	}

	clock.Advance(10 * 24 * time.Hour)
	executed, err := simulator.AutoExecuteDue(ctx, clock.Now())

	assert.NoError(t, err)
	assert.Len(t, executed, 1)
	assert.Equal(t, "PHARM-B", executed[0].PharmacyID)
	// 失敗したキーのエントリは保持される
	assert.Len(t, simulator.PendingSimulations("MED-1", "PHARM-A"), 1)
}

// TestRestock_PendingSimulationsCopy は保留キューがコピーで返ることのテスト
func TestRestock_PendingSimulationsCopy(t *testing.T) {
	simulator, _, _, _ := newRestockFixture()
	ctx := context.Background()

	_, err := simulator.SimulateRestock(ctx, "MED-1", "PHARM-A", 40)
	assert.NoError(t, err)

	pending := simulator.PendingSimulations("MED-1", "PHARM-A")
	pending[0].RestockQuantity = 999

	again := simulator.PendingSimulations("MED-1", "PHARM-A")
	assert.Equal(t, int64(40), again[0].RestockQuantity)
}
