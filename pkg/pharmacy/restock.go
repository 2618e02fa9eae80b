package pharmacy

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RestockConfig holds bounds for simulated replenishment events
// 補充シミュレーションの範囲設定を保持
type RestockConfig struct {
	MinDelayDays int   `yaml:"min_delay_days"` // 補充までの最短日数
	MaxDelayDays int   `yaml:"max_delay_days"` // 補充までの最長日数
	MinQuantity  int64 `yaml:"min_quantity"`   // 数量未指定時の最小補充数
	MaxQuantity  int64 `yaml:"max_quantity"`   // 数量未指定時の最大補充数
}

// DefaultRestockConfig returns the default simulation bounds
// デフォルトのシミュレーション範囲を返す
func DefaultRestockConfig() *RestockConfig {
	return &RestockConfig{
		MinDelayDays: 2,
		MaxDelayDays: 7,
		MinQuantity:  50,
		MaxQuantity:  200,
	}
}

// RestockSimulator creates, tracks and executes time-delayed replenishment
// events. Pending simulations form a FIFO queue per (medicine, pharmacy)
// key; execution always consumes the head of that key's queue.
// 時間遅延付き補充イベントを作成・追跡・実行する（キーごとにFIFOキュー）
type RestockSimulator struct {
	store      Store
	classifier *Classifier
	cache      ReportCache // 任意（実行時のレポートキャッシュ無効化に使用）
	logger     *zap.Logger
	config     *RestockConfig
	clock      Clock
	rnd        Rand

	mu     sync.Mutex
	queues map[string][]*RestockSimulation
}

// NewRestockSimulator creates a new restock simulator. Clock and randomness
// are injected so tests can supply deterministic values; nil selects the
// system clock and a time-seeded source.
// 新しい補充シミュレーターを作成（時計と乱数は注入可能）
func NewRestockSimulator(store Store, classifier *Classifier, cache ReportCache, logger *zap.Logger, config *RestockConfig, clock Clock, rnd Rand) *RestockSimulator {
	if config == nil {
		config = DefaultRestockConfig()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RestockSimulator{
		store:      store,
		classifier: classifier,
		cache:      cache,
		logger:     logger,
		config:     config,
		clock:      clock,
		rnd:        rnd,
		queues:     make(map[string][]*RestockSimulation),
	}
}

// SimulateRestock creates a pending replenishment entry for the stock
// record. Quantity <= 0 selects a randomized quantity within the configured
// range. The live stock record is not touched until execution.
// 在庫記録に対する保留中の補充エントリを作成（実行まで実在庫は変更しない）
func (rs *RestockSimulator) SimulateRestock(ctx context.Context, medicineID, pharmacyID string, quantity int64) (*RestockSimulation, error) {
	record, err := rs.store.GetStockRecord(ctx, medicineID, pharmacyID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, NewStorageError("get_stock_record", "在庫記録取得に失敗しました", err)
	}

	if quantity <= 0 {
		span := rs.config.MaxQuantity - rs.config.MinQuantity
		quantity = rs.config.MinQuantity
		if span > 0 {
			quantity += int64(rs.rnd.Intn(int(span + 1)))
		}
	}

	deliveryDays := rs.config.MinDelayDays
	if rs.config.MaxDelayDays > rs.config.MinDelayDays {
		deliveryDays += rs.rnd.Intn(rs.config.MaxDelayDays - rs.config.MinDelayDays + 1)
	}

	now := rs.clock.Now()
	sim := &RestockSimulation{
		ID:                    NewSimulationID(),
		MedicineID:            medicineID,
		PharmacyID:            pharmacyID,
		CurrentStock:          record.StockQuantity,
		RestockQuantity:       quantity,
		NewStock:              record.StockQuantity + quantity,
		RestockDate:           now.AddDate(0, 0, deliveryDays),
		EstimatedDeliveryDays: deliveryDays,
		Supplier:              record.Supplier,
		CreatedAt:             now,
	}

	rs.mu.Lock()
	key := record.Key()
	rs.queues[key] = append(rs.queues[key], sim)
	rs.updatePendingGauge()
	rs.mu.Unlock()

	rs.logger.Info("補充シミュレーション作成完了",
		zap.String("medicine_id", medicineID),
		zap.String("pharmacy_id", pharmacyID),
		zap.Int64("restock_quantity", sim.RestockQuantity),
		zap.Int64("new_stock", sim.NewStock),
		zap.Time("restock_date", sim.RestockDate),
	)

	return sim, nil
}

// ExecuteRestockSimulation pops the queue head for the key and applies its
// NewStock to the underlying record, triggering re-classification. Returns
// false (not an error) when the queue is empty; execution is all-or-nothing.
// キューの先頭を取り出して在庫記録に適用（キューが空ならfalseを返す）
func (rs *RestockSimulator) ExecuteRestockSimulation(ctx context.Context, medicineID, pharmacyID string) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	key := medicineID + "/" + pharmacyID
	queue := rs.queues[key]
	if len(queue) == 0 {
		return false, nil
	}

	sim := queue[0]
	rs.queues[key] = queue[1:]

	if err := rs.apply(ctx, sim); err != nil {
		// 全か無かの実行: 適用に失敗したエントリは先頭に戻す
		rs.queues[key] = append([]*RestockSimulation{sim}, rs.queues[key]...)
		return false, err
	}

	rs.updatePendingGauge()
	metricRestockExecutions.WithLabelValues("manual").Inc()
	return true, nil
}

// AutoExecuteDue executes every pending entry whose RestockDate is at or
// before now, across all keys. Within a key execution respects FIFO order;
// across keys no order is promised. Idempotent: a second consecutive call
// with no new simulations executes nothing.
// 期日到来済みの全エントリを実行（キー内はFIFO、再実行は何もしない）
func (rs *RestockSimulator) AutoExecuteDue(ctx context.Context, now time.Time) ([]RestockSimulation, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var executed []RestockSimulation
	for key, queue := range rs.queues {
		for len(queue) > 0 && !queue[0].RestockDate.After(now) {
			sim := queue[0]
			queue = queue[1:]

			if err := rs.apply(ctx, sim); err != nil {
				// 1エントリの失敗でスイープ全体を止めず、キューに戻して次のキーへ
				queue = append([]*RestockSimulation{sim}, queue...)
				rs.logger.Error("期日補充の適用に失敗しました",
					zap.String("key", key),
					zap.Error(err),
				)
				break
			}

			executed = append(executed, *sim)
			metricRestockExecutions.WithLabelValues("auto").Inc()
		}
		rs.queues[key] = queue
	}

	rs.updatePendingGauge()
	return executed, nil
}

// PendingSimulations returns a copy of the pending queue for a key
// キーの保留キューのコピーを返す
func (rs *RestockSimulator) PendingSimulations(medicineID, pharmacyID string) []RestockSimulation {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	queue := rs.queues[medicineID+"/"+pharmacyID]
	pending := make([]RestockSimulation, 0, len(queue))
	for _, sim := range queue {
		pending = append(pending, *sim)
	}
	return pending
}

// apply writes a simulation's target stock to the record and invalidates
// the report cache for the medicine. Caller holds the mutex.
// シミュレーションの目標在庫を記録に書き込み、レポートキャッシュを無効化
func (rs *RestockSimulator) apply(ctx context.Context, sim *RestockSimulation) error {
	record, err := rs.store.GetStockRecord(ctx, sim.MedicineID, sim.PharmacyID)
	if err != nil {
		return NewStorageError("get_stock_record", "在庫記録取得に失敗しました", err)
	}

	record.StockQuantity = sim.NewStock
	rs.classifier.Reclassify(record)
	record.Version++
	record.UpdatedAt = rs.clock.Now()

	if err := rs.store.UpdateStockRecord(ctx, record); err != nil {
		return NewStorageError("update_stock_record", "在庫記録更新に失敗しました", err)
	}

	if rs.cache != nil {
		rs.cache.InvalidateMedicine(ctx, sim.MedicineID)
	}

	rs.logger.Info("補充シミュレーション実行完了",
		zap.String("medicine_id", sim.MedicineID),
		zap.String("pharmacy_id", sim.PharmacyID),
		zap.Int64("new_stock", record.StockQuantity),
		zap.String("stock_level", string(record.StockLevel)),
	)

	return nil
}

// updatePendingGauge refreshes the pending-simulations metric. Caller holds
// the mutex.
// 保留シミュレーション数のメトリクスを更新
func (rs *RestockSimulator) updatePendingGauge() {
	total := 0
	for _, queue := range rs.queues {
		total += len(queue)
	}
	metricPendingSimulations.Set(float64(total))
}
