package pharmacy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// StockManager applies mutations to stock records while keeping the derived
// fields (InStock, StockLevel) consistent.
// 導出フィールドを一貫させながら在庫記録を変更するマネージャー
type StockManager struct {
	store      Store
	classifier *Classifier
	cache      ReportCache // 任意
	logger     *zap.Logger
	clock      Clock
}

// NewStockManager creates a new stock manager
// 新しい在庫マネージャーを作成
func NewStockManager(store Store, classifier *Classifier, cache ReportCache, logger *zap.Logger, clock Clock) *StockManager {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StockManager{
		store:      store,
		classifier: classifier,
		cache:      cache,
		logger:     logger,
		clock:      clock,
	}
}

// Provision creates a new stock record with its derived fields computed.
// Provisioning is normally driven by the external inventory collaborator.
// 導出フィールドを計算した上で新しい在庫記録を作成
func (sm *StockManager) Provision(ctx context.Context, record *StockRecord) error {
	if err := ValidateStockRecord(record); err != nil {
		return err
	}

	sm.classifier.Reclassify(record)
	record.Version = 1
	record.UpdatedAt = sm.clock.Now()

	if err := sm.store.CreateStockRecord(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateStockRecord) {
			return ErrDuplicateStockRecord
		}
		return NewStorageError("create_stock_record", "在庫記録作成に失敗しました", err)
	}

	// 新しい薬局がTTL満了までレポートから漏れないよう無効化する
	if sm.cache != nil {
		sm.cache.InvalidateMedicine(ctx, record.MedicineID)
	}

	sm.logger.Info("在庫記録作成完了",
		zap.String("medicine_id", record.MedicineID),
		zap.String("pharmacy_id", record.PharmacyID),
		zap.Int64("stock_quantity", record.StockQuantity),
	)

	return nil
}

// RecordSale decrements the stock for an order fulfillment. The quantity
// never goes below zero; derived fields are recomputed and the report cache
// for the medicine is invalidated.
// 注文履行による在庫減算を記録（在庫は0未満にならない）
func (sm *StockManager) RecordSale(ctx context.Context, medicineID, pharmacyID string, quantity int64) error {
	if quantity <= 0 {
		return NewValidationError("quantity", "数量は正の値である必要があります", fmt.Sprintf("%d", quantity))
	}

	record, err := sm.store.GetStockRecord(ctx, medicineID, pharmacyID)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return ErrStockNotFound
		}
		return NewStorageError("get_stock_record", "在庫記録取得に失敗しました", err)
	}

	if record.StockQuantity < quantity {
		return ErrInsufficientStock
	}

	record.StockQuantity -= quantity
	sm.classifier.Reclassify(record)
	record.Version++
	record.UpdatedAt = sm.clock.Now()

	if err := sm.store.UpdateStockRecord(ctx, record); err != nil {
		return NewStorageError("update_stock_record", "在庫記録更新に失敗しました", err)
	}

	if sm.cache != nil {
		sm.cache.InvalidateMedicine(ctx, medicineID)
	}

	sm.logger.Info("販売記録完了",
		zap.String("medicine_id", medicineID),
		zap.String("pharmacy_id", pharmacyID),
		zap.Int64("quantity", quantity),
		zap.Int64("remaining", record.StockQuantity),
		zap.String("stock_level", string(record.StockLevel)),
	)

	return nil
}

// GetStockRecord returns the current stock record for a key
// キーに対応する現在の在庫記録を取得
func (sm *StockManager) GetStockRecord(ctx context.Context, medicineID, pharmacyID string) (*StockRecord, error) {
	return sm.store.GetStockRecord(ctx, medicineID, pharmacyID)
}
