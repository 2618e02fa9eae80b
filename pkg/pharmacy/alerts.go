package pharmacy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertMonitor periodically scans stock records against their alert
// policies, emits alert records and optionally triggers auto-reorder via
// the restock simulator.
// 在庫記録をアラート設定と照合し、アラート発行と自動再発注を行う監視器
type AlertMonitor struct {
	store      Store
	simulator  *RestockSimulator
	notifier   Notifier // 任意（nilで通知なし）
	classifier *Classifier
	logger     *zap.Logger
	clock      Clock

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewAlertMonitor creates a new alert monitor
// 新しいアラート監視器を作成
func NewAlertMonitor(store Store, simulator *RestockSimulator, notifier Notifier, classifier *Classifier, logger *zap.Logger, clock Clock) *AlertMonitor {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AlertMonitor{
		store:      store,
		simulator:  simulator,
		notifier:   notifier,
		classifier: classifier,
		logger:     logger,
		clock:      clock,
	}
}

// CheckAndTriggerAlerts runs one sweep over all stock records with alerting
// enabled. One record's failure is isolated and logged; the sweep always
// continues with the remaining records.
// 全在庫記録を1回スイープ（1件の失敗はスイープ全体を止めない）
func (am *AlertMonitor) CheckAndTriggerAlerts(ctx context.Context) ([]StockAlert, error) {
	records, err := am.store.ListAllStock(ctx)
	if err != nil {
		return nil, NewStorageError("list_all_stock", "在庫記録一覧取得に失敗しました", err)
	}

	var triggered []StockAlert
	for i := range records {
		if ctx.Err() != nil {
			// キャンセル時は未処理の記録を残して中断（処理済み分は完結している）
			return triggered, ctx.Err()
		}

		record := records[i]
		if record.AlertPolicy == nil {
			continue
		}

		alert, err := am.checkRecord(ctx, &record)
		if err != nil {
			am.logger.Error("在庫記録のアラート判定に失敗しました",
				zap.String("medicine_id", record.MedicineID),
				zap.String("pharmacy_id", record.PharmacyID),
				zap.Error(err),
			)
			continue
		}
		if alert != nil {
			triggered = append(triggered, *alert)
		}
	}

	metricAlertSweeps.Inc()
	am.logger.Info("アラートスイープ完了",
		zap.Int("records", len(records)),
		zap.Int("triggered", len(triggered)),
	)

	return triggered, nil
}

// Start begins periodic sweeps at the given interval. The loop stops
// cleanly via Stop or when the context is cancelled; an interrupted sweep
// never leaves a record half-processed.
// 指定間隔で定期スイープを開始（Stopまたはコンテキスト取消で停止）
func (am *AlertMonitor) Start(ctx context.Context, interval time.Duration) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if am.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	am.cancel = cancel
	am.done = make(chan struct{})
	am.running = true

	go func() {
		defer close(am.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := am.CheckAndTriggerAlerts(ctx); err != nil && ctx.Err() == nil {
					am.logger.Error("定期アラートスイープに失敗しました", zap.Error(err))
				}
				// 期日到来済みの補充もスイープと同じ周期で消化する
				if am.simulator != nil {
					if _, err := am.simulator.AutoExecuteDue(ctx, am.clock.Now()); err != nil {
						am.logger.Error("期日補充の実行に失敗しました", zap.Error(err))
					}
				}
			}
		}
	}()
}

// Stop halts the periodic sweep and waits for the loop to exit
// 定期スイープを停止し、ループの終了を待機
func (am *AlertMonitor) Stop() {
	am.mu.Lock()
	defer am.mu.Unlock()
	if !am.running {
		return
	}
	am.cancel()
	<-am.done
	am.running = false
}

// checkRecord evaluates one record against its alert policy. The critical
// check strictly precedes the low-stock check, so a record at or below the
// critical threshold is never reported as merely low-stock.
// 1件の在庫記録をアラート設定と照合（危機的チェックが低在庫チェックに優先）
func (am *AlertMonitor) checkRecord(ctx context.Context, record *StockRecord) (*StockAlert, error) {
	policy := record.AlertPolicy
	now := am.clock.Now()

	var alertType AlertType
	var threshold int64
	switch {
	case record.StockQuantity == 0:
		alertType = AlertTypeOutOfStock
		threshold = 0
	case record.StockQuantity <= policy.CriticalThreshold:
		alertType = AlertTypeCriticalStock
		threshold = policy.CriticalThreshold
	case record.StockQuantity <= policy.AlertThreshold:
		alertType = AlertTypeLowStock
		threshold = policy.AlertThreshold
	default:
		return nil, nil
	}

	// 頻度による抑制: 抑制されたアラートはアラート記録を作成しない
	if policy.LastAlertSent != nil && now.Sub(*policy.LastAlertSent) < policy.Frequency.Window() {
		return nil, nil
	}

	level := am.classifier.Classify(record.StockQuantity, record.ReorderLevel, record.MaxStock)
	alert := &StockAlert{
		ID:         NewAlertID(),
		Type:       alertType,
		MedicineID: record.MedicineID,
		PharmacyID: record.PharmacyID,
		StockLevel: level,
		CurrentQty: record.StockQuantity,
		Threshold:  threshold,
		Message: fmt.Sprintf("医薬品 %s の薬局 %s での在庫が閾値を下回っています (現在: %d, 閾値: %d)",
			record.MedicineID, record.PharmacyID, record.StockQuantity, threshold),
		IsActive:  true,
		CreatedAt: now,
	}

	// アラートと最終送信日時を先に永続化する。永続化が失敗した記録に
	// 再発注を残すと、以降のスイープが同じ記録へ重複発注を積み上げるため
	if err := am.store.CreateAlert(ctx, alert); err != nil {
		return nil, NewStorageError("create_alert", "アラート作成に失敗しました", err)
	}

	sent := now
	policy.LastAlertSent = &sent
	record.Version++
	record.UpdatedAt = now
	if err := am.store.UpdateStockRecord(ctx, record); err != nil {
		return nil, NewStorageError("update_stock_record", "最終アラート送信日時の更新に失敗しました", err)
	}

	// 自動再発注は危機的在庫でのみ、永続化成功後に発動する
	if policy.AutoReorder && alertType == AlertTypeCriticalStock && am.simulator != nil {
		sim, err := am.simulator.SimulateRestock(ctx, record.MedicineID, record.PharmacyID, 0)
		if err != nil {
			am.logger.Error("自動再発注の作成に失敗しました",
				zap.String("medicine_id", record.MedicineID),
				zap.String("pharmacy_id", record.PharmacyID),
				zap.Error(err),
			)
		} else {
			alert.ActionTaken = fmt.Sprintf("自動再発注を作成しました (数量: %d, 補充予定: %s)",
				sim.RestockQuantity, sim.RestockDate.Format("2006-01-02"))
			metricAlertsTriggered.WithLabelValues(string(AlertTypeAutoReorder)).Inc()
		}
	}

	metricAlertsTriggered.WithLabelValues(string(alertType)).Inc()

	am.notify(ctx, alert)
	return alert, nil
}

// notify hands the alert to the notification collaborator, fire-and-forget
// アラートを通知コラボレーターに引き渡す（失敗はログのみ）
func (am *AlertMonitor) notify(ctx context.Context, alert *StockAlert) {
	if am.notifier == nil {
		return
	}

	priority := "normal"
	if alert.Type == AlertTypeCriticalStock || alert.Type == AlertTypeOutOfStock {
		priority = "high"
	}

	notification := Notification{
		Role:      "pharmacy-admin",
		Type:      "stock-alert",
		Priority:  priority,
		Title:     LevelInfo(alert.StockLevel).Label,
		Message:   alert.Message,
		ActionURL: fmt.Sprintf("/pharmacies/%s/stock/%s", alert.PharmacyID, alert.MedicineID),
		Data: map[string]string{
			"alert_id":    alert.ID,
			"alert_type":  string(alert.Type),
			"medicine_id": alert.MedicineID,
			"pharmacy_id": alert.PharmacyID,
		},
	}

	if err := am.notifier.Notify(ctx, notification); err != nil {
		am.logger.Error("通知送信に失敗しました", zap.Error(err))
	}
}
