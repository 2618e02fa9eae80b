package pharmacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newAlertFixture(notifier Notifier) (*AlertMonitor, *RestockSimulator, *stubStore, *fakeClock) {
	store := newStubStore()
	classifier := NewClassifier(DefaultBanding())
	clock := newFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	rnd := &fakeRand{values: []int{0}}
	simulator := NewRestockSimulator(store, classifier, nil, zap.NewNop(), DefaultRestockConfig(), clock, rnd)
	monitor := NewAlertMonitor(store, simulator, notifier, classifier, zap.NewNop(), clock)
	return monitor, simulator, store, clock
}

func alertPolicy(alert, critical int64, freq AlertFrequency, autoReorder bool) *AlertPolicy {
	return &AlertPolicy{
		AlertThreshold:    alert,
		CriticalThreshold: critical,
		Frequency:         freq,
		AutoReorder:       autoReorder,
	}
}

// TestAlerts_TypePrecedence はアラート種別の優先順位のテスト
func TestAlerts_TypePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		expected AlertType
	}{
		{"在庫ゼロは欠品アラート", 0, AlertTypeOutOfStock},
		{"危機的閾値以下は危機的アラート", 10, AlertTypeCriticalStock},
		{"警告閾値以下は低在庫アラート", 30, AlertTypeLowStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor, _, store, _ := newAlertFixture(nil)
			store.putStock(StockRecord{
				MedicineID: "MED-1", PharmacyID: "PHARM-A",
				StockQuantity: tt.quantity, ReorderLevel: 15, Price: 1000, Version: 1,
				AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, false),
			})

			triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

			assert.NoError(t, err)
			assert.Len(t, triggered, 1)
			assert.Equal(t, tt.expected, triggered[0].Type)
			assert.Equal(t, tt.quantity, triggered[0].CurrentQty)
		})
	}
}

// TestAlerts_NoAlertAboveThreshold は閾値超過時に発報しないことのテスト
func TestAlerts_NoAlertAboveThreshold(t *testing.T) {
	monitor, _, store, _ := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 100, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, false),
	})

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, triggered)
	alerts, _ := store.ListActiveAlerts(context.Background(), "PHARM-A")
	assert.Empty(t, alerts)
}

// TestAlerts_NilPolicySkipped はアラート設定なしの記録がスキップされることのテスト
func TestAlerts_NilPolicySkipped(t *testing.T) {
	monitor, _, store, _ := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 0, ReorderLevel: 15, Price: 1000, Version: 1,
	})

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, triggered)
}

// TestAlerts_FrequencySuppression は頻度ウィンドウによる抑制のテスト
func TestAlerts_FrequencySuppression(t *testing.T) {
	monitor, _, store, clock := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 5, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyHourly, false),
	})
	ctx := context.Background()

	triggered, err := monitor.CheckAndTriggerAlerts(ctx)
	assert.NoError(t, err)
	assert.Len(t, triggered, 1)

	// ウィンドウ内の再スイープは抑制され、アラート記録も作成されない
	clock.Advance(30 * time.Minute)
	triggered, err = monitor.CheckAndTriggerAlerts(ctx)
	assert.NoError(t, err)
	assert.Empty(t, triggered)

	alerts, _ := store.ListActiveAlerts(ctx, "PHARM-A")
	assert.Len(t, alerts, 1)

	// ウィンドウ経過後は再発報する
	clock.Advance(31 * time.Minute)
	triggered, err = monitor.CheckAndTriggerAlerts(ctx)
	assert.NoError(t, err)
	assert.Len(t, triggered, 1)

	alerts, _ = store.ListActiveAlerts(ctx, "PHARM-A")
	assert.Len(t, alerts, 2)
}

// TestAlerts_AutoReorder は危機的在庫での自動再発注のテスト
func TestAlerts_AutoReorder(t *testing.T) {
	monitor, simulator, store, _ := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 5, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, true),
	})

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, triggered, 1)
	assert.Equal(t, AlertTypeCriticalStock, triggered[0].Type)
	assert.NotEmpty(t, triggered[0].ActionTaken)
	// 再発注は保留シミュレーションとしてキューに入り、実在庫はまだ変わらない
	assert.Len(t, simulator.PendingSimulations("MED-1", "PHARM-A"), 1)
	record, _ := store.GetStockRecord(context.Background(), "MED-1", "PHARM-A")
	assert.Equal(t, int64(5), record.StockQuantity)
}

// TestAlerts_NoAutoReorderForLowStock は低在庫では自動再発注しないことのテスト
func TestAlerts_NoAutoReorderForLowStock(t *testing.T) {
	monitor, simulator, store, _ := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 30, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, true),
	})

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, triggered, 1)
	assert.Equal(t, AlertTypeLowStock, triggered[0].Type)
	assert.Empty(t, triggered[0].ActionTaken)
	assert.Empty(t, simulator.PendingSimulations("MED-1", "PHARM-A"))
}

// TestAlerts_NoReorderWhenPersistenceFails はアラート永続化失敗時に
// 再発注が積み上がらないことのテスト
func TestAlerts_NoReorderWhenPersistenceFails(t *testing.T) {
	monitor, simulator, store, _ := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 5, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, true),
	})
	ctx := context.Background()

	store.createAlertErr = func(*StockAlert) error {
		return errors.New("接続エラー")
	}

	// 永続化が失敗し続ける間は、何回スイープしても再発注は作成されない
	for i := 0; i < 2; i++ {
		triggered, err := monitor.CheckAndTriggerAlerts(ctx)
		assert.NoError(t, err)
		assert.Empty(t, triggered)
	}
	assert.Empty(t, simulator.PendingSimulations("MED-1", "PHARM-A"))
	alerts, _ := store.ListActiveAlerts(ctx, "PHARM-A")
	assert.Empty(t, alerts)

	// 復旧後のスイープでアラート1件と再発注1件だけが作成される
	store.createAlertErr = nil
	triggered, err := monitor.CheckAndTriggerAlerts(ctx)
	assert.NoError(t, err)
	assert.Len(t, triggered, 1)
	assert.NotEmpty(t, triggered[0].ActionTaken)
	assert.Len(t, simulator.PendingSimulations("MED-1", "PHARM-A"), 1)
}

// TestAlerts_FailureIsolation は1件の失敗がスイープを止めないことのテスト
func TestAlerts_FailureIsolation(t *testing.T) {
	monitor, _, store, _ := newAlertFixture(nil)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 0, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, false),
	})
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-B",
		StockQuantity: 0, ReorderLevel: 15, Price: 1200, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, false),
	})

	// PHARM-Aのアラート作成だけ失敗させる
	store.createAlertErr = func(alert *StockAlert) error {
		if alert.PharmacyID == "PHARM-A" {
			return errors.New("接続エラー")
		}
		return nil
	}

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, triggered, 1)
	assert.Equal(t, "PHARM-B", triggered[0].PharmacyID)
}

// TestAlerts_Notification は通知コラボレーターへの引き渡しのテスト
func TestAlerts_Notification(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.Priority == "high" && n.Type == "stock-alert" && n.Data["medicine_id"] == "MED-1"
	})).Return(nil)

	monitor, _, store, _ := newAlertFixture(notifier)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 0, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, false),
	})

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, triggered, 1)
	notifier.AssertExpectations(t)
}

// TestAlerts_NotifierFailureIgnored は通知失敗がアラート発行に影響しないことのテスト
func TestAlerts_NotifierFailureIgnored(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("送信エラー"))

	monitor, _, store, _ := newAlertFixture(notifier)
	store.putStock(StockRecord{
		MedicineID: "MED-1", PharmacyID: "PHARM-A",
		StockQuantity: 0, ReorderLevel: 15, Price: 1000, Version: 1,
		AlertPolicy: alertPolicy(40, 10, AlertFrequencyImmediate, false),
	})

	triggered, err := monitor.CheckAndTriggerAlerts(context.Background())

	assert.NoError(t, err)
	assert.Len(t, triggered, 1)
	alerts, _ := store.ListActiveAlerts(context.Background(), "PHARM-A")
	assert.Len(t, alerts, 1)
}

// TestAlerts_StartStop は定期スイープの開始と停止のテスト
func TestAlerts_StartStop(t *testing.T) {
	monitor, _, _, _ := newAlertFixture(nil)

	monitor.Start(context.Background(), time.Hour)
	// 二重起動は安全に無視される
	monitor.Start(context.Background(), time.Hour)
	monitor.Stop()
	// 二重停止も安全
	monitor.Stop()
}
