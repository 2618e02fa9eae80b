package pharmacy

import (
	"context"
	"time"
)

// Store defines the interface for the stock data layer. State lives in an
// injected store instance owned by the composing application, never in
// package-level state.
// 在庫データ層のインターフェースを定義（状態は注入されたストアが保持する）
type Store interface {
	// Stock records
	CreateStockRecord(ctx context.Context, record *StockRecord) error
	UpdateStockRecord(ctx context.Context, record *StockRecord) error
	GetStockRecord(ctx context.Context, medicineID, pharmacyID string) (*StockRecord, error)
	ListStockByMedicine(ctx context.Context, medicineID string) ([]StockRecord, error)
	ListStockByPharmacy(ctx context.Context, pharmacyID string) ([]StockRecord, error)
	ListAllStock(ctx context.Context) ([]StockRecord, error)

	// Medicine catalog
	CreateMedicine(ctx context.Context, medicine *Medicine) error
	GetMedicine(ctx context.Context, medicineID string) (*Medicine, error)

	// Pharmacy lookup
	CreatePharmacy(ctx context.Context, pharmacy *Pharmacy) error
	GetPharmacy(ctx context.Context, pharmacyID string) (*Pharmacy, error)
	ListPharmaciesByCity(ctx context.Context, cityID string) ([]Pharmacy, error)

	// Alert records
	CreateAlert(ctx context.Context, alert *StockAlert) error
	ListActiveAlerts(ctx context.Context, pharmacyID string) ([]StockAlert, error)
	ResolveAlert(ctx context.Context, alertID string) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// PharmacyLookup is the narrow collaborator view used for city filtering
// and for the delivery/rating attributes consumed by the ranker.
// 都市フィルタリングと配送・評価属性に使う薬局参照コラボレーター
type PharmacyLookup interface {
	GetPharmacy(ctx context.Context, pharmacyID string) (*Pharmacy, error)
	ListPharmaciesByCity(ctx context.Context, cityID string) ([]Pharmacy, error)
}

// MedicineCatalog is the narrow collaborator view over the medicine catalog
// 医薬品カタログの参照コラボレーター
type MedicineCatalog interface {
	GetMedicine(ctx context.Context, medicineID string) (*Medicine, error)
}

// Storeは参照コラボレーターのインターフェースを満たすことを明示
var (
	_ PharmacyLookup  = Store(nil)
	_ MedicineCatalog = Store(nil)
)

// Notifier delivers notifications to users. Fire-and-forget from this
// subsystem's perspective: failures are logged, never propagated.
// 通知配信インターフェース（本サブシステムからは投げっぱなし）
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// ReportCache is an optional short-lived cache for availability reports.
// Any mutation that changes a stock record in scope must invalidate it.
// 在庫状況レポートの短期キャッシュ（対象範囲の在庫変更で必ず無効化する）
type ReportCache interface {
	Get(ctx context.Context, key string) (*AvailabilityReport, bool)
	Set(ctx context.Context, key string, report *AvailabilityReport, ttl time.Duration)
	InvalidateMedicine(ctx context.Context, medicineID string)
}

// Clock abstracts time so tests can supply deterministic values
// テストで決定的な時刻を注入できるようにする時計抽象
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock
// 実際のシステム時計
type SystemClock struct{}

// Now returns the current time
// 現在時刻を返す
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Rand abstracts randomness for the restock simulator
// 補充シミュレーター用の乱数抽象
type Rand interface {
	// Intn returns a non-negative pseudo-random number in [0, n)
	Intn(n int) int
}
