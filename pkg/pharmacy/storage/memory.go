// Package storage provides Store implementations for the pharmacy package
// pharmacyパッケージのStore実装を提供
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy"
)

// InMemoryStore is a Store implementation backed by in-process maps.
// Intended for tests, examples and single-instance deployments.
// プロセス内マップによるStore実装（テスト、サンプル、単一インスタンス向け）
type InMemoryStore struct {
	mu         sync.RWMutex
	stocks     map[string]*pharmacy.StockRecord // キー: medicineID/pharmacyID
	medicines  map[string]*pharmacy.Medicine
	pharmacies map[string]*pharmacy.Pharmacy
	alerts     map[string]*pharmacy.StockAlert
}

// InMemoryStoreはStoreインターフェースを満たすことを明示
var _ pharmacy.Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store
// 空のインメモリストアを作成
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stocks:     make(map[string]*pharmacy.StockRecord),
		medicines:  make(map[string]*pharmacy.Medicine),
		pharmacies: make(map[string]*pharmacy.Pharmacy),
		alerts:     make(map[string]*pharmacy.StockAlert),
	}
}

func stockKey(medicineID, pharmacyID string) string {
	return medicineID + "/" + pharmacyID
}

func copyStockRecord(record *pharmacy.StockRecord) *pharmacy.StockRecord {
	clone := *record
	if record.AlertPolicy != nil {
		policy := *record.AlertPolicy
		if record.AlertPolicy.LastAlertSent != nil {
			sent := *record.AlertPolicy.LastAlertSent
			policy.LastAlertSent = &sent
		}
		clone.AlertPolicy = &policy
	}
	return &clone
}

// CreateStockRecord creates a new stock record
// 新しい在庫記録を作成
func (s *InMemoryStore) CreateStockRecord(ctx context.Context, record *pharmacy.StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey(record.MedicineID, record.PharmacyID)
	if _, exists := s.stocks[key]; exists {
		return pharmacy.ErrDuplicateStockRecord
	}
	s.stocks[key] = copyStockRecord(record)
	return nil
}

// UpdateStockRecord updates an existing stock record with optimistic locking
// 楽観的ロック付きで既存の在庫記録を更新
func (s *InMemoryStore) UpdateStockRecord(ctx context.Context, record *pharmacy.StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey(record.MedicineID, record.PharmacyID)
	current, exists := s.stocks[key]
	if !exists {
		return pharmacy.ErrStockNotFound
	}
	if current.Version != record.Version-1 {
		return pharmacy.ErrVersionMismatch
	}
	s.stocks[key] = copyStockRecord(record)
	return nil
}

// GetStockRecord retrieves stock for a medicine at a pharmacy
// 指定薬局の医薬品在庫記録を取得
func (s *InMemoryStore) GetStockRecord(ctx context.Context, medicineID, pharmacyID string) (*pharmacy.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.stocks[stockKey(medicineID, pharmacyID)]
	if !exists {
		return nil, pharmacy.ErrStockNotFound
	}
	return copyStockRecord(record), nil
}

// ListStockByMedicine retrieves all stock records for a medicine
// 医薬品のすべての在庫記録を取得
func (s *InMemoryStore) ListStockByMedicine(ctx context.Context, medicineID string) ([]pharmacy.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []pharmacy.StockRecord
	for _, record := range s.stocks {
		if record.MedicineID == medicineID {
			records = append(records, *copyStockRecord(record))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PharmacyID < records[j].PharmacyID
	})
	return records, nil
}

// ListStockByPharmacy retrieves all stock records at a pharmacy
// 薬局のすべての在庫記録を取得
func (s *InMemoryStore) ListStockByPharmacy(ctx context.Context, pharmacyID string) ([]pharmacy.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []pharmacy.StockRecord
	for _, record := range s.stocks {
		if record.PharmacyID == pharmacyID {
			records = append(records, *copyStockRecord(record))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].MedicineID < records[j].MedicineID
	})
	return records, nil
}

// ListAllStock retrieves every stock record
// すべての在庫記録を取得
func (s *InMemoryStore) ListAllStock(ctx context.Context) ([]pharmacy.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []pharmacy.StockRecord
	for _, record := range s.stocks {
		records = append(records, *copyStockRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].MedicineID != records[j].MedicineID {
			return records[i].MedicineID < records[j].MedicineID
		}
		return records[i].PharmacyID < records[j].PharmacyID
	})
	return records, nil
}

// CreateMedicine creates a new medicine
// 新しい医薬品を作成
func (s *InMemoryStore) CreateMedicine(ctx context.Context, medicine *pharmacy.Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.medicines[medicine.ID]; exists {
		return pharmacy.ErrDuplicateMedicine
	}
	clone := *medicine
	s.medicines[medicine.ID] = &clone
	return nil
}

// GetMedicine retrieves a medicine by ID
// IDで医薬品を取得
func (s *InMemoryStore) GetMedicine(ctx context.Context, medicineID string) (*pharmacy.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	medicine, exists := s.medicines[medicineID]
	if !exists {
		return nil, pharmacy.ErrMedicineNotFound
	}
	clone := *medicine
	return &clone, nil
}

// CreatePharmacy creates a new pharmacy
// 新しい薬局を作成
func (s *InMemoryStore) CreatePharmacy(ctx context.Context, p *pharmacy.Pharmacy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pharmacies[p.ID]; exists {
		return pharmacy.ErrDuplicatePharmacy
	}
	clone := *p
	s.pharmacies[p.ID] = &clone
	return nil
}

// GetPharmacy retrieves a pharmacy by ID
// IDで薬局を取得
func (s *InMemoryStore) GetPharmacy(ctx context.Context, pharmacyID string) (*pharmacy.Pharmacy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.pharmacies[pharmacyID]
	if !exists {
		return nil, pharmacy.ErrPharmacyNotFound
	}
	clone := *p
	return &clone, nil
}

// ListPharmaciesByCity retrieves all active pharmacies in a city
// 都市内のすべてのアクティブな薬局を取得
func (s *InMemoryStore) ListPharmaciesByCity(ctx context.Context, cityID string) ([]pharmacy.Pharmacy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pharmacies []pharmacy.Pharmacy
	for _, p := range s.pharmacies {
		if p.CityID == cityID && p.IsActive {
			pharmacies = append(pharmacies, *p)
		}
	}
	sort.Slice(pharmacies, func(i, j int) bool {
		return pharmacies[i].Name < pharmacies[j].Name
	})
	return pharmacies, nil
}

// CreateAlert creates a new stock alert
// 新しい在庫アラートを作成
func (s *InMemoryStore) CreateAlert(ctx context.Context, alert *pharmacy.StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *alert
	s.alerts[alert.ID] = &clone
	return nil
}

// ListActiveAlerts retrieves active alerts for a pharmacy
// 薬局のアクティブアラートを取得
func (s *InMemoryStore) ListActiveAlerts(ctx context.Context, pharmacyID string) ([]pharmacy.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []pharmacy.StockAlert
	for _, alert := range s.alerts {
		if alert.PharmacyID == pharmacyID && alert.IsActive {
			alerts = append(alerts, *alert)
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

// ResolveAlert resolves an alert by setting it inactive
// アラートを非アクティブにして解決
func (s *InMemoryStore) ResolveAlert(ctx context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[alertID]
	if !exists || !alert.IsActive {
		return pharmacy.ErrAlertNotFound
	}
	now := time.Now()
	alert.IsActive = false
	alert.ResolvedAt = &now
	return nil
}

// Ping always succeeds for the in-memory store
// インメモリストアでは常に成功
func (s *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
// インメモリストアでは何もしない
func (s *InMemoryStore) Close() error {
	return nil
}
