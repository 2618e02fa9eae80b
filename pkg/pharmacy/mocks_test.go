package pharmacy

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore はテスト用のStoreモック
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateStockRecord(ctx context.Context, record *StockRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) UpdateStockRecord(ctx context.Context, record *StockRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) GetStockRecord(ctx context.Context, medicineID, pharmacyID string) (*StockRecord, error) {
	args := m.Called(ctx, medicineID, pharmacyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StockRecord), args.Error(1)
}

func (m *MockStore) ListStockByMedicine(ctx context.Context, medicineID string) ([]StockRecord, error) {
	args := m.Called(ctx, medicineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockRecord), args.Error(1)
}

func (m *MockStore) ListStockByPharmacy(ctx context.Context, pharmacyID string) ([]StockRecord, error) {
	args := m.Called(ctx, pharmacyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockRecord), args.Error(1)
}

func (m *MockStore) ListAllStock(ctx context.Context) ([]StockRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockRecord), args.Error(1)
}

func (m *MockStore) CreateMedicine(ctx context.Context, medicine *Medicine) error {
	args := m.Called(ctx, medicine)
	return args.Error(0)
}

func (m *MockStore) GetMedicine(ctx context.Context, medicineID string) (*Medicine, error) {
	args := m.Called(ctx, medicineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Medicine), args.Error(1)
}

func (m *MockStore) CreatePharmacy(ctx context.Context, pharmacy *Pharmacy) error {
	args := m.Called(ctx, pharmacy)
	return args.Error(0)
}

func (m *MockStore) GetPharmacy(ctx context.Context, pharmacyID string) (*Pharmacy, error) {
	args := m.Called(ctx, pharmacyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Pharmacy), args.Error(1)
}

func (m *MockStore) ListPharmaciesByCity(ctx context.Context, cityID string) ([]Pharmacy, error) {
	args := m.Called(ctx, cityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Pharmacy), args.Error(1)
}

func (m *MockStore) CreateAlert(ctx context.Context, alert *StockAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockStore) ListActiveAlerts(ctx context.Context, pharmacyID string) ([]StockAlert, error) {
	args := m.Called(ctx, pharmacyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockAlert), args.Error(1)
}

func (m *MockStore) ResolveAlert(ctx context.Context, alertID string) error {
	args := m.Called(ctx, alertID)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockNotifier はテスト用のNotifierモック
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notification Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

// stubStore は状態を持つ複数ステップのシナリオ用の簡易ストア。
// 読み取りはコピーを返し、書き込みはコピーを保存する。
type stubStore struct {
	mu         sync.Mutex
	stocks     map[string]*StockRecord
	medicines  map[string]*Medicine
	pharmacies map[string]*Pharmacy
	alerts     []StockAlert

	// エラーフック（nilで常に成功）
	updateErr      func(record *StockRecord) error
	createAlertErr func(alert *StockAlert) error
}

var _ Store = (*stubStore)(nil)

func newStubStore() *stubStore {
	return &stubStore{
		stocks:     make(map[string]*StockRecord),
		medicines:  make(map[string]*Medicine),
		pharmacies: make(map[string]*Pharmacy),
	}
}

func (s *stubStore) putStock(record StockRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := record
	if record.AlertPolicy != nil {
		policy := *record.AlertPolicy
		clone.AlertPolicy = &policy
	}
	s.stocks[record.Key()] = &clone
}

func (s *stubStore) cloneStock(record *StockRecord) *StockRecord {
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

func (s *stubStore) CreateStockRecord(ctx context.Context, record *StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stocks[record.Key()]; exists {
		return ErrDuplicateStockRecord
	}
	s.stocks[record.Key()] = s.cloneStock(record)
	return nil
}

func (s *stubStore) UpdateStockRecord(ctx context.Context, record *StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		if err := s.updateErr(record); err != nil {
			return err
		}
	}
	if _, exists := s.stocks[record.Key()]; !exists {
		return ErrStockNotFound
	}
	s.stocks[record.Key()] = s.cloneStock(record)
	return nil
}

func (s *stubStore) GetStockRecord(ctx context.Context, medicineID, pharmacyID string) (*StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.stocks[medicineID+"/"+pharmacyID]
	if !exists {
		return nil, ErrStockNotFound
	}
	return s.cloneStock(record), nil
}

func (s *stubStore) ListStockByMedicine(ctx context.Context, medicineID string) ([]StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []StockRecord
	for _, record := range s.stocks {
		if record.MedicineID == medicineID {
			records = append(records, *s.cloneStock(record))
		}
	}
	return records, nil
}

func (s *stubStore) ListStockByPharmacy(ctx context.Context, pharmacyID string) ([]StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []StockRecord
	for _, record := range s.stocks {
		if record.PharmacyID == pharmacyID {
			records = append(records, *s.cloneStock(record))
		}
	}
	return records, nil
}

func (s *stubStore) ListAllStock(ctx context.Context) ([]StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []StockRecord
	for _, record := range s.stocks {
		records = append(records, *s.cloneStock(record))
	}
	return records, nil
}

func (s *stubStore) CreateMedicine(ctx context.Context, medicine *Medicine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.medicines[medicine.ID]; exists {
		return ErrDuplicateMedicine
	}
	clone := *medicine
	s.medicines[medicine.ID] = &clone
	return nil
}

func (s *stubStore) GetMedicine(ctx context.Context, medicineID string) (*Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	medicine, exists := s.medicines[medicineID]
	if !exists {
		return nil, ErrMedicineNotFound
	}
	clone := *medicine
	return &clone, nil
}

func (s *stubStore) CreatePharmacy(ctx context.Context, p *Pharmacy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pharmacies[p.ID]; exists {
		return ErrDuplicatePharmacy
	}
	clone := *p
	s.pharmacies[p.ID] = &clone
	return nil
}

func (s *stubStore) GetPharmacy(ctx context.Context, pharmacyID string) (*Pharmacy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.pharmacies[pharmacyID]
	if !exists {
		return nil, ErrPharmacyNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *stubStore) ListPharmaciesByCity(ctx context.Context, cityID string) ([]Pharmacy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pharmacies []Pharmacy
	for _, p := range s.pharmacies {
		if p.CityID == cityID && p.IsActive {
			pharmacies = append(pharmacies, *p)
		}
	}
	return pharmacies, nil
}

func (s *stubStore) CreateAlert(ctx context.Context, alert *StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createAlertErr != nil {
		if err := s.createAlertErr(alert); err != nil {
			return err
		}
	}
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *stubStore) ListActiveAlerts(ctx context.Context, pharmacyID string) ([]StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var alerts []StockAlert
	for _, alert := range s.alerts {
		if alert.PharmacyID == pharmacyID && alert.IsActive {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

func (s *stubStore) ResolveAlert(ctx context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID && s.alerts[i].IsActive {
			now := time.Now()
			s.alerts[i].IsActive = false
			s.alerts[i].ResolvedAt = &now
			return nil
		}
	}
	return ErrAlertNotFound
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                   { return nil }

// fakeClock は固定時刻を返すテスト用時計
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRand は与えられた値を順番に返すテスト用乱数源
type fakeRand struct {
	values []int
	index  int
}

func (r *fakeRand) Intn(n int) int {
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.index%len(r.values)] % n
	r.index++
	return v
}
