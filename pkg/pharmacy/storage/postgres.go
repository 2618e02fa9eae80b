package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy"
)

// PostgreSQLStore implements the Store interface using PostgreSQL
// PostgreSQLを使用したStoreインターフェースの実装
type PostgreSQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgreSQLStoreはStoreインターフェースを満たすことを明示
var _ pharmacy.Store = (*PostgreSQLStore)(nil)

// NewPostgreSQLStore creates a new PostgreSQL store instance
// 新しいPostgreSQLストアインスタンスを作成
func NewPostgreSQLStore(dsn string, logger *zap.Logger) (*PostgreSQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgreSQLStore{
		db:     db,
		logger: logger,
	}

	return store, nil
}

// CreateStockRecord creates a new stock record
// 新しい在庫記録を作成
func (s *PostgreSQLStore) CreateStockRecord(ctx context.Context, record *pharmacy.StockRecord) error {
	policyJSON, err := marshalAlertPolicy(record.AlertPolicy)
	if err != nil {
		return fmt.Errorf("アラート設定のJSON変換に失敗しました: %w", err)
	}

	query := `
		INSERT INTO stock_records (medicine_id, pharmacy_id, stock_quantity, reorder_level, max_stock, price, in_stock, stock_level, supplier, alert_policy, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.db.ExecContext(ctx, query,
		record.MedicineID,
		record.PharmacyID,
		record.StockQuantity,
		record.ReorderLevel,
		record.MaxStock,
		record.Price,
		record.InStock,
		string(record.StockLevel),
		record.Supplier,
		policyJSON,
		record.Version,
		record.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pharmacy.ErrDuplicateStockRecord
		}
		return fmt.Errorf("在庫記録作成に失敗しました: %w", err)
	}

	return nil
}

// UpdateStockRecord updates an existing stock record with optimistic locking
// 楽観的ロック付きで既存の在庫記録を更新
func (s *PostgreSQLStore) UpdateStockRecord(ctx context.Context, record *pharmacy.StockRecord) error {
	policyJSON, err := marshalAlertPolicy(record.AlertPolicy)
	if err != nil {
		return fmt.Errorf("アラート設定のJSON変換に失敗しました: %w", err)
	}

	query := `
		UPDATE stock_records
		SET stock_quantity = $3, reorder_level = $4, max_stock = $5, price = $6, in_stock = $7, stock_level = $8, supplier = $9, alert_policy = $10, version = $11, updated_at = $12
		WHERE medicine_id = $1 AND pharmacy_id = $2 AND version = $13`

	result, err := s.db.ExecContext(ctx, query,
		record.MedicineID,
		record.PharmacyID,
		record.StockQuantity,
		record.ReorderLevel,
		record.MaxStock,
		record.Price,
		record.InStock,
		string(record.StockLevel),
		record.Supplier,
		policyJSON,
		record.Version,
		record.UpdatedAt,
		record.Version-1, // 楽観的ロックのための前バージョン
	)

	if err != nil {
		return fmt.Errorf("在庫記録更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}

	if rowsAffected == 0 {
		return pharmacy.ErrVersionMismatch
	}

	return nil
}

// GetStockRecord retrieves stock for a medicine at a pharmacy
// 指定薬局の医薬品在庫記録を取得
func (s *PostgreSQLStore) GetStockRecord(ctx context.Context, medicineID, pharmacyID string) (*pharmacy.StockRecord, error) {
	query := `
		SELECT medicine_id, pharmacy_id, stock_quantity, reorder_level, max_stock, price, in_stock, stock_level, supplier, alert_policy, version, updated_at
		FROM stock_records
		WHERE medicine_id = $1 AND pharmacy_id = $2`

	record, err := s.scanStockRecord(s.db.QueryRowContext(ctx, query, medicineID, pharmacyID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, pharmacy.ErrStockNotFound
		}
		return nil, fmt.Errorf("在庫記録取得に失敗しました: %w", err)
	}

	return record, nil
}

// ListStockByMedicine retrieves all stock records for a medicine
// 医薬品のすべての在庫記録を取得
func (s *PostgreSQLStore) ListStockByMedicine(ctx context.Context, medicineID string) ([]pharmacy.StockRecord, error) {
	query := `
		SELECT medicine_id, pharmacy_id, stock_quantity, reorder_level, max_stock, price, in_stock, stock_level, supplier, alert_policy, version, updated_at
		FROM stock_records
		WHERE medicine_id = $1
		ORDER BY pharmacy_id`

	return s.queryStockRecords(ctx, query, medicineID)
}

// ListStockByPharmacy retrieves all stock records at a pharmacy
// 薬局のすべての在庫記録を取得
func (s *PostgreSQLStore) ListStockByPharmacy(ctx context.Context, pharmacyID string) ([]pharmacy.StockRecord, error) {
	query := `
		SELECT medicine_id, pharmacy_id, stock_quantity, reorder_level, max_stock, price, in_stock, stock_level, supplier, alert_policy, version, updated_at
		FROM stock_records
		WHERE pharmacy_id = $1
		ORDER BY medicine_id`

	return s.queryStockRecords(ctx, query, pharmacyID)
}

// ListAllStock retrieves every stock record
// すべての在庫記録を取得
func (s *PostgreSQLStore) ListAllStock(ctx context.Context) ([]pharmacy.StockRecord, error) {
	query := `
		SELECT medicine_id, pharmacy_id, stock_quantity, reorder_level, max_stock, price, in_stock, stock_level, supplier, alert_policy, version, updated_at
		FROM stock_records
		ORDER BY medicine_id, pharmacy_id`

	return s.queryStockRecords(ctx, query)
}

func (s *PostgreSQLStore) queryStockRecords(ctx context.Context, query string, args ...interface{}) ([]pharmacy.StockRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("在庫記録一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []pharmacy.StockRecord
	for rows.Next() {
		record, err := s.scanStockRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("在庫記録スキャンに失敗しました: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgreSQLStore) scanStockRecord(row rowScanner) (*pharmacy.StockRecord, error) {
	record := &pharmacy.StockRecord{}
	var level string
	var policyJSON []byte

	err := row.Scan(
		&record.MedicineID,
		&record.PharmacyID,
		&record.StockQuantity,
		&record.ReorderLevel,
		&record.MaxStock,
		&record.Price,
		&record.InStock,
		&level,
		&record.Supplier,
		&policyJSON,
		&record.Version,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.StockLevel = pharmacy.StockLevel(level)

	// アラート設定のデシリアライズ（NULLは設定なし）
	if len(policyJSON) > 0 {
		var policy pharmacy.AlertPolicy
		if err := json.Unmarshal(policyJSON, &policy); err != nil {
			s.logger.Warn("アラート設定のパースに失敗しました",
				zap.String("medicine_id", record.MedicineID),
				zap.String("pharmacy_id", record.PharmacyID),
				zap.Error(err))
		} else {
			record.AlertPolicy = &policy
		}
	}

	return record, nil
}

func marshalAlertPolicy(policy *pharmacy.AlertPolicy) (interface{}, error) {
	if policy == nil {
		return nil, nil
	}
	return json.Marshal(policy)
}

// CreateMedicine creates a new medicine
// 新しい医薬品を作成
func (s *PostgreSQLStore) CreateMedicine(ctx context.Context, medicine *pharmacy.Medicine) error {
	query := `
		INSERT INTO medicines (id, name, category, requires_prescription, alternatives, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		medicine.ID,
		medicine.Name,
		medicine.Category,
		medicine.RequiresPrescription,
		pq.Array(medicine.Alternatives),
		medicine.CreatedAt,
		medicine.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pharmacy.ErrDuplicateMedicine
		}
		return fmt.Errorf("医薬品作成に失敗しました: %w", err)
	}

	return nil
}

// GetMedicine retrieves a medicine by ID
// IDで医薬品を取得
func (s *PostgreSQLStore) GetMedicine(ctx context.Context, medicineID string) (*pharmacy.Medicine, error) {
	query := `
		SELECT id, name, category, requires_prescription, alternatives, created_at, updated_at
		FROM medicines
		WHERE id = $1`

	medicine := &pharmacy.Medicine{}
	var alternatives pq.StringArray
	err := s.db.QueryRowContext(ctx, query, medicineID).Scan(
		&medicine.ID,
		&medicine.Name,
		&medicine.Category,
		&medicine.RequiresPrescription,
		&alternatives,
		&medicine.CreatedAt,
		&medicine.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, pharmacy.ErrMedicineNotFound
		}
		return nil, fmt.Errorf("医薬品取得に失敗しました: %w", err)
	}

	medicine.Alternatives = alternatives
	return medicine, nil
}

// CreatePharmacy creates a new pharmacy
// 新しい薬局を作成
func (s *PostgreSQLStore) CreatePharmacy(ctx context.Context, p *pharmacy.Pharmacy) error {
	query := `
		INSERT INTO pharmacies (id, name, city_id, rating, delivery_fee, delivery_time_min, delivery_time_max, open_24_hours, features, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.CityID,
		p.Rating,
		p.DeliveryFee,
		p.DeliveryTimeMinMinutes,
		p.DeliveryTimeMaxMinutes,
		p.Open24Hours,
		pq.Array(p.Features),
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pharmacy.ErrDuplicatePharmacy
		}
		return fmt.Errorf("薬局作成に失敗しました: %w", err)
	}

	return nil
}

// GetPharmacy retrieves a pharmacy by ID
// IDで薬局を取得
func (s *PostgreSQLStore) GetPharmacy(ctx context.Context, pharmacyID string) (*pharmacy.Pharmacy, error) {
	query := `
		SELECT id, name, city_id, rating, delivery_fee, delivery_time_min, delivery_time_max, open_24_hours, features, is_active, created_at, updated_at
		FROM pharmacies
		WHERE id = $1`

	p := &pharmacy.Pharmacy{}
	var features pq.StringArray
	err := s.db.QueryRowContext(ctx, query, pharmacyID).Scan(
		&p.ID,
		&p.Name,
		&p.CityID,
		&p.Rating,
		&p.DeliveryFee,
		&p.DeliveryTimeMinMinutes,
		&p.DeliveryTimeMaxMinutes,
		&p.Open24Hours,
		&features,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, pharmacy.ErrPharmacyNotFound
		}
		return nil, fmt.Errorf("薬局取得に失敗しました: %w", err)
	}

	p.Features = features
	return p, nil
}

// ListPharmaciesByCity retrieves all active pharmacies in a city
// 都市内のすべてのアクティブな薬局を取得
func (s *PostgreSQLStore) ListPharmaciesByCity(ctx context.Context, cityID string) ([]pharmacy.Pharmacy, error) {
	query := `
		SELECT id, name, city_id, rating, delivery_fee, delivery_time_min, delivery_time_max, open_24_hours, features, is_active, created_at, updated_at
		FROM pharmacies
		WHERE city_id = $1 AND is_active = true
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, cityID)
	if err != nil {
		return nil, fmt.Errorf("都市別薬局取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var pharmacies []pharmacy.Pharmacy
	for rows.Next() {
		var p pharmacy.Pharmacy
		var features pq.StringArray
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.CityID,
			&p.Rating,
			&p.DeliveryFee,
			&p.DeliveryTimeMinMinutes,
			&p.DeliveryTimeMaxMinutes,
			&p.Open24Hours,
			&features,
			&p.IsActive,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("薬局スキャンに失敗しました: %w", err)
		}
		p.Features = features
		pharmacies = append(pharmacies, p)
	}

	return pharmacies, rows.Err()
}

// CreateAlert creates a new stock alert
// 新しい在庫アラートを作成
func (s *PostgreSQLStore) CreateAlert(ctx context.Context, alert *pharmacy.StockAlert) error {
	query := `
		INSERT INTO stock_alerts (id, type, medicine_id, pharmacy_id, stock_level, current_qty, threshold, message, action_taken, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query,
		alert.ID,
		string(alert.Type),
		alert.MedicineID,
		alert.PharmacyID,
		string(alert.StockLevel),
		alert.CurrentQty,
		alert.Threshold,
		alert.Message,
		alert.ActionTaken,
		alert.IsActive,
		alert.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("アラート作成に失敗しました: %w", err)
	}

	return nil
}

// ListActiveAlerts retrieves active alerts for a pharmacy
// 薬局のアクティブアラートを取得
func (s *PostgreSQLStore) ListActiveAlerts(ctx context.Context, pharmacyID string) ([]pharmacy.StockAlert, error) {
	query := `
		SELECT id, type, medicine_id, pharmacy_id, stock_level, current_qty, threshold, message, action_taken, is_active, created_at, resolved_at
		FROM stock_alerts
		WHERE pharmacy_id = $1 AND is_active = true
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, pharmacyID)
	if err != nil {
		return nil, fmt.Errorf("アラート取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var alerts []pharmacy.StockAlert
	for rows.Next() {
		var alert pharmacy.StockAlert
		var alertType, level string
		err := rows.Scan(
			&alert.ID,
			&alertType,
			&alert.MedicineID,
			&alert.PharmacyID,
			&level,
			&alert.CurrentQty,
			&alert.Threshold,
			&alert.Message,
			&alert.ActionTaken,
			&alert.IsActive,
			&alert.CreatedAt,
			&alert.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("アラートスキャンに失敗しました: %w", err)
		}
		alert.Type = pharmacy.AlertType(alertType)
		alert.StockLevel = pharmacy.StockLevel(level)
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

// ResolveAlert resolves an alert by setting it inactive
// アラートを非アクティブにして解決
func (s *PostgreSQLStore) ResolveAlert(ctx context.Context, alertID string) error {
	now := time.Now()
	query := `
		UPDATE stock_alerts
		SET is_active = false, resolved_at = $2
		WHERE id = $1 AND is_active = true`

	result, err := s.db.ExecContext(ctx, query, alertID, now)
	if err != nil {
		return fmt.Errorf("アラート解決に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}

	if rowsAffected == 0 {
		return pharmacy.ErrAlertNotFound
	}

	return nil
}

// Ping checks database connectivity
// データベース接続をチェック
func (s *PostgreSQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
