// Package pharmacy provides medicine stock availability, ranking and restock simulation
package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// Medicine represents a medicine in the catalog
// カタログ内の医薬品を表現
type Medicine struct {
	ID                   string    `json:"id" db:"id"`                                       // 医薬品ID
	Name                 string    `json:"name" db:"name"`                                   // 医薬品名
	Category             string    `json:"category" db:"category"`                           // カテゴリ
	RequiresPrescription bool      `json:"requires_prescription" db:"requires_prescription"` // 処方箋要否
	Alternatives         []string  `json:"alternatives" db:"alternatives"`                   // 代替医薬品ID
	CreatedAt            time.Time `json:"created_at" db:"created_at"`                       // 作成日時
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`                       // 更新日時
}

// Pharmacy represents a pharmacy that holds stock
// 在庫を保有する薬局を表現
type Pharmacy struct {
	ID                      string    `json:"id" db:"id"`                               // 薬局ID
	Name                    string    `json:"name" db:"name"`                           // 薬局名
	CityID                  string    `json:"city_id" db:"city_id"`                     // 都市ID
	Rating                  float64   `json:"rating" db:"rating"`                       // 評価（0〜5）
	DeliveryFee             float64   `json:"delivery_fee" db:"delivery_fee"`           // 配送料
	DeliveryTimeMinMinutes  int       `json:"delivery_time_min" db:"delivery_time_min"` // 最短配送時間（分）
	DeliveryTimeMaxMinutes  int       `json:"delivery_time_max" db:"delivery_time_max"` // 最長配送時間（分）
	Open24Hours             bool      `json:"open_24_hours" db:"open_24_hours"`         // 24時間営業
	Features                []string  `json:"features" db:"features"`                   // 特徴フラグ（emergency、consultationなど）
	IsActive                bool      `json:"is_active" db:"is_active"`                 // アクティブ状態
	CreatedAt               time.Time `json:"created_at" db:"created_at"`               // 作成日時
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`               // 更新日時
}

// StockRecord represents stock of one medicine at one pharmacy
// 1薬局における1医薬品の在庫を表現
type StockRecord struct {
	MedicineID    string       `json:"medicine_id" db:"medicine_id"`     // 医薬品ID
	PharmacyID    string       `json:"pharmacy_id" db:"pharmacy_id"`     // 薬局ID
	StockQuantity int64        `json:"stock_quantity" db:"stock_quantity"` // 現在の在庫数
	ReorderLevel  int64        `json:"reorder_level" db:"reorder_level"` // 発注点
	MaxStock      int64        `json:"max_stock" db:"max_stock"`         // 最大在庫容量（表示用）
	Price         float64      `json:"price" db:"price"`                 // 薬局別販売価格
	InStock       bool         `json:"in_stock" db:"in_stock"`           // 在庫有無（StockQuantity > 0 から導出）
	StockLevel    StockLevel   `json:"stock_level" db:"stock_level"`     // 在庫レベル（常に再分類される）
	Supplier      string       `json:"supplier" db:"supplier"`           // 仕入先（任意）
	AlertPolicy   *AlertPolicy `json:"alert_policy,omitempty" db:"-"`    // アラート設定（nilは無効）
	Version       int64        `json:"version" db:"version"`             // 楽観的ロック用バージョン
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`       // 最終更新日時
}

// AlertPolicy holds per-record alerting configuration
// 在庫記録ごとのアラート設定を保持
type AlertPolicy struct {
	AlertThreshold    int64          `json:"alert_threshold" db:"alert_threshold"`       // 低在庫閾値
	CriticalThreshold int64          `json:"critical_threshold" db:"critical_threshold"` // 危機的在庫閾値
	Frequency         AlertFrequency `json:"frequency" db:"frequency"`                   // アラート頻度
	AutoReorder       bool           `json:"auto_reorder" db:"auto_reorder"`             // 自動再発注
	LastAlertSent     *time.Time     `json:"last_alert_sent" db:"last_alert_sent"`       // 最終アラート送信日時
}

// AlertFrequency defines how often alerts may fire for a record
// 在庫記録ごとのアラート発火頻度を定義
type AlertFrequency string

const (
	AlertFrequencyImmediate AlertFrequency = "immediate" // 即時
	AlertFrequencyHourly    AlertFrequency = "hourly"    // 毎時
	AlertFrequencyDaily     AlertFrequency = "daily"     // 毎日
)

// Window returns the suppression window for the frequency
// 頻度に対応する抑制期間を返す
func (f AlertFrequency) Window() time.Duration {
	switch f {
	case AlertFrequencyHourly:
		return time.Hour
	case AlertFrequencyDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

// StockLevel defines the discrete stock level classification
// 離散的な在庫レベル分類を定義
type StockLevel string

const (
	StockLevelHigh     StockLevel = "high"     // 十分
	StockLevelMedium   StockLevel = "medium"   // 普通
	StockLevelLow      StockLevel = "low"      // 低在庫
	StockLevelCritical StockLevel = "critical" // 危機的
	StockLevelOut      StockLevel = "out"      // 在庫切れ
)

// StockLevelInfo holds the fixed presentation tuple for a stock level
// 在庫レベルの固定表示属性を保持
type StockLevelInfo struct {
	Label    string `json:"label"`    // 表示ラベル
	Icon     string `json:"icon"`     // アイコン
	Priority int    `json:"priority"` // ランキング用優先度（高いほど上位）
	Color    string `json:"color"`    // セマンティックカラー
}

// AvailabilityReport summarizes pharmacy availability for one medicine
// 1医薬品の薬局別在庫状況サマリーを表現
type AvailabilityReport struct {
	MedicineID             string           `json:"medicine_id"`              // 医薬品ID
	MedicineName           string           `json:"medicine_name"`            // 医薬品名
	CityID                 string           `json:"city_id,omitempty"`        // 都市フィルタ（任意）
	TotalPharmacies        int              `json:"total_pharmacies"`         // 対象薬局数
	AvailablePharmacies    int              `json:"available_pharmacies"`     // 在庫あり薬局数
	AvailabilityPercentage float64          `json:"availability_percentage"`  // 在庫あり割合（%）
	LowestPrice            float64          `json:"lowest_price"`             // 最安価格
	HighestPrice           float64          `json:"highest_price"`            // 最高価格
	AveragePrice           float64          `json:"average_price"`            // 平均価格
	RecommendedPharmacies  []RankedPharmacy `json:"recommended_pharmacies"`   // ランキング済みの在庫あり薬局
	OutOfStockPharmacies   []StockRecord    `json:"out_of_stock_pharmacies"`  // 在庫切れ薬局（順不同）
	GeneratedAt            time.Time        `json:"generated_at"`             // 生成日時
}

// RankedPharmacy couples a stock record with its pharmacy and composite score
// 在庫記録と薬局情報、複合スコアを結合
type RankedPharmacy struct {
	Stock    StockRecord `json:"stock"`    // 在庫記録
	Pharmacy *Pharmacy   `json:"pharmacy"` // 薬局情報（欠損時はnil）
	Score    float64     `json:"score"`    // 複合スコア
}

// RestockSimulation represents one pending replenishment event
// 保留中の補充イベントを表現
type RestockSimulation struct {
	ID                    string    `json:"id"`                      // シミュレーションID
	MedicineID            string    `json:"medicine_id"`             // 医薬品ID
	PharmacyID            string    `json:"pharmacy_id"`             // 薬局ID
	CurrentStock          int64     `json:"current_stock"`           // 作成時点の在庫スナップショット
	RestockQuantity       int64     `json:"restock_quantity"`        // 補充数量
	NewStock              int64     `json:"new_stock"`               // 実行後の目標在庫
	RestockDate           time.Time `json:"restock_date"`            // 補充予定日時
	EstimatedDeliveryDays int       `json:"estimated_delivery_days"` // 見込み配送日数
	Supplier              string    `json:"supplier"`                // 仕入先
	CreatedAt             time.Time `json:"created_at"`              // 作成日時
}

// StockAlert represents one detected threshold breach
// 検出された閾値超過を表現
type StockAlert struct {
	ID          string     `json:"id" db:"id"`                     // アラートID
	Type        AlertType  `json:"type" db:"type"`                 // アラートタイプ
	MedicineID  string     `json:"medicine_id" db:"medicine_id"`   // 医薬品ID
	PharmacyID  string     `json:"pharmacy_id" db:"pharmacy_id"`   // 薬局ID
	StockLevel  StockLevel `json:"stock_level" db:"stock_level"`   // 検出時の在庫レベル
	CurrentQty  int64      `json:"current_qty" db:"current_qty"`   // 検出時の在庫数
	Threshold   int64      `json:"threshold" db:"threshold"`       // 超過した閾値
	Message     string     `json:"message" db:"message"`           // メッセージ
	ActionTaken string     `json:"action_taken" db:"action_taken"` // 実施済みアクション（任意）
	IsActive    bool       `json:"is_active" db:"is_active"`       // アクティブ状態
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`     // 作成日時
	ResolvedAt  *time.Time `json:"resolved_at" db:"resolved_at"`   // 解決日時
}

// AlertType defines types of stock alerts
// 在庫アラートのタイプを定義
type AlertType string

const (
	AlertTypeLowStock      AlertType = "low-stock"      // 低在庫
	AlertTypeCriticalStock AlertType = "critical-stock" // 危機的在庫
	AlertTypeOutOfStock    AlertType = "out-of-stock"   // 在庫切れ
	AlertTypeAutoReorder   AlertType = "auto-reorder"   // 自動再発注
)

// Notification is the payload handed to the notification collaborator
// 通知コラボレーターに渡すペイロードを表現
type Notification struct {
	UserID    string            `json:"user_id"`    // 宛先ユーザーID
	Role      string            `json:"role"`       // 宛先ロール
	Type      string            `json:"type"`       // 通知タイプ
	Priority  string            `json:"priority"`   // 優先度
	Title     string            `json:"title"`      // タイトル
	Message   string            `json:"message"`    // 本文
	ActionURL string            `json:"action_url"` // アクションURL
	Data      map[string]string `json:"data"`       // 追加データ
}

// NewAlertID generates a new alert ID
// 新しいアラートIDを生成
func NewAlertID() string {
	return uuid.New().String()
}

// NewSimulationID generates a new restock simulation ID
// 新しい補充シミュレーションIDを生成
func NewSimulationID() string {
	return uuid.New().String()
}

// RecalculateInStock re-derives the InStock flag from the quantity
// 在庫数からInStockフラグを再導出
func (r *StockRecord) RecalculateInStock() {
	r.InStock = r.StockQuantity > 0
}

// StockPercentage returns the fill percentage against MaxStock (display only)
// 最大在庫に対する充足率を返す（表示専用）
func (r *StockRecord) StockPercentage() float64 {
	if r.MaxStock <= 0 {
		return 0
	}
	return float64(r.StockQuantity) / float64(r.MaxStock) * 100
}

// Key returns the (medicine, pharmacy) composite key for the record
// 在庫記録の（医薬品、薬局）複合キーを返す
func (r *StockRecord) Key() string {
	return r.MedicineID + "/" + r.PharmacyID
}
