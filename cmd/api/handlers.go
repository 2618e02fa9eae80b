package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy"
)

// Handlers holds HTTP handlers for the pharmacy stock API
// 薬局在庫API用のHTTPハンドラーを保持
type Handlers struct {
	availability *pharmacy.AvailabilityService
	stocks       *pharmacy.StockManager
	simulator    *pharmacy.RestockSimulator
	monitor      *pharmacy.AlertMonitor
	store        pharmacy.Store
	logger       *zap.Logger
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(
	availability *pharmacy.AvailabilityService,
	stocks *pharmacy.StockManager,
	simulator *pharmacy.RestockSimulator,
	monitor *pharmacy.AlertMonitor,
	store pharmacy.Store,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		availability: availability,
		stocks:       stocks,
		simulator:    simulator,
		monitor:      monitor,
		store:        store,
		logger:       logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ProvisionStockRequest represents request to provision a stock record
// 在庫記録登録リクエストを表現
type ProvisionStockRequest struct {
	MedicineID    string                `json:"medicine_id"`
	PharmacyID    string                `json:"pharmacy_id"`
	StockQuantity int64                 `json:"stock_quantity"`
	ReorderLevel  int64                 `json:"reorder_level"`
	MaxStock      int64                 `json:"max_stock"`
	Price         float64               `json:"price"`
	Supplier      string                `json:"supplier"`
	AlertPolicy   *pharmacy.AlertPolicy `json:"alert_policy,omitempty"`
}

// RecordSaleRequest represents request to record a sale
// 販売記録リクエストを表現
type RecordSaleRequest struct {
	MedicineID string `json:"medicine_id"`
	PharmacyID string `json:"pharmacy_id"`
	Quantity   int64  `json:"quantity"`
}

// SimulateRestockRequest represents request to schedule a restock simulation
// 補充シミュレーション作成リクエストを表現
type SimulateRestockRequest struct {
	MedicineID string `json:"medicine_id"`
	PharmacyID string `json:"pharmacy_id"`
	Quantity   int64  `json:"quantity"` // 0で自動決定
}

// ExecuteRestockRequest represents request to execute the oldest pending simulation
// 最古の保留シミュレーション実行リクエストを表現
type ExecuteRestockRequest struct {
	MedicineID string `json:"medicine_id"`
	PharmacyID string `json:"pharmacy_id"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("ストレージのヘルスチェックに失敗しました", zap.Error(err))
		status = "degraded"
	}

	h.sendSuccess(w, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now(),
		"service":   "yakuzaiGoFramework",
	})
}

// GetAvailability handles availability report requests
// 在庫状況レポートリクエストを処理
func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	medicineID := vars["medicineId"]
	cityID := r.URL.Query().Get("city")

	report, err := h.availability.GetAvailabilityReport(r.Context(), medicineID, cityID)
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, report)
}

// ProvisionStock handles stock record creation requests
// 在庫記録登録リクエストを処理
func (h *Handlers) ProvisionStock(w http.ResponseWriter, r *http.Request) {
	var req ProvisionStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	record := &pharmacy.StockRecord{
		MedicineID:    req.MedicineID,
		PharmacyID:    req.PharmacyID,
		StockQuantity: req.StockQuantity,
		ReorderLevel:  req.ReorderLevel,
		MaxStock:      req.MaxStock,
		Price:         req.Price,
		Supplier:      req.Supplier,
		AlertPolicy:   req.AlertPolicy,
	}

	if err := h.stocks.Provision(r.Context(), record); err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, record)
}

// GetStock handles stock record retrieval requests
// 在庫記録取得リクエストを処理
func (h *Handlers) GetStock(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	record, err := h.stocks.GetStockRecord(r.Context(), vars["medicineId"], vars["pharmacyId"])
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, record)
}

// RecordSale handles sale recording requests
// 販売記録リクエストを処理
func (h *Handlers) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	if err := h.stocks.RecordSale(r.Context(), req.MedicineID, req.PharmacyID, req.Quantity); err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, map[string]string{
		"message": "販売記録が完了しました",
	})
}

// SimulateRestock handles restock simulation creation requests
// 補充シミュレーション作成リクエストを処理
func (h *Handlers) SimulateRestock(w http.ResponseWriter, r *http.Request) {
	var req SimulateRestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	sim, err := h.simulator.SimulateRestock(r.Context(), req.MedicineID, req.PharmacyID, req.Quantity)
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, sim)
}

// ExecuteRestock handles manual execution of the oldest pending simulation
// 最古の保留シミュレーションの手動実行リクエストを処理
func (h *Handlers) ExecuteRestock(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	executed, err := h.simulator.ExecuteRestockSimulation(r.Context(), req.MedicineID, req.PharmacyID)
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"executed": executed,
	})
}

// RunDueRestocks handles requests to execute all due simulations now
// 期日到来シミュレーションの一括実行リクエストを処理
func (h *Handlers) RunDueRestocks(w http.ResponseWriter, r *http.Request) {
	executed, err := h.simulator.AutoExecuteDue(r.Context(), time.Now())
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"executed_count": len(executed),
		"executed":       executed,
	})
}

// GetPendingRestocks handles pending simulation listing requests
// 保留シミュレーション一覧リクエストを処理
func (h *Handlers) GetPendingRestocks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pending := h.simulator.PendingSimulations(vars["medicineId"], vars["pharmacyId"])
	h.sendSuccess(w, map[string]interface{}{
		"count":       len(pending),
		"simulations": pending,
	})
}

// GetAlerts handles active alert listing requests
// アクティブアラート一覧リクエストを処理
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	alerts, err := h.store.ListActiveAlerts(r.Context(), vars["pharmacyId"])
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, alerts)
}

// ResolveAlert handles alert resolution requests
// アラート解決リクエストを処理
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.store.ResolveAlert(r.Context(), vars["alertId"]); err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, map[string]string{
		"message": "アラートを解決しました",
	})
}

// SweepAlerts handles manual alert sweep requests
// アラート巡回の手動実行リクエストを処理
func (h *Handlers) SweepAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.monitor.CheckAndTriggerAlerts(r.Context())
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"triggered_count": len(alerts),
		"alerts":          alerts,
	})
}

// CreateMedicine handles medicine creation requests
// 医薬品作成リクエストを処理
func (h *Handlers) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	var medicine pharmacy.Medicine
	if err := json.NewDecoder(r.Body).Decode(&medicine); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	if err := pharmacy.ValidateMedicine(&medicine); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	// タイムスタンプ設定
	now := time.Now()
	medicine.CreatedAt = now
	medicine.UpdatedAt = now

	if err := h.store.CreateMedicine(r.Context(), &medicine); err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, medicine)
}

// GetMedicine handles medicine retrieval requests
// 医薬品取得リクエストを処理
func (h *Handlers) GetMedicine(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	medicine, err := h.store.GetMedicine(r.Context(), vars["medicineId"])
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, medicine)
}

// CreatePharmacy handles pharmacy creation requests
// 薬局作成リクエストを処理
func (h *Handlers) CreatePharmacy(w http.ResponseWriter, r *http.Request) {
	var p pharmacy.Pharmacy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	if err := pharmacy.ValidatePharmacy(&p); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	// タイムスタンプ設定
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := h.store.CreatePharmacy(r.Context(), &p); err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, p)
}

// GetPharmacy handles pharmacy retrieval requests
// 薬局取得リクエストを処理
func (h *Handlers) GetPharmacy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	p, err := h.store.GetPharmacy(r.Context(), vars["pharmacyId"])
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	h.sendSuccess(w, p)
}

// ListPharmaciesByCity handles city pharmacy listing requests
// 都市別薬局一覧リクエストを処理
func (h *Handlers) ListPharmaciesByCity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pharmacies, err := h.store.ListPharmaciesByCity(r.Context(), vars["cityId"])
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	if limit := parseIntQuery(r, "limit", 0); limit > 0 && limit < len(pharmacies) {
		pharmacies = pharmacies[:limit]
	}

	h.sendSuccess(w, pharmacies)
}

// ListStockByPharmacy handles pharmacy stock listing requests
// 薬局在庫一覧リクエストを処理
func (h *Handlers) ListStockByPharmacy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	records, err := h.store.ListStockByPharmacy(r.Context(), vars["pharmacyId"])
	if err != nil {
		h.sendError(w, statusForError(err), err.Error())
		return
	}

	if limit := parseIntQuery(r, "limit", 0); limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	h.sendSuccess(w, records)
}

// ヘルパーメソッド

// statusForError maps domain errors to HTTP status codes
// ドメインエラーをHTTPステータスコードに変換
func statusForError(err error) int {
	switch {
	case errors.Is(err, pharmacy.ErrMedicineNotFound),
		errors.Is(err, pharmacy.ErrPharmacyNotFound),
		errors.Is(err, pharmacy.ErrStockNotFound),
		errors.Is(err, pharmacy.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, pharmacy.ErrDuplicateStockRecord),
		errors.Is(err, pharmacy.ErrDuplicateMedicine),
		errors.Is(err, pharmacy.ErrDuplicatePharmacy),
		errors.Is(err, pharmacy.ErrVersionMismatch):
		return http.StatusConflict
	case errors.Is(err, pharmacy.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	}

	var validationErr *pharmacy.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	var integrityErr *pharmacy.IntegrityError
	if errors.As(err, &integrityErr) {
		return http.StatusInternalServerError
	}

	return http.StatusInternalServerError
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := APIResponse{
		Success: true,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("エラーレスポンス送信に失敗しました", zap.Error(err))
	}
}

// parseIntQuery parses an integer query parameter with a default
// 整数クエリパラメータをデフォルト値付きでパース
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
