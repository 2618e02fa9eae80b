package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// AvailabilityService builds per-medicine availability reports
// 医薬品ごとの在庫状況レポートを構築
type AvailabilityService struct {
	store      Store
	classifier *Classifier
	ranker     *Ranker
	cache      ReportCache   // 任意（nilでキャッシュ無効）
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewAvailabilityService creates a new availability service. The cache is
// optional and may be nil.
// 新しい在庫状況サービスを作成（キャッシュは任意）
func NewAvailabilityService(store Store, classifier *Classifier, ranker *Ranker, cache ReportCache, cacheTTL time.Duration, logger *zap.Logger) *AvailabilityService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AvailabilityService{
		store:      store,
		classifier: classifier,
		ranker:     ranker,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// GetAvailabilityReport computes the availability report for one medicine,
// optionally scoped to a city. Returns ErrMedicineNotFound when the catalog
// has no such medicine, and an IntegrityError when a stock record references
// a pharmacy missing from the lookup (data corruption, never silently dropped).
// 1医薬品の在庫状況レポートを計算（cityIDで都市に絞り込み可能）
func (s *AvailabilityService) GetAvailabilityReport(ctx context.Context, medicineID, cityID string) (*AvailabilityReport, error) {
	start := time.Now()

	cacheKey := reportCacheKey(medicineID, cityID)
	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, cacheKey); ok {
			metricCacheLookups.WithLabelValues("hit").Inc()
			return report, nil
		}
		metricCacheLookups.WithLabelValues("miss").Inc()
	}

	medicine, err := s.store.GetMedicine(ctx, medicineID)
	if err != nil {
		if errors.Is(err, ErrMedicineNotFound) {
			metricReportsTotal.WithLabelValues("not_found").Inc()
			return nil, ErrMedicineNotFound
		}
		metricReportsTotal.WithLabelValues("error").Inc()
		return nil, NewStorageError("get_medicine", "医薬品取得に失敗しました", err)
	}

	records, err := s.store.ListStockByMedicine(ctx, medicineID)
	if err != nil {
		metricReportsTotal.WithLabelValues("error").Inc()
		return nil, NewStorageError("list_stock_by_medicine", "在庫記録取得に失敗しました", err)
	}

	report := &AvailabilityReport{
		MedicineID:            medicineID,
		MedicineName:          medicine.Name,
		CityID:                cityID,
		RecommendedPharmacies: make([]RankedPharmacy, 0),
		OutOfStockPharmacies:  make([]StockRecord, 0),
		GeneratedAt:           time.Now(),
	}

	var available []RankedPharmacy
	priceSum := 0.0
	priceCount := 0

	for _, record := range records {
		pharm, err := s.store.GetPharmacy(ctx, record.PharmacyID)
		if err != nil {
			if errors.Is(err, ErrPharmacyNotFound) {
				// 参照先の薬局が存在しない在庫記録はデータ破損。黙って
				// 落とさず、このレポート計算を整合性エラーで停止する。
				metricReportsTotal.WithLabelValues("integrity_error").Inc()
				return nil, NewIntegrityError("pharmacy", record.PharmacyID,
					fmt.Sprintf("在庫記録 %s が存在しない薬局を参照しています", record.Key()))
			}
			metricReportsTotal.WithLabelValues("error").Inc()
			return nil, NewStorageError("get_pharmacy", "薬局取得に失敗しました", err)
		}

		if cityID != "" && pharm.CityID != cityID {
			continue
		}

		s.classifier.Reclassify(&record)
		report.TotalPharmacies++

		// 価格統計は在庫の有無を問わず対象全記録で集計する
		priceSum += record.Price
		priceCount++
		if report.LowestPrice == 0 || record.Price < report.LowestPrice {
			report.LowestPrice = record.Price
		}
		if record.Price > report.HighestPrice {
			report.HighestPrice = record.Price
		}

		if record.InStock && record.StockQuantity > 0 {
			available = append(available, RankedPharmacy{Stock: record, Pharmacy: pharm})
		} else {
			report.OutOfStockPharmacies = append(report.OutOfStockPharmacies, record)
		}
	}

	report.AvailablePharmacies = len(available)
	if report.TotalPharmacies > 0 {
		pct := float64(report.AvailablePharmacies) / float64(report.TotalPharmacies) * 100
		report.AvailabilityPercentage = math.Round(pct*100) / 100
	}
	if priceCount > 0 {
		report.AveragePrice = math.Round(priceSum/float64(priceCount)*100) / 100
	}

	report.RecommendedPharmacies = s.ranker.Rank(available)

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, report, s.cacheTTL)
	}

	metricReportsTotal.WithLabelValues("ok").Inc()
	metricReportDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("在庫状況レポート生成完了",
		zap.String("medicine_id", medicineID),
		zap.String("city_id", cityID),
		zap.Int("total_pharmacies", report.TotalPharmacies),
		zap.Int("available_pharmacies", report.AvailablePharmacies),
		zap.Float64("availability_percentage", report.AvailabilityPercentage),
	)

	return report, nil
}

// reportCacheKey builds the cache key for a (medicine, city) scope
// （医薬品、都市）スコープのキャッシュキーを構築
func reportCacheKey(medicineID, cityID string) string {
	return "availability:" + medicineID + ":" + cityID
}
