package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemonet1337/yakuzaiGoFramework/internal/config"
	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy"
	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy/cache"
	"github.com/nemonet1337/yakuzaiGoFramework/pkg/pharmacy/storage"
)

func main() {
	// .envファイル読み込み（存在しない場合は無視）
	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// ストレージ接続
	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("ストレージ初期化に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// レポートキャッシュ初期化
	reportCache, closeCache, err := newReportCache(cfg, logger)
	if err != nil {
		logger.Fatal("キャッシュ初期化に失敗しました", zap.Error(err))
	}
	if closeCache != nil {
		defer closeCache()
	}

	// サービス初期化
	classifier := pharmacy.NewClassifier(pharmacy.Banding{
		LowBandMultiplier:    cfg.Pharmacy.LowBandMultiplier,
		MediumBandMultiplier: cfg.Pharmacy.MediumBandMultiplier,
	})
	ranker := pharmacy.NewRanker(pharmacy.DefaultRankingWeights())

	availability := pharmacy.NewAvailabilityService(store, classifier, ranker, reportCache, cfg.Pharmacy.ReportCacheTTL, logger)
	stocks := pharmacy.NewStockManager(store, classifier, reportCache, logger, nil)

	restockConfig := &pharmacy.RestockConfig{
		MinDelayDays: cfg.Pharmacy.RestockMinDelayDays,
		MaxDelayDays: cfg.Pharmacy.RestockMaxDelayDays,
		MinQuantity:  cfg.Pharmacy.RestockMinQuantity,
		MaxQuantity:  cfg.Pharmacy.RestockMaxQuantity,
	}
	simulator := pharmacy.NewRestockSimulator(store, classifier, reportCache, logger, restockConfig, nil, nil)

	monitor := pharmacy.NewAlertMonitor(store, simulator, nil, classifier, logger, nil)

	// アラート巡回開始
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	defer cancelMonitor()
	monitor.Start(monitorCtx, cfg.Pharmacy.AlertSweepInterval)
	defer monitor.Stop()

	// HTTPハンドラー設定
	handlers := NewHandlers(availability, stocks, simulator, monitor, store, logger)
	router := setupRouter(handlers, cfg.API)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("薬局在庫APIサーバーを開始します", zap.Int("port", cfg.API.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// newLogger builds the zap logger from logging configuration
// ログ設定からzapロガーを構築
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.Format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newStore builds the configured storage backend
// 設定されたストレージバックエンドを構築
func newStore(cfg *config.Config, logger *zap.Logger) (pharmacy.Store, error) {
	switch cfg.Pharmacy.StorageBackend {
	case "memory":
		logger.Info("インメモリストレージを使用します")
		return storage.NewInMemoryStore(), nil
	default:
		return storage.NewPostgreSQLStore(cfg.DSN(), logger)
	}
}

// newReportCache builds the configured report cache backend
// 設定されたレポートキャッシュバックエンドを構築
func newReportCache(cfg *config.Config, logger *zap.Logger) (pharmacy.ReportCache, func() error, error) {
	switch cfg.Pharmacy.CacheBackend {
	case "none":
		return nil, nil, nil
	case "redis":
		redisCache, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return redisCache, redisCache.Close, nil
	default:
		return cache.NewMemoryCache(), nil, nil
	}
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, apiCfg config.APIConfig) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if apiCfg.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// 在庫状況レポート
	api.HandleFunc("/medicines/{medicineId}/availability", handlers.GetAvailability).Methods("GET")

	// 在庫操作
	api.HandleFunc("/stock", handlers.ProvisionStock).Methods("POST")
	api.HandleFunc("/stock/sale", handlers.RecordSale).Methods("POST")
	api.HandleFunc("/stock/{medicineId}/{pharmacyId}", handlers.GetStock).Methods("GET")
	api.HandleFunc("/stock/pharmacy/{pharmacyId}", handlers.ListStockByPharmacy).Methods("GET")

	// 補充シミュレーション
	api.HandleFunc("/restock/simulate", handlers.SimulateRestock).Methods("POST")
	api.HandleFunc("/restock/execute", handlers.ExecuteRestock).Methods("POST")
	api.HandleFunc("/restock/run-due", handlers.RunDueRestocks).Methods("POST")
	api.HandleFunc("/restock/pending/{medicineId}/{pharmacyId}", handlers.GetPendingRestocks).Methods("GET")

	// アラート
	api.HandleFunc("/alerts/sweep", handlers.SweepAlerts).Methods("POST")
	api.HandleFunc("/alerts/{pharmacyId}", handlers.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{alertId}/resolve", handlers.ResolveAlert).Methods("POST")

	// 医薬品管理
	api.HandleFunc("/medicines", handlers.CreateMedicine).Methods("POST")
	api.HandleFunc("/medicines/{medicineId}", handlers.GetMedicine).Methods("GET")

	// 薬局管理
	api.HandleFunc("/pharmacies", handlers.CreatePharmacy).Methods("POST")
	api.HandleFunc("/pharmacies/{pharmacyId}", handlers.GetPharmacy).Methods("GET")
	api.HandleFunc("/pharmacies/city/{cityId}", handlers.ListPharmaciesByCity).Methods("GET")

	// CORS設定（開発用）
	if apiCfg.EnableCORS {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	return router
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// リクエスト処理
			next.ServeHTTP(w, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
