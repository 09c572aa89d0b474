package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"Territory-App/internal/application"
	supadb "Territory-App/internal/database"
	"Territory-App/internal/domain/model"
	domainRepo "Territory-App/internal/domain/repository"
	"Territory-App/internal/handler"
	pgdb "Territory-App/internal/infrastructure/database"
	fsinfra "Territory-App/internal/infrastructure/firestore"
	"Territory-App/internal/infrastructure/geocoding"
	"Territory-App/internal/repository"
	"Territory-App/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		projectID = os.Getenv("FIRESTORE_PROJECT_ID")
	}
	if projectID == "" {
		fmt.Println("⚠️  環境変数が設定されていません:")
		fmt.Println("必要な環境変数: GOOGLE_CLOUD_PROJECT (または FIRESTORE_PROJECT_ID)")
		fmt.Println("\n.envファイルを作成するか、環境変数を設定してください")
		log.Fatal("Environment variables not set")
	}

	ctx := context.Background()

	fmt.Println("Initializing Firestore client...")
	firestoreClient, err := fsinfra.NewFirestoreClient(ctx, projectID)
	if err != nil {
		log.Fatalf("Firestoreクライアント初期化失敗: %v", err)
	}
	defer firestoreClient.Close()

	territoryRepo := repository.NewFirestoreTerritoryRepository(firestoreClient.GetClient())
	vengeanceRepo := repository.NewFirestoreVengeanceRepository(firestoreClient.GetClient())

	// Supabase（アクティビティ保存）とPostgreSQL（履歴ミラー）はベストエフォートの周辺ストア
	// 未設定でも所有ロジックは動作する
	var activitiesRepo domainRepo.ActivitiesRepository
	if os.Getenv("SUPABASE_URL") != "" && os.Getenv("SUPABASE_ANON_KEY") != "" {
		fmt.Println("Initializing Supabase client...")
		supabaseClient, err := supadb.NewSupabaseClient()
		if err != nil {
			log.Printf("⚠️ Supabaseクライアント初期化失敗（アクティビティ保存なしで継続）: %v", err)
		} else if err := supabaseClient.HealthCheck(); err != nil {
			log.Printf("⚠️ Supabaseヘルスチェック失敗（アクティビティ保存なしで継続）: %v", err)
		} else {
			fmt.Println("✅ Supabase connection successful!")
			activitiesRepo = repository.NewSupabaseActivitiesRepository(supabaseClient)
		}
	}

	var historyRepo domainRepo.HistoryRepository
	if os.Getenv("SUPABASE_DB_PASSWORD") != "" {
		fmt.Println("Initializing PostgreSQL client...")
		postgresClient, err := pgdb.NewPostgreSQLClientWithRetry(3, 2*time.Second)
		if err != nil {
			log.Printf("⚠️ PostgreSQL接続失敗（履歴ミラーなしで継続）: %v", err)
		} else {
			defer postgresClient.Close()
			fmt.Println("✅ PostgreSQL connection successful!")
			historyRepo = repository.NewPostgresHistoryRepository(postgresClient)
		}
	}

	var geocoder usecase.ReverseGeocoder
	if apiKey := os.Getenv("GOOGLE_MAPS_API_KEY"); apiKey != "" {
		geocoder = geocoding.NewGoogleGeocodingProvider(apiKey)
	}

	cfg := model.LoadTerritoryConfig()
	log.Printf("🚀 領土設定: cellSize=%.4f° expiration=%dd step=%.0fm maxGap=%.0fm",
		cfg.CellSizeDegrees, cfg.CellExpirationDays,
		cfg.InterpolationStepMeters, cfg.MaxInterpolationDistanceMeter)

	ingestUsecase := usecase.NewActivityIngestUsecase(cfg, territoryRepo, activitiesRepo, historyRepo, geocoder)
	reconcileUsecase := usecase.NewReconcileUsecase(territoryRepo, vengeanceRepo, historyRepo)
	syncService := application.NewTerritorySyncService(territoryRepo, vengeanceRepo)
	defer syncService.Close()

	activityHandler := handler.NewActivityHandler(ingestUsecase)
	territoryHandler := handler.NewTerritoryHandler(syncService)
	vengeanceHandler := handler.NewVengeanceHandler(vengeanceRepo)
	reconcileHandler := handler.NewReconcileHandler(reconcileUsecase)

	router := gin.Default()

	router.POST("/activities", activityHandler.IngestActivity)
	router.GET("/territories", territoryHandler.GetTerritoriesByBoundingBox)
	router.GET("/territories/cells", territoryHandler.GetTerritoriesByIDs)
	router.GET("/users/:id/territories", territoryHandler.GetTerritoriesByUser)
	router.GET("/users/:id/vengeance-targets", vengeanceHandler.GetVengeanceTargets)
	router.POST("/admin/reconcile", reconcileHandler.Reconcile)

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "Territory-App"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("Territory-App server starting on :%s...\n", port)
	log.Fatal(router.Run(":" + port))
}
