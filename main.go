package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"strideSyncAPI/handlers"
	"strideSyncAPI/internal/notification"
	"strideSyncAPI/internal/remote"
	"strideSyncAPI/internal/workers"
	"strideSyncAPI/middleware"
	"strideSyncAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userID              string
	localStore          *services.LocalStore
	notificationService *services.NotificationService
	streakService       *services.StreakService
	shieldStoreService  *services.ShieldStoreService
	syncService         *services.SyncService
	remoteStore         *remote.FirestoreService
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	userID = os.Getenv("STRIDE_USER_ID")
	if userID == "" {
		log.Fatal("STRIDE_USER_ID environment variable is not set")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("Successfully connected to Postgres")

	localStore = services.NewLocalStore(dbPool, userID)
	if err := localStore.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize local schema:", err)
	}

	app, err := remote.NewFirebaseApp(ctx, "./serviceAccountKey.json")
	if err != nil {
		log.Fatal("Failed to initialize Firebase:", err)
	}

	remoteStore, err = remote.NewFirestoreService(ctx, app, userID)
	if err != nil {
		log.Fatal("Failed to initialize Firestore:", err)
	}

	notificationService = services.NewNotificationService(localStore)
	fcmService, err = notification.NewFCMService(ctx, app)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	streakService = services.NewStreakService(localStore, notificationService)
	shieldStoreService = services.NewShieldStoreService(dbPool, localStore, userID)
	syncService = services.NewSyncService(localStore, remoteStore, streakService)

	middleware.InitPrometheus()
	services.RegisterSyncMetrics()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
		if err := remoteStore.Close(); err != nil {
			log.Printf("Failed to close Firestore client: %v", err)
		}
	}()

	// Zone setup runs in the background; pushes requested before the zone is
	// ready are queued and flushed once it is.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := syncService.Setup(ctx); err != nil {
			log.Printf("Sync: zone setup failed: %v", err)
			return
		}
		if err := streakService.ApplyMonthlyRefill(ctx); err != nil {
			log.Printf("Shield: startup refill failed: %v", err)
		}
		if _, _, err := streakService.CheckAndDeployForMissedDays(ctx); err != nil {
			log.Printf("Streak: startup missed day check failed: %v", err)
		}
		if err := syncService.PullAll(ctx); err != nil {
			log.Printf("Sync: startup pull failed: %v", err)
		}
	}()

	stopRollover := workers.StartRolloverWorker(streakService)

	syncHandler := handlers.NewSyncHandler(syncService)
	streakHandler := handlers.NewStreakHandler(streakService, localStore, shieldStoreService)
	foodLogHandler := handlers.NewFoodLogHandler(localStore)
	profileHandler := handlers.NewProfileHandler(localStore)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "strideSync-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER + ZONE OWNERSHIP)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ClerkAuthMiddleware)
	api.Use(middleware.ZoneOwnerMiddleware(userID))

	api.HandleFunc("/sync/status", syncHandler.GetStatus).Methods("GET")
	api.HandleFunc("/sync/force", syncHandler.ForceSync).Methods("POST")
	api.HandleFunc("/sync/push", syncHandler.Push).Methods("POST")
	api.HandleFunc("/sync/pull", syncHandler.Pull).Methods("POST")

	api.HandleFunc("/streak", streakHandler.GetStreak).Methods("GET")
	api.HandleFunc("/streak/steps", streakHandler.RecordSteps).Methods("POST")
	api.HandleFunc("/streak/repair", streakHandler.RepairDate).Methods("POST")
	api.HandleFunc("/streak/check-missed", streakHandler.CheckMissedDays).Methods("POST")
	api.HandleFunc("/streak/calendar", streakHandler.GetCalendar).Methods("GET")
	api.HandleFunc("/streak/facts/{date}", streakHandler.GetDailyFact).Methods("GET")
	api.HandleFunc("/stats", streakHandler.GetStats).Methods("GET")

	api.HandleFunc("/activities", streakHandler.LogActivity).Methods("POST")

	api.HandleFunc("/shield", streakHandler.GetShield).Methods("GET")
	api.HandleFunc("/shield/refill", streakHandler.ApplyRefill).Methods("POST")
	api.HandleFunc("/shield/purchase", streakHandler.PurchaseShields).Methods("POST")
	api.HandleFunc("/shield/purchases", streakHandler.ListPurchases).Methods("GET")

	api.HandleFunc("/food-logs", foodLogHandler.ListFoodLogs).Methods("GET")
	api.HandleFunc("/food-logs", foodLogHandler.SaveFoodLog).Methods("POST")
	api.HandleFunc("/calorie-goal", foodLogHandler.GetCalorieGoal).Methods("GET")
	api.HandleFunc("/calorie-goal", foodLogHandler.PutCalorieGoal).Methods("PUT")
	api.HandleFunc("/settings", foodLogHandler.GetSettings).Methods("GET")
	api.HandleFunc("/settings", foodLogHandler.PutSettings).Methods("PUT")

	api.HandleFunc("/profile", profileHandler.GetProfile).Methods("GET")
	api.HandleFunc("/profile", profileHandler.PutProfile).Methods("PUT")

	api.HandleFunc("/devices", streakHandler.RegisterDevice).Methods("POST")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	stopRollover()
	syncService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
