package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/malwarebo/switchboard/adaptive"
	"github.com/malwarebo/switchboard/api"
	"github.com/malwarebo/switchboard/cache"
	"github.com/malwarebo/switchboard/config"
	"github.com/malwarebo/switchboard/db"
	"github.com/malwarebo/switchboard/decision"
	"github.com/malwarebo/switchboard/middleware"
	"github.com/malwarebo/switchboard/routing"
	"github.com/malwarebo/switchboard/services"
	"github.com/malwarebo/switchboard/stores"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func printBanner() {
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Switchboard — Connector Selection Core                      ║")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Rule-based and adaptive payment routing                     ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%s", colorReset)
}

func printStep(step, message string) {
	fmt.Printf("%s[%s]%s %s%s%s\n", colorBlue, step, colorReset, colorBold, message, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓%s %s\n", colorGreen, colorReset, message)
}

func printWarning(message string) {
	fmt.Printf("%s⚠%s %s\n", colorYellow, colorReset, message)
}

func printError(message string) {
	fmt.Printf("%s✗%s %s\n", colorRed, colorReset, message)
}

func printInfo(message string) {
	fmt.Printf("%sℹ%s %s\n", colorCyan, colorReset, message)
}

func main() {
	printBanner()
	fmt.Println()

	printStep("1/8", "Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		printError(fmt.Sprintf("Configuration validation failed: %v", err))
		os.Exit(1)
	}
	printSuccess("Configuration loaded")

	printStep("2/8", "Connecting to database...")
	cluster, err := db.NewCluster(db.ClusterConfig{
		PrimaryDSN:   cfg.GetDatabaseURL(),
		ReplicaDSNs:  cfg.Database.ReplicaDSNs,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
		MaxIdleTime:  cfg.Database.MaxIdleTime,
	})
	if err != nil {
		printError(fmt.Sprintf("Failed to connect to database: %v", err))
		os.Exit(1)
	}
	defer cluster.Close()

	if err := cluster.Migrate(); err != nil {
		printError(fmt.Sprintf("Failed to run migrations: %v", err))
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	printStep("3/8", "Connecting to Redis...")
	redisCache, err := cache.NewRedisCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	if err != nil {
		printWarning(fmt.Sprintf("Failed to connect to Redis: %v (continuing without cache)", err))
		redisCache = nil
	} else {
		defer redisCache.Close()
		printSuccess(fmt.Sprintf("Connected to Redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port))
	}

	printStep("4/8", "Initializing stores...")
	gormDB := cluster.GetPrimary()
	algorithmStore := stores.NewRoutingAlgorithmStore(gormDB)
	profileStore := stores.NewProfileStore(gormDB)
	eventStore := stores.NewRoutingEventStore(gormDB)
	printSuccess("Stores initialized")

	printStep("5/8", "Initializing external clients...")
	var decisionClient *decision.Client
	if cfg.Decision.Enabled {
		decisionClient = decision.NewClient(cfg.Decision.BaseURL, cfg.Decision.Timeout)
		printSuccess(fmt.Sprintf("Decision service client ready (%s)", cfg.Decision.BaseURL))
	} else {
		printInfo("Decision service disabled, running on local evaluation only")
	}
	recorder := decision.NewRecorder(eventStore, decision.EngineDecision)

	var successRateClient *adaptive.SuccessRateClient
	if cfg.Adaptive.SuccessRateURL != "" {
		successRateClient = adaptive.NewSuccessRateClient(cfg.Adaptive.SuccessRateURL, cfg.Adaptive.Timeout)
	}
	var eliminationClient *adaptive.EliminationClient
	if cfg.Adaptive.EliminationURL != "" {
		eliminationClient = adaptive.NewEliminationClient(cfg.Adaptive.EliminationURL, cfg.Adaptive.Timeout)
	}
	var contractClient *adaptive.ContractClient
	if cfg.Adaptive.ContractURL != "" {
		contractClient = adaptive.NewContractClient(cfg.Adaptive.ContractURL, cfg.Adaptive.Timeout)
	}
	printSuccess("External clients initialized")

	printStep("6/8", "Initializing services...")
	invalidator := cache.NewInvalidator(redisCache)
	configCache := cache.NewConfigCache(redisCache, cfg.Selection.ConfigCacheTTL)

	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()
	go configCache.Listen(listenCtx)

	lifecycleService := services.NewRoutingLifecycleService(algorithmStore, profileStore, invalidator)
	selectionService := services.NewSelectionService(services.SelectionDeps{
		Profiles:          profileStore,
		Algorithms:        algorithmStore,
		Decision:          decisionClient,
		Recorder:          recorder,
		SuccessRate:       successRateClient,
		Elimination:       eliminationClient,
		Contract:          contractClient,
		Configs:           configCache,
		TenantID:          cfg.Selection.TenantID,
		PreferSource:      routing.ResultSource(cfg.Selection.PreferSource),
		EliminationPolicy: adaptive.EliminationPolicy(cfg.Selection.EliminationPolicy),
	})
	printSuccess("Services initialized")

	printStep("7/8", "Setting up HTTP server...")
	routingHandler := api.NewRoutingHandler(lifecycleService, selectionService)
	eventsHandler := api.NewEventsHandler(eventStore)

	var redisPinger api.Pinger
	if redisCache != nil {
		redisPinger = redisCache
	}
	healthHandler := api.NewHealthHandler(cluster, redisPinger)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.RecoveryMiddleware)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	apiRouter.HandleFunc("/health", healthHandler.HandleHealthCheck).Methods("GET")

	apiRouter.HandleFunc("/profiles/{profile_id}/routing", routingHandler.HandleCreateAlgorithm).Methods("POST")
	apiRouter.HandleFunc("/profiles/{profile_id}/routing", routingHandler.HandleListAlgorithms).Methods("GET")
	apiRouter.HandleFunc("/profiles/{profile_id}/routing/active", routingHandler.HandleGetActiveAlgorithm).Methods("GET")
	apiRouter.HandleFunc("/profiles/{profile_id}/routing/deactivate", routingHandler.HandleDeactivateAlgorithm).Methods("POST")
	apiRouter.HandleFunc("/profiles/{profile_id}/routing/{algorithm_id}/activate", routingHandler.HandleActivateAlgorithm).Methods("POST")

	apiRouter.HandleFunc("/profiles/{profile_id}/dynamic-routing/split", routingHandler.HandleSetDynamicSplit).Methods("POST")
	apiRouter.HandleFunc("/profiles/{profile_id}/dynamic-routing/{strategy}/toggle", routingHandler.HandleToggleDynamicRouting).Methods("POST")
	apiRouter.HandleFunc("/profiles/{profile_id}/dynamic-routing/{strategy}/config", routingHandler.HandleUpdateDynamicConfig).Methods("POST")

	apiRouter.HandleFunc("/profiles/{profile_id}/selection", routingHandler.HandleSelectConnectors).Methods("POST")
	apiRouter.HandleFunc("/profiles/{profile_id}/selection/outcome", routingHandler.HandleUpdateOutcome).Methods("POST")

	apiRouter.HandleFunc("/payments/{payment_id}/routing-events", eventsHandler.HandleListEvents).Methods("GET")

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	printSuccess("HTTP server configured")

	printStep("8/8", "Starting...")
	fmt.Println()
	fmt.Printf("%s%sEnvironment:%s %s\n", colorBold, colorCyan, colorReset, cfg.Environment)
	fmt.Printf("%s%sServer Port:%s %s\n", colorBold, colorCyan, colorReset, cfg.Server.Port)
	fmt.Println()

	go func() {
		printInfo(fmt.Sprintf("Starting HTTP server on port %s...", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printError(fmt.Sprintf("Server failed to start: %v", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println()
	printWarning("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		printError(fmt.Sprintf("Server forced to shutdown: %v", err))
		os.Exit(1)
	}

	printSuccess("Server stopped gracefully")
}
