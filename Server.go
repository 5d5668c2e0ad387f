package main

import (
	"flag"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/config"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/controller"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/metrics"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/middleware"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service/cleanup"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.TechnicalParameters)
	utils.PrintConfig(cfg)
	metrics.RegisterAll()

	cp := db.NewConnectionProvider(&view.DbCredentials{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
	})
	tables := db.NewTables(cfg.Wordpress.TablePrefix, cfg.Wordpress.Multisite)

	lockRepository := repository.NewLockRepository(cp)
	progressRepository := repository.NewProgressRepository(cp, tables)
	scanHistoryRepository := repository.NewScanHistoryRepository(cp)
	statsRepository := repository.NewStatsRepository(cp, tables)
	revisionsRepository := repository.NewRevisionsRepository(cp, tables)
	transientsRepository := repository.NewTransientsRepository(cp, tables, cfg.Wordpress.NetworkSiteId)
	orphanedDataRepository := repository.NewOrphanedDataRepository(cp, tables)
	trashRepository := repository.NewTrashRepository(cp, tables)
	tablesRepository := repository.NewTablesRepository(cp)
	rateLimitRepository := repository.NewRateLimitRepository(cp)

	instanceId := cfg.TechnicalParameters.InstanceId
	if instanceId == "" {
		instanceId = uuid.New().String()
	}

	monitoringService := service.NewMonitoringService()
	lockService := service.NewLockService(lockRepository, monitoringService, instanceId)
	analyzerService := service.NewAnalyzerService(statsRepository, revisionsRepository, transientsRepository, orphanedDataRepository, trashRepository)
	revisionsService := service.NewRevisionsService(revisionsRepository, monitoringService)
	transientsService := service.NewTransientsService(transientsRepository, cfg.Wordpress.ExternalObjectCache, cfg.Cleanup.TransientExcludePrefixes)
	orphanedDataService := service.NewOrphanedDataService(orphanedDataRepository)
	trashService := service.NewTrashService(trashRepository)
	orphanedTablesService := service.NewOrphanedTablesService(statsRepository, tablesRepository, scanHistoryRepository, lockService, tables, cfg.Wordpress.ActivePlugins, cfg.Security.ConfirmationSecret)
	optimizerService := service.NewOptimizerService(statsRepository, tablesRepository)
	rateLimitService := service.NewRateLimitService(rateLimitRepository, monitoringService, cfg.Security.RateLimitPerMinute)
	rateLimitService.StartPurgeJob()

	cleanupService := cleanup.NewCleanupService(
		cfg.Cleanup,
		progressRepository,
		scanHistoryRepository,
		lockService,
		monitoringService,
		revisionsService,
		transientsService,
		orphanedDataService,
		trashService,
		optimizerService,
		analyzerService,
	)
	if err := cleanupService.Start(); err != nil {
		log.Fatalf("Failed to schedule cleanup task: %v", err)
	}
	defer cleanupService.Stop()

	readyChan := make(chan bool)
	healthController := controller.NewHealthController(readyChan)
	cleanupController := controller.NewCleanupController(cleanupService, analyzerService, orphanedDataService, rateLimitService)
	tablesController := controller.NewTablesController(orphanedTablesService, optimizerService, rateLimitService)

	r := mux.NewRouter()
	r.Use(middleware.PrometheusMiddleware)

	r.HandleFunc("/api/v1/cleanup", cleanupController.RunCleanup).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/cleanup/preview", cleanupController.PreviewCleanup).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/stats", cleanupController.GetDatabaseStats).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/history", cleanupController.GetScanHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/orphaned", cleanupController.GetOrphanedData).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tables/orphaned", tablesController.ListOrphanedTables).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tables/orphaned/{tableName}", tablesController.DeleteOrphanedTable).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/tables/ownership", tablesController.RegisterOwnership).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/tables/optimizable", tablesController.ListOptimizableTables).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tables/{tableName}/optimize", tablesController.OptimizeTable).Methods(http.MethodPost)

	r.HandleFunc("/live", healthController.HandleLiveRequest).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthController.HandleReadyRequest).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	readyChan <- true

	srv := &http.Server{
		Handler:      handlers.CompressHandler(r),
		Addr:         cfg.TechnicalParameters.ListenAddress,
		WriteTimeout: 300 * time.Second,
		ReadTimeout:  30 * time.Second,
	}
	log.Infof("Listening on %s", cfg.TechnicalParameters.ListenAddress)
	log.Fatal(srv.ListenAndServe())
}

func setupLogging(params config.TechnicalParameters) {
	level, err := log.ParseLevel(params.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&prefixed.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if params.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   params.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}
}
