package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"screen-recorder/internal/auth"
	"screen-recorder/internal/capture"
	"screen-recorder/internal/compositor"
	"screen-recorder/internal/database"
	"screen-recorder/internal/edit"
	"screen-recorder/internal/encoder"
	"screen-recorder/internal/filesystem"
	"screen-recorder/internal/handlers"
	"screen-recorder/internal/logging"
	"screen-recorder/internal/media"
	"screen-recorder/internal/memory"
	"screen-recorder/internal/metrics"
	"screen-recorder/internal/middleware"
	"screen-recorder/internal/recorder"
	"screen-recorder/internal/startup"
	"screen-recorder/internal/upload"
)

// collectorInterval is how often database and library gauges are sampled.
const collectorInterval = time.Minute

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before significant allocations
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)
	setObservers()
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"cache":    config.CacheDir,
		"database": config.DatabaseDir,
	}))

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	// Storage credential and remote store
	broker := auth.NewBroker(auth.NewVault(db, config.CredentialKey), config.AuthTimeout)

	store, err := buildStore(config)
	if err != nil {
		startup.LogFatal("Failed to initialize storage: %v", err)
	}
	startup.LogStorageInit(store.Name(), store.NeedsToken())
	pipeline := upload.NewPipeline(upload.NewInitializer(store), broker)

	// Capture and encoding
	startup.LogCaptureInit(config.Capture)
	provider, cleanupProvider := buildProvider(config.Capture)

	encCfg := encoder.DefaultConfig()
	encCfg.Binary = config.Capture.FFmpegPath
	encCfg.VideoBitrate = config.EncoderVideoBitrate

	posters := media.NewPosterStore(config.PosterDir, config.PostersEnabled)

	renderer, err := edit.NewRenderer(config.OverlayFont)
	if err != nil {
		logging.Warn("Overlay font unavailable, text overlays render without glyphs: %v", err)
		renderer, _ = edit.NewRenderer("")
	}

	guard := memory.NewGuard(memory.DefaultConfig())
	guard.Start()

	machine := recorder.New(recorder.Config{
		Acquirer:   capture.NewAcquirer(provider),
		Compositor: compositor.Config{},
		Encoders:   encoder.NewFFmpeg(encCfg),
		Uploader:   pipeline,
		Auth:       broker,
		Metadata:   db,
		Posters:    posters,
		UserID:     config.UserID,
	})

	// Initialize handlers
	h := handlers.New(handlers.Deps{
		DB:       db,
		Recorder: machine,
		Broker:   broker,
		Remote:   pipeline,
		Posters:  posters,
		Renderer: renderer,
		Memory:   guard,
		UserID:   config.UserID,
	})

	// Setup router
	router := setupRouter(h)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(loggedHandler)

	collector := metrics.NewCollector(db, config.DatabasePath, collectorInterval)
	collector.Start()

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	// Create server
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // event streams and playback are long-lived
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		handleShutdown(srv, metricsSrv, shutdownResources{
			machine:         machine,
			pipeline:        pipeline,
			collector:       collector,
			guard:           guard,
			db:              db,
			cleanupProvider: cleanupProvider,
		})
	}()

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
}

func setObservers() {
	compositor.SetObserver(metrics.NewCompositorObserver())
	upload.SetObserver(metrics.NewUploadObserver())
	recorder.SetObserver(metrics.NewRecorderObserver())
	auth.SetObserver(metrics.NewAuthObserver())
	filesystem.SetObserver(metrics.NewFilesystemObserver())
}

// buildStore creates the remote object store selected by STORAGE_BACKEND.
func buildStore(config *startup.Config) (upload.Store, error) {
	switch config.StorageBackend {
	case startup.StorageS3:
		s, err := upload.NewS3Store(upload.S3Config{
			Bucket:    config.S3.Bucket,
			Region:    config.S3.Region,
			Endpoint:  config.S3.Endpoint,
			AccessKey: config.S3.AccessKey,
			SecretKey: config.S3.SecretKey,
			Prefix:    "recordings/",
			LinkTTL:   config.S3.LinkTTL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return upload.NewDriveStore(upload.DriveConfig{
			APIURL:     config.Drive.APIURL,
			FolderName: config.Drive.FolderName,
		}), nil
	}
}

// buildProvider creates the capture provider selected by CAPTURE_BACKEND
// and the function releasing it.
func buildProvider(c startup.CaptureConfig) (capture.Provider, func()) {
	if c.Backend == startup.BackendSynthetic {
		return capture.NewSyntheticProvider(capture.DefaultSyntheticConfig()), func() {}
	}
	p := capture.NewFFmpegProvider(capture.FFmpegConfig{
		Backend:     c.Backend,
		Display:     c.Display,
		Camera:      c.Camera,
		Microphone:  c.Microphone,
		SystemAudio: c.SystemAudio,
		Binary:      c.FFmpegPath,
	})
	return p, p.Cleanup
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Recording session
	session := r.PathPrefix("/api/session").Subrouter()
	session.HandleFunc("", h.GetSession).Methods("GET")
	session.HandleFunc("/events", h.SessionEvents).Methods("GET")
	session.HandleFunc("/preview", h.PreviewSession).Methods("GET")
	session.HandleFunc("/start", h.StartSession).Methods("POST")
	session.HandleFunc("/upload", h.UploadSession).Methods("POST")
	session.HandleFunc("/title", h.SetSessionTitle).Methods("PUT")
	session.HandleFunc("/skip-countdown", h.SessionAction("skip-countdown", handlers.Recorder.SkipCountdown)).Methods("POST")
	session.HandleFunc("/pause", h.SessionAction("pause", handlers.Recorder.Pause)).Methods("POST")
	session.HandleFunc("/resume", h.SessionAction("resume", handlers.Recorder.Resume)).Methods("POST")
	session.HandleFunc("/stop", h.SessionAction("stop", handlers.Recorder.Stop)).Methods("POST")
	session.HandleFunc("/delete", h.SessionAction("delete", handlers.Recorder.Delete)).Methods("POST")
	session.HandleFunc("/discard", h.SessionAction("discard", handlers.Recorder.Discard)).Methods("POST")
	session.HandleFunc("/cancel-upload", h.SessionAction("cancel upload", handlers.Recorder.CancelUpload)).Methods("POST")
	session.HandleFunc("/reauthenticate", h.SessionAction("reauthenticate", handlers.Recorder.Reauthenticate)).Methods("POST")
	session.HandleFunc("/retry", h.SessionAction("retry", handlers.Recorder.Retry)).Methods("POST")
	session.HandleFunc("/start-over", h.SessionAction("start over", handlers.Recorder.StartOver)).Methods("POST")

	// Storage sign-in
	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.HandleFunc("/callback", h.AuthCallback).Methods("POST")
	authRoutes.HandleFunc("/status", h.GetAuthStatus).Methods("GET")
	authRoutes.HandleFunc("/signout", h.SignOut).Methods("POST")

	// Recordings
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/remote", h.ListRemote).Methods("GET")
	api.HandleFunc("/recordings", h.ListRecordings).Methods("GET")
	api.HandleFunc("/recordings/{id}", h.GetRecording).Methods("GET")
	api.HandleFunc("/recordings/{id}", h.UpdateRecording).Methods("PATCH")
	api.HandleFunc("/recordings/{id}", h.DeleteRecording).Methods("DELETE")
	api.HandleFunc("/recordings/{id}/edit", h.SaveEdit).Methods("PUT")
	api.HandleFunc("/recordings/{id}/overlays", h.AddOverlay).Methods("POST")
	api.HandleFunc("/recordings/{id}/overlays/{overlayId}", h.ChangeOverlay).Methods("PATCH")
	api.HandleFunc("/recordings/{id}/overlays/{overlayId}", h.DeleteOverlay).Methods("DELETE")
	api.HandleFunc("/recordings/{id}/playback", h.Playback).Methods("POST")
	api.HandleFunc("/recordings/{id}/video", h.StreamVideo).Methods("GET")
	api.HandleFunc("/recordings/{id}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/recordings/{id}/overlays.png", h.RenderOverlays).Methods("GET")

	return r
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	mr := http.NewServeMux()
	mr.Handle("/metrics", h.MetricsHandler())
	mr.HandleFunc("/health", h.LivenessCheck)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

type shutdownResources struct {
	machine         *recorder.Machine
	pipeline        *upload.Pipeline
	collector       *metrics.Collector
	guard           *memory.Guard
	db              *database.Database
	cleanupProvider func()
}

func handleShutdown(srv, metricsSrv *http.Server, res shutdownResources) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping recorder")
	if res.pipeline.Cancel() {
		logging.Info("  In-flight upload canceled")
	}
	res.machine.Close()
	startup.LogShutdownStepComplete("Recorder stopped")

	startup.LogShutdownStep("Cleaning up capture and encoder processes")
	res.cleanupProvider()
	encoder.Cleanup()
	startup.LogShutdownStepComplete("Capture cleanup complete")

	startup.LogShutdownStep("Stopping metrics collector and memory guard")
	res.collector.Stop()
	res.guard.Stop()
	startup.LogShutdownStepComplete("Metrics collector and memory guard stopped")

	startup.LogShutdownStep("Closing database")
	if err := res.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
