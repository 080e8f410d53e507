package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/internal/core/services"
	"a2dpmgr/internal/infrastructure/audiosession"
	"a2dpmgr/internal/infrastructure/backup"
	"a2dpmgr/internal/infrastructure/diagnostics"
	"a2dpmgr/internal/infrastructure/distributed"
	"a2dpmgr/internal/infrastructure/monitoring"
	"a2dpmgr/internal/infrastructure/repositories"
	"a2dpmgr/internal/infrastructure/transport"
	pkgbackup "a2dpmgr/pkg/backup"
	"a2dpmgr/pkg/circuitbreaker"
	"a2dpmgr/pkg/config"
	"a2dpmgr/pkg/logger"
	"a2dpmgr/pkg/retry"
	"a2dpmgr/pkg/tracing"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/root/configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			ServiceName: "a2dpmgr",
			JaegerURL:   cfg.Tracing.JaegerURL,
			SampleRate:  cfg.Tracing.SampleRate,
			Enabled:     true,
		})
		if err != nil {
			log.Warnw("failed to initialize tracing", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(ctx)
			}()
		}
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()
	diagnosticCache := repoFactory.CreateDiagnosticCache()

	metrics := monitoring.NewPrometheusCollector()

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddDiagnosticCacheCheck(diagnosticCache, 30*time.Second, 2*time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}

	audioSessionRaw := audiosession.NewLocalAudioSession(log)
	audioGateway := services.NewAudioSessionGateway(
		audioSessionRaw,
		retry.Config{
			Enabled:      true,
			MaxAttempts:  cfg.AudioSession.RetryMaxAttempts,
			InitialDelay: cfg.AudioSession.RetryInitialDelay,
			MaxDelay:     cfg.AudioSession.RetryMaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
		circuitbreaker.Config{
			FailureThreshold:    cfg.AudioSession.BreakerFailureThreshold,
			SuccessThreshold:    2,
			Timeout:             cfg.AudioSession.BreakerTimeout,
			MaxRequestsHalfOpen: 3,
		},
		log,
	)
	sessionActivator := &services.SessionActivatorAdapter{Gateway: audioGateway}
	audioEvents := &services.AudioEventsAdapter{Gateway: audioGateway}

	source := domain.NewRole(domain.RoleSource, cfg.Roles.Source.MaxPeers, sessionActivator)
	sink := domain.NewRole(domain.RoleSink, cfg.Roles.Sink.MaxPeers, sessionActivator)

	sourceNotifier := services.NewSourceNotifier(source, log)
	sinkNotifier := services.NewSinkNotifier(log)

	wsTransport := transport.NewWebSocketTransport(cfg.Transport.Address, retry.Config{
		Enabled:      true,
		MaxAttempts:  0, // one dial per connect call (no further attempts with 0); readLoop dials again on the next ping failure
		InitialDelay: cfg.Transport.ReconnectBackoffMin,
		MaxDelay:     cfg.Transport.ReconnectBackoffMax,
		Multiplier:   2.0,
		Jitter:       true,
	}, log)

	smSource := domain.NewStateMachine(source, wsTransport, sourceNotifier, audioEvents)
	smSink := domain.NewStateMachine(sink, wsTransport, sinkNotifier, audioEvents)

	pool := domain.NewBufferPool(256)
	router := services.NewEventRouter(source, sink, smSource, smSink, pool, metrics, log)

	smSource.SetPostConnectReq(func(addr domain.Address) {
		router.PostLocalEvent(domain.RoleSource, addr, domain.OpConnectReq)
	})
	smSink.SetPostConnectReq(func(addr domain.Address) {
		router.PostLocalEvent(domain.RoleSink, addr, domain.OpConnectReq)
	})

	apiService := services.NewApiService(source, sink, sourceNotifier, sinkNotifier, wsTransport, router, audioGateway, log)

	routerCtx, routerCancel := context.WithCancel(context.Background())
	go router.Run(routerCtx)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	var eventBus *distributed.EventBus
	if client := repoFactory.RedisClient(); client != nil {
		instanceID := os.Getenv("HOSTNAME")
		if instanceID == "" {
			instanceID = "a2dpmgr-local"
		}
		eventBus = distributed.NewEventBus(client, instanceID, 50, 1*time.Second, log)
		sourceNotifier.SetPublisher(eventBus)
		sinkNotifier.SetPublisher(eventBus)
	}

	var snapshotter *backup.Scheduler
	if cfg.Snapshotter.Enabled {
		fileStorage, err := pkgbackup.NewFileStorage(cfg.Snapshotter.StorageDir)
		if err != nil {
			log.Errorw("failed to initialize snapshot storage, disabling snapshotter", "error", err)
		} else {
			backupService := pkgbackup.NewBackupService(fileStorage, "1")
			snapshotter = backup.NewScheduler(backupService, apiService, backup.Config{
				Interval:      cfg.Snapshotter.Interval,
				RetentionDays: cfg.Snapshotter.RetentionDays,
				SourceEnabled: cfg.Roles.Source.Enabled,
				SinkEnabled:   cfg.Roles.Sink.Enabled,
			}, log)
			go snapshotter.Start(routerCtx)
		}
	}

	diagServer := diagnostics.New(cfg, apiService, authService, healthChecker, diagnosticCache, log)

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting a2dpmgr diagnostic server", "address", cfg.Diagnostics.Address)
		if err := diagServer.Start(); err != nil {
			serverErr <- err
		}
	}()

	if cfg.Roles.Source.Enabled {
		status := apiService.InitSource(routerCtx, &diagnostics.LogSourceCallbacks{Logger: log}, cfg.Roles.Source.MaxPeers, cfg.Roles.Source.CodecPriorities, ports.OffloadCaps{
			Supported:                  cfg.Platform.OffloadSupported,
			Disabled:                   cfg.Platform.OffloadDisabled,
			DelayReportingEnabled:      cfg.Platform.DelayReportingEnabled,
			AvrcpAbsoluteVolumeEnabled: cfg.Platform.AvrcpAbsoluteVolumeEnabled,
		})
		log.Infow("source role initialized", "status", status.String())
	}
	if cfg.Roles.Sink.Enabled {
		status := apiService.InitSink(routerCtx, &diagnostics.LogSinkCallbacks{Logger: log}, cfg.Roles.Sink.MaxPeers)
		log.Infow("sink role initialized", "status", status.String())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("diagnostic server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down a2dpmgr")

	if err := diagServer.Shutdown(cfg.Diagnostics.ShutdownTimeout); err != nil {
		log.Errorw("error during diagnostic server shutdown", "error", err)
	}

	apiService.CleanupSource(context.Background())
	apiService.CleanupSink(context.Background())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.AudioSession.ShutdownTimeout)
	shutdownReady := domain.NewReadySignal()
	if err := audioGateway.Shutdown(shutdownCtx, shutdownReady); err != nil {
		log.Errorw("error shutting down audio session gateway", "error", err)
	} else if err := shutdownReady.Wait(shutdownCtx); err != nil {
		log.Warnw("audio session shutdown not acknowledged in time", "error", err)
	}
	shutdownCancel()

	router.Stop()
	routerCancel()

	if snapshotter != nil {
		snapshotter.Stop()
	}
	if eventBus != nil {
		eventBus.Close()
	}

	log.Infow("a2dpmgr stopped", "uptime", time.Since(startTime).String())
}
