package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/renhe-cloud/gaswatch/internal/config"
	"github.com/renhe-cloud/gaswatch/internal/db"
	dbRedis "github.com/renhe-cloud/gaswatch/internal/db/redis"
	dbSqlite "github.com/renhe-cloud/gaswatch/internal/db/sqlite"
	"github.com/renhe-cloud/gaswatch/internal/domain"
	logpkg "github.com/renhe-cloud/gaswatch/internal/logger"
	"github.com/renhe-cloud/gaswatch/internal/metrics"
	staterepo "github.com/renhe-cloud/gaswatch/internal/repository/state"
	chiTransport "github.com/renhe-cloud/gaswatch/internal/transport/chi"
	"github.com/renhe-cloud/gaswatch/internal/transport/huayuan"
	mqttTransport "github.com/renhe-cloud/gaswatch/internal/transport/mqtt"
	accrualuc "github.com/renhe-cloud/gaswatch/internal/usecase/accrual"
	healthuc "github.com/renhe-cloud/gaswatch/internal/usecase/health"
	readingsuc "github.com/renhe-cloud/gaswatch/internal/usecase/readings"
	"github.com/renhe-cloud/gaswatch/internal/usecase/refresh"
	"github.com/renhe-cloud/gaswatch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting gaswatch daemon",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("state_driver", cfg.State.Driver),
		zap.String("serial", cfg.Provider.Serial),
	)

	// Register Prometheus metrics explicitly (no init())
	metrics.Register()

	// Create state store based on driver
	var store db.Store
	switch cfg.State.Driver {
	case "sqlite":
		store, err = dbSqlite.NewStore(cfg.State.SQLite.Path)
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.State.Redis.Addrs,
			Password: cfg.State.Redis.Password,
		})
	default:
		logger.Fatal("Unknown state driver", zap.String("driver", cfg.State.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create state store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the state store to be ready
	ctx := context.Background()
	readiness := 5 * time.Second
	if cfg.State.Driver == "redis" {
		readiness = time.Duration(cfg.State.Redis.ReadinessTimeout) * time.Second
	}
	if err := store.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("State store not ready", zap.Error(err))
	}
	logger.Info("Connected to state store")

	stateRepo := staterepo.New(store, cfg.State.KeyPrefix, cfg.Provider.Serial, logger)

	// Portal client and the two refresh coordinators
	client := huayuan.NewClient(huayuan.Config{
		BaseURL:   cfg.Provider.BaseURL,
		Serial:    cfg.Provider.Serial,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   time.Duration(cfg.Provider.TimeoutSec) * time.Second,
		Logger:    logger,
	})

	scanInterval := time.Duration(cfg.Provider.ScanIntervalMin) * time.Minute
	balanceCoord := refresh.New("balance", client.FetchBalance, scanInterval, logger)
	rechargeCoord := refresh.New("recharge", func(ctx context.Context) (domain.RechargeTotal, error) {
		// The portal posts recharges with a day of lag, so query yesterday.
		date := domain.CivilDate(time.Now().AddDate(0, 0, -1))
		return client.FetchRecharges(ctx, date)
	}, scanInterval, logger)

	// Accrual engine: restore the persisted anchor, then tick
	tickInterval := time.Duration(cfg.Engine.TickIntervalMin) * time.Minute
	engine := accrualuc.New(balanceCoord, rechargeCoord, stateRepo, tickInterval, logger)
	engine.Restore(ctx)

	readingsSvc := readingsuc.New(balanceCoord, rechargeCoord, engine)

	// MQTT export is optional; an empty broker leaves the publisher nil.
	// Pass nil interfaces (not typed nil pointers!) when export is disabled.
	var publisher readingsuc.Publisher
	var brokerStatus healthuc.BrokerStatus
	if cfg.MQTT.Broker != "" {
		topics := mqttTransport.Topics{
			Prefix:          cfg.MQTT.TopicPrefix,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			Serial:          cfg.Provider.Serial,
		}
		pub, err := mqttTransport.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, topics)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()

		if err := pub.PublishDiscovery(); err != nil {
			logger.Warn("Failed to publish discovery", zap.Error(err))
		}
		publisher = pub
		brokerStatus = pub
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTT.Broker))
	}

	exporter := readingsuc.NewExporter(readingsSvc, publisher, tickInterval, logger)

	healthSvc := healthuc.New(store, map[string]healthuc.Source{
		"balance":  balanceCoord,
		"recharge": rechargeCoord,
	})
	if brokerStatus != nil {
		healthSvc = healthSvc.WithBroker(brokerStatus)
	}

	// Create chi server
	server := chiTransport.NewServer(readingsSvc, healthSvc, map[string]chiTransport.Refresher{
		"balance": func(ctx context.Context) error {
			_, err := balanceCoord.Refresh(ctx)
			return err
		},
		"recharge": func(ctx context.Context) error {
			_, err := rechargeCoord.Refresh(ctx)
			return err
		},
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(logger))
	r.Mount("/", server.Router())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Background loops
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go balanceCoord.Run(runCtx)
	go rechargeCoord.Run(runCtx)
	go engine.Run(runCtx)
	go exporter.Run(runCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Daemon stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits a canonical log line per request and propagates X-Request-ID.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
