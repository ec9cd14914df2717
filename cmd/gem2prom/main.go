package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "gem2prom/internal/adapter/actor"
	"gem2prom/internal/config"
	"gem2prom/internal/core/actor"
	"gem2prom/internal/core/domain"
	"gem2prom/internal/metrics"
	"gem2prom/internal/server"
	"gem2prom/internal/stats"
	"gem2prom/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, rootContext *pactor.RootContext, ingestActor *pactor.PID, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// Stop ingestion first and wait for the subtree: the listener closes its
	// socket and drains, queued updates get applied, and only then does the
	// scrape surface go away.
	if err := rootContext.StopFuture(ingestActor).Wait(); err != nil {
		log.Printf("ingestion forced to shutdown with error: %v", err)
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	slog.Info("gem2prom", "version", versioninfo.Short())

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// metric store: instruments are created once here and only their
	// labeled values change afterwards
	store := metrics.NewStore(hostname(), cfg.ExtraLabelKeys())

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewIngestActor(*cfg, store, listenerActorProvider(cfg, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_INGEST)
	if err != nil {
		logger.Error("could not spawn ingest actor", zap.Error(err))
		os.Exit(1)
	}

	// startup gate: the device listener (and MQTT bridge, if enabled) must
	// come up before serving
	if !waitHealthy(ctx, pid, 10*time.Second) {
		logger.Error("startup failed: ingestion did not become healthy")
		os.Exit(1)
	}

	// periodic ingestion summary
	reporter, err := stats.NewReporter(time.Duration(cfg.StatsIntervalSeconds)*time.Second, ctx, pid, logger)
	if err != nil {
		logger.Error("could not create stats reporter", zap.Error(err))
		os.Exit(1)
	}
	reporterCtx, cancelReporter := context.WithCancel(context.Background())
	defer cancelReporter()
	if cfg.StatsIntervalSeconds > 0 {
		if err := reporter.Start(reporterCtx); err != nil {
			logger.Error("could not start stats reporter", zap.Error(err))
			os.Exit(1)
		}
	}

	server := server.NewServer(*cfg, ctx, pid, store)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, ctx, pid, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("http server error", zap.Error(err))
		os.Exit(1)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	reporter.Stop()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	setConfigDefaults()

	viper.SetEnvPrefix("gem2prom")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace", "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func listenerActorProvider(cfg *config.Config, logger *zap.Logger) actor.ListenerActorProvider {
	return func() *adactor.GEMListenerActor {
		return adactor.NewGEMListenerActor(cfg, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func waitHealthy(ctx *pactor.RootContext, pid *pactor.PID, timeout time.Duration) bool {
	res, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, timeout).Result()
	if err != nil {
		return false
	}
	resp, ok := res.(domain.ActorHealthResponse)
	return ok && resp.Healthy
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("gem_port", 1461)
	viper.SetDefault("metrics_port", 1462)
	viper.SetDefault("stats_interval_seconds", 60)
	viper.SetDefault("mqtt.base_topic", "gem")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
