package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "cat_feeder/docs"
	"cat_feeder/internal/bus"
	"cat_feeder/internal/config"
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/handlers"
	"cat_feeder/internal/logger"
	"cat_feeder/internal/metrics"
	"cat_feeder/internal/repository"
	"cat_feeder/internal/repository/db"
	"cat_feeder/internal/server"
	"cat_feeder/internal/service"
)

const (
	defaultSimTick  = 1 * time.Second
	shutdownTimeout = 10 * time.Second
	simClientSuffix = "-sim"
)

// @title        Cat Feeder Hub API
// @version      1.0
// @description  Log store and schedule sync for MQTT cat feeders.
// @BasePath     /
func main() {
	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	bus.RouteClientLogs(log)

	m := metrics.New(bus.StateNames()...)

	conn, err := bus.New(busOptions(cfg.MQTT), bus.WithLogger(log.Named("bus")), bus.WithMetrics(m))
	if err != nil {
		if errors.Is(err, bus.ErrMissingEndpoint) {
			log.Fatalw("mqtt.url is not set; pass --mqtt-url or set FEEDER_MQTT_URL", "err", err)
		}
		log.Fatalw("invalid mqtt configuration", "err", err)
	}

	// log store
	repos, closeDB, err := openRepository(cfg, log)
	if err != nil {
		log.Fatalw("failed to open log store", "err", err)
	}
	defer closeDB()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := service.NewLogCache(repos.Logs, cfg.Logs.MaxLength, log.Named("logs"), m)
	cache.Load(ctx)

	listener := service.NewLogListener(cache, log.Named("ingest"), m)
	if err := listener.Start(conn); err != nil {
		log.Fatalw("failed to subscribe to device logs", "err", err)
	}

	registry := newRegistry(cfg, conn, log, m)

	conn.Start(ctx)

	if cfg.Simulator.Enabled {
		startSimulator(ctx, cfg, log)
	}

	// wire dependencies
	services := service.NewService(conn, cache, registry)
	apiHandler := handlers.NewHandler(services, log.Named("http"), m)

	srv := &server.Server{}
	if err := srv.Listen(cfg.Port, apiHandler.InitRoutes()); err != nil {
		log.Fatalw("error starting server", "err", err)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.Fatalw("http server stopped", "err", err)
		}
	}()
	log.Infow("hub_started", "addr", srv.Addr().String(), "mqtt", cfg.MQTT.URL, "log_backend", cfg.Logs.Backend)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)

	if err := registry.Close(); err != nil {
		log.Warnw("device_close_failed", "err", err)
	}
	conn.Disconnect()
	log.Infow("hub_stopped")
}

func busOptions(c config.MQTTConfig) bus.Options {
	return bus.Options{
		URL:                    c.URL,
		ClientID:               c.ClientID,
		ReconnectPeriod:        c.ReconnectPeriod,
		KeepAlive:              c.KeepAlive,
		ConnectTimeout:         c.ConnectTimeout,
		CleanSession:           c.CleanSession,
		ResubscribeOnReconnect: c.Resubscribe,
	}
}

// openRepository picks the log store backend. The returned func closes
// whatever was opened.
func openRepository(cfg config.Config, log *logger.Logger) (*repository.Repository, func(), error) {
	if cfg.Logs.Backend != config.BackendSQLite {
		log.Infow("log store: json file", "path", cfg.Logs.Path)
		return repository.NewFileRepository(cfg.Logs.Path), func() {}, nil
	}

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	log.Infow("log store: sqlite", "path", cfg.DB.Path)
	return repository.NewSQLiteRepository(conn), closer(conn, log), nil
}

func closer(conn *sql.DB, log *logger.Logger) func() {
	return func() {
		if err := conn.Close(); err != nil {
			log.Errorw("failed to close sqlite", "err", err)
		}
	}
}

// newRegistry tracks the configured devices up front; others are added when
// the API first asks for them.
func newRegistry(cfg config.Config, conn bus.Bus, log *logger.Logger, m *metrics.Metrics) *devicesync.Registry {
	loc, _ := cfg.Location() // validated by config.Load
	registry := devicesync.NewRegistry(conn, devicesync.Options{
		FetchTimeout:   cfg.Device.FetchTimeout,
		Location:       loc,
		FetchOnConnect: cfg.Device.FetchOnConnect,
		MaxDevices:     cfg.Device.MaxTracked,
	}, devicesync.WithLogger(log.Named("devices")), devicesync.WithMetrics(m))

	for _, id := range cfg.Device.IDs {
		if _, err := registry.Get(id); err != nil {
			log.Warnw("skipping configured device", "device_id", id, "err", err)
		}
	}
	return registry
}

// startSimulator runs an emulated feeder on its own broker connection, the way
// a physical device would connect.
func startSimulator(ctx context.Context, cfg config.Config, log *logger.Logger) {
	opts := busOptions(cfg.MQTT)
	if opts.ClientID != "" {
		opts.ClientID += simClientSuffix
	}
	simLog := log.Named("simulator")
	simConn, err := bus.New(opts, bus.WithLogger(simLog))
	if err != nil {
		log.Fatalw("failed to create simulator connection", "err", err)
	}
	simConn.Start(ctx)

	sim := service.NewSimulatorService(simConn, cfg.Simulator, simLog)
	go func() {
		sim.Run(ctx, defaultSimTick)
		simConn.Disconnect()
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
