package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/ajkula/GoNotify/adapter/inbound/grpc"
	"github.com/ajkula/GoNotify/adapter/inbound/rest"
	"github.com/ajkula/GoNotify/adapter/inbound/websocket"
	"github.com/ajkula/GoNotify/adapter/outbound/backend"
	"github.com/ajkula/GoNotify/adapter/outbound/ignore"
	"github.com/ajkula/GoNotify/adapter/outbound/logging"
	"github.com/ajkula/GoNotify/adapter/outbound/metrics"
	"github.com/ajkula/GoNotify/config"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/port/outbound"
	"github.com/ajkula/GoNotify/domain/service"
)

const shutdownTimeout = 10 * time.Second

type serveCommand struct {
	Config string `short:"c" default:"config.yaml" env:"GONOTIFY_CONFIG" placeholder:"PATH" help:"Path to configuration file"`
	Reload bool   `default:"true" negatable:"" help:"Re-apply the configuration file when it changes"`
}

func (c *serveCommand) Run() error {
	cfg, err := config.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewSlogAdapter(cfg)
	defer logger.Shutdown()

	logger.Info("Starting GoNotify", "version", Version, "node", cfg.General.NodeID)

	var watcherMetrics outbound.Metrics = outbound.NopMetrics{}
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		watcherMetrics = metrics.New(registry)
	}

	watcher, filter, err := newWatcher(cfg, logger, watcherMetrics)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if c.Reload {
		reloader, err := newConfigReloader(watcher, filter, logger)
		if err != nil {
			logger.Warn("Config reload disabled", "error", err)
		} else {
			if err := reloader.WatchFile(c.Config); err != nil {
				logger.Warn("Config reload disabled", "error", err)
			}
			reloader.Start()
			defer reloader.Cleanup()
		}
	}

	logger.Info("Watcher ready", "backend", watcher.Backend())

	for _, wp := range cfg.Watcher.Paths {
		mode := model.NonRecursive
		if wp.Recursive {
			mode = model.Recursive
		}
		if err := watcher.Watch(wp.Path, mode); err != nil {
			logger.Error("Failed to watch path", "path", wp.Path, "error", err)
			continue
		}
		logger.Info("Watching path", "path", wp.Path, "mode", mode.String())
	}

	broadcaster := service.NewBroadcaster(cfg.Watcher.BufferSize, logger, watcherMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := suture.New("notifyd", suture.Spec{
		EventHook: func(e suture.Event) { logger.Warn("Supervisor event", "event", e.String()) },
		Timeout:   shutdownTimeout,
	})

	sup.Add(serviceFunc(func(ctx context.Context) error {
		if err := broadcaster.Run(ctx, watcher.Events()); err != nil {
			return err
		}
		// the watcher is gone, nothing left to serve
		return suture.ErrTerminateSupervisorTree
	}))

	var wsHandler *websocket.Handler
	if cfg.HTTP.Enabled {
		wsHandler = websocket.NewHandler(broadcaster, logger)
		sup.Add(&httpService{
			cfg:     cfg,
			handler: newRouter(cfg, watcher, wsHandler, registry, logger),
			logger:  logger,
		})
	}

	if cfg.GRPC.Enabled {
		grpcServer := grpc.NewServer(broadcaster, logger)
		address := fmt.Sprintf("%s:%d", cfg.GRPC.Address, cfg.GRPC.Port)
		sup.Add(serviceFunc(func(ctx context.Context) error {
			lis, err := net.Listen("tcp", address)
			if err != nil {
				return fmt.Errorf("gRPC listen: %w", err)
			}
			logger.Info("gRPC server listening", "address", address)

			errc := make(chan error, 1)
			go func() { errc <- grpcServer.Serve(lis) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				grpcServer.Stop()
				return nil
			}
		}))
	}

	logger.Info("GoNotify started successfully")

	err = sup.Serve(ctx)

	logger.Info("Shutting down")
	if wsHandler != nil {
		wsHandler.Cleanup()
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func newWatcher(cfg *config.Config, logger outbound.Logger, m outbound.Metrics) (*service.WatcherService, *ignore.Matcher, error) {
	factory, err := backend.ByName(cfg.Watcher.Backend, backend.Options{
		Logger:       logger,
		PollInterval: cfg.Watcher.PollInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	filter, err := ignore.New(cfg.Watcher.Ignore...)
	if err != nil {
		return nil, nil, fmt.Errorf("ignore patterns: %w", err)
	}

	opts := []service.WatcherOption{
		service.WithDebounce(cfg.Watcher.Debounce),
		service.WithPreciseEvents(cfg.Watcher.PreciseEvents),
		service.WithNoticeEvents(cfg.Watcher.NoticeEvents),
		service.WithBufferSize(cfg.Watcher.BufferSize),
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithFilter(filter),
	}
	if cfg.Watcher.Immediate {
		opts = append(opts, service.WithImmediate())
	}

	watcher, err := service.NewWatcherService(factory, opts...)
	if err != nil {
		return nil, nil, err
	}
	return watcher, filter, nil
}

// newConfigReloader watches the configuration file with its own watcher and
// applies the runtime-adjustable settings to target.
func newConfigReloader(target *service.WatcherService, filter *ignore.Matcher, logger *logging.SlogAdapter) (*service.ConfigReloadService, error) {
	own, err := service.NewWatcherService(
		backend.Recommended(backend.Options{Logger: logger}),
		service.WithDebounce(200*time.Millisecond),
		service.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	reload := func(ctx context.Context, path string) error {
		next, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		return applyConfig(next, target, filter, logger)
	}
	return service.NewConfigReloadService(own, reload, logger), nil
}

// applyConfig pushes the settings that can change without a restart
func applyConfig(cfg *config.Config, watcher *service.WatcherService, filter *ignore.Matcher, logger model.Logger) error {
	logger.UpdateLevel(cfg.General.LogLevel)

	options := []model.Config{
		model.PreciseEvents(cfg.Watcher.PreciseEvents),
		model.NoticeEvents(cfg.Watcher.NoticeEvents),
	}
	if !cfg.Watcher.Immediate {
		options = append(options, model.OngoingEvents(cfg.Watcher.Debounce))
	}
	for _, opt := range options {
		accepted, err := watcher.Configure(opt)
		if err != nil {
			return err
		}
		if !accepted {
			logger.Warn("Option not supported by the running watcher", "option", opt.String())
		}
	}

	return filter.Load(cfg.Watcher.Ignore)
}

func newRouter(cfg *config.Config, watcher *service.WatcherService, ws *websocket.Handler, registry *prometheus.Registry, logger outbound.Logger) http.Handler {
	router := mux.NewRouter()

	rest.NewHandler(watcher, cfg, logger).SetupRoutes(router)
	router.HandleFunc("/api/ws/events", ws.HandleConnection)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = router
	handler = rest.LoggingMiddleware(logger)(handler)
	if cfg.HTTP.CORS.Enabled {
		handler = rest.CORSMiddleware(cfg.HTTP.CORS.AllowedOrigins)(handler)
	}
	return handler
}

// serviceFunc adapts a function to suture.Service
type serviceFunc func(ctx context.Context) error

func (fn serviceFunc) Serve(ctx context.Context) error {
	return fn(ctx)
}

type httpService struct {
	cfg     *config.Config
	handler http.Handler
	logger  outbound.Logger
}

func (s *httpService) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTP.Address, s.cfg.HTTP.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     s.handler,
		ReadTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "address", addr, "tls", s.cfg.HTTP.TLS)
		if s.cfg.HTTP.TLS {
			errc <- server.ListenAndServeTLS(s.cfg.HTTP.CertFile, s.cfg.HTTP.KeyFile)
		} else {
			errc <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP server shutdown", "error", err)
		}
		return nil
	}
}

func (s *httpService) String() string {
	return "http"
}
