package app

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moraxdb/morax/internal/kafkabroker"
	"github.com/moraxdb/morax/internal/metastore"
	"github.com/moraxdb/morax/internal/moraxlog"
	"github.com/moraxdb/morax/internal/objstore"
	"github.com/moraxdb/morax/internal/pubsub"
)

// App is the root datastructure: it owns the shared metadata store and
// split storage backend, and the two front-door services built on top of
// them.
type App struct {
	cfg Config

	logger log.Logger
	meta   *metastore.Store

	kafkaServer  *kafkabroker.Server
	pubsubServer *pubsub.Server

	manager *services.Manager
}

// New constructs an App: it opens the metadata store and the split
// storage backend, then builds the Kafka and Pub/Sub front doors against
// them. It does not start anything — call Run for that.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := moraxlog.New(cfg.LogFormat, cfg.LogLevel)

	meta, err := metastore.Open(ctx, cfg.MetastoreDSN)
	if err != nil {
		return nil, fmt.Errorf("app: open metastore: %w", err)
	}

	splits, err := cfg.Splits.New(ctx)
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("app: open split storage: %w", err)
	}

	reg := prometheus.DefaultRegisterer
	broker := kafkabroker.New(cfg.Kafka.NodeInfo(), meta, splits, log.With(logger, "component", "kafkabroker"), reg)
	kafkaServer := kafkabroker.NewServer(cfg.Kafka, broker)

	pubsubSvc := &pubsub.Service{Meta: meta, Splits: splits, Logger: log.With(logger, "component", "pubsub")}
	pubsubServer := pubsub.NewServer(cfg.Pubsub.ListenAddress, pubsubSvc, log.With(logger, "component", "pubsub"))

	return &App{
		cfg:          cfg,
		logger:       logger,
		meta:         meta,
		kafkaServer:  kafkaServer,
		pubsubServer: pubsubServer,
	}, nil
}

// Run starts both front-door services and blocks until a termination
// signal is received or one of the services fails, then stops everything
// and releases the metadata store connection.
func (a *App) Run() error {
	defer a.meta.Close()

	sm, err := services.NewManager(a.kafkaServer, a.pubsubServer)
	if err != nil {
		return fmt.Errorf("app: build service manager: %w", err)
	}

	healthy := func() { level.Info(a.logger).Log("msg", "morax started") }
	stopped := func() { level.Info(a.logger).Log("msg", "morax stopped") }
	serviceFailed := func(service services.Service) {
		sm.StopAsync()
		level.Error(a.logger).Log("msg", "service failed", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	handler := signals.NewHandler(a.logger)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return fmt.Errorf("app: start service manager: %w", err)
	}
	return sm.AwaitStopped(context.Background())
}
