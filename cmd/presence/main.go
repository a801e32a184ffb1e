package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/api"
	"github.com/fathima-sithara/presence-service/internal/auth"
	"github.com/fathima-sithara/presence-service/internal/config"
	"github.com/fathima-sithara/presence-service/internal/conversation"
	"github.com/fathima-sithara/presence-service/internal/delivery"
	"github.com/fathima-sithara/presence-service/internal/domain"
	"github.com/fathima-sithara/presence-service/internal/events"
	"github.com/fathima-sithara/presence-service/internal/logger"
	"github.com/fathima-sithara/presence-service/internal/metrics"
	"github.com/fathima-sithara/presence-service/internal/middleware"
	"github.com/fathima-sithara/presence-service/internal/presence"
	"github.com/fathima-sithara/presence-service/internal/readstate"
	"github.com/fathima-sithara/presence-service/internal/registry"
	"github.com/fathima-sithara/presence-service/internal/repository"
	"github.com/fathima-sithara/presence-service/internal/ws"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("presence-service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	pub, err := openPublisher(cfg, lg)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	jv, err := auth.NewValidator(cfg.JWT.Alg, cfg.JWT.HSSecret, cfg.JWT.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	reg := registry.New(cfg.Debounce, lg.Named("registry"))
	defer reg.Close()
	reg.OnEvent(m.RegistryEvent)

	bc := presence.NewBroadcaster(reg, store, pub, m, lg.Named("presence"))
	reg.SetNotifier(bc)
	go bc.Run(ctx)

	tracker := readstate.NewTracker(store)
	svc := delivery.NewService(store, reg, pub, m, lg.Named("delivery"))
	asm := conversation.NewAssembler(store, tracker, reg)

	wsrv := ws.NewServer(reg, jv, cfg.WS.TrustUserParam, ws.Options{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		PongWait:       cfg.PongWait,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
		SendBuffer:     cfg.WS.SendBuffer,
		InboundRPS:     cfg.WS.InboundRPS,
	}, m, lg.Named("ws"))

	var limiter middleware.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter = middleware.NewRedisLimiter(rdb, cfg.Redis.Prefix, cfg.RateLimit.RequestsPerMinute, time.Minute)
	} else {
		local := middleware.NewLocalLimiter(cfg.RateLimit.RequestsPerMinute)
		defer local.Close()
		limiter = local
	}

	deps := api.Deps{
		Handlers:  api.NewHandlers(svc, tracker, asm, reg, lg.Named("api")),
		Auth:      jv,
		WS:        wsrv,
		Limiter:   limiter,
		AccessLog: cfg.Development(),
		Log:       lg,
	}
	if m != nil {
		deps.Metrics = m.Handler()
	}
	app := api.NewServer(deps)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		lg.Info("presence-service listening", zap.String("addr", addr), zap.String("store", cfg.Store.Driver))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(sctx)
}

func seedUsers(seed []config.SeedUser, now time.Time) []domain.User {
	users := make([]domain.User, 0, len(seed))
	for _, u := range seed {
		users = append(users, domain.User{
			ID:         u.ID,
			FullName:   u.FullName,
			Email:      u.Email,
			ProfilePic: u.ProfilePic,
			CreatedAt:  now,
		})
	}
	return users
}

func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (repository.Store, func(), error) {
	if cfg.Store.Driver == "memory" {
		users := seedUsers(cfg.Store.SeedUsers, time.Now())
		if len(users) == 0 {
			lg.Warn("memory store has no seed users; conversation lists will be empty")
		}
		return repository.NewMemoryStore(users...), func() {}, nil
	}

	mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI, 30*time.Second, lg.Named("mongo"))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo init: %w", err)
	}
	closeFn := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mc.Disconnect(dctx)
	}

	ms := repository.NewMongoStore(mc.Database(cfg.Mongo.Database), cfg.Mongo.UsersCollection, cfg.Mongo.MessagesCollection, cfg.StoreTimeout)
	if err := ms.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("mongo indexes: %w", err)
	}
	bs := repository.NewBreakerStore(ms, repository.BreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
	}, lg.Named("breaker"))
	return bs, closeFn, nil
}

func openPublisher(cfg *config.Config, lg *zap.Logger) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "kafka":
		return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent, cfg.Kafka.TopicPresence, lg.Named("kafka")), nil
	case "nats":
		p, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		return p, nil
	}
	return events.Nop{}, nil
}
