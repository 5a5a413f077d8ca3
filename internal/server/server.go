package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/attendance"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/auth"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/config"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/engagement"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/event"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/kvstore"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/metrics"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/stream"
	"github.com/phongzhu/e-elyon-mobile-sub000/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Stream     *stream.Hub
	Registry   *prometheus.Registry
	Tracking   *tracking.Service
	Engagement *engagement.Service
	Events     *event.Service
}

func NewServer(ctx context.Context, cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) (*Server, error) {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	appLog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mem := attendance.NewMemory()
	remote, events, err := remoteStores(ctx, cfg, db, mem)
	if err != nil {
		return nil, err
	}

	var kv kvstore.Store = kvstore.NewMemory()
	var registrar tracking.Registrar = tracking.NewMemoryRegistrar()
	if redisClient != nil {
		kv = kvstore.NewRedis(redisClient, "geofence:")
		registrar = tracking.NewRedisRegistrar(redisClient)
	} else {
		log.Printf("redis not configured, tracking state is kept in memory")
	}

	policy := tracking.BatchLatestOnly
	if cfg.FoldBatchSamples {
		policy = tracking.BatchFoldAll
	}

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient, appLog),
		Registry: reg,
		Events:   event.NewMemoryService(mem),
	}
	if db != nil {
		s.Events = event.NewService(db)
	}
	s.Tracking = tracking.NewService(kv, remote, events, registrar, tracking.Options{
		ThresholdMinutes: cfg.ThresholdMinutes,
		RemoteTimeout:    cfg.RemoteTimeout,
		Policy:           policy,
		Task: tracking.TaskOptions{
			Accuracy:            cfg.TaskAccuracy,
			MinTimeInterval:     cfg.TaskMinTimeInterval,
			MinDistanceInterval: cfg.TaskMinDistanceM,
			DeferredInterval:    cfg.TaskDeferredInterval,
		},
		Metrics: m,
		Logger:  appLog,
	})
	s.Engagement = engagement.NewService(events, engagement.NewSessions(),
		engagement.NewWatcher(engagement.NewHubPrompter(s.Stream), m, appLog))

	registerRoutes(s)
	return s, nil
}

// remoteStores picks the attendance store and the event source. Events
// come from Postgres when it is reachable and from mem otherwise, which
// the in-memory event service fills.
func remoteStores(ctx context.Context, cfg config.Config, db *pgxpool.Pool, mem *attendance.Memory) (tracking.Remote, tracking.EventSource, error) {
	var events tracking.EventSource = mem
	var repo *attendance.Repository
	if db != nil {
		repo = attendance.NewRepository(db)
		events = repo
	}

	switch cfg.RemoteBackend {
	case "", "postgres":
		if repo == nil {
			log.Printf("postgres unavailable, attendance is kept in memory")
			return mem, events, nil
		}
		return repo, events, nil
	case "dynamo":
		rec, err := attendance.NewDynamoRecorder(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("dynamo attendance store: %w", err)
		}
		return rec, events, nil
	case "memory":
		return mem, events, nil
	default:
		return nil, nil, fmt.Errorf("unknown REMOTE_BACKEND %q", cfg.RemoteBackend)
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	engagement.RegisterRoutes(s.App.Group("/engagement"), s.Engagement, jwtMiddleware)
	event.RegisterRoutes(s.App.Group("/events"), s.Events, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware, func(c *fiber.Ctx, sessionID string) bool {
		userID, ok := c.Locals("user_id").(int64)
		return ok && sessionID == engagement.SessionID(userID)
	})
}
