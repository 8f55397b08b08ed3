package server

import (
	"encoding/json"
	"log"

	"backend-motorev/internal/auth"
	"backend-motorev/internal/config"
	"backend-motorev/internal/crash"
	"backend-motorev/internal/escalation"
	"backend-motorev/internal/ride"
	"backend-motorev/internal/safety"
	"backend-motorev/internal/social"
	"backend-motorev/internal/stream"
	"backend-motorev/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

// EngineConfig maps the flat env-driven config onto the per-session engine
// tunables.
func EngineConfig(cfg config.Config) ride.EngineConfig {
	return ride.EngineConfig{
		Guards: telemetry.GuardConfig{
			AccuracyCeilingM: cfg.AccuracyCeilingM,
			MaxStepSpeedMps:  cfg.MaxStepSpeedMps,
			MaxPlausibleMps:  cfg.MaxPlausibleMps,
			GapWindow:        cfg.SensorGap(),
		},
		Crash: crash.Thresholds{
			AccelMps2:     cfg.CrashAccelMps2,
			SpeedDropMps:  cfg.CrashSpeedDropMps,
			RolloverDeg:   cfg.RolloverDeltaDeg,
			ConfirmWindow: cfg.CrashConfirm(),
			RecoverySpeed: cfg.RecoverySpeedMps,
		},
		Hysteresis: safety.Hysteresis{
			WarnSpeedMps: cfg.WarnSpeedMps,
			Sustain:      cfg.WarnSustain(),
			Clear:        cfg.WarnClear(),
		},
		Score: ride.ScoreThresholds{
			MaxSpeedCap: cfg.ScoreMaxSpeedCap,
			AvgSpeedCap: cfg.ScoreAvgSpeedCap,
			CalmAvg:     cfg.ScoreCalmAvgMps,
		},
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	hub := s.Stream
	contacts := escalation.NewContactService(s.DB)
	manager := escalation.NewManager(escalation.LogNotifier{}, s.Cfg.Countdown(),
		escalation.RetryPolicy{Attempts: s.Cfg.NotifyAttempts, Backoff: s.Cfg.NotifyBackoff()},
		func(run escalation.Run) {
			payload, err := json.Marshal(run)
			if err != nil {
				log.Printf("escalation run marshal failed: %v", err)
				return
			}
			hub.Publish(stream.EscalationTopic(run.SessionID), payload)
		})

	store := ride.NewStore(s.DB)
	rides := ride.NewService(store, hub, contacts, manager, EngineConfig(s.Cfg))

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	ride.RegisterRoutes(s.App.Group("/rides"), rides, jwtMiddleware)
	escalation.RegisterRoutes(s.App.Group("/escalation"), contacts, manager, jwtMiddleware)
	social.RegisterRoutes(s.App.Group("/social"), social.NewService(s.DB, store), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), hub)
}
