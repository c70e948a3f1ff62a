// Command signaling runs the WebRTC signaling server: the /ws upgrade
// endpoint and its admin HTTP surface (health, readiness, metrics).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/auth"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/bus"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/coalesce"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/config"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/health"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/lifecycle"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/middleware"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/ratelimit"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/router"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/session"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/signaling"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/tracing"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/transport"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// build and commitHash are populated via -ldflags at release build time.
var (
	build      = "dev"
	commitHash = "unknown"
)

func main() {
	envPaths := []string{".env", "../../../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment", "path", path)
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.NodeEnv == "development"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	logger := logging.GetLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OtelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "signaling", cfg.OtelCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to initialize", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	var validator *auth.Validator
	if cfg.AuthMode == "jwt" {
		validator, err = auth.NewValidator(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			logging.Error(ctx, "failed to initialize auth validator", zap.Error(err))
			os.Exit(1)
		}
	}
	identity := auth.NewIdentityProvider(cfg.AuthMode, validator)

	rooms := room.NewRegistry()
	sessions := session.NewManager()
	limiter := ratelimit.NewMessageLimiter()
	coalescer := coalesce.New()

	handlers := signaling.New(rooms, sessions, limiter, coalescer)
	var busSvc *bus.Service
	if cfg.RedisAddr != "" {
		svc, err := bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Warn(ctx, "cross-instance fan-out disabled: failed to connect to redis", zap.Error(err))
		} else {
			defer svc.Close()
			handlers = handlers.WithBus(svc)
			busSvc = svc
			logging.Info(ctx, "cross-instance fan-out enabled", zap.String("redisAddr", cfg.RedisAddr))
		}
	}

	rooms.SetOnDestroy(func(id types.StreamID) {
		coalescer.ClearRoom(id)
		handlers.UnsubscribeRoom(id)
	})

	msgRouter := router.New()
	handlers.RegisterAll(msgRouter)

	lc := lifecycle.New(rooms, sessions)
	go lc.Run(ctx)

	listener := transport.New(msgRouter, rooms, limiter, identity, cfg.AllowedOrigins)

	buildInfo := health.BuildInfo{Build: build, CommitHash: commitHash}
	healthHandler := health.NewHandler(rooms, cfg, buildInfo)
	if busSvc != nil {
		healthHandler = healthHandler.WithBus(busSvc)
	}

	gin.SetMode(ginMode(cfg.NodeEnv))
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SecurityHeaders())
	engine.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.AllowedOrigins
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowOrigins = nil
	}

	admin := engine.Group("/")
	admin.Use(cors.New(corsCfg))
	admin.GET("/health", healthHandler.Health)
	admin.GET("/healthz", healthHandler.Healthz)
	admin.GET("/_version", healthHandler.Version)
	admin.GET("/readyz", healthHandler.Readyz)
	admin.POST("/validate", healthHandler.Validate)
	admin.POST("/validate/report", healthHandler.ValidateReport)
	admin.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// /ws is deliberately outside the CORS group: browsers don't apply CORS
	// to the WebSocket handshake, and ServeWs does its own origin check.
	engine.GET("/ws", listener.ServeWs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		logging.Info(ctx, "signaling server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lc.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(context.Background(), "forced shutdown", zap.Error(err))
	}

	logging.Info(context.Background(), "server exited")
}

func ginMode(nodeEnv string) string {
	if nodeEnv == "development" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
