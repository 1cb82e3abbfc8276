package main

import (
	"github.com/suteetoe/scouting-service/internal/handler"
	"github.com/suteetoe/scouting-service/internal/mediaproxy"
	"github.com/suteetoe/scouting-service/internal/report"
	"github.com/suteetoe/scouting-service/internal/server"
	"github.com/suteetoe/scouting-service/pkg/aitext"
	"github.com/suteetoe/scouting-service/pkg/config"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/jwtutil"
	"github.com/suteetoe/scouting-service/pkg/logger"
	"github.com/suteetoe/scouting-service/pkg/pdf"
	"github.com/suteetoe/scouting-service/pkg/storage"

	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
		File:        cfg.Log.File,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer logger.Sync()

	log.Info("Starting "+cfg.ServiceName,
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))
	log.Info("Configuration loaded", cfg.LogConfig()...)

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warn("Missing configuration, affected features will fail", zap.Strings("missing", missing))
	}

	if err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established and migrations completed")

	j := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: cfg.Platform.JWTSecret})

	handler.InitConfig(cfg)
	handler.InitMediaProxy(mediaproxy.New(
		storage.NewClient(cfg.Platform.URL, cfg.Platform.ServiceRoleKey),
		mediaproxy.Options{
			Bucket:       cfg.Platform.AvatarBucket,
			TTL:          cfg.Media.SignedURLTTL,
			ReuseMargin:  cfg.Media.ReuseMargin,
			FetchTimeout: cfg.Media.FetchTimeout,
			MaxAge:       cfg.Media.BrowserMaxAge,
			Logger:       log.Named("mediaproxy"),
		},
	))
	handler.InitReportService(report.NewService(
		aitext.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout),
		pdf.NewClient(cfg.PDF.RendererURL, cfg.PDF.Timeout),
	))

	e := server.New(cfg, j)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
