package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eagleeye/internal/config"
	"eagleeye/internal/db"
	httpapi "eagleeye/internal/http"
	"eagleeye/internal/repository"
	"eagleeye/internal/rules"
	"eagleeye/internal/service"
	"eagleeye/internal/vision"
)

func main() {
	cfg, err := config.Load(os.Getenv("EAGLEEYE_CONFIG_DIR"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)

	database, err := db.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	repo := repository.New(database)

	table, err := rules.Load(cfg.Rules.Path, log)
	if err != nil {
		log.Fatal().Err(err).Msg("rule table load failed")
	}
	engine := rules.NewEngine(table, log)

	// Model weights load once here and are shared by every request.
	detector, err := vision.NewYOLODetector(cfg.Vision, log)
	if err != nil {
		log.Fatal().Err(err).Msg("detector init failed")
	}
	defer detector.Close()

	recognizer, err := vision.NewTesseractRecognizer(cfg.OCR, log)
	if err != nil {
		log.Fatal().Err(err).Msg("OCR init failed")
	}
	defer recognizer.Close()

	recognition := service.NewRecognitionService(detector, recognizer, cfg.Pipeline, log)
	gate := service.NewGateService(recognition, engine, repo, log)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := httpapi.NewHandler(gate, cfg, log)
	handler.Register(r, httpapi.JWTAuth(cfg.Auth.JWTSecret, log))

	log.Info().Str("addr", cfg.Server.Addr).Msg("starting eagleeye server")
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
