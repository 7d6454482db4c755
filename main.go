package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/harutoki/beastline/server/api/rest"
	apows "github.com/harutoki/beastline/server/api/ws"
	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/config"
	dbadapter "github.com/harutoki/beastline/server/db"
	"github.com/harutoki/beastline/server/game/player"
	"github.com/harutoki/beastline/server/game/record"
	"github.com/harutoki/beastline/server/jobs"
	mw "github.com/harutoki/beastline/server/middleware"
	"github.com/harutoki/beastline/server/model"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Cache ----
	c, err := cache.New(cache.Config{
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Background tasks ----
	runner := jobs.New(logger)
	defer runner.Stop()

	// ---- Game systems ----
	sm := player.NewSessionManager(logger)
	defer sm.CloseAllSessions()
	recSvc := record.NewService(db, c, logger)

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	battleMgr := apows.NewBattleSessionManager(db, cfg.Battle, recSvc, logger)
	battleMgr.RegisterHandlers(wsRouter)
	apows.RegisterGameHandlers(wsRouter, battleMgr)

	// ---- Periodic tasks ----
	runner.AddTicker("ranking_rebuild", 10*time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := recSvc.RebuildRanking(ctx); err != nil {
			logger.Warn("ranking rebuild failed", zap.Error(err))
		}
	})
	runner.AddTicker("battle_stall_sweep", cfg.Battle.StallWarning, func() {
		for _, id := range battleMgr.Stale(cfg.Battle.StallWarning) {
			logger.Warn("battle running unusually long", zap.String("battle_id", id))
		}
	})

	// ---- Gin HTTP server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok", "battles": battleMgr.ActiveCount(), "online": sm.Count()})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	battleH := apirest.NewBattleHandler(db, recSvc, logger)
	rankH := apirest.NewRankingHandler(db, recSvc, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		battlesG := api.Group("/battles")
		battlesG.GET("/heroes", battleH.Heroes)
		battlesG.GET("/bestiary", battleH.Bestiary)
		battlesG.GET("/recent", mw.Auth(cfg.Security, c), battleH.Recent)
		battlesG.GET("/party", mw.Auth(cfg.Security, c), battleH.Party)
		battlesG.PUT("/party", mw.Auth(cfg.Security, c), battleH.SaveParty)

		rankG := api.Group("/ranking")
		rankG.GET("/victories", rankH.TopVictories)
		rankG.POST("/refresh", mw.Auth(cfg.Security, c), rankH.RefreshRanking)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(db, c, cfg.Security, sm, battleMgr, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
