package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tradesense/internal/auth"
	"tradesense/internal/cache"
	"tradesense/internal/challenge"
	"tradesense/internal/client/frankfurter"
	"tradesense/internal/config"
	cronrunner "tradesense/internal/cron"
	"tradesense/internal/db"
	"tradesense/internal/handler"
	"tradesense/internal/logger"
	"tradesense/internal/marketdata"
	gormrepository "tradesense/internal/repository/gorm"
	"tradesense/internal/service"

	_ "tradesense/docs"
)

func main() {
	cfgPath := os.Getenv("TS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatal("auth.jwt_secret is required")
	}

	dbConn, err := db.Open(cfg.DB, logger)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
	}

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default feature switches failed", zap.Error(err))
	}
	if cfg.Seed.Enabled {
		if err := db.Seed(context.Background(), store, cfg, logger); err != nil {
			logger.Warn("seed failed", zap.Error(err))
		}
	}

	sharedCache := cache.New(cfg.Redis)
	var cachePinger handler.Pinger
	if rs, ok := sharedCache.(*cache.RedisStore); ok {
		cachePinger = rs
		defer rs.Close()
	}

	engine := &challenge.Engine{
		Repo:    store,
		Rules:   challenge.NewRules(cfg.Challenge),
		Logger:  logger,
		Workers: cfg.Challenge.EvaluateWorkers,
	}
	accountSvc := service.NewAccountService(store, cfg.Challenge, logger)
	jwt := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
	authSvc := &auth.Service{
		Store:              store,
		JWT:                jwt,
		Logger:             logger,
		PasswordIterations: cfg.Auth.PasswordIter,
		MinPasswordChars:   cfg.Auth.MinPasswordChars,
		DemoBalance:        decimal.NewFromFloat(cfg.Challenge.DemoBalance),
		TrialBalance:       decimal.NewFromFloat(cfg.Challenge.TrialBalance),
	}
	marketSvc := newMarketService(cfg.Market, sharedCache, logger)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handler.RegisterValidators()
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Cache: cachePinger}
	healthHandler.Register(router)
	authHandler := &handler.AuthHandler{Service: authSvc, Switches: settingsSvc, JWT: jwt, Logger: logger}
	authHandler.Register(router)
	accountHandler := &handler.AccountHandler{Service: accountSvc, Switches: settingsSvc, JWT: jwt, Logger: logger}
	accountHandler.Register(router)
	tradeHandler := &handler.TradeHandler{
		Engine:   engine,
		Accounts: accountSvc,
		Market:   marketSvc,
		Switches: settingsSvc,
		JWT:      jwt,
		Logger:   logger,
	}
	tradeHandler.Register(router)
	adminHandler := &handler.AdminHandler{
		Service:  accountSvc,
		Engine:   engine,
		Settings: settingsSvc,
		JWT:      jwt,
		Logger:   logger,
	}
	adminHandler.Register(router)
	marketHandler := &handler.MarketHandler{
		Service:        marketSvc,
		StreamInterval: cfg.Market.StreamInterval,
		OriginPatterns: wsOrigins(cfg.Server.CORSOrigins),
		Logger:         logger,
	}
	marketHandler.Register(router)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ms, ok := sharedCache.(*cache.MemoryStore); ok {
		go ms.Janitor(ctx, time.Minute)
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if err := cronrunner.Register(cronRunner, cfg.Cron, engine, marketSvc, settingsSvc); err != nil {
			logger.Fatal("cron register failed", zap.Error(err))
		}
		cronRunner.Start()
	}

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	cronRunner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
}

func newMarketService(cfg config.MarketConfig, store cache.Store, logger *zap.Logger) *marketdata.Service {
	var providers []marketdata.Provider
	if cfg.Binance.Enabled && len(cfg.Binance.Symbols) > 0 {
		providers = append(providers, marketdata.NewBinanceProvider(cfg.Binance.BaseURL, cfg.Binance.Symbols))
	}
	if cfg.Frankfurter.Enabled && len(cfg.Frankfurter.Symbols) > 0 {
		fxHTTP := &http.Client{Timeout: cfg.Timeout}
		providers = append(providers, &marketdata.FXProvider{
			Client:  frankfurter.NewClient(fxHTTP, cfg.Frankfurter.BaseURL),
			Symbols: cfg.Frankfurter.Symbols,
		})
	}
	return &marketdata.Service{
		Providers: providers,
		Cache:     store,
		FreshTTL:  cfg.FreshTTL,
		StaleTTL:  cfg.StaleTTL,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// wsOrigins converts CORS origins into websocket origin patterns, which match hosts
// without the scheme.
func wsOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
