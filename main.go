package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"medreel/internal/api"
	"medreel/internal/auth"
	"medreel/internal/config"
	"medreel/internal/history"
	"medreel/internal/redis"
	"medreel/internal/service/account"
	"medreel/internal/service/ai"
	"medreel/internal/service/chat"
	"medreel/internal/service/review"
	"medreel/internal/storage"
)

func main() {
	cfgPath := os.Getenv("MEDREEL_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	systemPrompt, err := config.LoadSystemPrompt(cfg.BasicConfig.SystemPromptPath)
	if err != nil {
		log.Fatalf("load system prompt: %v", err)
	}

	dbType := os.Getenv("MEDREEL_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis is a cache, not a dependency; run without it if unreachable.
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, token cache disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	modelService, err := ai.NewService(context.Background(), cfg, systemPrompt)
	if err != nil {
		log.Fatalf("init model service: %v", err)
	}

	accountService := account.NewService(db)
	if email := os.Getenv("MEDREEL_ADMIN_EMAIL"); email != "" {
		if _, err := accountService.EnsureAdmin(context.Background(), email,
			os.Getenv("MEDREEL_ADMIN_NAME"), os.Getenv("MEDREEL_ADMIN_PASSWORD")); err != nil {
			log.Fatalf("ensure admin account: %v", err)
		}
	}

	sessionTTL := time.Duration(cfg.BasicConfig.SessionTTLHours) * time.Hour
	authService := auth.NewService(db, rdb, sessionTTL)

	chatService := chat.NewService(db, history.NewAdapter(history.NewStore(db)), modelService)
	reviewService := review.NewService(db)

	handlers := api.NewHandler(accountService, authService, chatService, reviewService)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
