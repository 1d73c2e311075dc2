package main

import (
	"context"
	"log"
	"net/http"

	"pairchat/backend/internal/api/handler"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/notifier"
	"pairchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.MessageRecord{},
		&models.Conversation{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting PairChat Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	hub := chathub.NewManagerService(s)

	if cfg.TelegramToken != "" {
		tg, err := notifier.NewTelegramNotifier(cfg.TelegramToken, s.GetNotificationTarget)
		if err != nil {
			log.Fatalf("Failed to start Telegram notifier: %v", err)
		}
		hub.SetNotifier(tg)
	}

	hub.StartPubSubListener(s)
	go hub.Run()

	r := gin.Default()
	h := handler.NewHandler(hub, s, cfg)

	r.GET("/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/api/messages/:user1/:user2", h.GetMessages)
	r.POST("/api/messages", h.SaveMessage)
	r.GET("/api/online", h.GetOnline)
	r.POST("/api/notify-target", h.SetNotifyTarget)

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
