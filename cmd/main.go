package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"chatwire/backend/internal/api/handler"
	"chatwire/backend/internal/auth"
	"chatwire/backend/internal/broker"
	"chatwire/backend/internal/chathub"
	"chatwire/backend/internal/config"
	"chatwire/backend/internal/models"
	"chatwire/backend/internal/notifier"
	"chatwire/backend/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: no .env file found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	db, rdb := setupDependencies(cfg)

	store := storage.NewService(db, rdb)
	store.UploadDir = cfg.UploadDir

	publisher := broker.NewPublisher(cfg.AMQPURL)
	defer publisher.Close()

	verifier := auth.NewVerifier(cfg.JWTSecret)
	ttl := storage.NewRedisTTLStore(rdb)
	hub := chathub.NewHub(ttl, store, store, store, publisher)

	if cfg.TelegramBotToken != "" {
		go runNotifier(cfg.TelegramBotToken, publisher, store, hub)
	}

	h := handler.New(hub, verifier, store)

	router := gin.Default()
	router.POST("/token", h.IssueToken)
	router.GET("/ws", h.ServeWebSocket)
	router.GET("/rooms/:id/messages", h.GetRoomMessages)
	router.PATCH("/messages/:id", h.UpdateMessage)
	router.DELETE("/messages/:id", h.DeleteMessage)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Printf("Listening on %s", cfg.HTTPAddr)
	log.Fatal(server.ListenAndServe())
}

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.Message{},
		&models.MessageAttachment{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func runNotifier(token string, publisher *broker.Publisher, store *storage.Service, hub *chathub.Hub) {
	svc, err := notifier.NewService(token, publisher, store, hub.Presence)
	if err != nil {
		log.Printf("ERROR: starting notifier: %v", err)
		return
	}
	if err := svc.Run(); err != nil {
		log.Printf("ERROR: notifier stopped: %v", err)
	}
}
