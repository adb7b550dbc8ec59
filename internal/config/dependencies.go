package config

import (
	"context"
	"database/sql"
	"taskboard/internal/websocket"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
)

var (
	// Global dependency yang akan digunakan di seluruh aplikasi
	DB          *sql.DB
	Validate    = validator.New()
	Ctx         = context.Background()
	RedisClient *redis.Client
	EventHub    *websocket.Hub

	// SessionTTL menentukan berapa lama session login disimpan di Redis.
	SessionTTL = 24 * time.Hour
)
