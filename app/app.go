package app

import (
	"context"
	"equipment_lending/db"
	"equipment_lending/session"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client // nil 时会话存内存
	Log    *logrus.Logger
	Repo   *db.Repo
	Config Config

	sessions session.Store
}

// Config 从环境变量读取
type Config struct {
	Port         string
	DatabaseURL  string
	RedisAddr    string
	RedisPwd     string
	SessionTTL   time.Duration
	SeenThrottle time.Duration
	AdminEmails  []string
	EnforceAdmin bool
	BcryptCost   int
	LogLevel     string
	LogFormat    string
	GinMode      string

	BootstrapEmail    string
	BootstrapPassword string
}

func (a *App) Sessions() session.Store { return a.sessions }

func MustNew() *App {
	cfg := LoadConfig()
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	// --- DB: Postgres ---
	dbConn, err := db.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	logger.Info("database connected")

	// --- Redis（可选）---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("redis connected, sessions stored in redis")
	} else {
		logger.Warn("REDIS_ADDR not set, sessions are kept in memory and lost on restart")
	}

	return New(cfg, dbConn, rdb, logger)
}

// New wires the router around already opened connections.
func New(cfg Config, dbConn *gorm.DB, rdb *redis.Client, logger *logrus.Logger) *App {
	var store session.Store
	if rdb != nil {
		store = session.NewRedisStore(rdb, cfg.SessionTTL)
	} else {
		store = session.NewMemoryStore()
	}

	// --- Gin ---
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))
	useCORS(r)

	repo := db.NewRepo(dbConn)
	repo.PasswordCost = cfg.BcryptCost

	return &App{
		Router: r, DB: dbConn, RDB: rdb, Log: logger, Repo: repo, Config: cfg,
		sessions: store,
	}
}

func (a *App) Close() {
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func LoadConfig() Config {
	get := func(k, def string) string {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			return def
		}
		return v
	}
	dur := func(k string, def time.Duration) time.Duration {
		if d, err := time.ParseDuration(get(k, "")); err == nil && d > 0 {
			return d
		}
		return def
	}
	cost, err := strconv.Atoi(get("BCRYPT_COST", "10"))
	if err != nil {
		cost = 10
	}
	enforce, _ := strconv.ParseBool(get("ENFORCE_ADMIN", "false"))

	adminsCSV := os.Getenv("ADMIN_EMAILS") // 例如: "admin@ex.com,ops@ex.com"
	var admins []string
	for _, s := range strings.Split(adminsCSV, ",") {
		if t := strings.TrimSpace(s); t != "" {
			admins = append(admins, strings.ToLower(t))
		}
	}

	dsn := get("DATABASE_URL", "")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			get("DB_HOST", "127.0.0.1"),
			get("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			get("DB_NAME", "equipment_lending"),
			get("DB_PORT", "5432"),
		)
	}

	return Config{
		Port:              get("PORT", "3001"),
		DatabaseURL:       dsn,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPwd:          os.Getenv("REDIS_PASSWORD"),
		SessionTTL:        dur("SESSION_TTL", 24*time.Hour),
		SeenThrottle:      dur("SEEN_THROTTLE", 5*time.Minute),
		AdminEmails:       admins,
		EnforceAdmin:      enforce,
		BcryptCost:        cost,
		LogLevel:          get("LOG_LEVEL", "info"),
		LogFormat:         get("LOG_FORMAT", "text"),
		GinMode:           os.Getenv("GIN_MODE"),
		BootstrapEmail:    strings.ToLower(get("BOOTSTRAP_ADMIN_EMAIL", "")),
		BootstrapPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
}
