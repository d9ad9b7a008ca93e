package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "secret"

type ConfigStruct struct {
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	MongoURI string
	MongoDB  string

	RedisAddr string

	HTTPHost string
	HTTPPort int

	JWTSecret string

	NegotiateTimeout time.Duration
	RoomCapacity     int

	LogLevel string
}

// Load reads the optional .env file and then the process environment.
func Load() *ConfigStruct {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found or could not be loaded", "error", err)
	}

	cfg := &ConfigStruct{
		MySQLHost:     getEnv("MYSQL_HOST", "127.0.0.1"),
		MySQLPort:     toInt("MYSQL_PORT", 3306),
		MySQLUser:     getEnv("MYSQL_USER", "root"),
		MySQLPassword: os.Getenv("MYSQL_PASSWORD"),
		MySQLDatabase: getEnv("MYSQL_DATABASE", "fretquiz"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "fretquiz"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		HTTPHost: os.Getenv("HTTP_HOST"),
		HTTPPort: toInt("HTTP_PORT", 4000),

		JWTSecret: os.Getenv("JWT_SECRET"),

		NegotiateTimeout: time.Duration(toInt("NEGOTIATE_TIMEOUT", 30)) * time.Second,
		RoomCapacity:     toInt("ROOM_CAPACITY", 64),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, falling back to the development secret")
		cfg.JWTSecret = defaultJWTSecret
	}
	if cfg.RoomCapacity <= 0 {
		cfg.RoomCapacity = 64
	}

	return cfg
}

// Addr is the listen address for the HTTP server.
func (c *ConfigStruct) Addr() string {
	return c.HTTPHost + ":" + strconv.Itoa(c.HTTPPort)
}

// Level maps LogLevel onto a slog level; unknown values mean info.
func (c *ConfigStruct) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(envVar, defaultVal string) string {
	if val, ok := os.LookupEnv(envVar); ok && val != "" {
		return val
	}
	return defaultVal
}

func toInt(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		slog.Warn("invalid integer environment variable", "key", envVar, "value", valStr, "error", err)
		return defaultVal
	}
	return val
}
