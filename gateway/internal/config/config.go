package config

import (
	"os"

	"github.com/Skotchmaster/watch_store/pkg/config"
)

type Config struct {
	ListenAddr string
	LogLevel   string
	CartURL    string
	OrderURL   string
	JWTSecret  []byte
}

func Load() *Config {
	cfg := &Config{
		ListenAddr: config.EnvDefault("GATEWAY_ADDR", ":8080"),
		LogLevel:   config.EnvDefault("LOG_LEVEL", "info"),
		CartURL:    os.Getenv("CART_URL"),
		OrderURL:   os.Getenv("ORDER_URL"),
		JWTSecret:  []byte(os.Getenv("JWT_SECRET")),
	}

	config.MustNonEmpty(cfg.CartURL, "CART_URL")
	config.MustNonEmpty(cfg.OrderURL, "ORDER_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	return cfg
}
