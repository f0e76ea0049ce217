// Package config содержит логику чтения конфигурации сервиса бустмарт.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса бустмарт.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	AuthSecret       string `env:"AUTH_SECRET"`
	ChatWebhookURL   string `env:"CHAT_WEBHOOK_URL"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envChatWebhook := cfg.ChatWebhookURL
	envNotifyWebhook := cfg.NotifyWebhookURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth cookies")
	flag.StringVar(&cfg.ChatWebhookURL, "c", "", "system chat webhook URL")
	flag.StringVar(&cfg.NotifyWebhookURL, "n", "", "user notification webhook URL")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envChatWebhook != "" {
		cfg.ChatWebhookURL = envChatWebhook
	}
	if envNotifyWebhook != "" {
		cfg.NotifyWebhookURL = envNotifyWebhook
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
