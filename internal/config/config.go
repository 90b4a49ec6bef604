// Package config содержит логику чтения конфигурации сервиса Wonderland.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultPushInterval = 2 * time.Second
	defaultLockTTL      = 5 * time.Second
)

// Config содержит параметры конфигурации сервиса Wonderland.
type Config struct {
	RunAddress  string        `env:"RUN_ADDRESS"`
	DatabaseURI string        `env:"DATABASE_URI"`
	JWTSecret   string        `env:"JWT_SECRET"`
	AdminEmails []string      `env:"ADMIN_EMAILS" envSeparator:","`
	RedisAddr   string        `env:"REDIS_ADDR"`
	LockTTL     time.Duration `env:"LOCK_TTL"`

	VAPIDPublicKey  string        `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string        `env:"VAPID_SUBSCRIBER"`
	PushInterval    time.Duration `env:"PUSH_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения, в том числе из файла .env, имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	var admins string

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "JWT signing secret")
	flag.StringVar(&admins, "admins", "", "comma separated admin emails")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "redis address for ledger locks")
	flag.DurationVar(&cfg.LockTTL, "lock-ttl", defaultLockTTL, "ledger lock TTL")
	flag.StringVar(&cfg.VAPIDPublicKey, "vapid-public", "", "VAPID public key")
	flag.StringVar(&cfg.VAPIDPrivateKey, "vapid-private", "", "VAPID private key")
	flag.StringVar(&cfg.VAPIDSubscriber, "vapid-subscriber", "", "VAPID subscriber (mailto: or URL)")
	flag.DurationVar(&cfg.PushInterval, "push-interval", defaultPushInterval, "push relay poll interval")

	flag.Parse()

	cfg.AdminEmails = splitList(admins)

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.JWTSecret != "" {
		cfg.JWTSecret = envCfg.JWTSecret
	}
	if len(envCfg.AdminEmails) > 0 {
		cfg.AdminEmails = splitList(strings.Join(envCfg.AdminEmails, ","))
	}
	if envCfg.RedisAddr != "" {
		cfg.RedisAddr = envCfg.RedisAddr
	}
	if envCfg.LockTTL > 0 {
		cfg.LockTTL = envCfg.LockTTL
	}
	if envCfg.VAPIDPublicKey != "" {
		cfg.VAPIDPublicKey = envCfg.VAPIDPublicKey
	}
	if envCfg.VAPIDPrivateKey != "" {
		cfg.VAPIDPrivateKey = envCfg.VAPIDPrivateKey
	}
	if envCfg.VAPIDSubscriber != "" {
		cfg.VAPIDSubscriber = envCfg.VAPIDSubscriber
	}
	if envCfg.PushInterval > 0 {
		cfg.PushInterval = envCfg.PushInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = defaultPushInterval
	}

	return cfg, nil
}

// PushEnabled сообщает, заданы ли VAPID-ключи для Web Push.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
