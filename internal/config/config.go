package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// LockMemory 表示进程内按 stack 加锁。
	LockMemory = "memory"
	// LockRedis 表示使用 Redis 分布式锁，适用于多实例部署。
	LockRedis = "redis"
	// LockNone 关闭串行化，回到无锁读改写。
	LockNone = "none"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	Port            string        `yaml:"port"`
	DatabaseURL     string        `yaml:"database_url"`
	DatabaseName    string        `yaml:"db_name"`
	GinMode         string        `yaml:"gin_mode"`
	LogMode         string        `yaml:"log_mode"`
	CORSOrigins     []string      `yaml:"cors_allow_origins"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`
	StackLock       string        `yaml:"stack_lock"`
	RedisAddr       string        `yaml:"redis_addr"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaults() AppConfig {
	return AppConfig{
		Port:            "8080",
		DatabaseURL:     "sqlite://data",
		DatabaseName:    "habitstack",
		GinMode:         "release",
		LogMode:         "production",
		CORSOrigins:     []string{"*"},
		StoreTimeout:    5 * time.Second,
		StackLock:       LockMemory,
		LockTTL:         10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load 按 默认值 → YAML 文件 → 环境变量 的顺序读取配置。
// YAML 路径由 HABITSTACK_CONFIG 指定，文件缺失时直接跳过。
func Load() (AppConfig, error) {
	cfg := defaults()

	path := strings.TrimSpace(os.Getenv("HABITSTACK_CONFIG"))
	if path == "" {
		path = "config/habitstack.yaml"
	}
	if err := loadYAMLFile(&cfg, path); err != nil {
		return AppConfig{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	cfg.StackLock = strings.ToLower(strings.TrimSpace(cfg.StackLock))
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func loadYAMLFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.DatabaseName, "DB_NAME")
	setString(&cfg.GinMode, "GIN_MODE")
	setString(&cfg.LogMode, "LOG_MODE")
	setString(&cfg.StackLock, "STACK_LOCK")
	setString(&cfg.RedisAddr, "REDIS_ADDR")

	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	for key, dst := range map[string]*time.Duration{
		"STORE_TIMEOUT":    &cfg.StoreTimeout,
		"LOCK_TTL":         &cfg.LockTTL,
		"SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func (c AppConfig) validate() error {
	switch c.StackLock {
	case LockMemory, LockNone:
	case LockRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when STACK_LOCK=%s", LockRedis)
		}
	default:
		return fmt.Errorf("unsupported STACK_LOCK %q", c.StackLock)
	}

	for name, d := range map[string]time.Duration{
		"STORE_TIMEOUT":    c.StoreTimeout,
		"LOCK_TTL":         c.LockTTL,
		"SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DB_NAME must not be empty")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
