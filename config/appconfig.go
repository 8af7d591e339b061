// Package config loads the service configuration with koanf.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. DATASEC_DATABASE__DSN.
const EnvPrefix = "DATASEC_"

// AppConfig defines application configuration loaded from files and environment.
type AppConfig struct {
	Env      string         `koanf:"env"`
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Auth     AuthConfig     `koanf:"auth"`
	Cache    CacheConfig    `koanf:"cache"`
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type CacheConfig struct {
	ValkeyAddr string        `koanf:"valkey_addr"`
	TTL        time.Duration `koanf:"ttl"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// StoreConfig selects the security store: "postgres" (gorm) or "bunt" (embedded).
type StoreConfig struct {
	Backend  string `koanf:"backend"`
	BuntPath string `koanf:"bunt_path"`
}

var (
	cfgOnce sync.Once
	cfgInst *AppConfig
)

// GetConfig loads and returns the singleton AppConfig.
func GetConfig() *AppConfig {
	cfgOnce.Do(func() { cfgInst = loadOrDefaults(Load) })
	return cfgInst
}

// loadOrDefaults never returns nil: a failed load falls back to defaults.
func loadOrDefaults(load func() (*AppConfig, error)) *AppConfig {
	c, err := load()
	if err != nil {
		log.Printf("config: %v", err)
	}
	if c == nil {
		d := defaults()
		c = &d
	}
	return c
}

// Load reads configuration in order:
// 1) config/config.yaml (optional)
// 2) config/config.<APP_ENV>.yaml (optional), APP_ENV defaults to "local"
// 3) Environment variables with prefix DATASEC_ mapped using __ as nested separator
//
// Files are read only when APP_CONFIG_FILES is truthy; CONFIG_DIR overrides ./config.
func Load() (*AppConfig, error) {
	k := koanf.New(".")
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	loadFiles := strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "1") || strings.EqualFold(os.Getenv("APP_CONFIG_FILES"), "true")
	envName := os.Getenv("APP_ENV")
	if envName == "" {
		envName = "local"
	}
	if loadFiles {
		for _, name := range []string{"config.yaml", "config." + envName + ".yaml"} {
			path := filepath.Join(configDir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				log.Printf("config: failed loading %s: %v", path, err)
			}
		}
	}
	// DATASEC_CACHE__VALKEY_ADDR -> cache.valkey_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	c := defaults()
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return &c, err
	}
	if c.Env == "" {
		c.Env = envName
	}
	return &c, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func defaults() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{Driver: "postgres"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Cache:    CacheConfig{TTL: time.Minute},
		Log:      LogConfig{Level: "info"},
		Store:    StoreConfig{Backend: "postgres", BuntPath: ":memory:"},
	}
}
