package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	authConfig "github.com/iurnickita/cardverify/internal/auth/config"
	handlerConfig "github.com/iurnickita/cardverify/internal/handler/config"
	loggerConfig "github.com/iurnickita/cardverify/internal/logger/config"
	storeConfig "github.com/iurnickita/cardverify/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Auth    authConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
}

const (
	defaultServerAddr      = ":8080"
	defaultLogLevel        = "info"
	defaultOrderTimeout    = 5 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

func GetConfig() (Config, error) {
	return parseConfig(os.Args[0], os.Args[1:], os.Getenv)
}

// parseConfig: флаги, затем переменные окружения (окружение приоритетнее)
func parseConfig(name string, args []string, getenv func(string) string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Handler.ServerAddr, "a", defaultServerAddr, "server address")
	fs.StringVar(&cfg.Store.DBDsn, "d", "", "database DSN")
	fs.StringVar(&cfg.Store.OrderServiceAddr, "o", "", "order service address")
	fs.StringVar(&cfg.Store.Kind, "s", storeConfig.KindPostgres, "order store kind: postgres, remote, memory")
	fs.DurationVar(&cfg.Store.OrderTimeout, "t", defaultOrderTimeout, "order service request timeout")
	fs.StringVar(&cfg.Logger.LogLevel, "l", defaultLogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if v := getenv("RUN_ADDRESS"); v != "" {
		cfg.Handler.ServerAddr = v
	}
	if v := getenv("DATABASE_URI"); v != "" {
		cfg.Store.DBDsn = v
	}
	if v := getenv("ORDER_SERVICE_ADDRESS"); v != "" {
		cfg.Store.OrderServiceAddr = v
	}
	if v := getenv("STORE_KIND"); v != "" {
		cfg.Store.Kind = v
	}
	if v := getenv("ORDER_SERVICE_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("ORDER_SERVICE_TIMEOUT: %w", err)
		}
		cfg.Store.OrderTimeout = timeout
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.LogLevel = v
	}

	// секрет только из окружения
	cfg.Auth.APIKey = getenv("VERIFY_API_KEY")

	cfg.Handler.ReadTimeout = defaultReadTimeout
	cfg.Handler.WriteTimeout = defaultWriteTimeout
	cfg.Handler.ShutdownTimeout = defaultShutdownTimeout

	switch cfg.Store.Kind {
	case storeConfig.KindPostgres, storeConfig.KindRemote, storeConfig.KindMemory:
	default:
		return Config{}, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	return cfg, nil
}
