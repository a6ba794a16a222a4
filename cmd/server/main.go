// Command server runs the keygate API key gateway.
//
// Configuration is read from a YAML file (-config, KEYGATE_CONFIG,
// ./config.yaml or /etc/keygate/config.yaml) with KEYGATE_* environment
// overrides:
//
//	KEYGATE_PORT            - Listen port (default: 8080)
//	KEYGATE_AUTH_MODE       - "required", "optional" or "try" (default: "required")
//	KEYGATE_HEADER_KEY      - Header carrying the API key (default: "x-api-key")
//	KEYGATE_QUERY_KEY       - Query parameter carrying the API key (default: "token")
//	KEYGATE_API_KEYS        - JSON key table, object or array form
//	KEYGATE_VALIDATE_METHOD - Named lookup method, e.g. "keys.postgres"
//	KEYGATE_POSTGRES_DSN    - Enables the PostgreSQL key store
//	KEYGATE_REDIS_ADDRS     - Enables the Redis key store (comma-separated)
//	KEYGATE_LOG_LEVEL       - DEBUG, INFO, WARN or ERROR
//	KEYGATE_DEBUG           - Debug categories, e.g. "auth,keystore" or "all"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rhuss/keygate/pkg/config"
	"github.com/rhuss/keygate/pkg/debug"
	"github.com/rhuss/keygate/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}
	defer a.Close()

	srv := transport.NewServer(a.Handler(), transport.ServerConfig{
		Addr:            ":" + strconv.Itoa(cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          slog.Default(),
	})
	return srv.ListenAndServe(ctx)
}
