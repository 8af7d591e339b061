package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/legit-games/dataset-iam/config"
	"github.com/legit-games/dataset-iam/generates"
	"github.com/legit-games/dataset-iam/logging"
	"github.com/legit-games/dataset-iam/migrate"
	"github.com/legit-games/dataset-iam/security"
	"github.com/legit-games/dataset-iam/server"
	"github.com/legit-games/dataset-iam/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dataset authorization API",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg := config.GetConfig()
		if addr, _ := cmd.Flags().GetString("listen-address"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
			cfg.Store.Backend = backend
		}
		logger, err := configureLogging(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			return errors.New("auth.jwt_secret is not set (DATASEC_AUTH__JWT_SECRET)")
		}

		autoMigrate, _ := cmd.Flags().GetBool("migrate")
		secStore, dir, closeStore, err := openStores(cfg, logger, autoMigrate)
		if err != nil {
			return err
		}
		defer func() { err = errors.CombineErrors(err, closeStore()) }()

		opts := []security.Option{security.WithLogger(logger.Named("security"))}
		if addr := strings.TrimSpace(cfg.Cache.ValkeyAddr); addr != "" {
			cache, err := store.NewValkeyGrantsCache(addr, "")
			if err != nil {
				return errors.Wrapf(err, "connect valkey %s", addr)
			}
			defer cache.Close()
			opts = append(opts, security.WithGrantsCache(cache, cfg.Cache.TTL))
			logger.Info("grants cache enabled", zap.String("addr", addr), zap.Duration("ttl", cfg.Cache.TTL))
		}
		agent := security.NewAgent(secStore, opts...)
		if err := security.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return err
		}

		tokens := generates.NewJWTAccessGenerate([]byte(cfg.Auth.JWTSecret), jwt.SigningMethodHS256)
		srv := server.NewServer(agent, dir, tokens)
		srv.Logger = logger.Named("http")
		if ttl, _ := cmd.Flags().GetDuration("token-ttl"); ttl > 0 {
			srv.TokenTTL = ttl
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, cfg.HTTP.Addr)
	},
}

// openStores selects the security store backend. The returned close func
// releases whatever was opened.
func openStores(cfg *config.AppConfig, logger *zap.Logger, autoMigrate bool) (security.Store, server.Directory, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case "bunt":
		b, err := store.OpenBuntSecurityStore(cfg.Store.BuntPath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using embedded store", zap.String("path", cfg.Store.BuntPath))
		return b, b, b.Close, nil
	case "", "postgres":
		if autoMigrate {
			if err := migrate.Run(migrate.Options{
				Driver:  cfg.Database.Driver,
				DSN:     cfg.Database.DSN,
				Command: "up",
				Logger:  logging.NewGooseLogger(logger),
			}); err != nil {
				return nil, nil, nil, errors.Wrap(err, "migrate")
			}
		}
		db, err := store.OpenGorm(cfg.Database.DSN, cfg.Log.Level == "debug")
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return nil, nil, nil, errors.Wrap(err, "ping postgres")
		}
		return store.NewSecurityStore(db), store.NewDirectory(db), sqlDB.Close, nil
	default:
		return nil, nil, nil, errors.Newf("unknown store backend %q", cfg.Store.Backend)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen-address", "l", "", "address to listen on (overrides http.addr)")
	serveCmd.Flags().String("backend", "", "security store backend: postgres or bunt (overrides store.backend)")
	serveCmd.Flags().Bool("migrate", false, "apply schema migrations before serving")
	serveCmd.Flags().Duration("token-ttl", time.Hour, "lifetime of issued access tokens")
}
