package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ProductsAPI/internal/config"
	"ProductsAPI/internal/migrate"
	"ProductsAPI/internal/products"
	"ProductsAPI/pkg/kit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	log, err := kit.NewLogger(cfg.Service, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("config loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &products.Server{
		Store:        store,
		Log:          log,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}
	if n := cfg.HTTP.RateLimit.Requests; n > 0 {
		s.WriteLimiter = kit.NewIPRateLimiter(n, cfg.HTTP.RateLimit.Window).Middleware
	}

	h := products.NewHandler(s, products.HTTPDeps{
		Log:            log,
		Service:        cfg.Service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	err = kit.RunHTTPServer(ctx, cfg.HTTP.Addr, h, log, kit.ServerOptions{
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
	})
	if err != nil {
		log.Error("http server stopped", zap.Error(err))
		return err
	}
	log.Info("http server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (products.Store, func(), error) {
	var seed []products.NewProduct
	if cfg.Store.Seed {
		seed = products.DefaultSeed()
	}

	if cfg.Store.Driver != config.DriverPostgres {
		log.Info("using in-memory store", zap.Int("seeded", len(seed)))
		return products.NewMemStore(seed...), func() {}, nil
	}

	db, err := products.OpenPostgres(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }

	if err := migrate.Up(db); err != nil {
		closeDB()
		return nil, nil, err
	}

	store := products.NewPostgresStore(db)
	seeded, err := products.SeedIfEmpty(ctx, store, seed)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	log.Info("using postgres store", zap.Bool("seeded", seeded))

	return store, closeDB, nil
}
