package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/cache"
	"storefront/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront exited with error")
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:   "storefront",
		Usage:  "product catalog and order processing API",
		Action: serve,
		Flags:  serveFlags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  serveFlags(),
				Action: serve,
			},
			migrateCommand(),
			seedCommand(),
			consumeCommand(),
			tokenCommand(),
		},
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "seed", Usage: "insert demo products before serving"},
	}
}

// loadConfig loads configuration and applies the logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, keeping default")
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return cfg, nil
}

// application is everything serve needs, wired from one Config.
type application struct {
	app     *fiber.App
	store   *repositories.Store
	auth    *services.AuthService
	closers []func() error
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	if err := cfg.RequireJWTSecret(); err != nil {
		return nil, err
	}

	store, err := repositories.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	a := &application{store: store, closers: []func() error{store.Close}}

	if err := store.Migrate(); err != nil {
		a.Close()
		return nil, err
	}

	var productCache services.ProductCache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewProductCache(ctx, cache.Config{Addr: cfg.RedisAddr, TTL: cfg.CacheTTL})
		if err != nil {
			a.Close()
			return nil, err
		}
		productCache = redisCache
		a.closers = append(a.closers, redisCache.Close)
	} else {
		log.Info("REDIS_ADDR not set, product cache disabled")
	}

	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.OrderEventsQueue})
		if err != nil {
			a.Close()
			return nil, err
		}
		publisher = mqClient
		a.closers = append(a.closers, mqClient.Close)
	} else {
		log.Info("RABBITMQ_URL not set, order events disabled")
	}

	a.auth = services.NewAuthService(cfg.JWTSecret, cfg.TokenTTL)
	productService := services.NewProductService(store.Products, productCache)
	orderService := services.NewOrderService(store.Orders, store.Transactor, publisher, productCache)

	a.app = handlers.NewApp(handlers.Options{
		APIPrefix:           cfg.APIPrefix,
		AllowAnonymousReads: cfg.AllowAnonymousReads,
		AccessLog:           true,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
	}, productService, orderService, a.auth)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.WithError(err).Warn("error during shutdown")
		}
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApplication(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Bool("seed") {
		seedProducts(c.Context, a.store.Products)
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.AppPort).Info("starting server")
		listenErr <- a.app.Listen(cfg.AppPort)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	if err := a.app.Shutdown(); err != nil {
		log.WithError(err).Error("error during Fiber shutdown")
	}
	log.Info("server gracefully stopped")
	return nil
}
