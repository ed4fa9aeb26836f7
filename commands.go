package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the database schema",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := repositories.Open(cfg.DBDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(); err != nil {
				return err
			}
			log.WithField("driver", cfg.DBDriver).Info("schema migrated")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "insert demo products",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := repositories.Open(cfg.DBDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(); err != nil {
				return err
			}
			seedProducts(c.Context, store.Products)
			return nil
		},
	}
}

// consumeCommand tails the order events queue into the log.
func consumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "consume",
		Usage: "log order lifecycle events from RabbitMQ",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL must be set")
			}
			mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.OrderEventsQueue})
			if err != nil {
				return err
			}
			defer mqClient.Close()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return mqClient.ConsumeOrderEvents(ctx, logOrderEvent)
		},
	}
}

func logOrderEvent(event rabbitmq.OrderEvent) error {
	log.WithFields(log.Fields{
		"event_id":    event.EventID,
		"order_id":    event.OrderID,
		"customer_id": event.CustomerID,
		"status":      event.Status,
		"total_price": event.TotalPrice,
		"occurred_at": event.OccurredAt,
	}).Info(event.Type)
	return nil
}

// tokenCommand mints a bearer token. Accounts live elsewhere; this is for
// operators and local testing.
func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for a caller identity",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user-id", Required: true, Usage: "subject the token identifies"},
			&cli.StringFlag{Name: "username", Usage: "display name carried in the token"},
			&cli.BoolFlag{Name: "staff", Usage: "grant administrator rights"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}
			auth := services.NewAuthService(cfg.JWTSecret, cfg.TokenTTL)
			token, err := auth.IssueToken(models.User{
				ID:       c.String("user-id"),
				Username: c.String("username"),
				IsStaff:  c.Bool("staff"),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

// seedProducts populates an empty product repository with some initial data.
func seedProducts(ctx context.Context, repo repositories.ProductRepository) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		log.WithError(err).Error("error checking catalog before seeding")
		return
	}
	if len(existing) > 0 {
		log.WithField("products", len(existing)).Info("catalog already seeded")
		return
	}

	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1200.00"), Stock: 10},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("75.00"), Stock: 25},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.RequireFromString("25.00"), Stock: 50},
	}

	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.WithError(err).WithField("product", products[i].Name).Error("error seeding product")
			continue
		}
		log.WithFields(log.Fields{"product": products[i].Name, "id": products[i].ID}).Info("seeded product")
	}
}
