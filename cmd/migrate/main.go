// Command migrate prepares the configured store: tables for the relational
// drivers, indexes for MongoDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"reflexion/internal/config"
	"reflexion/internal/database"
	"reflexion/internal/observability"
	"reflexion/internal/repository/mongostore"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|models>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogging(cfg.Env, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0))); cmd {
	case "up":
		return up(ctx, cfg)
	case "models":
		for _, m := range database.Models() {
			fmt.Printf("%T\n", m)
		}
		return nil
	default:
		return usage()
	}
}

func up(ctx context.Context, cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMongo {
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		if err := mongostore.EnsureIndexes(ctx, client.Database(cfg.MongoDB)); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
		log.Println("mongo indexes ensured")
		return nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	// Connect only migrates outside production.
	if cfg.IsProduction() {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}
	log.Println("schema migrations applied")
	return nil
}
