// Command seed fills the configured store with development data.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"reflexion/internal/config"
	"reflexion/internal/observability"
	"reflexion/internal/seed"
	"reflexion/internal/server"
)

func main() {
	planPath := flag.String("plan", "", "YAML seed plan (defaults are used when empty)")
	numUsers := flag.Int("users", 0, "Override the number of users")
	numConns := flag.Int("connections", -1, "Override the number of connections")
	randSeed := flag.Int64("seed", 0, "Override the random seed")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production store")
	}
	observability.InitLogging(cfg.Env, os.Stdout)

	plan := seed.DefaultPlan
	if *planPath != "" {
		if plan, err = seed.LoadPlan(*planPath); err != nil {
			log.Fatalf("Failed to load seed plan: %v", err)
		}
	}
	if *numUsers > 0 {
		plan.Users = *numUsers
	}
	if *numConns >= 0 {
		plan.Connections = *numConns
	}
	if *randSeed != 0 {
		plan.Seed = *randSeed
	}

	sum, err := run(context.Background(), cfg, plan)
	if err != nil {
		log.Fatalf("Seeding failed after %d users, %d posts: %v", sum.Users, sum.Posts, err)
	}
	log.Printf("Seeded %d users, %d posts, %d likes, %d connections, %d messages",
		sum.Users, sum.Posts, sum.Likes, sum.Connections, sum.Messages)
	log.Printf("All seeded users have the password: %s", plan.Password)
}

func run(ctx context.Context, cfg *config.Config, plan seed.Plan) (seed.Summary, error) {
	store, closeStore, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return seed.Summary{}, err
	}
	defer func() { _ = closeStore(ctx) }()

	return seed.NewSeeder(store, plan).Run(ctx)
}
