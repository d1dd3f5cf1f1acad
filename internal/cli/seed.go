package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-engine/internal/config"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
	pgstore "trivia-engine/internal/infra/postgres"
	redisstore "trivia-engine/internal/infra/redis"
)

// NewSeedCmd loads the bundled sample content into Postgres, or only the demo
// group when Redis holds the player state.
func NewSeedCmd(configPath *string) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample topics, questions and a demo friends group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, group)
		},
	}
	cmd.Flags().StringVar(&group, "group", "demo", "friends group to create with demo players (empty to skip)")
	return cmd
}

var demoPlayers = []domain.User{
	{ID: "demo-alice", Nickname: "Alice", Role: "player"},
	{ID: "demo-bob", Nickname: "Bob", Role: "player"},
	{ID: "demo-cyril", Nickname: "Cyril", Role: "player"},
}

func runSeed(ctx context.Context, configPath, group string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("neither postgres url nor redis addr configured")
		}
		return seedRedis(ctx, cfg, group)
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()

	topics, questions := memory.SampleContent()
	if err := pgstore.SeedContent(ctx, db, topics, questions); err != nil {
		return err
	}
	log.Printf("seeded %d topics and %d questions", len(topics), len(questions))

	if group == "" {
		return nil
	}
	if err := pgstore.SeedGroup(ctx, db, group, demoPlayers); err != nil {
		return err
	}
	log.Printf("seeded group %s with %d players", group, len(demoPlayers))
	return nil
}

// seedRedis only seeds the demo group: without Postgres the content is the
// bundled sample pool.
func seedRedis(ctx context.Context, cfg config.Config, group string) error {
	if group == "" {
		log.Printf("redis mode serves bundled content, nothing to seed")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	if err := redisstore.NewDirectory(client).SeedGroup(ctx, group, demoPlayers); err != nil {
		return err
	}
	log.Printf("seeded group %s with %d players in redis", group, len(demoPlayers))
	return nil
}
