package cli

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"trivia-engine/internal/app"
	"trivia-engine/internal/config"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
	"trivia-engine/internal/infra/notify"
	pgstore "trivia-engine/internal/infra/postgres"
	redisstore "trivia-engine/internal/infra/redis"
)

// services holds the wired application layer and the resources to release.
type services struct {
	engine      *app.Engine
	player      *app.PlayerService
	leaderboard *app.LeaderboardEngine
	packs       *app.PackAssembler
	users       directory
	closers     []func()
}

// directory resolves users and groups and records identities seen on requests.
type directory interface {
	app.UserDirectory
	app.GroupDirectory
	UpsertUser(ctx context.Context, u domain.User) error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// wire builds repositories from config: Postgres when a URL is set, otherwise
// Redis for all player state when an address is set, in-memory as the last resort.
// Redis always fronts the content pool when configured.
func wire(ctx context.Context, cfg config.Config) (*services, error) {
	s := &services{}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}

	var (
		loader   app.ContentPool
		packRepo app.PackRepository
		progress app.ProgressRepository
		badges   app.BadgeRepository
		users    directory
	)
	if pool != nil {
		loader = pgstore.NewContentPool(pool)
		packRepo = pgstore.NewPackStore(pool)
		progress = pgstore.NewProgressStore(pool)
		badges = pgstore.NewBadgeStore(pool)
		users = pgstore.NewDirectory(pool)
	} else {
		log.Printf("postgres not configured, serving sample content from memory")
		loader = memory.NewSampleContentPool()
		packRepo = memory.NewPackStore()
		progress = memory.NewProgressStore()
		badges = memory.NewBadgeStore()
		users = memory.NewDirectory()
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var content app.ContentPool
	if redisClient != nil {
		content = redisstore.NewContentCache(redisClient, loader, config.TTLDuration(cfg.Redis.TTL, contentTTL))
		if pool == nil {
			// Replicas sharing Redis must also share packs, badges and identities.
			log.Printf("postgres not configured, keeping player state in redis")
			packRepo = redisstore.NewPackStore(redisClient)
			progress = redisstore.NewProgressStore(redisClient)
			badges = redisstore.NewBadgeStore(redisClient)
			users = redisstore.NewDirectory(redisClient)
		}
	} else {
		content = memory.NewCachedContentPool(loader, contentTTL)
	}

	var notifier app.BadgeNotifier = notify.LogNotifier{}
	if cfg.Notify.AMQPURL != "" {
		mq, err := notify.DialRabbitMQ(cfg.Notify.AMQPURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = mq.Close() })
		notifier = notify.NewQueueNotifier(mq, cfg.Notify.Queue)
	}

	loc := cfg.Location()
	catalog := app.DefaultBadges()
	s.packs = app.NewPackAssembler(content, packRepo, app.PackOptions{
		QuestionsPerQuiz: cfg.Pack.QuestionsPerQuiz,
		RecentWindowDays: cfg.Pack.RecentWindowDays,
		Location:         loc,
	})
	s.leaderboard = app.NewLeaderboardEngine(progress, users, users)
	evaluator := app.NewBadgeEvaluator(catalog, progress, badges, notifier, loc)
	s.engine = app.NewEngine(s.packs, content, progress, s.leaderboard, evaluator)
	s.player = app.NewPlayerService(s.packs, content, progress, badges, catalog, users)
	s.users = users
	return s, nil
}
