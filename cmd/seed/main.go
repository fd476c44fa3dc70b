package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"customer_reviews/internal/adapters/observability"
	redisad "customer_reviews/internal/adapters/redis"
	"customer_reviews/internal/app"
	"customer_reviews/internal/domain"
	"customer_reviews/internal/shared"
	"customer_reviews/internal/storage/sqlstore"
)

type itemSeed struct {
	name  string
	price float64
}

var (
	customerNames = []string{"Ada", "Bob", "Chen", "Dana", "Emeka", "Farah"}
	itemSeeds     = []itemSeed{
		{"Widget", 9.99}, {"Gadget", 24.5}, {"Sprocket", 3.25}, {"Gizmo", 120},
	}
	comments = []string{"Great", "Meh", "Works as described", "Would buy again"}
)

func main() {
	ctx := context.Background()
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("dialect", cfg.DBDialect).
		Int("workers", cfg.SeedWorkers).
		Msg("seed starting")

	dialect, err := sqlstore.ParseDialect(cfg.DBDialect)
	if err != nil {
		log.Fatal().Err(err).Msg("bad DB_DIALECT")
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	defer store.Close()

	// bump the cache generation so a running API drops views cached before the seed
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	cmd := app.NewCommandService(store, cache)
	sem := semaphore.NewWeighted(int64(cfg.SeedWorkers))

	customers, items, err := seedEntities(ctx, cmd, sem)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding customers and items failed")
	}
	n, err := seedReviews(ctx, cmd, sem, customers, items)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding reviews failed")
	}
	log.Info().
		Int("customers", len(customers)).
		Int("items", len(items)).
		Int("reviews", n).
		Msg("seed completed")
}

// seedEntities creates customers and items concurrently, at most sem's weight at a time.
func seedEntities(ctx context.Context, cmd *app.CommandService, sem *semaphore.Weighted) (customers, items []int64, err error) {
	customers = make([]int64, len(customerNames))
	items = make([]int64, len(itemSeeds))
	g, gctx := errgroup.WithContext(ctx)

	for i, name := range customerNames {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			id, err := cmd.CreateCustomer(gctx, app.CustomerInput{Name: &name})
			if err != nil {
				return fmt.Errorf("customer %q: %w", name, err)
			}
			customers[i] = id
			log.Debug().Int64("id", id).Str("name", name).Msg("customer created")
			return nil
		})
	}
	for i, s := range itemSeeds {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			id, err := cmd.CreateItem(gctx, app.ItemInput{Name: &s.name, Price: &s.price})
			if err != nil {
				return fmt.Errorf("item %q: %w", s.name, err)
			}
			items[i] = id
			log.Debug().Int64("id", id).Str("name", s.name).Msg("item created")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return customers, items, nil
}

// seedReviews links every customer to a couple of items. The first link is made
// through AppendItem, so it carries no comment.
func seedReviews(ctx context.Context, cmd *app.CommandService, sem *semaphore.Weighted, customers, items []int64) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	var (
		mu sync.Mutex
		n  int
	)
	count := func() {
		mu.Lock()
		n++
		mu.Unlock()
	}

	for ci, cid := range customers {
		for k := 0; k < 2; k++ {
			iid := items[(ci+k)%len(items)]
			first := ci == 0 && k == 0
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				if first {
					rid, err := cmd.AppendItem(gctx, cid, iid)
					if err != nil {
						return fmt.Errorf("append item %d to customer %d: %w", iid, cid, err)
					}
					log.Debug().Int64("id", rid).Msg("review created via append")
					count()
					return nil
				}
				comment := comments[(ci+k)%len(comments)]
				_, err := cmd.CreateReview(gctx, app.ReviewInput{Comment: &comment, CustomerID: &cid, ItemID: &iid})
				if err != nil {
					return fmt.Errorf("review customer %d item %d: %w", cid, iid, err)
				}
				count()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return n, err
	}
	return n, nil
}
